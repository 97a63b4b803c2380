// Package twilio is the SMS transport: an outbound Messages API client and
// the inbound webhook that turns texts into conversation turns.
package twilio
