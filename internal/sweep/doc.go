// Package sweep implements the periodic jobs that keep registrations moving
// without inbound traffic: delivering reminders for upcoming events and
// re-checking case numbers that matched nothing at sign-up.
package sweep
