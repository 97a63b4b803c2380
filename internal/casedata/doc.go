// Package casedata fetches parties and scheduled events from court data APIs.
package casedata
