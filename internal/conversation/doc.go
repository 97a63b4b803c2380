// Package conversation interprets inbound texts as turns of the registration
// sign-up dialogue. The Driver owns the flow; message templates, persistence
// and party lookup are injected so every transport shares one state machine.
package conversation
