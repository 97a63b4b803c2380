// ABOUTME: Package documentation for the dedupe cache
// ABOUTME: Positions the cache relative to the durable sent-message records

// Package dedupe provides a TTL-based, size-limited cache of seen keys.
//
// The reminder sweep uses it as a fast path in front of the sent-message
// table: within one process, a sweep that already handled a reminder key
// skips the store lookup on the next run. The durable record in the store
// remains authoritative; losing the cache only costs extra reads, never
// duplicate sends.
package dedupe
