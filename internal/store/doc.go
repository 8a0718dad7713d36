// Package store keeps the latest snapshot of every polled view and fans
// region changes out to subscribers.
//
// The main components are:
//
//   - [Store]: Interface defining storage and subscription operations
//   - [MemoryStore]: In-memory implementation of Store with pub/sub
//   - [Snapshot]: Stored state of one view, split into [Region] values
//   - [Change]: What subscribers receive; lists only regions whose hash moved
//
// Subscribers receive changes via channels with non-blocking sends (slow
// subscribers will miss changes rather than block the pollers).
package store
