// Package store records what happened to every tool invocation.
//
// # Architecture
//
// DispatchLog is the single interface. Two implementations exist:
//
//   - SQLiteStore: durable ledger on modernc.org/sqlite, enabled with
//     audit.enabled in the gateway config
//   - MemoryStore: bounded in-process ring, the default
//
// Session history and the invocation queue are deliberately not stored
// here. They live in memory and are lost on restart.
//
// # Data Model
//
// A Dispatch is one invocation outcome:
//
//   - delivered: written to the client's live channel
//   - dropped: the client had no live channel
//   - failed: the channel write errored and the channel was detached
//   - stale: left over from an earlier request and discarded
//
// # SQLite Configuration
//
//	PRAGMA journal_mode=WAL;
//
// Use NewSQLiteStore(":memory:") in tests that need real SQL.
package store
