// Package store owns the database connection that seeded records land in.
//
// The store opens SQLite (or any database/sql driver with a matching
// sqlbatch dialect), creates tables from schema descriptors, and binds
// record graphs inside one transaction per call:
//
//	s, _ := store.Open("seed.db")
//	_ = s.EnsureTables(ctx, parent, child)
//	report, err := s.Bind(ctx, []schema.RecordHandle{child})
//
// # Scoped Sessions
//
// Bind acquires a transaction, runs one engine batch through it, records
// the batch in the journal table, and commits. Any error or panic rolls the
// transaction back, so a failed batch leaves no rows behind.
//
// # Database Configuration
//
// SQLite databases opened with Open use:
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// The pool is limited to one connection. Generated keys are captured in a
// per-connection temporary table, so a batch and its key read must share
// a connection; the transaction guarantees that for other drivers.
package store
