// Package engine persists graphs of interdependent records in one batch.
//
// A Persister receives record handles, discovers every record reachable
// through their foreign-key references, and wraps each one in an
// InsertOperation. It then writes the operations depth-first so that a
// record's statement never precedes the statements of the records it
// references, resolves deferred key values, executes the batch in one
// round trip, and reads generated keys back in write order.
//
// ARCHITECTURE:
//
// Per-Call Session:
// All mutable state (recursion guard, deferred resolver, ordered write
// list, read cursor) lives in a session created by Persist and discarded
// when it returns. A Persister may be shared; a session never is.
//
// Write Order:
//  1. Skip an operation whose write is already on the guard stack
//  2. Push the write onto the guard stack
//  3. Write every referenced operation first, in declaration order
//  4. Stop here if the operation was already written
//  5. Build columns; foreign keys take the peer's concrete key, its
//     generated-key symbol, or its deferred cell
//  6. Produce the record's own key: deferred, GUID, or generated
//  7. Queue the statement and append the operation to the write list
//  8. Pop the guard
//
// Cycles:
// A foreign key whose peer is still on the guard stack completes a cycle.
// The edge is broken without error: the column is left out of the
// statement (so the store writes NULL) and is reported in Report.Broken.
//
// Read-Back:
// Execute returns a flat token slice. Operations consume it in write order,
// each taking exactly the tokens it declared (two per generated key). A
// short or long stream is a fatal batch.ErrDesync.
package engine
