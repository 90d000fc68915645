// Package txn implements the transaction manager: nested savepoints, write
// flushing (immediate or deferred), commit/rollback across whatever shards
// a transaction's plans touched, and the connection catalog those plans
// borrow backend connections from (spec §4.K).
package txn
