// Package datastore implements the dynamic-schema entity store.
//
// # Architecture
//
// The store orchestrates three leaf components per operation: the entity
// codec (typed property bag ↔ column map), the schema mapper (table
// introspection and additive migration) and the query translator (structured
// query → parameterized SQL). Data flows top-down; none of the components
// depend back on the store.
//
// # Operation set
//
//   - Put: upsert-by-replace with on-demand schema migration and
//     auto-assigned integer ids
//   - Get: per-key single-row lookups, silent skip on misses
//   - Delete: accepted, intentionally unimplemented
//   - RunQuery / Next: buffered results behind opaque cursor ids
//   - BeginTransaction / Commit / Rollback: connection-per-transaction
//     handles
//   - GetSchema, CreateIndex, GetIndices, UpdateIndex, DeleteIndex, Count:
//     accepted no-ops
//
// # Concurrency
//
// Operations run synchronously on the calling goroutine. The transaction and
// cursor registries each have their own mutex, held only around
// allocate/lookup/remove so unrelated database work never serializes.
// Connections are single-owner: one operation or one open transaction at a
// time. There are no timeouts; a transaction that is never finished leaks its
// connection.
//
// # Errors
//
// Contract violations (ErrTransactionNotFound, ErrCursorNotFound, and the
// codec/translator sentinels) are distinguishable from engine faults via
// IsBadRequest. Relational-engine errors propagate unmodified and are never
// retried.
package datastore
