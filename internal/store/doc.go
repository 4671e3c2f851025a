// Package store provides the SQLite-backed identifier index.
//
// The index maps gene identifiers and RNA names to the template nodes of a
// diagram that carry them. It is rebuilt from node annotations with
// BuildFromArena and queried by the projector for every record.
//
// # Layout
//
//   - identifier_nodes: (kind, ident, node_id), kind is gene or rna
//   - index_meta: schema version and rebuild statistics (see Info)
//
// RNA names are stored normalized (trimmed, upper case), so lookups are
// case-insensitive. Lookups return node ids in ascending order.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait on lock contention
//   - One open connection, so ":memory:" indexes stay in one database
//
// Schema changes are numbered migrations tracked in PRAGMA user_version.
// Open applies the pending ones, each in its own transaction, so an index
// written by an older build is upgraded in place.
package store
