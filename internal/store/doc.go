// Package store provides the SQLite backend: a kv.Store for claim records
// and an append-only notification journal.
//
// # Tables
//
//   - kv: claim records and the id counter, keyed by opaque string
//   - notifications: every accepted notification, one row per seq
//
// # Journal integrity
//
// Journal rows are never updated or deleted. Each row carries
// digest = sha256(domain, canonical(row) + prev digest), so rewriting any
// row breaks every later link. VerifyChain recomputes the chain.
//
// All ordering uses the logical seq column, never timestamps, and every
// journal query ends in ORDER BY seq ASC.
//
// # Database configuration
//
//   - WAL mode: concurrent reads during writes
//   - synchronous=NORMAL
//   - busy_timeout=5000
//   - one open connection, so update units are serialized
package store
