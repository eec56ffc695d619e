// Package stores provides durable keyed string storage for client-side state:
// cooldown expiries and the last login session.
//
// # Backends
//
//   - [MemoryStore]: process-local map, for tests and embedding.
//   - [RedisStore]: Redis via go-redis UniversalClient, with an optional key
//     namespace and TTL safety net.
//   - [FileStore]: a single JSON document on disk, surviving process restarts the
//     way origin-scoped browser storage survives page reloads.
//
// A missing key is never an error: Get reports ok=false. Backend failures are
// wrapped with [ErrStoreUnavailable].
//
// # What this package must NOT do
//
//   - Interpret stored values (callers own their encoding).
//   - Import any sibling internal package.
package stores
