// Package cooldown enforces the minimum interval between identity rotations.
//
// A Limiter pairs per-tier cooldown durations with a Store that performs the
// check-and-reserve step atomically. Three stores are provided:
//   - MemoryStore guards state with a mutex. It is correct for a single
//     process only.
//   - SQLiteStore keeps state in a shared SQLite file and reserves with a
//     single conditional upsert, so worker processes on one host share one
//     cooldown window.
//   - RedisStore reserves with SET NX PX, sharing the window across hosts.
//
// A reservation is never rolled back. A rotation that later fails still
// consumes its window, which keeps retry loops from hammering the tier.
package cooldown
