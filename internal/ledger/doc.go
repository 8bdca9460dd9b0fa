// Package ledger provides a SQLite-backed journal of batch lifecycle events.
//
// The ledger is append-only. Every call that changes remote state records an
// event: the batch was initialized, a HIT type or HIT was created, the batch
// was uploaded, reviewed, saved, deleted or expired, or a qualification type
// was created. hit_created is written once per task as soon as the remote
// call returns, so an upload that fails half way leaves a record of every
// HIT that does exist.
//
// # Event Integrity
//
//   - Payloads are stored as canonical JSON (sorted keys, NFC strings)
//   - Each event carries a SHA-256 hash over batch id, kind and payload
//   - Ordering uses seq INTEGER, never recorded_at
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//
// A zero-value path disables the ledger; callers then use Nop.
package ledger
