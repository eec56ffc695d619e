// Package cooldown gates "send verification code" actions to one accepted send per
// channel per fixed window and renders the remaining wait on a bound control.
//
// # Window semantics
//
// A cooldown is stored as an absolute expiry in milliseconds since the epoch under
// KeyPrefix+channel. Every render recomputes the remaining whole seconds from that
// absolute value, so late or missed ticks self-correct. An expired entry is treated
// exactly like a missing one.
//
// # Concurrency
//
// At most one render loop runs per channel. Start replaces the running loop and the
// persisted entry under the manager mutex; a replaced loop sees it is no longer current
// and exits without touching the control. Control mutation and store writes are
// serialized by the same mutex.
//
// # Architecture boundaries
//
// The package owns the countdown lifecycle only. It does not send codes, show
// notifications, or decide whether a backend accepted a request.
//
// # What this package must NOT do
//
//   - Fail the caller on unreadable or malformed persisted data (fail open).
//   - Leave a control disabled once its cooldown has expired.
//   - Import any sibling internal package.
package cooldown
