// Package signpanel drives a sign-in / sign-up / password-reset panel whose
// "send verification code" controls are rate limited per channel.
//
// A [Panel] is built once through [Builder]. It validates form input, talks to the
// panel backend over HTTP, shows toast notifications, and keeps a persisted
// cooldown per channel so a restarted front end resumes the countdown where the
// previous one left off. Panel methods are safe for concurrent use.
//
// # Architecture boundaries
//
// signpanel is the public surface. It exposes [Panel], [Builder], [Config] and the
// value types callers need (View, Form, Session, MetricsSnapshot). Countdown
// lifecycle, storage backends, toast delivery, validation rules and the HTTP client
// live under internal/ and are reached only through Panel.
//
// # What this package must NOT do
//
//   - Call the backend while a channel is cooling down.
//   - Fail a send because the cooldown could not be persisted; the countdown still runs.
//   - Close a Redis client it did not create.
package signpanel
