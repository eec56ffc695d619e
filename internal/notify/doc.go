// Package notify implements toast notifications: short messages shown to the user
// after an action, dismissed automatically after a duration or by the user.
//
// A [Presenter] assigns each toast an ID and publishes shown/updated/dismissed
// events through an asynchronous [Dispatcher] to a [Sink]. Rendering is entirely
// the sink's job: a terminal line writer, a JSON stream, or a channel in tests.
//
// # What this package must NOT do
//
//   - Block callers on slow sinks when DropIfFull is set.
//   - Emit more than one dismissed event per toast.
package notify
