// Package stubserver is an in-memory stand-in for the panel backend.
//
// It serves /verify, /post and /calculate with the same JSON shapes as the real
// service. Verification codes are kept in memory instead of being mailed; read them
// back with LastCode or receive them through a Delivery hook. Passwords are hashed
// with argon2id; successful logins return an HS256 token carrying the username as
// subject.
//
// # What this package must NOT do
//
//   - Deliver email or persist users across restarts.
//   - Evaluate arbitrary expressions unless an Evaluator is installed.
package stubserver
