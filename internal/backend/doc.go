// Package backend is the HTTP client for the panel's opaque backend service.
//
// # Endpoints
//
//   - POST /verify: request a verification code for a channel ("register", "reset").
//   - POST /post: submit a form; the "action" field selects register, login or reset.
//   - POST /calculate: {"a","b"} returns {"sum"}; {"expr"} returns {"result"} or {"error"}.
//
// Every response is JSON. A request is rejected when the HTTP status is not 2xx,
// when "status" is "fail", or (for /post) when "error" is set. Rejections are
// *RejectedError values that match ErrRejected; transport failures wrap ErrUnavailable.
//
// # What this package must NOT do
//
//   - Validate form fields (internal/validate does that before any request).
//   - Verify token signatures; login tokens are decoded for display only.
package backend
