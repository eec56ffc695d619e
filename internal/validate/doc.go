// Package validate implements the client-side field checks run before any request
// is sent: sign-up, sign-in and password-reset forms, and calculator input.
//
// Checks run in the order the panel presents them and stop at the first failure,
// so the user sees one message at a time. Every failure is a *FieldError wrapping
// ErrInvalidInput, carrying the user-facing message.
package validate
