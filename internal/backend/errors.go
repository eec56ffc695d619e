package backend

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnavailable wraps transport failures: DNS, connection, timeout.
	ErrUnavailable = errors.New("backend unavailable")
	// ErrRejected matches every *RejectedError.
	ErrRejected = errors.New("backend rejected request")
	// ErrConflict matches a rejection caused by an existing username or email.
	ErrConflict = errors.New("account already exists")
	// ErrMalformedResponse reports a body that is not the expected JSON.
	ErrMalformedResponse = errors.New("malformed backend response")
)

// RejectedError carries the backend's reason for refusing a request.
type RejectedError struct {
	StatusCode int
	Message    string
}

func (e *RejectedError) Error() string {
	return fmt.Sprintf("backend rejected request [%d]: %s", e.StatusCode, e.Message)
}

func (e *RejectedError) Is(target error) bool {
	if target == ErrRejected {
		return true
	}
	return target == ErrConflict && e.StatusCode == http.StatusConflict
}

// Reason returns the user-facing text for err: the backend message for
// rejections, the raw error text otherwise.
func Reason(err error) string {
	var rejected *RejectedError
	if errors.As(err, &rejected) {
		return rejected.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
