package signpanel

import (
	"errors"

	"github.com/MrEthical07/signpanel/internal/backend"
	"github.com/MrEthical07/signpanel/internal/cooldown"
	"github.com/MrEthical07/signpanel/internal/stores"
	"github.com/MrEthical07/signpanel/internal/validate"
)

var (
	// ErrCodeCooldownActive is returned by SendCode while the channel is inside its window.
	ErrCodeCooldownActive = errors.New("verification code cooldown active")
	// ErrSendInFlight is returned by SendCode while another send on the same channel
	// is waiting for the backend.
	ErrSendInFlight = errors.New("verification code request in flight")
	// ErrPanelClosed is returned by operations after Close.
	ErrPanelClosed = errors.New("panel closed")
	// ErrBuilderUsed is returned by a second Build call.
	ErrBuilderUsed = errors.New("builder already used")
	// ErrRedisRequired is returned by Build when Storage.Kind is redis without a client.
	ErrRedisRequired = errors.New("redis client required")
	// ErrNoSession is returned by Session when nobody is logged in.
	ErrNoSession = errors.New("no active session")

	ErrInvalidInput       = validate.ErrInvalidInput
	ErrBackendRejected    = backend.ErrRejected
	ErrBackendUnavailable = backend.ErrUnavailable
	ErrAccountExists      = backend.ErrConflict
	ErrStoreUnavailable   = stores.ErrStoreUnavailable
	ErrCooldownPersist    = cooldown.ErrPersistFailed
)

// FieldError is the validation failure returned by form operations.
type FieldError = validate.FieldError

// RejectedError is the backend's refusal of a request.
type RejectedError = backend.RejectedError

// CalculatorError carries the text a calculator display shows for a failed request.
type CalculatorError struct {
	Message string
	Err     error
}

func (e *CalculatorError) Error() string {
	return e.Message + ": " + e.Err.Error()
}

func (e *CalculatorError) Unwrap() error {
	return e.Err
}
