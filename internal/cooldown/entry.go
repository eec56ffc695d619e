package cooldown

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"
)

var (
	// ErrPersistFailed is returned by Start when the entry could not be written.
	// The countdown still runs in memory.
	ErrPersistFailed = errors.New("cooldown persist failed")
	// ErrClosed is returned by Start after Close.
	ErrClosed = errors.New("cooldown manager closed")
	// ErrMalformedEntry reports a stored value that is not a millisecond timestamp.
	ErrMalformedEntry = errors.New("malformed cooldown entry")
)

// Store is durable keyed storage: get, set and remove string values.
// A missing key is reported as ok=false with a nil error.
type Store interface {
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// Control is the transient view bound to a channel.
type Control interface {
	SetDisabled(disabled bool)
	SetLabel(label string)
	// Alive reports whether the control still exists. A dead control stops its loop.
	Alive() bool
}

// Clock supplies the current time.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Entry is one active rate-limit window.
type Entry struct {
	Channel   string
	ExpiresAt int64
}

// Active reports whether the window is still open at nowMs.
func (e Entry) Active(nowMs int64) bool {
	return e.ExpiresAt > nowMs
}

// Remaining returns the whole seconds left at nowMs, rounded up. Zero once expired.
func (e Entry) Remaining(nowMs int64) int64 {
	d := e.ExpiresAt - nowMs
	if d <= 0 {
		return 0
	}
	return (d + 999) / 1000
}

// Encode returns the stored representation of the entry.
func (e Entry) Encode() string {
	return strconv.FormatInt(e.ExpiresAt, 10)
}

// ParseEntry decodes a stored value for channel.
func ParseEntry(channel, raw string) (Entry, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Entry{}, fmt.Errorf("%w: empty value", ErrMalformedEntry)
	}
	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("%w: %v", ErrMalformedEntry, err)
	}
	if ms <= 0 {
		return Entry{}, fmt.Errorf("%w: non-positive timestamp", ErrMalformedEntry)
	}
	return Entry{Channel: channel, ExpiresAt: ms}, nil
}
