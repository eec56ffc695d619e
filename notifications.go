package signpanel

import (
	"io"

	"github.com/MrEthical07/signpanel/internal/notify"
)

// NotificationEvent is one toast lifecycle event: shown, updated or dismissed.
type NotificationEvent = notify.Event

// NotificationSink receives toast events from the panel's dispatcher.
type NotificationSink = notify.Sink

const (
	NotificationShown     = notify.EventShown
	NotificationUpdated   = notify.EventUpdated
	NotificationDismissed = notify.EventDismissed
)

// NewNotificationWriterSink prints one line per shown or updated toast.
func NewNotificationWriterSink(w io.Writer) NotificationSink {
	return notify.NewWriterSink(w)
}

// NewNotificationJSONSink writes every event as a JSON line.
func NewNotificationJSONSink(w io.Writer) NotificationSink {
	return notify.NewJSONWriterSink(w)
}

// NotificationChannelSink exposes events on a channel; useful in tests.
type NotificationChannelSink = notify.ChannelSink

func NewNotificationChannelSink(buffer int) *NotificationChannelSink {
	return notify.NewChannelSink(buffer)
}
