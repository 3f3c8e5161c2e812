package dispatch

import (
	"fmt"
	"net/url"
)

// ActionType discriminates the actions carried over the request channel.
type ActionType string

// Action types.
const (
	// ActionRequest asks the dispatcher to issue an HTTP request to the
	// device's current address.
	ActionRequest ActionType = "request"

	// ActionClearDevice tears down the connection actor for the device's
	// current address. Sent on device (re)login so a stale connection is
	// never reused.
	ActionClearDevice ActionType = "clear_device"
)

// Action is one unit of dispatch work. It is flat and JSON-serializable so
// it can cross the inter-process channel unchanged.
type Action struct {
	Type   ActionType `json:"type"`
	Device string     `json:"device"`
	Path   string     `json:"path,omitempty"`
}

// NewRequest builds a request action for a device-relative path.
func NewRequest(device, path string) Action {
	return Action{Type: ActionRequest, Device: device, Path: path}
}

// NewClearDevice builds a teardown action for the device's current address.
func NewClearDevice(device string) Action {
	return Action{Type: ActionClearDevice, Device: device}
}

// SetPin builds the request that drives one output pin. Devices expose
// GET /<pinName>/<0|1>.
func SetPin(device, pin string, value bool) Action {
	v := 0
	if value {
		v = 1
	}
	return NewRequest(device, fmt.Sprintf("/%s/%d", url.PathEscape(pin), v))
}
