package ingest

import (
	"errors"
	"fmt"

	"github.com/petersohn/home-automation/internal/store"
)

// ErrInvalidReport is returned for a structurally bad device report. The
// HTTP surface maps it to a 400; everything else is the server's fault.
var ErrInvalidReport = errors.New("ingest: invalid report")

// ReportType classifies a device report.
type ReportType string

// Report types. An empty type is an ordinary heartbeat.
const (
	// ReportLogin is the first report after a device (re)starts. It tears
	// down any stale connection before new pin-set traffic.
	ReportLogin ReportType = "login"

	// ReportEvent is an input-pin edge notification. Pin replacement is
	// suppressed and triggers run instead.
	ReportEvent ReportType = "event"

	// ReportHeartbeat is a periodic full state report.
	ReportHeartbeat ReportType = "heartbeat"
)

// ReportDevice identifies the reporting device.
type ReportDevice struct {
	Name string `json:"name"`

	// IP is optional; it defaults to the transport peer address.
	IP      string `json:"ip,omitempty"`
	Port    int    `json:"port"`
	Version int    `json:"version,omitempty"`
}

// ReportPin is one pin reading.
type ReportPin struct {
	Name  string `json:"name"`
	Type  string `json:"type"`
	Value int64  `json:"value"`
}

// Kind maps the wire pin type onto the store's pin kind.
func (p ReportPin) Kind() store.PinKind {
	return store.PinKind(p.Type)
}

// Report is the payload devices send over HTTP or MQTT.
type Report struct {
	Device ReportDevice `json:"device"`
	Pins   []ReportPin  `json:"pins"`
	Type   ReportType   `json:"type,omitempty"`
}

// Validate checks the report's structure. Address fallback to the transport
// peer happens later; everything else must be present and well-formed.
func (r *Report) Validate() error {
	if r.Device.Name == "" {
		return fmt.Errorf("%w: device name is required", ErrInvalidReport)
	}
	if r.Device.Port < 1 || r.Device.Port > 65535 {
		return fmt.Errorf("%w: device port %d out of range", ErrInvalidReport, r.Device.Port)
	}
	switch r.Type {
	case "", ReportLogin, ReportEvent, ReportHeartbeat:
	default:
		return fmt.Errorf("%w: unknown report type %q", ErrInvalidReport, r.Type)
	}
	for i, pin := range r.Pins {
		if pin.Name == "" {
			return fmt.Errorf("%w: pin %d has no name", ErrInvalidReport, i)
		}
		if kind := pin.Kind(); kind != store.PinInput && kind != store.PinOutput {
			return fmt.Errorf("%w: pin %q has unknown type %q", ErrInvalidReport, pin.Name, pin.Type)
		}
	}
	return nil
}
