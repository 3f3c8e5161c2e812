package store

import "time"

// PinKind distinguishes input pins (reported by devices) from output pins
// (driven by expressions).
type PinKind string

// Pin kinds.
const (
	PinInput  PinKind = "input"
	PinOutput PinKind = "output"
)

// Edge identifies which input-pin transition a trigger matches.
type Edge string

// Trigger edges. EdgeBoth matches any transition.
const (
	EdgeRising  Edge = "rising"
	EdgeFalling Edge = "falling"
	EdgeBoth    Edge = "both"
)

// EdgeForValue returns the edge represented by a pin's new value:
// rising for a transition to 1/true, falling for a transition to 0/false.
func EdgeForValue(value bool) Edge {
	if value {
		return EdgeRising
	}
	return EdgeFalling
}

// Severity classifies log entries.
type Severity string

// Log severities.
const (
	SeverityInfo    Severity = "info"
	SeverityWarning Severity = "warning"
	SeverityError   Severity = "error"
)

// Device is a networked I/O unit in the fleet. Devices are created on the
// first report from an unknown name and updated on every subsequent report;
// they are never hard-deleted.
type Device struct {
	Name     string
	Host     string
	Port     int
	Version  int
	LastSeen time.Time
}

// Pin belongs to exactly one device; (Device, Name) is unique. Output pins
// may carry an expression describing their intended state. An output pin
// without an expression has no intended state and is excluded from
// computation.
type Pin struct {
	ID         int64
	Device     string
	Name       string
	Kind       PinKind
	Expression *string
}

// Variable is a named integer mutated only through get/set/toggle inside
// the expression sandbox.
type Variable struct {
	Name  string
	Value int64
}

// InputTrigger fires when its input pin reports a matching edge. Its
// expression may mutate variables and therefore the intended state of
// other pins.
type InputTrigger struct {
	ID         int64
	Device     string
	Pin        string
	Edge       Edge
	Expression string
}

// LogEntry is a write-only audit record created by the engine and by
// expressions via the log proxy.
type LogEntry struct {
	ID       int64
	Severity Severity
	Time     time.Time
	Message  string
	Device   *string
	Pin      *string
}

// OutputPinFilter narrows the output-pin selection for intended-state
// computation.
type OutputPinFilter struct {
	// Device restricts the selection to one device by name. Empty means all.
	Device string

	// AliveOnly excludes pins belonging to dead devices. Used when no
	// device filter is given: dead devices are not dispatch candidates.
	AliveOnly bool
}
