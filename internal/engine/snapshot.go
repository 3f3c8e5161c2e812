package engine

import "github.com/petersohn/home-automation/internal/expr"

// Snapshot is an intended-state mapping: device name to pin name to the
// value the pin's expression evaluated to.
type Snapshot map[string]map[string]expr.Value

// set records a value, allocating the device map on first use.
func (s Snapshot) set(device, pin string, value expr.Value) {
	pins, ok := s[device]
	if !ok {
		pins = make(map[string]expr.Value)
		s[device] = pins
	}
	pins[pin] = value
}

// Diff returns the entries of after that are absent from or unequal in
// before. Pure function. Pins present only in before are not reported:
// a pin disappearing between snapshots is not a change signal.
//
// Equality is value equality with no type coercion, so an int64(1) differs
// from a bool true.
func Diff(before, after Snapshot) Snapshot {
	changes := make(Snapshot)
	for device, pins := range after {
		for pin, value := range pins {
			if old, ok := before[device][pin]; !ok || old != value {
				changes.set(device, pin, value)
			}
		}
	}
	return changes
}
