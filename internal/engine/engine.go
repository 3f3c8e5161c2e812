package engine

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petersohn/home-automation/internal/expr"
	"github.com/petersohn/home-automation/internal/store"
)

// Engine is the evaluation pipeline: it computes intended output-pin states
// from expressions, diffs snapshots, and processes input-pin edge events.
//
// Every public operation runs inside one store transaction, so a pass
// observes a single consistent state from its first read to its last write.
type Engine struct {
	store *store.Store
	log   *slog.Logger
}

// New creates an Engine.
//
// Parameters:
//   - st: State store holding devices, pins, variables and triggers
//   - log: Structured logger for evaluation failures
func New(st *store.Store, log *slog.Logger) *Engine {
	return &Engine{store: st, log: log}
}

// IntendedStates computes the intended value of every eligible output pin.
//
// With a device filter, only that device's pins are considered. Without
// one, pins of all alive devices are considered: dead devices are not
// dispatch candidates.
//
// A pin whose expression fails to evaluate is logged and omitted from the
// result; it is never populated with a stale or default value.
func (e *Engine) IntendedStates(ctx context.Context, deviceFilter string) (Snapshot, error) {
	var snap Snapshot
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		snap, err = e.intendedStates(tx, deviceFilter)
		return err
	})
	if err != nil {
		return nil, err
	}
	return snap, nil
}

// IntendedStatesIn is IntendedStates inside an existing transaction, for
// callers that need the snapshot and other store work to be atomic.
func (e *Engine) IntendedStatesIn(tx *store.Tx, deviceFilter string) (Snapshot, error) {
	return e.intendedStates(tx, deviceFilter)
}

func (e *Engine) intendedStates(tx *store.Tx, deviceFilter string) (Snapshot, error) {
	filter := store.OutputPinFilter{
		Device:    deviceFilter,
		AliveOnly: deviceFilter == "",
	}
	pins, err := tx.OutputPins(filter)
	if err != nil {
		return nil, err
	}

	snap := make(Snapshot)
	env := evalEnv(tx)
	for _, pin := range pins {
		value, err := expr.Evaluate(*pin.Expression, env)
		if err != nil {
			if logErr := e.evalFailed(tx, pin.Device, pin.Name, err); logErr != nil {
				return nil, logErr
			}
			continue
		}
		snap.set(pin.Device, pin.Name, value)
	}
	return snap, nil
}

// HandleEdge processes an input-pin edge event: snapshot intended states,
// fire the triggers matching the edge, snapshot again, and return the diff.
// The whole event runs in one transaction, so a concurrent report cannot
// observe a half-fired event.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - device, pin: The reporting input pin
//   - value: The pin's new value; true selects rising triggers, false falling
//
// Returns:
//   - Snapshot: The (device, pin, value) entries whose intended state changed
//   - error: Store failure aborting the whole event
func (e *Engine) HandleEdge(ctx context.Context, device, pin string, value bool) (Snapshot, error) {
	var changes Snapshot
	err := e.store.WithTx(ctx, func(tx *store.Tx) error {
		before, err := e.intendedStates(tx, "")
		if err != nil {
			return err
		}

		triggers, err := tx.TriggersForPin(device, pin, store.EdgeForValue(value))
		if err != nil {
			return err
		}

		info := &expr.PinInfo{Device: device, Pin: pin, Value: pinValue(value)}
		for _, trigger := range triggers {
			// Each trigger fails independently; effects it produced
			// before the failure stand.
			env := triggerEnv(tx, info)
			if _, err := expr.Evaluate(trigger.Expression, env); err != nil {
				if logErr := e.evalFailed(tx, device, pin, err); logErr != nil {
					return logErr
				}
			}
		}

		after, err := e.intendedStates(tx, "")
		if err != nil {
			return err
		}
		changes = Diff(before, after)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return changes, nil
}

// evalFailed records an expression failure in the audit log and the
// structured log. A store error writing the audit entry aborts the pass.
func (e *Engine) evalFailed(tx *store.Tx, device, pin string, evalErr error) error {
	e.log.Error("expression evaluation failed",
		"device", device,
		"pin", pin,
		"error", evalErr)
	message := fmt.Sprintf("Expression evaluation failed: %v", evalErr)
	return tx.AppendLog(store.SeverityError, message, &device, &pin)
}

// pinValue is the value bound to pin.value during trigger execution.
// Reports carry pin readings as 0/1, so rules compare against integers.
func pinValue(value bool) expr.Value {
	if value {
		return int64(1)
	}
	return int64(0)
}
