package ingest

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/petersohn/home-automation/internal/dispatch"
	"github.com/petersohn/home-automation/internal/engine"
	"github.com/petersohn/home-automation/internal/expr"
	"github.com/petersohn/home-automation/internal/store"
)

// Sender carries dispatch actions to the dispatch process. Sending is
// fire-and-forget; a slow device never blocks report handling.
type Sender interface {
	Send(a dispatch.Action) error
}

// Telemetry receives every reported pin value. Optional; backed by InfluxDB
// when enabled.
type Telemetry interface {
	WritePinValue(device, pin string, kind store.PinKind, value int64)
}

// Service processes device reports: it updates the store, runs the
// evaluation pipeline and pushes resulting changes to devices.
type Service struct {
	store     *store.Store
	engine    *engine.Engine
	sender    Sender
	log       *slog.Logger
	telemetry Telemetry
}

// NewService creates a Service.
//
// Parameters:
//   - st: State store
//   - eng: Evaluation pipeline
//   - sender: Channel to the dispatch process
//   - log: Structured logger
func NewService(st *store.Store, eng *engine.Engine, sender Sender, log *slog.Logger) *Service {
	return &Service{
		store:  st,
		engine: eng,
		sender: sender,
		log:    log,
	}
}

// SetTelemetry installs an optional pin-value sink.
func (s *Service) SetTelemetry(t Telemetry) {
	s.telemetry = t
}

// ProcessReport handles one device report end to end.
//
// The store update is atomic: intended states are snapshotted before and
// after so changes caused by the report itself (a device coming alive, pins
// appearing) are pushed out. Event reports run triggers per reported input
// pin instead of replacing pins; other reports get a drift check on their
// output pins.
//
// Parameters:
//   - ctx: Context for timeout/cancellation
//   - report: The decoded payload
//   - peerHost: Transport peer address, used when the payload omits the IP
//
// Returns:
//   - error: ErrInvalidReport for a bad payload, otherwise a store failure
func (s *Service) ProcessReport(ctx context.Context, report Report, peerHost string) error {
	if err := report.Validate(); err != nil {
		return err
	}
	host := report.Device.IP
	if host == "" {
		host = peerHost
	}
	if host == "" {
		return fmt.Errorf("%w: no device address", ErrInvalidReport)
	}
	version := report.Device.Version
	if version == 0 {
		version = 1
	}
	isEvent := report.Type == ReportEvent

	var before, after engine.Snapshot
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		var err error
		before, err = s.engine.IntendedStatesIn(tx, "")
		if err != nil {
			return err
		}

		if err := tx.UpsertDevice(report.Device.Name, host, report.Device.Port, version); err != nil {
			return err
		}

		// Pins are replaced wholesale, except on event reports: an event
		// only describes the pins that changed.
		if !isEvent {
			keep := make([]string, 0, len(report.Pins))
			for _, pin := range report.Pins {
				if err := tx.UpsertReportedPin(report.Device.Name, pin.Name, pin.Kind()); err != nil {
					return err
				}
				keep = append(keep, pin.Name)
			}
			if err := tx.DeletePinsExcept(report.Device.Name, keep); err != nil {
				return err
			}
		}

		after, err = s.engine.IntendedStatesIn(tx, "")
		return err
	})
	if err != nil {
		return err
	}

	// A (re)logging-in device may have a stale connection actor; tear it
	// down before any new pin-set traffic.
	if report.Type == ReportLogin {
		s.send(dispatch.NewClearDevice(report.Device.Name))
	}

	s.push(engine.Diff(before, after))

	if isEvent {
		for _, pin := range report.Pins {
			if pin.Kind() != store.PinInput {
				continue
			}
			changes, err := s.engine.HandleEdge(ctx, report.Device.Name, pin.Name, pin.Value != 0)
			if err != nil {
				return err
			}
			s.push(changes)
		}
	} else if err := s.checkDrift(ctx, report); err != nil {
		return err
	}

	if s.telemetry != nil {
		for _, pin := range report.Pins {
			s.telemetry.WritePinValue(report.Device.Name, pin.Name, pin.Kind(), pin.Value)
		}
	}
	return nil
}

// checkDrift compares each reported output-pin value against the device's
// intended state and pushes a correction for every mismatch. Pins with no
// intended state are left alone.
func (s *Service) checkDrift(ctx context.Context, report Report) error {
	var corrections []dispatch.Action
	err := s.store.WithTx(ctx, func(tx *store.Tx) error {
		intended, err := s.engine.IntendedStatesIn(tx, report.Device.Name)
		if err != nil {
			return err
		}
		for _, pin := range report.Pins {
			if pin.Kind() != store.PinOutput {
				continue
			}
			want, ok := intended[report.Device.Name][pin.Name]
			if !ok {
				continue
			}
			if (pin.Value != 0) == expr.Truthy(want) {
				continue
			}
			s.log.Warn("pin state drift",
				"device", report.Device.Name,
				"pin", pin.Name,
				"reported", pin.Value)
			if err := tx.AppendLog(store.SeverityWarning, "Wrong value of pin.",
				&report.Device.Name, &pin.Name); err != nil {
				return err
			}
			corrections = append(corrections,
				dispatch.SetPin(report.Device.Name, pin.Name, expr.Truthy(want)))
		}
		return nil
	})
	if err != nil {
		return err
	}

	for _, action := range corrections {
		s.send(action)
	}
	return nil
}

// push sends a pin-set request for every entry of a change set.
func (s *Service) push(changes engine.Snapshot) {
	for device, pins := range changes {
		for pin, value := range pins {
			s.send(dispatch.SetPin(device, pin, expr.Truthy(value)))
		}
	}
}

// send forwards one action, logging a channel failure instead of failing
// the report: the next heartbeat recomputes and retries.
func (s *Service) send(a dispatch.Action) {
	if err := s.sender.Send(a); err != nil {
		s.log.Error("sending dispatch action failed",
			"type", a.Type,
			"device", a.Device,
			"error", err)
	}
}
