package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

const testSchema = `
CREATE TABLE devices (
    name      TEXT PRIMARY KEY,
    host      TEXT NOT NULL,
    port      INTEGER NOT NULL,
    version   INTEGER NOT NULL,
    last_seen TEXT NOT NULL
) STRICT;

CREATE TABLE pins (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    device     TEXT NOT NULL REFERENCES devices(name) ON DELETE CASCADE,
    name       TEXT NOT NULL,
    kind       TEXT NOT NULL CHECK (kind IN ('input', 'output')),
    expression TEXT,
    UNIQUE (device, name)
) STRICT;

CREATE TABLE variables (
    name  TEXT PRIMARY KEY,
    value INTEGER NOT NULL
) STRICT;

CREATE TABLE input_triggers (
    id         INTEGER PRIMARY KEY AUTOINCREMENT,
    device     TEXT NOT NULL,
    pin        TEXT NOT NULL,
    edge       TEXT NOT NULL CHECK (edge IN ('rising', 'falling', 'both')),
    expression TEXT NOT NULL,
    FOREIGN KEY (device, pin) REFERENCES pins(device, name) ON DELETE CASCADE
) STRICT;

CREATE TABLE logs (
    id       INTEGER PRIMARY KEY AUTOINCREMENT,
    severity TEXT NOT NULL CHECK (severity IN ('info', 'warning', 'error')),
    time     TEXT NOT NULL,
    message  TEXT NOT NULL,
    device   TEXT,
    pin      TEXT
) STRICT;
`

func openTestStore(t *testing.T) *Store {
	t.Helper()

	db, err := sql.Open("sqlite3", "file::memory:?_foreign_keys=on")
	if err != nil {
		t.Fatalf("opening database: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	if _, err := db.Exec(testSchema); err != nil {
		t.Fatalf("creating schema: %v", err)
	}

	return New(db, 60*time.Second)
}

func withTestTx(t *testing.T, s *Store, fn func(tx *Tx)) {
	t.Helper()
	err := s.WithTx(context.Background(), func(tx *Tx) error {
		fn(tx)
		return nil
	})
	if err != nil {
		t.Fatalf("transaction failed: %v", err)
	}
}

func TestVariableLifecycle(t *testing.T) {
	s := openTestStore(t)

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.CreateVariable("light", 0); err != nil {
			t.Fatalf("CreateVariable() error = %v", err)
		}

		if err := tx.CreateVariable("light", 5); !errors.Is(err, ErrVariableExists) {
			t.Errorf("CreateVariable() duplicate error = %v, want ErrVariableExists", err)
		}

		v, err := tx.GetVariable("light")
		if err != nil {
			t.Fatalf("GetVariable() error = %v", err)
		}
		if v != 0 {
			t.Errorf("GetVariable() = %d, want 0", v)
		}

		if err := tx.SetVariable("light", 3); err != nil {
			t.Fatalf("SetVariable() error = %v", err)
		}
		if v, _ := tx.GetVariable("light"); v != 3 {
			t.Errorf("GetVariable() after set = %d, want 3", v)
		}

		if err := tx.SetVariable("missing", 1); !errors.Is(err, ErrVariableNotFound) {
			t.Errorf("SetVariable() unknown error = %v, want ErrVariableNotFound", err)
		}
		if _, err := tx.GetVariable("missing"); !errors.Is(err, ErrVariableNotFound) {
			t.Errorf("GetVariable() unknown error = %v, want ErrVariableNotFound", err)
		}
	})
}

func TestToggleVariable(t *testing.T) {
	tests := []struct {
		name    string
		initial int64
		modulo  int64
		want    int64
		wantErr error
	}{
		{name: "boolean flip up", initial: 0, modulo: 2, want: 1},
		{name: "boolean flip down", initial: 1, modulo: 2, want: 0},
		{name: "wraps at modulo", initial: 2, modulo: 3, want: 0},
		{name: "mid cycle", initial: 1, modulo: 4, want: 2},
		{name: "zero modulo", initial: 0, modulo: 0, wantErr: ErrInvalidModulo},
		{name: "negative modulo", initial: 0, modulo: -2, wantErr: ErrInvalidModulo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s := openTestStore(t)
			withTestTx(t, s, func(tx *Tx) {
				if err := tx.CreateVariable("v", tt.initial); err != nil {
					t.Fatalf("CreateVariable() error = %v", err)
				}

				got, err := tx.ToggleVariable("v", tt.modulo)
				if tt.wantErr != nil {
					if !errors.Is(err, tt.wantErr) {
						t.Fatalf("ToggleVariable() error = %v, want %v", err, tt.wantErr)
					}
					return
				}
				if err != nil {
					t.Fatalf("ToggleVariable() error = %v", err)
				}
				if got != tt.want {
					t.Errorf("ToggleVariable() = %d, want %d", got, tt.want)
				}
				if v, _ := tx.GetVariable("v"); v != tt.want {
					t.Errorf("stored value = %d, want %d", v, tt.want)
				}
			})
		})
	}
}

func TestUpsertDevice(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.SetNow(func() time.Time { return base })

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("kitchen", "192.168.1.10", 8080, 2); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}

		d, err := tx.GetDevice("kitchen")
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if d.Host != "192.168.1.10" || d.Port != 8080 || d.Version != 2 {
			t.Errorf("GetDevice() = %+v", d)
		}
		if !d.LastSeen.Equal(base) {
			t.Errorf("LastSeen = %v, want %v", d.LastSeen, base)
		}
	})

	// Second report moves the device to a new address.
	s.SetNow(func() time.Time { return base.Add(30 * time.Second) })
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("kitchen", "192.168.1.20", 8081, 3); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}
		d, err := tx.GetDevice("kitchen")
		if err != nil {
			t.Fatalf("GetDevice() error = %v", err)
		}
		if d.Host != "192.168.1.20" || d.Port != 8081 || d.Version != 3 {
			t.Errorf("GetDevice() after update = %+v", d)
		}
		if !d.LastSeen.Equal(base.Add(30 * time.Second)) {
			t.Errorf("LastSeen not refreshed: %v", d.LastSeen)
		}
	})

	withTestTx(t, s, func(tx *Tx) {
		if _, err := tx.GetDevice("missing"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("GetDevice() unknown error = %v, want ErrDeviceNotFound", err)
		}
	})
}

func TestDeviceAliveness(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)

	// fresh reported now, stale reported beyond the 60s heartbeat timeout.
	s.SetNow(func() time.Time { return base.Add(-2 * time.Minute) })
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("stale", "10.0.0.1", 80, 1); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}
	})
	s.SetNow(func() time.Time { return base })
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("fresh", "10.0.0.2", 80, 1); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}
	})

	withTestTx(t, s, func(tx *Tx) {
		alive, err := tx.IsAlive("fresh")
		if err != nil {
			t.Fatalf("IsAlive(fresh) error = %v", err)
		}
		if !alive {
			t.Error("IsAlive(fresh) = false, want true")
		}

		alive, err = tx.IsAlive("stale")
		if err != nil {
			t.Fatalf("IsAlive(stale) error = %v", err)
		}
		if alive {
			t.Error("IsAlive(stale) = true, want false")
		}

		if _, err := tx.IsAlive("missing"); !errors.Is(err, ErrDeviceNotFound) {
			t.Errorf("IsAlive(missing) error = %v, want ErrDeviceNotFound", err)
		}

		if n, _ := tx.CountAlive(); n != 1 {
			t.Errorf("CountAlive() = %d, want 1", n)
		}
		if n, _ := tx.CountDead(); n != 1 {
			t.Errorf("CountDead() = %d, want 1", n)
		}
	})
}

func TestPinReplacement(t *testing.T) {
	s := openTestStore(t)
	expr := "light.get()"

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("kitchen", "10.0.0.1", 80, 1); err != nil {
			t.Fatalf("UpsertDevice() error = %v", err)
		}
		if err := tx.UpsertPin("kitchen", "lamp", PinOutput, &expr); err != nil {
			t.Fatalf("UpsertPin(lamp) error = %v", err)
		}
		if err := tx.UpsertPin("kitchen", "switch", PinInput, nil); err != nil {
			t.Fatalf("UpsertPin(switch) error = %v", err)
		}
		if err := tx.UpsertPin("kitchen", "old", PinInput, nil); err != nil {
			t.Fatalf("UpsertPin(old) error = %v", err)
		}
	})

	// A report listing only lamp and switch drops the old pin.
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.DeletePinsExcept("kitchen", []string{"lamp", "switch"}); err != nil {
			t.Fatalf("DeletePinsExcept() error = %v", err)
		}

		if _, err := tx.GetPin("kitchen", "old"); !errors.Is(err, ErrPinNotFound) {
			t.Errorf("GetPin(old) error = %v, want ErrPinNotFound", err)
		}

		p, err := tx.GetPin("kitchen", "lamp")
		if err != nil {
			t.Fatalf("GetPin(lamp) error = %v", err)
		}
		if p.Kind != PinOutput || p.Expression == nil || *p.Expression != expr {
			t.Errorf("GetPin(lamp) = %+v", p)
		}
	})

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.DeletePinsExcept("kitchen", nil); err != nil {
			t.Fatalf("DeletePinsExcept(nil) error = %v", err)
		}
		if _, err := tx.GetPin("kitchen", "lamp"); !errors.Is(err, ErrPinNotFound) {
			t.Errorf("GetPin(lamp) after full delete error = %v, want ErrPinNotFound", err)
		}
	})
}

func TestUpsertReportedPinKeepsExpression(t *testing.T) {
	s := openTestStore(t)
	expr := "variable.get('light')"

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("kitchen", "10.0.0.1", 80, 1); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("kitchen", "lamp", PinOutput, &expr); err != nil {
			t.Fatal(err)
		}

		// A report re-listing the pin must not wipe its configuration.
		if err := tx.UpsertReportedPin("kitchen", "lamp", PinOutput); err != nil {
			t.Fatalf("UpsertReportedPin() error = %v", err)
		}
		p, err := tx.GetPin("kitchen", "lamp")
		if err != nil {
			t.Fatal(err)
		}
		if p.Expression == nil || *p.Expression != expr {
			t.Errorf("expression after report = %v, want %q", p.Expression, expr)
		}

		// A new pin arrives without an expression.
		if err := tx.UpsertReportedPin("kitchen", "switch", PinInput); err != nil {
			t.Fatalf("UpsertReportedPin() error = %v", err)
		}
		p, err = tx.GetPin("kitchen", "switch")
		if err != nil {
			t.Fatal(err)
		}
		if p.Kind != PinInput || p.Expression != nil {
			t.Errorf("new reported pin = %+v", p)
		}
	})
}

func TestUpsertPinValidation(t *testing.T) {
	s := openTestStore(t)
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertPin("kitchen", "lamp", PinKind("analog"), nil); !errors.Is(err, ErrInvalidPinKind) {
			t.Errorf("UpsertPin() error = %v, want ErrInvalidPinKind", err)
		}
	})
}

func TestOutputPins(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	expr := "1"

	s.SetNow(func() time.Time { return base.Add(-2 * time.Minute) })
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("dead", "10.0.0.1", 80, 1); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("dead", "lamp", PinOutput, &expr); err != nil {
			t.Fatal(err)
		}
	})

	s.SetNow(func() time.Time { return base })
	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("alive", "10.0.0.2", 80, 1); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("alive", "lamp", PinOutput, &expr); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("alive", "bare", PinOutput, nil); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("alive", "switch", PinInput, nil); err != nil {
			t.Fatal(err)
		}
	})

	withTestTx(t, s, func(tx *Tx) {
		all, err := tx.OutputPins(OutputPinFilter{})
		if err != nil {
			t.Fatalf("OutputPins() error = %v", err)
		}
		if len(all) != 2 {
			t.Errorf("OutputPins() returned %d pins, want 2 (expression-less and input pins excluded)", len(all))
		}

		aliveOnly, err := tx.OutputPins(OutputPinFilter{AliveOnly: true})
		if err != nil {
			t.Fatalf("OutputPins(alive) error = %v", err)
		}
		if len(aliveOnly) != 1 || aliveOnly[0].Device != "alive" {
			t.Errorf("OutputPins(alive) = %+v, want only the alive device's pin", aliveOnly)
		}

		byDevice, err := tx.OutputPins(OutputPinFilter{Device: "dead"})
		if err != nil {
			t.Fatalf("OutputPins(device) error = %v", err)
		}
		if len(byDevice) != 1 || byDevice[0].Device != "dead" {
			t.Errorf("OutputPins(device) = %+v, want only the dead device's pin", byDevice)
		}
	})
}

func TestTriggersForPin(t *testing.T) {
	s := openTestStore(t)

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("hall", "10.0.0.1", 80, 1); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("hall", "button", PinInput, nil); err != nil {
			t.Fatal(err)
		}

		if _, err := tx.CreateTrigger("hall", "button", EdgeRising, "light.set(1)"); err != nil {
			t.Fatalf("CreateTrigger(rising) error = %v", err)
		}
		if _, err := tx.CreateTrigger("hall", "button", EdgeFalling, "light.set(0)"); err != nil {
			t.Fatalf("CreateTrigger(falling) error = %v", err)
		}
		if _, err := tx.CreateTrigger("hall", "button", EdgeBoth, "light.toggle(2)"); err != nil {
			t.Fatalf("CreateTrigger(both) error = %v", err)
		}

		if _, err := tx.CreateTrigger("hall", "button", Edge("sideways"), "x"); !errors.Is(err, ErrInvalidEdge) {
			t.Errorf("CreateTrigger() bad edge error = %v, want ErrInvalidEdge", err)
		}

		rising, err := tx.TriggersForPin("hall", "button", EdgeRising)
		if err != nil {
			t.Fatalf("TriggersForPin(rising) error = %v", err)
		}
		if len(rising) != 2 {
			t.Fatalf("TriggersForPin(rising) returned %d, want 2 (rising + both)", len(rising))
		}
		if rising[0].Expression != "light.set(1)" || rising[1].Expression != "light.toggle(2)" {
			t.Errorf("TriggersForPin(rising) order = %q, %q", rising[0].Expression, rising[1].Expression)
		}

		falling, err := tx.TriggersForPin("hall", "button", EdgeFalling)
		if err != nil {
			t.Fatalf("TriggersForPin(falling) error = %v", err)
		}
		if len(falling) != 2 {
			t.Errorf("TriggersForPin(falling) returned %d, want 2 (falling + both)", len(falling))
		}

		none, err := tx.TriggersForPin("hall", "other", EdgeRising)
		if err != nil {
			t.Fatalf("TriggersForPin(other) error = %v", err)
		}
		if len(none) != 0 {
			t.Errorf("TriggersForPin(other) returned %d, want 0", len(none))
		}
	})
}

func TestTriggerCascadeOnPinDelete(t *testing.T) {
	s := openTestStore(t)

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.UpsertDevice("hall", "10.0.0.1", 80, 1); err != nil {
			t.Fatal(err)
		}
		if err := tx.UpsertPin("hall", "button", PinInput, nil); err != nil {
			t.Fatal(err)
		}
		if _, err := tx.CreateTrigger("hall", "button", EdgeBoth, "light.toggle(2)"); err != nil {
			t.Fatal(err)
		}
	})

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.DeletePinsExcept("hall", nil); err != nil {
			t.Fatalf("DeletePinsExcept() error = %v", err)
		}
		triggers, err := tx.TriggersForPin("hall", "button", EdgeRising)
		if err != nil {
			t.Fatalf("TriggersForPin() error = %v", err)
		}
		if len(triggers) != 0 {
			t.Errorf("triggers survived pin deletion: %+v", triggers)
		}
	})
}

func TestLogs(t *testing.T) {
	s := openTestStore(t)
	base := time.Date(2026, 3, 15, 10, 0, 0, 0, time.UTC)
	s.SetNow(func() time.Time { return base })

	device := "kitchen"
	pin := "lamp"

	withTestTx(t, s, func(tx *Tx) {
		if err := tx.AppendLog(SeverityInfo, "first", nil, nil); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}
		if err := tx.AppendLog(SeverityWarning, "second", &device, &pin); err != nil {
			t.Fatalf("AppendLog() error = %v", err)
		}

		entries, err := tx.RecentLogs(10)
		if err != nil {
			t.Fatalf("RecentLogs() error = %v", err)
		}
		if len(entries) != 2 {
			t.Fatalf("RecentLogs() returned %d entries, want 2", len(entries))
		}
		if entries[0].Message != "second" {
			t.Errorf("newest entry = %q, want %q", entries[0].Message, "second")
		}
		if entries[0].Device == nil || *entries[0].Device != device {
			t.Errorf("entry device = %v, want %q", entries[0].Device, device)
		}
		if !entries[0].Time.Equal(base) {
			t.Errorf("entry time = %v, want %v", entries[0].Time, base)
		}
		if entries[1].Severity != SeverityInfo {
			t.Errorf("oldest entry severity = %q, want info", entries[1].Severity)
		}
	})
}

func TestWithTxRollsBackOnError(t *testing.T) {
	s := openTestStore(t)
	sentinel := errors.New("boom")

	err := s.WithTx(context.Background(), func(tx *Tx) error {
		if err := tx.CreateVariable("v", 1); err != nil {
			t.Fatalf("CreateVariable() error = %v", err)
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("WithTx() error = %v, want sentinel", err)
	}

	withTestTx(t, s, func(tx *Tx) {
		if _, err := tx.GetVariable("v"); !errors.Is(err, ErrVariableNotFound) {
			t.Errorf("variable survived rollback: err = %v", err)
		}
	})
}

func TestStoreLog(t *testing.T) {
	s := openTestStore(t)

	if err := s.Log(context.Background(), SeverityError, "dispatch failed", nil, nil); err != nil {
		t.Fatalf("Log() error = %v", err)
	}

	withTestTx(t, s, func(tx *Tx) {
		entries, err := tx.RecentLogs(1)
		if err != nil {
			t.Fatalf("RecentLogs() error = %v", err)
		}
		if len(entries) != 1 || entries[0].Severity != SeverityError {
			t.Errorf("RecentLogs() = %+v", entries)
		}
	})
}
