package store

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// GetPin retrieves a pin by its (device, name) key.
func (t *Tx) GetPin(device, name string) (*Pin, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT id, device, name, kind, expression FROM pins WHERE device = ? AND name = ?",
		device, name,
	)

	var p Pin
	if err := row.Scan(&p.ID, &p.Device, &p.Name, &p.Kind, &p.Expression); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s/%s", ErrPinNotFound, device, name)
		}
		return nil, fmt.Errorf("querying pin: %w", err)
	}
	return &p, nil
}

// UpsertPin creates or updates a pin. The expression is only meaningful for
// output pins; passing nil clears it.
func (t *Tx) UpsertPin(device, name string, kind PinKind, expression *string) error {
	if kind != PinInput && kind != PinOutput {
		return fmt.Errorf("%w: %q", ErrInvalidPinKind, kind)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO pins (device, name, kind, expression)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(device, name) DO UPDATE SET
			kind = excluded.kind,
			expression = excluded.expression`,
		device, name, string(kind), expression,
	)
	if err != nil {
		return fmt.Errorf("upserting pin: %w", err)
	}
	return nil
}

// UpsertReportedPin creates or updates a pin from a device report. Reports
// carry only name and kind; the expression is configuration, so an existing
// pin keeps its expression across reports.
func (t *Tx) UpsertReportedPin(device, name string, kind PinKind) error {
	if kind != PinInput && kind != PinOutput {
		return fmt.Errorf("%w: %q", ErrInvalidPinKind, kind)
	}

	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO pins (device, name, kind, expression)
		VALUES (?, ?, ?, NULL)
		ON CONFLICT(device, name) DO UPDATE SET
			kind = excluded.kind`,
		device, name, string(kind),
	)
	if err != nil {
		return fmt.Errorf("upserting reported pin: %w", err)
	}
	return nil
}

// SetPinExpression updates only the expression of an existing pin, leaving
// its kind untouched. Used by administration, not by device reports.
func (t *Tx) SetPinExpression(device, name string, expression *string) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE pins SET expression = ? WHERE device = ? AND name = ?",
		expression, device, name,
	)
	if err != nil {
		return fmt.Errorf("updating pin expression: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking pin update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s/%s", ErrPinNotFound, device, name)
	}
	return nil
}

// DeletePinsExcept removes every pin of the device that is not in keep.
// Together with UpsertPin this implements the wholesale pin replacement of
// non-event device reports. Triggers on deleted pins cascade away.
func (t *Tx) DeletePinsExcept(device string, keep []string) error {
	if len(keep) == 0 {
		if _, err := t.tx.ExecContext(t.ctx, "DELETE FROM pins WHERE device = ?", device); err != nil {
			return fmt.Errorf("deleting pins: %w", err)
		}
		return nil
	}

	placeholders := strings.Repeat("?, ", len(keep)-1) + "?"
	args := make([]any, 0, len(keep)+1)
	args = append(args, device)
	for _, name := range keep {
		args = append(args, name)
	}

	_, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM pins WHERE device = ? AND name NOT IN ("+placeholders+")",
		args...,
	)
	if err != nil {
		return fmt.Errorf("deleting pins: %w", err)
	}
	return nil
}

// OutputPins returns output pins with a non-null expression, optionally
// restricted to one device or to pins of alive devices only. This is the
// candidate set for intended-state computation.
func (t *Tx) OutputPins(filter OutputPinFilter) ([]Pin, error) {
	query := `
		SELECT p.id, p.device, p.name, p.kind, p.expression
		FROM pins p
		JOIN devices d ON d.name = p.device
		WHERE p.kind = ? AND p.expression IS NOT NULL`
	args := []any{string(PinOutput)}

	if filter.Device != "" {
		query += " AND p.device = ?"
		args = append(args, filter.Device)
	}
	if filter.AliveOnly {
		query += " AND d.last_seen >= ?"
		args = append(args, t.s.heartbeatLimit())
	}

	rows, err := t.tx.QueryContext(t.ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying output pins: %w", err)
	}
	defer rows.Close()

	var pins []Pin
	for rows.Next() {
		var p Pin
		if err := rows.Scan(&p.ID, &p.Device, &p.Name, &p.Kind, &p.Expression); err != nil {
			return nil, fmt.Errorf("scanning pin row: %w", err)
		}
		pins = append(pins, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pins: %w", err)
	}
	return pins, nil
}
