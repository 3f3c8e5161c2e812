package store

import "fmt"

// CreateTrigger attaches an input trigger to an existing input pin.
func (t *Tx) CreateTrigger(device, pin string, edge Edge, expression string) (int64, error) {
	switch edge {
	case EdgeRising, EdgeFalling, EdgeBoth:
	default:
		return 0, fmt.Errorf("%w: %q", ErrInvalidEdge, edge)
	}

	res, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO input_triggers (device, pin, edge, expression) VALUES (?, ?, ?, ?)",
		device, pin, string(edge), expression,
	)
	if err != nil {
		return 0, fmt.Errorf("creating trigger: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading trigger id: %w", err)
	}
	return id, nil
}

// TriggersForPin returns the triggers that match an edge event on the given
// input pin: those registered for the observed edge plus those registered
// for both edges, in creation order.
func (t *Tx) TriggersForPin(device, pin string, edge Edge) ([]InputTrigger, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, device, pin, edge, expression
		FROM input_triggers
		WHERE device = ? AND pin = ? AND (edge = ? OR edge = ?)
		ORDER BY id`,
		device, pin, string(edge), string(EdgeBoth),
	)
	if err != nil {
		return nil, fmt.Errorf("querying triggers: %w", err)
	}
	defer rows.Close()

	var triggers []InputTrigger
	for rows.Next() {
		var tr InputTrigger
		if err := rows.Scan(&tr.ID, &tr.Device, &tr.Pin, &tr.Edge, &tr.Expression); err != nil {
			return nil, fmt.Errorf("scanning trigger row: %w", err)
		}
		triggers = append(triggers, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating triggers: %w", err)
	}
	return triggers, nil
}

// DeleteTrigger removes a trigger by id. Administrative use only.
func (t *Tx) DeleteTrigger(id int64) error {
	if _, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM input_triggers WHERE id = ?", id,
	); err != nil {
		return fmt.Errorf("deleting trigger: %w", err)
	}
	return nil
}
