package store

import "fmt"

// AppendLog writes an audit record. The entry is stamped with the store
// clock; device and pin are optional context.
func (t *Tx) AppendLog(severity Severity, message string, device, pin *string) error {
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO logs (severity, time, message, device, pin) VALUES (?, ?, ?, ?, ?)",
		string(severity), timestamp(t.s.now()), message, device, pin,
	)
	if err != nil {
		return fmt.Errorf("appending log: %w", err)
	}
	return nil
}

// RecentLogs returns up to limit log entries, newest first.
func (t *Tx) RecentLogs(limit int) ([]LogEntry, error) {
	rows, err := t.tx.QueryContext(t.ctx, `
		SELECT id, severity, time, message, device, pin
		FROM logs
		ORDER BY id DESC
		LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying logs: %w", err)
	}
	defer rows.Close()

	var entries []LogEntry
	for rows.Next() {
		var e LogEntry
		var ts string
		if err := rows.Scan(&e.ID, &e.Severity, &ts, &e.Message, &e.Device, &e.Pin); err != nil {
			return nil, fmt.Errorf("scanning log row: %w", err)
		}
		e.Time = parseTimestamp(ts)
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating logs: %w", err)
	}
	return entries, nil
}
