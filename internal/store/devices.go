package store

import (
	"database/sql"
	"errors"
	"fmt"
)

// GetDevice retrieves a device by name.
func (t *Tx) GetDevice(name string) (*Device, error) {
	row := t.tx.QueryRowContext(t.ctx,
		"SELECT name, host, port, version, last_seen FROM devices WHERE name = ?",
		name,
	)

	var d Device
	var lastSeen string
	if err := row.Scan(&d.Name, &d.Host, &d.Port, &d.Version, &lastSeen); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrDeviceNotFound, name)
		}
		return nil, fmt.Errorf("querying device: %w", err)
	}
	d.LastSeen = parseTimestamp(lastSeen)
	return &d, nil
}

// UpsertDevice creates the device on its first report and updates address,
// version and last_seen on every subsequent one.
func (t *Tx) UpsertDevice(name, host string, port, version int) error {
	_, err := t.tx.ExecContext(t.ctx, `
		INSERT INTO devices (name, host, port, version, last_seen)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET
			host = excluded.host,
			port = excluded.port,
			version = excluded.version,
			last_seen = excluded.last_seen`,
		name, host, port, version, timestamp(t.s.now()),
	)
	if err != nil {
		return fmt.Errorf("upserting device: %w", err)
	}
	return nil
}

// IsAlive reports whether the named device has been seen within the
// heartbeat timeout.
func (t *Tx) IsAlive(name string) (bool, error) {
	d, err := t.GetDevice(name)
	if err != nil {
		return false, err
	}
	return timestamp(d.LastSeen) >= t.s.heartbeatLimit(), nil
}

// CountAlive returns the number of devices seen within the heartbeat timeout.
func (t *Tx) CountAlive() (int, error) {
	return t.countDevices("last_seen >= ?")
}

// CountDead returns the number of devices not seen within the heartbeat timeout.
func (t *Tx) CountDead() (int, error) {
	return t.countDevices("last_seen < ?")
}

func (t *Tx) countDevices(condition string) (int, error) {
	var count int
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT COUNT(*) FROM devices WHERE "+condition,
		t.s.heartbeatLimit(),
	).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}
