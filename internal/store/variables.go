package store

import (
	"database/sql"
	"errors"
	"fmt"

	sqlite3 "github.com/mattn/go-sqlite3"
)

// GetVariable returns the current value of a named variable.
func (t *Tx) GetVariable(name string) (int64, error) {
	var value int64
	err := t.tx.QueryRowContext(t.ctx,
		"SELECT value FROM variables WHERE name = ?", name,
	).Scan(&value)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, fmt.Errorf("%w: %s", ErrVariableNotFound, name)
		}
		return 0, fmt.Errorf("querying variable: %w", err)
	}
	return value, nil
}

// CreateVariable creates a new variable with an initial value. Creation is
// an administrative act; expressions can only mutate existing variables.
func (t *Tx) CreateVariable(name string, value int64) error {
	_, err := t.tx.ExecContext(t.ctx,
		"INSERT INTO variables (name, value) VALUES (?, ?)", name, value,
	)
	if err != nil {
		var sqliteErr sqlite3.Error
		if errors.As(err, &sqliteErr) && sqliteErr.ExtendedCode == sqlite3.ErrConstraintPrimaryKey {
			return fmt.Errorf("%w: %s", ErrVariableExists, name)
		}
		return fmt.Errorf("creating variable: %w", err)
	}
	return nil
}

// SetVariable updates an existing variable. Setting an unknown name is an
// error, not an implicit create.
func (t *Tx) SetVariable(name string, value int64) error {
	res, err := t.tx.ExecContext(t.ctx,
		"UPDATE variables SET value = ? WHERE name = ?", value, name,
	)
	if err != nil {
		return fmt.Errorf("updating variable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking variable update: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return nil
}

// ToggleVariable advances a variable to (value+1) mod modulo and returns the
// new value. With modulo 2 this is a boolean flip.
func (t *Tx) ToggleVariable(name string, modulo int64) (int64, error) {
	if modulo <= 0 {
		return 0, fmt.Errorf("%w: %d", ErrInvalidModulo, modulo)
	}
	value, err := t.GetVariable(name)
	if err != nil {
		return 0, err
	}
	next := (value + 1) % modulo
	if err := t.SetVariable(name, next); err != nil {
		return 0, err
	}
	return next, nil
}

// DeleteVariable removes a variable. Administrative use only.
func (t *Tx) DeleteVariable(name string) error {
	res, err := t.tx.ExecContext(t.ctx,
		"DELETE FROM variables WHERE name = ?", name,
	)
	if err != nil {
		return fmt.Errorf("deleting variable: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking variable delete: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", ErrVariableNotFound, name)
	}
	return nil
}
