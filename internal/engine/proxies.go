package engine

import (
	"github.com/petersohn/home-automation/internal/expr"
	"github.com/petersohn/home-automation/internal/store"
)

// The proxies adapt the transactional store accessors to the capability
// interfaces the expression sandbox binds. Mutations made through them are
// part of the enclosing transaction and immediately visible to subsequent
// evaluations in the same pass.

type variableOps struct {
	tx *store.Tx
}

func (v variableOps) Get(name string) (int64, error) {
	return v.tx.GetVariable(name)
}

func (v variableOps) Set(name string, value int64) error {
	return v.tx.SetVariable(name, value)
}

func (v variableOps) Toggle(name string, modulo int64) (int64, error) {
	return v.tx.ToggleVariable(name, modulo)
}

type deviceOps struct {
	tx *store.Tx
}

func (d deviceOps) IsAlive(name string) (bool, error) {
	return d.tx.IsAlive(name)
}

func (d deviceOps) CountAlive() (int, error) {
	return d.tx.CountAlive()
}

func (d deviceOps) CountDead() (int, error) {
	return d.tx.CountDead()
}

// logOps appends INFO entries attributed to the triggering pin.
type logOps struct {
	tx     *store.Tx
	device string
	pin    string
}

func (l logOps) Log(message string) error {
	return l.tx.AppendLog(store.SeverityInfo, message, &l.device, &l.pin)
}

// evalEnv binds the names available to pin expressions.
func evalEnv(tx *store.Tx) *expr.Env {
	return &expr.Env{
		Variables: variableOps{tx: tx},
		Devices:   deviceOps{tx: tx},
	}
}

// triggerEnv additionally binds pin and log for trigger execution.
func triggerEnv(tx *store.Tx, info *expr.PinInfo) *expr.Env {
	env := evalEnv(tx)
	env.Pin = info
	env.Logs = logOps{tx: tx, device: info.Device, pin: info.Pin}
	return env
}
