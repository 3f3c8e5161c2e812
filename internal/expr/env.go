package expr

// Value is the result of evaluating an expression: int64, bool, string or
// nil. Equality between values is Go equality, with no coercion across
// types.
type Value = any

// VariableOps is the capability expressions reach through the "variable"
// name. Backed by the state store in production, by fakes in tests.
type VariableOps interface {
	Get(name string) (int64, error)
	Set(name string, value int64) error
	Toggle(name string, modulo int64) (int64, error)
}

// DeviceOps is the capability behind the "device" name.
type DeviceOps interface {
	IsAlive(name string) (bool, error)
	CountAlive() (int, error)
	CountDead() (int, error)
}

// LogOps is the capability behind the "log" name, bound only during
// trigger execution.
type LogOps interface {
	Log(message string) error
}

// PinInfo is the read-only record behind the "pin" name: the triggering
// pin and its newly reported value. Bound only during trigger execution.
type PinInfo struct {
	Device string
	Pin    string
	Value  Value
}

// Env binds the names an expression may touch. Nil fields mean the name is
// not bound in this scope and referencing it is an evaluation error.
type Env struct {
	Variables VariableOps
	Devices   DeviceOps

	// Logs and Pin are only bound during trigger execution.
	Logs LogOps
	Pin  *PinInfo
}
