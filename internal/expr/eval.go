package expr

import "fmt"

// Evaluate parses and evaluates expression text in one step.
func Evaluate(text string, env *Env) (Value, error) {
	e, err := Parse(text)
	if err != nil {
		return nil, err
	}
	return e.Eval(env)
}

// Eval evaluates the expression against the bound environment. Side effects
// performed before a failure stand; there is no expression-level rollback.
func (e *Expr) Eval(env *Env) (Value, error) {
	return evalNode(e.root, env)
}

func evalNode(n node, env *Env) (Value, error) {
	switch n := n.(type) {
	case *intLit:
		return n.value, nil
	case *stringLit:
		return n.value, nil
	case *boolLit:
		return n.value, nil
	case *unaryNode:
		return evalUnary(n, env)
	case *binaryNode:
		return evalBinary(n, env)
	case *ternaryNode:
		cond, err := evalNode(n.cond, env)
		if err != nil {
			return nil, err
		}
		if Truthy(cond) {
			return evalNode(n.then, env)
		}
		return evalNode(n.els, env)
	case *sequenceNode:
		var last Value
		for _, sub := range n.exprs {
			v, err := evalNode(sub, env)
			if err != nil {
				return nil, err
			}
			last = v
		}
		return last, nil
	case *attrNode:
		return evalAttr(n, env)
	case *callNode:
		return evalCall(n, env)
	default:
		return nil, fmt.Errorf("%w: unhandled node %T", ErrSyntax, n)
	}
}

// Truthy follows the usual dynamic-language convention: false, 0, "" and
// nil are false, everything else true. Conditions and boolean operators use
// it so rules can say `variable.get('mode') ? ... : ...` directly.
func Truthy(v Value) bool {
	switch v := v.(type) {
	case bool:
		return v
	case int64:
		return v != 0
	case string:
		return v != ""
	case nil:
		return false
	default:
		return true
	}
}

func evalUnary(n *unaryNode, env *Env) (Value, error) {
	operand, err := evalNode(n.operand, env)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case tokMinus:
		i, ok := operand.(int64)
		if !ok {
			return nil, typeError(n.at, "unary '-' needs an integer, got %s", typeName(operand))
		}
		return -i, nil
	case tokNot:
		return !Truthy(operand), nil
	}
	return nil, fmt.Errorf("%w: unhandled unary operator", ErrSyntax)
}

func evalBinary(n *binaryNode, env *Env) (Value, error) {
	// Boolean operators short-circuit; everything else evaluates both sides.
	switch n.op {
	case tokAnd, tokOr:
		left, err := evalNode(n.left, env)
		if err != nil {
			return nil, err
		}
		if n.op == tokAnd && !Truthy(left) {
			return false, nil
		}
		if n.op == tokOr && Truthy(left) {
			return true, nil
		}
		right, err := evalNode(n.right, env)
		if err != nil {
			return nil, err
		}
		return Truthy(right), nil
	}

	left, err := evalNode(n.left, env)
	if err != nil {
		return nil, err
	}
	right, err := evalNode(n.right, env)
	if err != nil {
		return nil, err
	}

	switch n.op {
	case tokEq:
		return left == right, nil
	case tokNeq:
		return left != right, nil
	case tokLt, tokLeq, tokGt, tokGeq:
		return evalOrdered(n, left, right)
	case tokPlus:
		if ls, ok := left.(string); ok {
			rs, ok := right.(string)
			if !ok {
				return nil, typeError(n.at, "cannot add %s to string", typeName(right))
			}
			return ls + rs, nil
		}
		fallthrough
	case tokMinus, tokStar, tokSlash, tokPercent:
		return evalArithmetic(n, left, right)
	}
	return nil, fmt.Errorf("%w: unhandled binary operator", ErrSyntax)
}

func evalOrdered(n *binaryNode, left, right Value) (Value, error) {
	if li, ok := left.(int64); ok {
		ri, ok := right.(int64)
		if !ok {
			return nil, typeError(n.at, "cannot compare integer with %s", typeName(right))
		}
		return orderedResult(n.op, li < ri, li == ri), nil
	}
	if ls, ok := left.(string); ok {
		rs, ok := right.(string)
		if !ok {
			return nil, typeError(n.at, "cannot compare string with %s", typeName(right))
		}
		return orderedResult(n.op, ls < rs, ls == rs), nil
	}
	return nil, typeError(n.at, "cannot order %s values", typeName(left))
}

func orderedResult(op tokenKind, less, equal bool) bool {
	switch op {
	case tokLt:
		return less
	case tokLeq:
		return less || equal
	case tokGt:
		return !less && !equal
	default: // tokGeq
		return !less
	}
}

func evalArithmetic(n *binaryNode, left, right Value) (Value, error) {
	li, ok := left.(int64)
	if !ok {
		return nil, typeError(n.at, "arithmetic needs integers, got %s", typeName(left))
	}
	ri, ok := right.(int64)
	if !ok {
		return nil, typeError(n.at, "arithmetic needs integers, got %s", typeName(right))
	}
	switch n.op {
	case tokPlus:
		return li + ri, nil
	case tokMinus:
		return li - ri, nil
	case tokStar:
		return li * ri, nil
	case tokSlash:
		if ri == 0 {
			return nil, fmt.Errorf("%w at position %d", ErrDivisionByZero, n.at)
		}
		return li / ri, nil
	default: // tokPercent
		if ri == 0 {
			return nil, fmt.Errorf("%w at position %d", ErrDivisionByZero, n.at)
		}
		return li % ri, nil
	}
}

func evalAttr(n *attrNode, env *Env) (Value, error) {
	if n.object != "pin" {
		return nil, nameError(n.at, "%s.%s is not an attribute", n.object, n.name)
	}
	if env.Pin == nil {
		return nil, nameError(n.at, "pin is only bound during trigger execution")
	}
	switch n.name {
	case "device":
		return env.Pin.Device, nil
	case "pin":
		return env.Pin.Pin, nil
	case "value":
		return env.Pin.Value, nil
	}
	return nil, nameError(n.at, "pin has no attribute %q", n.name)
}

func evalCall(n *callNode, env *Env) (Value, error) {
	args := make([]Value, len(n.args))
	for i, arg := range n.args {
		v, err := evalNode(arg, env)
		if err != nil {
			return nil, err
		}
		args[i] = v
	}

	switch n.object {
	case "variable":
		return evalVariableCall(n, env, args)
	case "device":
		return evalDeviceCall(n, env, args)
	case "log":
		return evalLogCall(n, env, args)
	case "pin":
		return nil, nameError(n.at, "pin.%s is not callable", n.method)
	}
	return nil, nameError(n.at, "unknown name %q", n.object)
}

func evalVariableCall(n *callNode, env *Env, args []Value) (Value, error) {
	if env.Variables == nil {
		return nil, nameError(n.at, "variable is not bound")
	}
	switch n.method {
	case "get":
		if len(args) != 1 {
			return nil, arityError(n.at, "variable.get(name)", len(args))
		}
		name, err := argString(n, args[0])
		if err != nil {
			return nil, err
		}
		return env.Variables.Get(name)

	case "set":
		if len(args) != 2 {
			return nil, arityError(n.at, "variable.set(name, value)", len(args))
		}
		name, err := argString(n, args[0])
		if err != nil {
			return nil, err
		}
		value, err := argInt(n, args[1])
		if err != nil {
			return nil, err
		}
		if err := env.Variables.Set(name, value); err != nil {
			return nil, err
		}
		return value, nil

	case "toggle":
		// Modulo defaults to 2: a plain toggle flips between 0 and 1.
		if len(args) != 1 && len(args) != 2 {
			return nil, arityError(n.at, "variable.toggle(name[, modulo])", len(args))
		}
		name, err := argString(n, args[0])
		if err != nil {
			return nil, err
		}
		modulo := int64(2)
		if len(args) == 2 {
			if modulo, err = argInt(n, args[1]); err != nil {
				return nil, err
			}
		}
		return env.Variables.Toggle(name, modulo)
	}
	return nil, nameError(n.at, "variable has no method %q", n.method)
}

func evalDeviceCall(n *callNode, env *Env, args []Value) (Value, error) {
	if env.Devices == nil {
		return nil, nameError(n.at, "device is not bound")
	}
	switch n.method {
	case "isAlive":
		if len(args) != 1 {
			return nil, arityError(n.at, "device.isAlive(name)", len(args))
		}
		name, err := argString(n, args[0])
		if err != nil {
			return nil, err
		}
		return env.Devices.IsAlive(name)

	case "countAlive":
		if len(args) != 0 {
			return nil, arityError(n.at, "device.countAlive()", len(args))
		}
		count, err := env.Devices.CountAlive()
		if err != nil {
			return nil, err
		}
		return int64(count), nil

	case "countDead":
		if len(args) != 0 {
			return nil, arityError(n.at, "device.countDead()", len(args))
		}
		count, err := env.Devices.CountDead()
		if err != nil {
			return nil, err
		}
		return int64(count), nil
	}
	return nil, nameError(n.at, "device has no method %q", n.method)
}

func evalLogCall(n *callNode, env *Env, args []Value) (Value, error) {
	if env.Logs == nil {
		return nil, nameError(n.at, "log is only bound during trigger execution")
	}
	if n.method != "log" {
		return nil, nameError(n.at, "log has no method %q", n.method)
	}
	if len(args) != 1 {
		return nil, arityError(n.at, "log.log(message)", len(args))
	}
	message, err := argString(n, args[0])
	if err != nil {
		return nil, err
	}
	if err := env.Logs.Log(message); err != nil {
		return nil, err
	}
	return nil, nil
}

func argString(n *callNode, v Value) (string, error) {
	s, ok := v.(string)
	if !ok {
		return "", typeError(n.at, "%s.%s needs a string, got %s", n.object, n.method, typeName(v))
	}
	return s, nil
}

// argInt accepts integers and booleans; rules written against boolean pins
// routinely pass true/false where a stored value is expected.
func argInt(n *callNode, v Value) (int64, error) {
	switch v := v.(type) {
	case int64:
		return v, nil
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	}
	return 0, typeError(n.at, "%s.%s needs an integer, got %s", n.object, n.method, typeName(v))
}

func typeName(v Value) string {
	switch v.(type) {
	case int64:
		return "integer"
	case bool:
		return "boolean"
	case string:
		return "string"
	case nil:
		return "nil"
	default:
		return fmt.Sprintf("%T", v)
	}
}

func typeError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", ErrType, fmt.Sprintf(format, args...), pos)
}

func nameError(pos int, format string, args ...any) error {
	return fmt.Errorf("%w: %s at position %d", ErrUnknownName, fmt.Sprintf(format, args...), pos)
}

func arityError(pos int, signature string, got int) error {
	return fmt.Errorf("%w: %s called with %d at position %d", ErrArity, signature, got, pos)
}
