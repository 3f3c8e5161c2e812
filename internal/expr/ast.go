package expr

// node is one parsed expression element. Positions are rune offsets into
// the original text, used for error reporting.
type node interface {
	pos() int
}

type intLit struct {
	at    int
	value int64
}

type stringLit struct {
	at    int
	value string
}

type boolLit struct {
	at    int
	value bool
}

// unaryNode covers -x, not x and !x.
type unaryNode struct {
	at      int
	op      tokenKind
	operand node
}

type binaryNode struct {
	at          int
	op          tokenKind
	left, right node
}

// ternaryNode is cond ? then : else.
type ternaryNode struct {
	at              int
	cond, then, els node
}

// sequenceNode is expr; expr; ... — evaluated left to right, yielding the
// last value. Used by trigger expressions that perform several mutations.
type sequenceNode struct {
	at    int
	exprs []node
}

// attrNode is a bare attribute access like pin.value.
type attrNode struct {
	at           int
	object, name string
}

// callNode is a method call like variable.set('x', 1).
type callNode struct {
	at             int
	object, method string
	args           []node
}

func (n *intLit) pos() int       { return n.at }
func (n *stringLit) pos() int    { return n.at }
func (n *boolLit) pos() int      { return n.at }
func (n *unaryNode) pos() int    { return n.at }
func (n *binaryNode) pos() int   { return n.at }
func (n *ternaryNode) pos() int  { return n.at }
func (n *sequenceNode) pos() int { return n.at }
func (n *attrNode) pos() int     { return n.at }
func (n *callNode) pos() int     { return n.at }
