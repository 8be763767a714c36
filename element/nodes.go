package element

// Const creates a constant of kind t
func (a *Arena) Const(v float64, t TypeID) Element {
	if !t.Valid() {
		a.fail("Arena.Const", "invalid type %d", t)
		return Element{}
	}
	return a.add(node{kind: KindConstant, typ: t, value: t.Coerce(v)})
}

// Variable creates a host-bound scalar parameter; the current value of *p is
// bound every time the kernel runs.
func Variable[T Scalar](a *Arena, name string, p *T) Element {
	t := TypeOf[T]()
	return a.add(node{
		kind: KindVariable,
		typ:  t,
		name: name,
		ref:  p,
		bind: func() interface{} {
			return convertScalar(*p)
		},
	})
}

func convertScalar[T Scalar](v T) interface{} {
	switch TypeOf[T]() {
	case INT32:
		return int32(v)
	case UINT32:
		return uint32(v)
	case Float32:
		return float32(v)
	case INT64:
		return int64(v)
	default:
		return float64(v)
	}
}

// Buffer creates a reference to device storage, indexed by the current item
func (a *Arena) Buffer(mem Memory, name string) Element {
	if mem == nil {
		a.fail("Arena.Buffer", "nil memory")
		return Element{}
	}
	return a.add(node{kind: KindBuffer, typ: mem.Type(), size: mem.Len(), mem: mem, name: name})
}

// Private declares a per-item scratch value
func (a *Arena) Private(t TypeID) Element {
	return a.add(node{kind: KindLocal, typ: t, space: Private})
}

// PrivateArray declares a per-item scratch array of n values
func (a *Arena) PrivateArray(t TypeID, n int) Element {
	if n <= 0 {
		a.fail("Arena.PrivateArray", "array length must be positive, got %d", n)
		return Element{}
	}
	return a.add(node{kind: KindLocal, typ: t, space: Private, length: n})
}

// LocalArray declares a work-group shared scratch array of n values
func (a *Arena) LocalArray(t TypeID, n int) Element {
	if n <= 0 {
		a.fail("Arena.LocalArray", "array length must be positive, got %d", n)
		return Element{}
	}
	return a.add(node{kind: KindLocal, typ: t, space: Local, length: n})
}

// Index is the implicit per-item index (local index in work-group kernels)
func (a *Arena) Index() Element {
	return a.add(node{kind: KindIndex, typ: INT32, op: IndexName})
}

// GroupID is the work-group index of work-group kernels
func (a *Arena) GroupID() Element {
	return a.add(node{kind: KindIndex, typ: INT32, op: GroupIDName})
}

// Binary creates an operator node; relational and boolean operators yield the select-condition type
func Binary(op string, l, r Element) Element {
	a := same("Binary "+op, l, r)
	if a == nil || !l.IsValid() || !r.IsValid() {
		return Element{}
	}
	t := Promote(l.Type(), r.Type())
	switch op {
	case "<", "<=", ">", ">=", "==", "!=", "&&", "||":
		t = t.SelectType()
	case "=", "+=", "-=", "*=", "/=", "[]":
		t = l.Type()
	}
	size := maxSize(a, l.h, r.h)
	if op == "[]" {
		size = 1
	}
	return a.add(node{kind: KindBinary, typ: t, op: op, args: []Handle{l.h, r.h}, size: size})
}

// Unary creates a prefix operator node
func Unary(op string, x Element) Element {
	if !x.IsValid() {
		return Element{}
	}
	t := x.Type()
	if op == "!" {
		t = t.SelectType()
	}
	return x.arena.add(node{kind: KindUnary, typ: t, op: op, args: []Handle{x.h}, size: x.Size()})
}

// Convert casts x to kind t
func Convert(x Element, t TypeID) Element {
	if !x.IsValid() {
		return Element{}
	}
	if x.Type() == t {
		return x
	}
	return x.arena.add(node{kind: KindCall, typ: t, op: "convert", args: []Handle{x.h}, size: x.Size()})
}

// Call creates a builtin function call of result kind t
func Call(name string, t TypeID, args ...Element) Element {
	a := same("Call "+name, args...)
	if a == nil {
		return Element{}
	}
	hs := handles(args)
	if len(hs) != len(args) {
		a.fail("Call "+name, "invalid argument")
		return Element{}
	}
	return a.add(node{kind: KindCall, typ: t, op: name, args: hs, size: maxSize(a, hs...)})
}

// If creates a conditional statement
func If(cond Element, then []Element, otherwise []Element) Element {
	a := same("If", append(append([]Element{cond}, then...), otherwise...)...)
	if a == nil || !cond.IsValid() {
		return Element{}
	}
	body, other := handles(then), handles(otherwise)
	size := maxSize(a, append(append([]Handle{cond.h}, body...), other...)...)
	return a.add(node{kind: KindIf, typ: cond.Type(), args: []Handle{cond.h}, body: body, other: other, size: size})
}

// For creates a counted loop; the loop variable is handed to body to build the statements
func For(start, end, step Element, body func(i Element) []Element) Element {
	a := same("For", start, end, step)
	if a == nil || !start.IsValid() || !end.IsValid() || !step.IsValid() {
		return Element{}
	}
	i := a.add(node{kind: KindLocal, typ: INT32, space: Private, loop: true})
	stmts := body(i)
	if same("For", append([]Element{i}, stmts...)...) == nil {
		return Element{}
	}
	hs := handles(stmts)
	return a.add(node{
		kind: KindFor,
		typ:  INT32,
		args: []Handle{i.h, start.h, end.h, step.h},
		body: hs,
		size: maxSize(a, hs...),
	})
}

// Return ends the current work item
func (a *Arena) Return() Element {
	return a.add(node{kind: KindReturn, typ: INT32})
}

// Barrier synchronizes the work items of a work group on local memory
func (a *Arena) Barrier() Element {
	return a.add(node{kind: KindBarrier, typ: INT32})
}

// At indexes a scratch array or a buffer with an explicit index
func At(array, index Element) Element {
	if array.Kind() == KindBuffer {
		return SubElementOf(array, index, 1)
	}
	return Binary("[]", array, index)
}
