package element

// Vector is an ordered fixed-length tuple of elements representing one multi-component field
type Vector []Element

// NewVector collects elements into a vector
func NewVector(es ...Element) Vector {
	return Vector(es)
}

// Constant creates a vector of n components, each the constant v
func (a *Arena) Constant(t TypeID, vs ...float64) Vector {
	out := make(Vector, len(vs))
	for i, v := range vs {
		out[i] = a.Const(v, t)
	}
	return out
}

// Buffers creates a vector of buffer references, one per component
func (a *Arena) Buffers(name string, mems ...Memory) Vector {
	out := make(Vector, len(mems))
	for i, m := range mems {
		out[i] = a.Buffer(m, name)
	}
	return out
}

// Privates declares n per-item scratch values
func (a *Arena) Privates(t TypeID, n int) Vector {
	out := make(Vector, n)
	for i := range out {
		out[i] = a.Private(t)
	}
	return out
}

// Len returns the number of components
func (v Vector) Len() int { return len(v) }

// Size returns the largest logical size among the components
func (v Vector) Size() int {
	size := 0
	for _, e := range v {
		if s := e.Size(); s > size {
			size = s
		}
	}
	return size
}

// Type returns the promoted kind of all components
func (v Vector) Type() TypeID {
	var t TypeID
	for _, e := range v {
		if t == 0 {
			t = e.Type()
			continue
		}
		t = Promote(t, e.Type())
	}
	return t
}

func (v Vector) arena() *Arena {
	for _, e := range v {
		if e.IsValid() {
			return e.arena
		}
	}
	return nil
}

// Arena returns the session the components belong to
func (v Vector) Arena() *Arena { return v.arena() }

func firstArena(vs ...Vector) *Arena {
	for _, v := range vs {
		if a := v.arena(); a != nil {
			return a
		}
	}
	return nil
}

// zip applies f componentwise with the length-1 broadcast rule
func zip(op string, a, b Vector, f func(x, y Element) Element) Vector {
	n := len(a)
	switch {
	case len(a) == len(b):
	case len(a) == 1:
		n = len(b)
	case len(b) == 1:
	default:
		if ar := firstArena(a, b); ar != nil {
			ar.fail(op, "vector lengths are not compatible: %d and %d", len(a), len(b))
		}
		return nil
	}
	out := make(Vector, n)
	for i := 0; i < n; i++ {
		x, y := a[0], b[0]
		if len(a) > 1 {
			x = a[i]
		}
		if len(b) > 1 {
			y = b[i]
		}
		out[i] = f(x, y)
	}
	return out
}

func binaryOp(op string) func(x, y Element) Element {
	return func(x, y Element) Element { return Binary(op, x, y) }
}

func Add(a, b Vector) Vector { return zip("Add", a, b, binaryOp("+")) }
func Sub(a, b Vector) Vector { return zip("Sub", a, b, binaryOp("-")) }
func Div(a, b Vector) Vector { return zip("Div", a, b, binaryOp("/")) }
func Mod(a, b Vector) Vector { return zip("Mod", a, b, binaryOp("%")) }

// ElementProduct multiplies componentwise
func ElementProduct(a, b Vector) Vector { return zip("ElementProduct", a, b, binaryOp("*")) }

// ElementDivision divides componentwise
func ElementDivision(a, b Vector) Vector { return zip("ElementDivision", a, b, binaryOp("/")) }

// Mul is the scalar product for equal lengths and scalar multiplication when
// one operand has length 1
func Mul(a, b Vector) Vector {
	if len(a) == len(b) && len(a) > 1 {
		return Vector{Sum(ElementProduct(a, b))}
	}
	return zip("Mul", a, b, binaryOp("*"))
}

// Sum adds all components into one element
func Sum(v Vector) Element {
	if len(v) == 0 {
		return Element{}
	}
	acc := v[0]
	for _, e := range v[1:] {
		acc = Binary("+", acc, e)
	}
	return acc
}

// SumOfElements returns the length-1 vector holding the component sum
func SumOfElements(v Vector) Vector {
	return Vector{Sum(v)}
}

// L2 returns the squared Euclidean norm
func L2(v Vector) Vector {
	return Vector{Sum(ElementProduct(v, v))}
}

// Neg negates every component
func Neg(v Vector) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = Unary("-", e)
	}
	return out
}

func Less(a, b Vector) Vector      { return zip("Less", a, b, binaryOp("<")) }
func LessEq(a, b Vector) Vector    { return zip("LessEq", a, b, binaryOp("<=")) }
func Greater(a, b Vector) Vector   { return zip("Greater", a, b, binaryOp(">")) }
func GreaterEq(a, b Vector) Vector { return zip("GreaterEq", a, b, binaryOp(">=")) }
func Equal(a, b Vector) Vector     { return zip("Equal", a, b, binaryOp("==")) }
func NotEqual(a, b Vector) Vector  { return zip("NotEqual", a, b, binaryOp("!=")) }
func And(a, b Vector) Vector       { return zip("And", a, b, binaryOp("&&")) }
func Or(a, b Vector) Vector        { return zip("Or", a, b, binaryOp("||")) }

func Not(v Vector) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = Unary("!", e)
	}
	return out
}

// assignOp builds statements; the destination length must match unless src has length 1
func assignOp(name, op string, dst, src Vector) Vector {
	if len(dst) != len(src) && len(src) != 1 {
		if a := firstArena(dst, src); a != nil {
			a.fail(name, "vector lengths are not compatible: %d and %d", len(dst), len(src))
		}
		return nil
	}
	return zip(name, dst, src, binaryOp(op))
}

// Assign builds dst = src statements
func Assign(dst, src Vector) Vector { return assignOp("Assign", "=", dst, src) }

func AddAssign(dst, src Vector) Vector { return assignOp("AddAssign", "+=", dst, src) }
func SubAssign(dst, src Vector) Vector { return assignOp("SubAssign", "-=", dst, src) }
func MulAssign(dst, src Vector) Vector { return assignOp("MulAssign", "*=", dst, src) }
func DivAssign(dst, src Vector) Vector { return assignOp("DivAssign", "/=", dst, src) }

// CrossProduct of two length-3 vectors
func CrossProduct(a, b Vector) Vector {
	if len(a) != 3 || len(b) != 3 {
		if ar := firstArena(a, b); ar != nil {
			ar.fail("CrossProduct", "vector lengths must be 3, got %d and %d", len(a), len(b))
		}
		return nil
	}
	mul := binaryOp("*")
	sub := binaryOp("-")
	return Vector{
		sub(mul(a[1], b[2]), mul(a[2], b[1])),
		sub(mul(a[2], b[0]), mul(a[0], b[2])),
		sub(mul(a[0], b[1]), mul(a[1], b[0])),
	}
}
