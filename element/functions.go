package element

func mapCall(name string, v Vector) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		if !e.IsValid() {
			continue
		}
		t := e.Type()
		fn := name
		if name == "fabs" && t.IsInteger() {
			fn = "abs"
		}
		if !t.IsFloat() && name != "fabs" {
			e = Convert(e, Float64)
			t = Float64
		}
		out[i] = Call(fn, t, e)
	}
	return out
}

func Sqrt(v Vector) Vector  { return mapCall("sqrt", v) }
func Rsqrt(v Vector) Vector { return mapCall("rsqrt", v) }
func Abs(v Vector) Vector   { return mapCall("fabs", v) }
func Exp(v Vector) Vector   { return mapCall("exp", v) }
func Log(v Vector) Vector   { return mapCall("log", v) }
func Sin(v Vector) Vector   { return mapCall("sin", v) }
func Cos(v Vector) Vector   { return mapCall("cos", v) }
func Tan(v Vector) Vector   { return mapCall("tan", v) }
func Floor(v Vector) Vector { return mapCall("floor", v) }

// Pow raises every component of a to the matching (or broadcast) power b
func Pow(a, b Vector) Vector {
	return zip("Pow", a, b, func(x, y Element) Element {
		t := Promote(x.Type(), y.Type())
		if !t.IsFloat() {
			t = Float64
		}
		return Call("pow", t, Convert(x, t), Convert(y, t))
	})
}

func minMax(fname, iname string) func(x, y Element) Element {
	return func(x, y Element) Element {
		t := Promote(x.Type(), y.Type())
		name := iname
		if t.IsFloat() {
			name = fname
		}
		return Call(name, t, Convert(x, t), Convert(y, t))
	}
}

// Min is the componentwise minimum with broadcast
func Min(a, b Vector) Vector { return zip("Min", a, b, minMax("fmin", "min")) }

// Max is the componentwise maximum with broadcast
func Max(a, b Vector) Vector { return zip("Max", a, b, minMax("fmax", "max")) }

// ConvertTo casts every component to kind t
func ConvertTo(v Vector, t TypeID) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = Convert(e, t)
	}
	return out
}

// SelectOf returns cond ? b : a, with cond coerced to the select-condition type of t
func SelectOf(a, b, cond Element, t TypeID) Element {
	ar := same("Select", a, b, cond)
	if ar == nil || !a.IsValid() || !b.IsValid() || !cond.IsValid() {
		return Element{}
	}
	if !t.Valid() {
		t = Promote(a.Type(), b.Type())
	}
	return Call("select", t, Convert(a, t), Convert(b, t), Convert(cond, t.SelectType()))
}

// Select implements the ternary choice cond ? b : a componentwise. cond is
// either length 1 (shared) or the length of a and b. The optional kind sets
// the result type and thereby the select-condition type.
func Select(a, b, cond Vector, t ...TypeID) Vector {
	if len(a) != len(b) {
		if ar := firstArena(a, b, cond); ar != nil {
			ar.fail("Select", "vector lengths are not compatible: %d and %d", len(a), len(b))
		}
		return nil
	}
	if len(cond) != 1 && len(cond) != len(a) {
		if ar := firstArena(a, b, cond); ar != nil {
			ar.fail("Select", "condition length %d is neither 1 nor %d", len(cond), len(a))
		}
		return nil
	}
	var kind TypeID
	if len(t) > 0 {
		kind = t[0]
	}
	out := make(Vector, len(a))
	for i := range a {
		c := cond[0]
		if len(cond) > 1 {
			c = cond[i]
		}
		k := kind
		if k == 0 {
			k = Promote(a[i].Type(), b[i].Type())
		}
		out[i] = SelectOf(a[i], b[i], c, k)
	}
	return out
}
