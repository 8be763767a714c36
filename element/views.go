package element

// SubElementOf renders base with the item index replaced by indexExpr.
// The view has logical size n.
func SubElementOf(base, indexExpr Element, n int) Element {
	a := same("SubElement", base, indexExpr)
	if a == nil || !base.IsValid() || !indexExpr.IsValid() {
		return Element{}
	}
	if n <= 0 {
		n = 1
	}
	return a.add(node{kind: KindSubView, typ: base.Type(), args: []Handle{base.h, indexExpr.h}, size: n})
}

// ShiftedOf renders base with the item index replaced by (index + offset)
func ShiftedOf(base Element, offset int) Element {
	if !base.IsValid() {
		return Element{}
	}
	if offset == 0 {
		return base
	}
	return base.arena.add(node{kind: KindShifted, typ: base.Type(), args: []Handle{base.h}, value: float64(offset), size: base.Size()})
}

// Excerpt views length entries of every component starting at start
func Excerpt(v Vector, start, length int) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		if !e.IsValid() {
			continue
		}
		a := e.arena
		if start < 0 || length <= 0 || (e.Kind() == KindBuffer && start+length > e.Size()) {
			a.fail("Excerpt", "range [%d, %d) out of bounds for size %d", start, start+length, e.Size())
			return nil
		}
		out[i] = a.add(node{kind: KindShifted, typ: e.Type(), args: []Handle{e.h}, value: float64(start), size: length})
	}
	return out
}

// shiftUnits converts an element offset into index units. Aligned SIMD
// kernels index whole vectors, so only multiples of the width map onto them.
func shiftUnits(offset, width int, unaligned bool) (int, bool) {
	if width > 1 && !unaligned {
		if offset%width != 0 {
			return 0, false
		}
		return offset / width, true
	}
	return offset, true
}

// SubElement views every component through an explicit index expression
func SubElement(v Vector, indexExpr Element, n int) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = SubElementOf(e, indexExpr, n)
	}
	return out
}

// Shifted views every component at (index + offset), used for neighbor access in stencils
func Shifted(v Vector, offset int) Vector {
	out := make(Vector, len(v))
	for i, e := range v {
		out[i] = ShiftedOf(e, offset)
	}
	return out
}

// Cat concatenates the components of several vectors
func Cat(vs ...Vector) Vector {
	var out Vector
	for _, v := range vs {
		out = append(out, v...)
	}
	return out
}

// CatN replicates v n times
func CatN(v Vector, n int) Vector {
	out := make(Vector, 0, len(v)*n)
	for i := 0; i < n; i++ {
		out = append(out, v...)
	}
	return out
}

// SubVE returns components start..end inclusive
func SubVE(v Vector, start, end int) Vector {
	if start < 0 || end >= len(v) || start > end {
		if a := v.arena(); a != nil {
			a.fail("SubVE", "range [%d, %d] out of bounds for length %d", start, end, len(v))
		}
		return nil
	}
	out := make(Vector, end-start+1)
	copy(out, v[start:end+1])
	return out
}
