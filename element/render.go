package element

import (
	"fmt"
	"strconv"
	"strings"
)

// RenderContext controls how nodes are printed into kernel source
type RenderContext struct {
	VectorWidth int
	Unaligned   bool
	// Names maps parameters, scratch declarations and loop variables to identifiers
	Names map[Handle]string
}

func (ctx RenderContext) width() int {
	if ctx.VectorWidth < 1 {
		return 1
	}
	return ctx.VectorWidth
}

type renderer struct {
	a   *Arena
	ctx RenderContext
	err error
}

// Render prints the source text of e, treating it as an expression
func Render(e Element, ctx RenderContext) (string, error) {
	if !e.IsValid() {
		return "", fmt.Errorf("render: invalid element")
	}
	r := &renderer{a: e.arena, ctx: ctx}
	s := r.expr(e.h, IndexName, 1)
	return s, r.err
}

// RenderStatement prints e as one statement at the given indentation depth, without the terminator
func RenderStatement(e Element, ctx RenderContext, depth int) (string, error) {
	if !e.IsValid() {
		return "", fmt.Errorf("render: invalid element")
	}
	r := &renderer{a: e.arena, ctx: ctx}
	s := r.expr(e.h, IndexName, depth)
	return s, r.err
}

func (r *renderer) fail(format string, args ...interface{}) {
	if r.err == nil {
		r.err = fmt.Errorf(format, args...)
	}
}

func (r *renderer) name(h Handle) string {
	if n, ok := r.ctx.Names[h]; ok {
		return n
	}
	r.fail("render: %s has no name in this kernel", Element{arena: r.a, h: h})
	return "_unnamed" + strconv.Itoa(int(h))
}

// scalar reports whether h prints as a scalar even inside a SIMD kernel
func (r *renderer) scalar(h Handle) bool {
	if r.ctx.width() == 1 {
		return true
	}
	return IsScalarLane(r.a, h)
}

// IsScalarLane reports whether node h evaluates to one lane in SIMD kernels
func IsScalarLane(a *Arena, h Handle) bool {
	n := a.node(h)
	switch n.kind {
	case KindConstant, KindVariable, KindIndex:
		return true
	case KindLocal:
		return n.loop || n.length > 0
	case KindBuffer, KindSubView:
		return false
	case KindShifted:
		return IsScalarLane(a, n.args[0])
	case KindBinary:
		if n.op == "[]" {
			return true
		}
		fallthrough
	case KindUnary, KindCall:
		for _, c := range n.args {
			if !IsScalarLane(a, c) {
				return false
			}
		}
		return true
	default:
		return true
	}
}

func (r *renderer) vtype(t TypeID) string {
	return t.VectorCType(r.ctx.width())
}

// cast converts the text s of node h to kind t
func (r *renderer) cast(h Handle, s string, t TypeID) string {
	n := r.a.node(h)
	if n.typ == t {
		return s
	}
	if n.kind == KindConstant {
		return t.Literal(n.value)
	}
	if r.scalar(h) {
		return "((" + t.CType() + ")" + s + ")"
	}
	return "convert_" + r.vtype(t) + "(" + s + ")"
}

// broadcast widens a scalar-lane operand to the SIMD type of t
func (r *renderer) broadcast(h Handle, s string, t TypeID) string {
	if r.ctx.width() == 1 || !r.scalar(h) {
		return s
	}
	return "((" + r.vtype(t) + ")(" + s + "))"
}

func indent(depth int) string {
	return strings.Repeat("\t", depth)
}

func (r *renderer) block(hs []Handle, index string, depth int) string {
	var sb strings.Builder
	for _, h := range hs {
		sb.WriteString(indent(depth + 1))
		sb.WriteString(r.expr(h, index, depth+1))
		sb.WriteString(";\n")
	}
	return sb.String()
}

// bufferTarget resolves views over a buffer to its name and the rendered index
func (r *renderer) bufferTarget(h Handle, index string) (string, string, bool) {
	n := r.a.node(h)
	switch n.kind {
	case KindBuffer:
		return r.name(h), index, true
	case KindSubView:
		return r.bufferTarget(n.args[0], r.expr(n.args[1], index, 0))
	case KindShifted:
		return r.bufferTarget(n.args[0], r.shift(n, index))
	}
	return "", "", false
}

// shift renders the index of a shifted view, failing for offsets an aligned SIMD kernel cannot address
func (r *renderer) shift(n *node, index string) string {
	units, ok := shiftUnits(int(n.value), r.ctx.width(), r.ctx.Unaligned)
	if !ok {
		r.fail("render: offset %d is not a multiple of vector width %d and needs an unaligned configuration",
			int(n.value), r.ctx.width())
	}
	return shiftIndex(index, units)
}

func shiftIndex(index string, offset int) string {
	if offset == 0 {
		return index
	}
	if offset < 0 {
		return "(" + index + " - " + strconv.Itoa(-offset) + ")"
	}
	return "(" + index + " + " + strconv.Itoa(offset) + ")"
}

func (r *renderer) expr(h Handle, index string, depth int) string {
	n := r.a.node(h)
	w := r.ctx.width()
	switch n.kind {
	case KindConstant:
		return n.typ.Literal(n.value)

	case KindVariable:
		return r.name(h)

	case KindBuffer:
		name := r.name(h)
		if w > 1 && r.ctx.Unaligned {
			return fmt.Sprintf("vload%d(0, %s + %s)", w, name, index)
		}
		return name + "[" + index + "]"

	case KindLocal:
		return r.name(h)

	case KindIndex:
		if n.op == GroupIDName {
			return GroupIDName
		}
		return index

	case KindSubView:
		return r.expr(n.args[0], r.expr(n.args[1], index, 0), depth)

	case KindShifted:
		return r.expr(n.args[0], r.shift(n, index), depth)

	case KindIf:
		var sb strings.Builder
		sb.WriteString("if (" + r.expr(n.args[0], index, depth) + ") {\n")
		sb.WriteString(r.block(n.body, index, depth))
		sb.WriteString(indent(depth) + "}")
		if len(n.other) > 0 {
			sb.WriteString(" else {\n")
			sb.WriteString(r.block(n.other, index, depth))
			sb.WriteString(indent(depth) + "}")
		}
		return sb.String()

	case KindFor:
		v := r.name(n.args[0])
		var sb strings.Builder
		sb.WriteString(fmt.Sprintf("for (int %s = %s; %s < %s; %s += %s) {\n",
			v, r.expr(n.args[1], index, depth),
			v, r.expr(n.args[2], index, depth),
			v, r.expr(n.args[3], index, depth)))
		sb.WriteString(r.block(n.body, index, depth))
		sb.WriteString(indent(depth) + "}")
		return sb.String()

	case KindReturn:
		return "return"

	case KindBarrier:
		return "barrier(CLK_LOCAL_MEM_FENCE)"

	case KindBinary:
		return r.binary(h, n, index, depth)

	case KindUnary:
		return "(" + n.op + r.expr(n.args[0], index, depth) + ")"

	case KindCall:
		return r.call(h, n, index, depth)
	}
	r.fail("render: invalid node %d", h)
	return ""
}

func (r *renderer) binary(h Handle, n *node, index string, depth int) string {
	lh, rh := n.args[0], n.args[1]
	switch n.op {
	case "[]":
		return r.expr(lh, index, depth) + "[" + r.expr(rh, index, depth) + "]"
	case "=", "+=", "-=", "*=", "/=":
		lt := r.a.node(lh).typ
		rhs := r.cast(rh, r.expr(rh, index, depth), lt)
		w := r.ctx.width()
		if w > 1 && r.ctx.Unaligned {
			if name, idx, ok := r.bufferTarget(lh, index); ok {
				ptr := name + " + " + idx
				if n.op != "=" {
					rhs = fmt.Sprintf("vload%d(0, %s) %s %s", w, ptr, n.op[:1], rhs)
				}
				return fmt.Sprintf("vstore%d(%s, 0, %s)", w, rhs, ptr)
			}
		}
		return r.expr(lh, index, depth) + " " + n.op + " " + rhs
	}
	t := Promote(r.a.node(lh).typ, r.a.node(rh).typ)
	l := r.cast(lh, r.expr(lh, index, depth), t)
	rr := r.cast(rh, r.expr(rh, index, depth), t)
	return "(" + l + " " + n.op + " " + rr + ")"
}

func (r *renderer) call(h Handle, n *node, index string, depth int) string {
	if n.op == "convert" {
		return r.cast(n.args[0], r.expr(n.args[0], index, depth), n.typ)
	}
	args := make([]string, len(n.args))
	for i, c := range n.args {
		args[i] = r.expr(c, index, depth)
	}
	if r.ctx.width() > 1 && !r.scalar(h) {
		if n.op == "select" && r.scalar(n.args[2]) {
			// a shared condition selects whole vectors
			return "(" + args[2] + " ? " + r.broadcast(n.args[1], args[1], n.typ) + " : " +
				r.broadcast(n.args[0], args[0], n.typ) + ")"
		}
		for i, c := range n.args {
			args[i] = r.broadcast(c, args[i], r.a.node(c).typ)
		}
	}
	return n.op + "(" + strings.Join(args, ", ") + ")"
}

// ParameterType prints the type of a buffer or variable kernel parameter
func ParameterType(e Element, ctx RenderContext) string {
	t := e.Type()
	if e.Kind() == KindBuffer {
		if ctx.width() > 1 && !ctx.Unaligned {
			return "__global " + t.VectorCType(ctx.width()) + " *"
		}
		return "__global " + t.CType() + " *"
	}
	return t.CType()
}

// ParameterDeclaration prints the kernel parameter declaration of a buffer or variable
func ParameterDeclaration(e Element, name string, ctx RenderContext) string {
	typ := ParameterType(e, ctx)
	if strings.HasSuffix(typ, "*") {
		return typ + name
	}
	return typ + " " + name
}

// Declaration prints the scratch declaration of a local or private element
func Declaration(e Element, name string, ctx RenderContext) string {
	n := e.n()
	if n.space == Local {
		return fmt.Sprintf("__local %s %s[%d]", n.typ.CType(), name, n.length)
	}
	if n.length > 0 {
		return fmt.Sprintf("%s %s[%d]", n.typ.CType(), name, n.length)
	}
	return n.typ.VectorCType(ctx.width()) + " " + name
}
