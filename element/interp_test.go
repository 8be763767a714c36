package element

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestWorkGroupSum sums each work group through a __local array and a barrier
func TestWorkGroupSum(t *testing.T) {
	const groupSize = 4
	ar := NewArena()
	in := newHostMem(Float64, 1, 2, 3, 4, 10, 20, 30, 40)
	out := zeros(Float64, 2)

	scratch := ar.LocalArray(Float64, groupSize)
	index, group := ar.Index(), ar.GroupID()
	zero := ar.Const(0, INT32)
	global := Binary("+", Binary("*", group, ar.Const(groupSize, INT32)), index)

	stmts := []Element{
		Binary("=", At(scratch, index), At(ar.Buffer(in, "in"), global)),
		ar.Barrier(),
		If(Binary("!=", index, zero), []Element{ar.Return()}, nil),
		For(ar.Const(1, INT32), ar.Const(groupSize, INT32), ar.Const(1, INT32), func(i Element) []Element {
			return []Element{Binary("+=", At(scratch, zero), At(scratch, i))}
		}),
		Binary("=", At(ar.Buffer(out, "out"), group), At(scratch, zero)),
	}
	require.NoError(t, ar.Err())

	p := program(t, stmts)
	p.Local = true
	assert.Equal(t, groupSize*8, p.LocalMemBytes())
	runProgram(t, p, 8, groupSize)
	assert.Equal(t, []float64{10, 100}, out.data)
}

func TestExecuteOutOfRange(t *testing.T) {
	ar := NewArena()
	a := Vector{ar.Buffer(zeros(Float32, 4), "a")}
	p := program(t, Assign(a, Shifted(a, 1)))
	args := []interface{}{p.Params[0].ArgValue()}
	err := Execute(p, args, 4, 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "out of range")
}

func TestExecuteIntegerSemantics(t *testing.T) {
	ar := NewArena()
	a := newHostMem(INT32, 7, -7, 2147483647, 9)
	b := newHostMem(INT32, 2, 2, 1, 0)
	q := zeros(INT32, 4)
	r := zeros(INT32, 4)
	va, vb := Vector{ar.Buffer(a, "a")}, Vector{ar.Buffer(b, "b")}
	stmts := Cat(
		Assign(Vector{ar.Buffer(q, "q")}, Div(Add(va, vb), vb)),
		Assign(Vector{ar.Buffer(r, "r")}, Mod(va, vb)),
	)
	runProgram(t, program(t, stmts), 4, 0)
	assert.Equal(t, []float64{4, -2, -2147483648, 0}, q.data)
	assert.Equal(t, []float64{1, -1, 0, 0}, r.data)
}

func TestVectorComparisonTruth(t *testing.T) {
	ar := NewArena()
	a := newHostMem(Float32, 1, 5, 2, 8)
	flags := zeros(INT32, 4)
	cond := Less(Vector{ar.Buffer(a, "a")}, ar.Constant(Float32, 3))
	stmts := Assign(Vector{ar.Buffer(flags, "flags")}, ConvertTo(cond, INT32))

	p := program(t, stmts)
	p.VectorWidth = 4
	runProgram(t, p, 1, 0)
	assert.Equal(t, []float64{-1, 0, -1, 0}, flags.data)

	p.VectorWidth = 1
	runProgram(t, p, 4, 0)
	assert.Equal(t, []float64{1, 0, 1, 0}, flags.data)
}
