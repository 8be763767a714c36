package element

import (
	"fmt"
	"testing"

	"github.com/notargets/aclkernel/utils"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"
)

var testMatrices = map[int][]float64{
	1: {4},
	2: {4, 1, 1, 3},
	3: {4, 1, 0, 1, 3, 1, 0, 1, 2},
	4: {5, 1, 0, 1, 1, 4, 1, 0, 0, 1, 3, 1, 1, 0, 1, 6},
}

func TestInverseTimesMatrixIsIdentity(t *testing.T) {
	for n := 1; n <= 3; n++ {
		t.Run(fmt.Sprintf("order%d", n), func(t *testing.T) {
			ar := NewArena()
			a := MatrixFromDense(ar, mat.NewDense(n, n, testMatrices[n]), Float64)
			prod, err := MatMul(a, a.Inverse()).Dense()
			require.NoError(t, err)
			require.NoError(t, ar.Err())

			id := mat.NewDiagDense(n, nil)
			for i := 0; i < n; i++ {
				id.SetDiag(i, 1)
			}
			assert.True(t, mat.EqualApprox(prod, id, 1e-12), "A*inv(A) = %v", mat.Formatted(prod))

			det, err := EvalConstant(a.Det()[0])
			require.NoError(t, err)
			assert.InDelta(t, mat.Det(mat.NewDense(n, n, testMatrices[n])), det, 1e-12)
		})
	}
}

func TestClosedFormOrderLimit(t *testing.T) {
	ar := NewArena()
	a := MatrixFromDense(ar, mat.NewDense(4, 4, testMatrices[4]), Float64)
	assert.Nil(t, a.Det())
	err := ar.Err()
	require.Error(t, err)
	assert.Equal(t, utils.ContractViolation, utils.KindOf(err))
	assert.Contains(t, err.Error(), "order <= 3")
}

// TestSolvers compares Cramer's rule and the unrolled conjugate gradient with gonum
func TestSolvers(t *testing.T) {
	for n := 1; n <= 4; n++ {
		t.Run(fmt.Sprintf("order%d", n), func(t *testing.T) {
			dense := mat.NewDense(n, n, testMatrices[n])
			rhs := make([]float64, n)
			for i := range rhs {
				rhs[i] = float64(i + 1)
			}
			var want mat.VecDense
			require.NoError(t, want.SolveVec(dense, mat.NewVecDense(n, rhs)))

			ar := NewArena()
			a := MatrixFromDense(ar, dense, Float64)
			b := ar.Constant(Float64, rhs...)

			if n <= 3 {
				x := SolveCramer(a, b)
				require.Len(t, x, n)
				for i, e := range x {
					v, err := EvalConstant(e)
					require.NoError(t, err)
					assert.InDelta(t, want.AtVec(i), v, 1e-12)
				}
			}

			mems := make([]Memory, n)
			outs := make([]*hostMem, n)
			for i := range mems {
				outs[i] = zeros(Float64, 1)
				mems[i] = outs[i]
			}
			x := ar.Privates(Float64, n)
			stmts := SolveCG(a, b, x)
			stmts = append(stmts, Assign(ar.Buffers("x", mems...), x)...)
			require.NoError(t, ar.Err())

			runProgram(t, program(t, stmts), 1, 0)
			for i, o := range outs {
				assert.InDelta(t, want.AtVec(i), o.data[0], 1e-9, "component %d", i)
			}
		})
	}
}

func TestMatrixShapes(t *testing.T) {
	ar := NewArena()
	m := NewMatrix(2, 3, ar.Constant(Float64, 1, 2, 3, 4, 5, 6))
	r, c := m.Transpose().Dims()
	assert.Equal(t, 3, r)
	assert.Equal(t, 2, c)

	v := MatVec(m, ar.Constant(Float64, 1, 1, 1))
	require.Len(t, v, 2)
	got, err := EvalConstant(v[1])
	require.NoError(t, err)
	assert.Equal(t, 15.0, got)

	trace, err := EvalConstant(Identity(ar, 3, Float64).Trace()[0])
	require.NoError(t, err)
	assert.Equal(t, 3.0, trace)

	assert.Equal(t, Matrix{}, NewMatrix(2, 2, ar.Constant(Float64, 1)))
	assert.Error(t, ar.Err())
}
