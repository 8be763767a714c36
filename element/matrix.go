package element

import (
	"gonum.org/v1/gonum/mat"
)

// Matrix is a row-major 2D array of elements
type Matrix struct {
	rows, cols int
	data       Vector
}

// NewMatrix wraps a row-major vector of rows*cols components
func NewMatrix(rows, cols int, data Vector) Matrix {
	if rows*cols != len(data) {
		if a := data.arena(); a != nil {
			a.fail("NewMatrix", "%dx%d matrix needs %d components, got %d", rows, cols, rows*cols, len(data))
		}
		return Matrix{}
	}
	return Matrix{rows: rows, cols: cols, data: data}
}

// MatrixFromDense creates a matrix of constants of kind t
func MatrixFromDense(a *Arena, m mat.Matrix, t TypeID) Matrix {
	r, c := m.Dims()
	data := make(Vector, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			data = append(data, a.Const(m.At(i, j), t))
		}
	}
	return Matrix{rows: r, cols: c, data: data}
}

// Identity creates the n×n identity of kind t
func Identity(a *Arena, n int, t TypeID) Matrix {
	data := make(Vector, n*n)
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			v := 0.
			if i == j {
				v = 1
			}
			data[i*n+j] = a.Const(v, t)
		}
	}
	return Matrix{rows: n, cols: n, data: data}
}

func (m Matrix) Dims() (int, int) { return m.rows, m.cols }
func (m Matrix) Data() Vector     { return m.data }

func (m Matrix) At(i, j int) Element {
	return m.data[i*m.cols+j]
}

// Row returns row i as a vector
func (m Matrix) Row(i int) Vector {
	out := make(Vector, m.cols)
	copy(out, m.data[i*m.cols:(i+1)*m.cols])
	return out
}

// Col returns column j as a vector
func (m Matrix) Col(j int) Vector {
	out := make(Vector, m.rows)
	for i := range out {
		out[i] = m.At(i, j)
	}
	return out
}

func (m Matrix) Transpose() Matrix {
	data := make(Vector, len(m.data))
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			data[j*m.rows+i] = m.At(i, j)
		}
	}
	return Matrix{rows: m.cols, cols: m.rows, data: data}
}

// MatMul returns the matrix product a×b
func MatMul(a, b Matrix) Matrix {
	if a.cols != b.rows {
		if ar := firstArena(a.data, b.data); ar != nil {
			ar.fail("MatMul", "inner dimensions differ: %dx%d by %dx%d", a.rows, a.cols, b.rows, b.cols)
		}
		return Matrix{}
	}
	data := make(Vector, 0, a.rows*b.cols)
	for i := 0; i < a.rows; i++ {
		for j := 0; j < b.cols; j++ {
			data = append(data, Sum(ElementProduct(a.Row(i), b.Col(j))))
		}
	}
	return Matrix{rows: a.rows, cols: b.cols, data: data}
}

// MatVec returns the product m×v
func MatVec(m Matrix, v Vector) Vector {
	if m.cols != len(v) {
		if ar := firstArena(m.data, v); ar != nil {
			ar.fail("MatVec", "matrix has %d columns, vector has %d components", m.cols, len(v))
		}
		return nil
	}
	out := make(Vector, m.rows)
	for i := range out {
		out[i] = Sum(ElementProduct(m.Row(i), v))
	}
	return out
}

// Trace sums the diagonal
func (m Matrix) Trace() Vector {
	if m.rows != m.cols || m.rows == 0 {
		if ar := m.data.arena(); ar != nil {
			ar.fail("Trace", "matrix is not square: %dx%d", m.rows, m.cols)
		}
		return nil
	}
	diag := make(Vector, m.rows)
	for i := range diag {
		diag[i] = m.At(i, i)
	}
	return Vector{Sum(diag)}
}

func (m Matrix) closedForm(op string) bool {
	ar := m.data.arena()
	if m.rows != m.cols || m.rows == 0 {
		if ar != nil {
			ar.fail(op, "matrix is not square: %dx%d", m.rows, m.cols)
		}
		return false
	}
	if m.rows > 3 {
		if ar != nil {
			ar.fail(op, "closed form is available only for order <= 3, got %d", m.rows)
		}
		return false
	}
	return true
}

func mul(x, y Element) Element { return Binary("*", x, y) }
func sub(x, y Element) Element { return Binary("-", x, y) }

func det2(a, b, c, d Element) Element {
	return sub(mul(a, d), mul(b, c))
}

// Det returns the determinant of a matrix of order <= 3
func (m Matrix) Det() Vector {
	if !m.closedForm("Det") {
		return nil
	}
	switch m.rows {
	case 1:
		return Vector{m.At(0, 0)}
	case 2:
		return Vector{det2(m.At(0, 0), m.At(0, 1), m.At(1, 0), m.At(1, 1))}
	}
	cof := m.cofactors()
	return Vector{Sum(ElementProduct(m.Row(0), cof.Row(0)))}
}

// Cofactor returns the cofactor matrix of a matrix of order <= 3
func (m Matrix) Cofactor() Matrix {
	if !m.closedForm("Cofactor") {
		return Matrix{}
	}
	return m.cofactors()
}

func (m Matrix) cofactors() Matrix {
	n := m.rows
	data := make(Vector, n*n)
	switch n {
	case 1:
		data[0] = m.data.arena().Const(1, m.At(0, 0).Type())
	case 2:
		data[0] = m.At(1, 1)
		data[1] = Unary("-", m.At(1, 0))
		data[2] = Unary("-", m.At(0, 1))
		data[3] = m.At(0, 0)
	case 3:
		for i := 0; i < 3; i++ {
			for j := 0; j < 3; j++ {
				r0, r1 := (i+1)%3, (i+2)%3
				c0, c1 := (j+1)%3, (j+2)%3
				// cyclic minors carry the cofactor sign already
				data[i*3+j] = det2(m.At(r0, c0), m.At(r0, c1), m.At(r1, c0), m.At(r1, c1))
			}
		}
	}
	return Matrix{rows: n, cols: n, data: data}
}

// Inverse returns the closed-form inverse of a matrix of order <= 3
func (m Matrix) Inverse() Matrix {
	if !m.closedForm("Inverse") {
		return Matrix{}
	}
	det := m.Det()
	adj := m.cofactors().Transpose()
	return Matrix{rows: m.rows, cols: m.cols, data: Div(adj.data, det)}
}

// SolveCramer solves a×x = b by Cramer's rule for order <= 3
func SolveCramer(a Matrix, b Vector) Vector {
	if !a.closedForm("SolveCramer") {
		return nil
	}
	if len(b) != a.rows {
		if ar := firstArena(a.data, b); ar != nil {
			ar.fail("SolveCramer", "right-hand side has %d components, matrix order is %d", len(b), a.rows)
		}
		return nil
	}
	det := a.Det()
	out := make(Vector, a.rows)
	for k := 0; k < a.rows; k++ {
		data := make(Vector, len(a.data))
		copy(data, a.data)
		for i := 0; i < a.rows; i++ {
			data[i*a.cols+k] = b[i]
		}
		mk := Matrix{rows: a.rows, cols: a.cols, data: data}
		out[k] = Binary("/", mk.Det()[0], det[0])
	}
	return out
}

// SolveCG returns the statements of an unrolled conjugate-gradient solve of
// a×x = b for any order. x must be assignable; the initial guess is b and the
// iteration runs exactly len(b) steps.
func SolveCG(a Matrix, b, x Vector) Vector {
	ar := firstArena(a.data, b, x)
	if ar == nil {
		return nil
	}
	n := len(b)
	if a.rows != a.cols || a.rows != n || len(x) != n {
		ar.fail("SolveCG", "system dimensions differ: matrix %dx%d, rhs %d, solution %d", a.rows, a.cols, n, len(x))
		return nil
	}
	t := Promote(a.data.Type(), b.Type())
	r := ar.Privates(t, n)
	p := ar.Privates(t, n)
	ap := ar.Privates(t, n)
	rr := ar.Privates(t, 1)
	rrNew := ar.Privates(t, 1)
	alpha := ar.Privates(t, 1)
	zero := Vector{ar.Const(0, t)}

	var code Vector
	code = append(code, Assign(x, b)...)
	code = append(code, Assign(r, Sub(b, MatVec(a, x)))...)
	code = append(code, Assign(p, r)...)
	code = append(code, Assign(rr, Mul(r, r))...)
	for k := 0; k < n; k++ {
		code = append(code, Assign(ap, MatVec(a, p))...)
		pap := Mul(p, ap)
		code = append(code, Assign(alpha, Select(zero, Div(rr, pap), NotEqual(pap, zero), t))...)
		code = append(code, AddAssign(x, Mul(alpha, p))...)
		code = append(code, SubAssign(r, Mul(alpha, ap))...)
		code = append(code, Assign(rrNew, Mul(r, r))...)
		beta := Select(zero, Div(rrNew, rr), NotEqual(rr, zero), t)
		code = append(code, Assign(p, Add(r, Mul(beta, p)))...)
		code = append(code, Assign(rr, rrNew)...)
	}
	return code
}

// Dense folds a matrix of constants into a gonum matrix
func (m Matrix) Dense() (*mat.Dense, error) {
	out := mat.NewDense(m.rows, m.cols, nil)
	for i := 0; i < m.rows; i++ {
		for j := 0; j < m.cols; j++ {
			v, err := EvalConstant(m.At(i, j))
			if err != nil {
				return nil, err
			}
			out.Set(i, j, v)
		}
	}
	return out, nil
}
