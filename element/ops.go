package element

import (
	"fmt"
	"math"
)

// truth is the value of a true comparison: 1 for scalars, all bits set for vector lanes
func truth(ok, vector bool) float64 {
	switch {
	case !ok:
		return 0
	case vector:
		return -1
	default:
		return 1
	}
}

// applyBinary evaluates one lane of a binary operator computed in kind t
func applyBinary(op string, t TypeID, x, y float64, vector bool) (float64, error) {
	x, y = t.Coerce(x), t.Coerce(y)
	switch op {
	case "+":
		return t.Coerce(x + y), nil
	case "-":
		return t.Coerce(x - y), nil
	case "*":
		return t.Coerce(x * y), nil
	case "/":
		if t.IsInteger() {
			if y == 0 {
				return 0, nil
			}
			return t.Coerce(math.Trunc(x / y)), nil
		}
		return t.Coerce(x / y), nil
	case "%":
		if y == 0 {
			return 0, nil
		}
		if t.IsInteger() {
			return t.Coerce(float64(int64(x) % int64(y))), nil
		}
		return t.Coerce(math.Mod(x, y)), nil
	case "<":
		return truth(x < y, vector), nil
	case "<=":
		return truth(x <= y, vector), nil
	case ">":
		return truth(x > y, vector), nil
	case ">=":
		return truth(x >= y, vector), nil
	case "==":
		return truth(x == y, vector), nil
	case "!=":
		return truth(x != y, vector), nil
	case "&&":
		return truth(x != 0 && y != 0, vector), nil
	case "||":
		return truth(x != 0 || y != 0, vector), nil
	}
	return 0, fmt.Errorf("unsupported operator %q", op)
}

func applyUnary(op string, t TypeID, x float64, vector bool) (float64, error) {
	switch op {
	case "-":
		return t.Coerce(-x), nil
	case "!":
		return truth(x == 0, vector), nil
	case "+":
		return x, nil
	}
	return 0, fmt.Errorf("unsupported unary operator %q", op)
}

var unaryCalls = map[string]func(float64) float64{
	"sqrt":  math.Sqrt,
	"rsqrt": func(x float64) float64 { return 1 / math.Sqrt(x) },
	"fabs":  math.Abs,
	"abs":   math.Abs,
	"exp":   math.Exp,
	"log":   math.Log,
	"sin":   math.Sin,
	"cos":   math.Cos,
	"tan":   math.Tan,
	"floor": math.Floor,
}

// applyCall evaluates one lane of a builtin call of result kind t. A select
// with a vector condition tests the most significant bit, a scalar one tests non-zero.
func applyCall(name string, t TypeID, args []float64, vectorCond bool) (float64, error) {
	if f, ok := unaryCalls[name]; ok && len(args) == 1 {
		return t.Coerce(f(args[0])), nil
	}
	switch name {
	case "convert":
		if len(args) == 1 {
			return t.Coerce(args[0]), nil
		}
	case "pow":
		if len(args) == 2 {
			return t.Coerce(math.Pow(args[0], args[1])), nil
		}
	case "fmin", "min":
		if len(args) == 2 {
			return t.Coerce(math.Min(args[0], args[1])), nil
		}
	case "fmax", "max":
		if len(args) == 2 {
			return t.Coerce(math.Max(args[0], args[1])), nil
		}
	case "select":
		if len(args) == 3 {
			pick := args[2] != 0
			if vectorCond {
				pick = args[2] < 0
			}
			if pick {
				return t.Coerce(args[1]), nil
			}
			return t.Coerce(args[0]), nil
		}
	}
	return 0, fmt.Errorf("unsupported call %s with %d arguments", name, len(args))
}

// EvalConstant folds a graph of constants and bound variables on the host
func EvalConstant(e Element) (float64, error) {
	if !e.IsValid() {
		return 0, fmt.Errorf("EvalConstant: invalid element")
	}
	return evalConstant(e.arena, e.h)
}

func evalConstant(a *Arena, h Handle) (float64, error) {
	n := a.node(h)
	switch n.kind {
	case KindConstant:
		return n.value, nil
	case KindVariable:
		v, ok := ToFloat64(n.bind())
		if !ok {
			return 0, fmt.Errorf("EvalConstant: variable %q is not numeric", n.name)
		}
		return v, nil
	case KindBinary, KindUnary, KindCall:
		args := make([]float64, len(n.args))
		for i, c := range n.args {
			v, err := evalConstant(a, c)
			if err != nil {
				return 0, err
			}
			args[i] = v
		}
		switch n.kind {
		case KindBinary:
			return applyBinary(n.op, Promote(a.node(n.args[0]).typ, a.node(n.args[1]).typ), args[0], args[1], false)
		case KindUnary:
			return applyUnary(n.op, n.typ, args[0], false)
		default:
			return applyCall(n.op, n.typ, args, false)
		}
	}
	return 0, fmt.Errorf("EvalConstant: %s is not a constant expression", Element{arena: a, h: h})
}
