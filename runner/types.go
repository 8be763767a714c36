package runner

import (
	"math"

	"github.com/notargets/aclkernel/element"
)

// Operator is an associative reduction operator shared by the device code and the host fold
type Operator uint8

const (
	Sum Operator = iota + 1
	Product
	Min
	Max
)

func (op Operator) String() string {
	switch op {
	case Sum:
		return "SUM"
	case Product:
		return "PRODUCT"
	case Min:
		return "MIN"
	case Max:
		return "MAX"
	default:
		return "UNKNOWN"
	}
}

// Valid reports whether op is one of the defined operators
func (op Operator) Valid() bool {
	return op >= Sum && op <= Max
}

// Identity is the value op leaves unchanged, as rendered for kind t
func (op Operator) Identity(t element.TypeID) float64 {
	switch op {
	case Product:
		return 1
	case Min:
		return t.MaxValue()
	case Max:
		return t.LowestValue()
	default:
		return 0
	}
}

// Statement accumulates x into acc on the device
func (op Operator) Statement(acc, x element.Element) element.Element {
	x = element.Convert(x, acc.Type())
	switch op {
	case Product:
		return element.Binary("*=", acc, x)
	case Min:
		return element.Binary("=", acc, element.Min(element.NewVector(acc), element.NewVector(x))[0])
	case Max:
		return element.Binary("=", acc, element.Max(element.NewVector(acc), element.NewVector(x))[0])
	default:
		return element.Binary("+=", acc, x)
	}
}

// Apply combines two host values of the reduced type
func Apply[T element.Scalar](op Operator, acc, x T) T {
	switch op {
	case Product:
		return acc * x
	case Min:
		if x < acc {
			return x
		}
		return acc
	case Max:
		if x > acc {
			return x
		}
		return acc
	default:
		return acc + x
	}
}

// IdentityOf is the identity of op in the host type T
func IdentityOf[T element.Scalar](op Operator) T {
	var zero T
	switch op {
	case Product:
		return 1
	case Min:
		return extreme[T](true)
	case Max:
		return extreme[T](false)
	default:
		return zero
	}
}

func extreme[T element.Scalar](largest bool) T {
	var v interface{}
	switch any(*new(T)).(type) {
	case int32:
		v = int32(math.MinInt32)
		if largest {
			v = int32(math.MaxInt32)
		}
	case uint32:
		v = uint32(0)
		if largest {
			v = uint32(math.MaxUint32)
		}
	case int64:
		v = int64(math.MinInt64)
		if largest {
			v = int64(math.MaxInt64)
		}
	case float32:
		v = float32(-math.MaxFloat32)
		if largest {
			v = float32(math.MaxFloat32)
		}
	default:
		v = -math.MaxFloat64
		if largest {
			v = math.MaxFloat64
		}
	}
	if out, ok := v.(T); ok {
		return out
	}
	f, _ := element.ToFloat64(v)
	return T(f)
}
