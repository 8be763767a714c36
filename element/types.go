package element

import (
	"math"
	"reflect"
	"strconv"
	"strings"
)

// TypeID identifies the scalar kind of an expression node
type TypeID int

const (
	INT32 TypeID = iota + 1
	UINT32
	Float32
	Float64
	INT64
)

// AllTypes lists every supported scalar kind
var AllTypes = []TypeID{INT32, UINT32, Float32, Float64, INT64}

// Scalar is the set of Go types that map onto a TypeID
type Scalar interface {
	~int32 | ~uint32 | ~float32 | ~float64 | ~int64
}

// TypeOf returns the TypeID of a Go scalar type
func TypeOf[T Scalar]() TypeID {
	var zero T
	switch reflect.TypeOf(zero).Kind() {
	case reflect.Int32:
		return INT32
	case reflect.Uint32:
		return UINT32
	case reflect.Float32:
		return Float32
	case reflect.Float64:
		return Float64
	case reflect.Int64:
		return INT64
	default:
		return 0
	}
}

// Valid reports whether t is one of the supported kinds
func (t TypeID) Valid() bool {
	return t >= INT32 && t <= INT64
}

// CType returns the source-level type name
func (t TypeID) CType() string {
	switch t {
	case INT32:
		return "int"
	case UINT32:
		return "uint"
	case Float32:
		return "float"
	case Float64:
		return "double"
	case INT64:
		return "long"
	default:
		return "void"
	}
}

// VectorCType returns the SIMD type name for width w (the scalar name when w == 1)
func (t TypeID) VectorCType(w int) string {
	if w <= 1 {
		return t.CType()
	}
	return t.CType() + strconv.Itoa(w)
}

// Size returns the size of one value in bytes
func (t TypeID) Size() int {
	switch t {
	case INT32, UINT32, Float32:
		return 4
	case Float64, INT64:
		return 8
	default:
		return 0
	}
}

// SelectType returns the integer counterpart used as a select condition
func (t TypeID) SelectType() TypeID {
	switch t {
	case UINT32:
		return UINT32
	case Float64, INT64:
		return INT64
	default:
		return INT32
	}
}

func (t TypeID) IsFloat() bool {
	return t == Float32 || t == Float64
}

func (t TypeID) IsInteger() bool {
	return t == INT32 || t == UINT32 || t == INT64
}

func (t TypeID) String() string {
	switch t {
	case INT32:
		return "int32"
	case UINT32:
		return "uint32"
	case Float32:
		return "float32"
	case Float64:
		return "float64"
	case INT64:
		return "int64"
	default:
		return "invalid"
	}
}

func (t TypeID) rank() int {
	switch t {
	case INT32:
		return 1
	case UINT32:
		return 2
	case INT64:
		return 3
	case Float32:
		return 4
	case Float64:
		return 5
	default:
		return 0
	}
}

// Promote returns the wider of two kinds
func Promote(a, b TypeID) TypeID {
	if a.rank() >= b.rank() {
		return a
	}
	return b
}

// Literal renders v as a source literal of kind t
func (t TypeID) Literal(v float64) string {
	switch t {
	case Float32:
		return floatLiteral(float64(float32(v)), 32) + "f"
	case Float64:
		return floatLiteral(v, 64)
	case UINT32:
		return strconv.FormatUint(uint64(uint32(v)), 10) + "u"
	case INT64:
		if v <= math.MinInt64 {
			// the literal without its sign does not fit a long
			return "(-9223372036854775807l - 1)"
		}
		return strconv.FormatInt(int64(v), 10) + "l"
	default:
		if int32(v) == math.MinInt32 {
			return "(-2147483647 - 1)"
		}
		return strconv.FormatInt(int64(int32(v)), 10)
	}
}

func floatLiteral(v float64, bits int) string {
	switch {
	case math.IsInf(v, 1):
		return "INFINITY"
	case math.IsInf(v, -1):
		return "(-INFINITY)"
	case math.IsNaN(v):
		return "NAN"
	}
	s := strconv.FormatFloat(v, 'g', -1, bits)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

// Coerce rounds v to the precision and range of kind t
func (t TypeID) Coerce(v float64) float64 {
	switch t {
	case Float32:
		return float64(float32(v))
	case INT32:
		return float64(int32(int64(truncate(v))))
	case UINT32:
		return float64(uint32(int64(truncate(v))))
	case INT64:
		return float64(int64(truncate(v)))
	default:
		return v
	}
}

func truncate(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0
	}
	return math.Trunc(v)
}

// MaxValue is the largest finite value of kind t, used as the min-reduction identity
func (t TypeID) MaxValue() float64 {
	switch t {
	case INT32:
		return math.MaxInt32
	case UINT32:
		return math.MaxUint32
	case INT64:
		// largest int64 a float64 holds exactly
		return math.Nextafter(math.MaxInt64, 0)
	case Float32:
		return math.MaxFloat32
	default:
		return math.MaxFloat64
	}
}

// LowestValue is the smallest finite value of kind t, used as the max-reduction identity
func (t TypeID) LowestValue() float64 {
	switch t {
	case INT32:
		return math.MinInt32
	case UINT32:
		return 0
	case INT64:
		return math.MinInt64
	case Float32:
		return -math.MaxFloat32
	default:
		return -math.MaxFloat64
	}
}

// ToFloat64 converts a Go scalar value to float64
func ToFloat64(v interface{}) (float64, bool) {
	switch x := v.(type) {
	case int32:
		return float64(x), true
	case uint32:
		return float64(x), true
	case float32:
		return float64(x), true
	case float64:
		return x, true
	case int64:
		return float64(x), true
	case int:
		return float64(x), true
	default:
		return 0, false
	}
}

// FromFloat64 converts v into the Go value of kind t, as bound to a kernel argument
func FromFloat64(t TypeID, v float64) interface{} {
	switch t {
	case INT32:
		return int32(v)
	case UINT32:
		return uint32(v)
	case Float32:
		return float32(v)
	case INT64:
		return int64(v)
	default:
		return v
	}
}
