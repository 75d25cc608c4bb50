package vm

import (
	"errors"
	"math"
	"strconv"

	"github.com/chazu/flexscript/ir"
)

// ValueType tags the payload of a Value.
type ValueType uint8

const (
	TypeNone ValueType = iota
	TypeInt
	TypeFloat
)

func (t ValueType) String() string {
	switch t {
	case TypeInt:
		return "int"
	case TypeFloat:
		return "float"
	default:
		return "none"
	}
}

// Value is a runtime scalar. Only the field selected by Type is meaningful.
type Value struct {
	Type  ValueType `cbor:"1,keyasint"`
	Int   int32     `cbor:"2,keyasint,omitempty"`
	Float float32   `cbor:"3,keyasint,omitempty"`
}

// None is the empty value held by unused registers.
var None = Value{}

// Int returns an int value.
func Int(v int32) Value { return Value{Type: TypeInt, Int: v} }

// Float returns a float value.
func Float(v float32) Value { return Value{Type: TypeFloat, Float: v} }

// Bool returns Int(1) or Int(0).
func Bool(b bool) Value {
	if b {
		return Int(1)
	}
	return Int(0)
}

// AsInt converts to int32. Floats truncate toward zero and saturate at the
// int32 range; NaN and None convert to 0.
func (v Value) AsInt() int32 {
	switch v.Type {
	case TypeInt:
		return v.Int
	case TypeFloat:
		return ir.FloatToInt(v.Float)
	}
	return 0
}

// AsFloat converts to float32. None converts to 0.
func (v Value) AsFloat() float32 {
	switch v.Type {
	case TypeInt:
		return float32(v.Int)
	case TypeFloat:
		return v.Float
	}
	return 0
}

func (v Value) IsFloat() bool { return v.Type == TypeFloat }

// IsZero reports whether the value is numerically zero. None counts as zero.
func (v Value) IsZero() bool {
	if v.Type == TypeFloat {
		return v.Float == 0
	}
	return v.Int == 0
}

// IsPositive reports whether the value is strictly greater than zero.
func (v Value) IsPositive() bool {
	if v.Type == TypeFloat {
		return v.Float > 0
	}
	return v.Int > 0
}

func (v Value) String() string {
	switch v.Type {
	case TypeInt:
		return strconv.Itoa(int(v.Int))
	case TypeFloat:
		return ir.FormatFloat(v.Float)
	}
	return "none"
}

var (
	errDivideByZero  = errors.New("division by zero")
	errFloatBitwise  = errors.New("bitwise operation on a float operand")
	errNotArithmetic = errors.New("not an arithmetic opcode")
)

// arith applies a three-operand arithmetic or bitwise opcode. Two ints give
// an int with two's complement wrap-around; otherwise both sides are widened
// to float.
func arith(op Opcode, a, b Value) (Value, error) {
	if a.Type != TypeFloat && b.Type != TypeFloat {
		x, y := a.Int, b.Int
		switch op {
		case OpAdd:
			return Int(x + y), nil
		case OpSub:
			return Int(x - y), nil
		case OpMul:
			return Int(x * y), nil
		case OpDiv:
			if y == 0 {
				return Int(0), errDivideByZero
			}
			return Int(x / y), nil
		case OpMod:
			if y == 0 {
				return Int(0), errDivideByZero
			}
			return Int(x % y), nil
		case OpAnd:
			return Int(x & y), nil
		case OpOr:
			return Int(x | y), nil
		case OpXor:
			return Int(x ^ y), nil
		}
		return None, errNotArithmetic
	}

	x, y := a.AsFloat(), b.AsFloat()
	switch op {
	case OpAdd:
		return Float(x + y), nil
	case OpSub:
		return Float(x - y), nil
	case OpMul:
		return Float(x * y), nil
	case OpDiv:
		if y == 0 {
			return Int(0), errDivideByZero
		}
		return Float(x / y), nil
	case OpMod:
		if y == 0 {
			return Int(0), errDivideByZero
		}
		return Float(float32(math.Mod(float64(x), float64(y)))), nil
	case OpAnd, OpOr, OpXor:
		return Int(0), errFloatBitwise
	}
	return None, errNotArithmetic
}

// compare returns the sign of a - b, computed without overflow. Any
// comparison involving NaN reports -1.
func compare(a, b Value) int {
	if a.Type != TypeFloat && b.Type != TypeFloat {
		d := int64(a.Int) - int64(b.Int)
		switch {
		case d > 0:
			return 1
		case d < 0:
			return -1
		}
		return 0
	}
	x, y := float64(a.AsFloat()), float64(b.AsFloat())
	switch {
	case x > y:
		return 1
	case x == y:
		return 0
	}
	return -1
}
