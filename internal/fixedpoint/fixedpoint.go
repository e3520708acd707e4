// Package fixedpoint implements 18-decimal fixed-point arithmetic on 256-bit
// unsigned integers with explicit rounding direction.
//
// Every function panics with *ArithmeticError on overflow, underflow or
// division by zero. Callers that run untrusted inputs recover the panic at
// their operation boundary.
package fixedpoint

import (
	"fmt"

	"github.com/holiman/uint256"
)

// Rounding selects the direction of an inexact result.
type Rounding uint8

const (
	RoundDown Rounding = iota
	RoundUp
)

func (r Rounding) String() string {
	if r == RoundUp {
		return "up"
	}
	return "down"
}

// ArithmeticError reports an out-of-range fixed-point operation.
type ArithmeticError struct {
	Op string
}

func (e *ArithmeticError) Error() string {
	return fmt.Sprintf("fixedpoint: %s", e.Op)
}

// ONE is 1.0 in 18-decimal fixed point.
var ONE = uint256.NewInt(1e18)

// Zero returns a fresh zero value.
func Zero() *uint256.Int { return new(uint256.Int) }

// One returns a fresh copy of ONE.
func One() *uint256.Int { return new(uint256.Int).Set(ONE) }

// Copy returns a fresh copy of x; nil becomes zero.
func Copy(x *uint256.Int) *uint256.Int {
	if x == nil {
		return new(uint256.Int)
	}
	return new(uint256.Int).Set(x)
}

// Add returns a+b.
func Add(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).AddOverflow(a, b)
	if overflow {
		panic(&ArithmeticError{Op: "add overflow"})
	}
	return z
}

// Sub returns a-b.
func Sub(a, b *uint256.Int) *uint256.Int {
	z, underflow := new(uint256.Int).SubOverflow(a, b)
	if underflow {
		panic(&ArithmeticError{Op: "sub underflow"})
	}
	return z
}

// Mul returns the integer product a*b.
func Mul(a, b *uint256.Int) *uint256.Int {
	z, overflow := new(uint256.Int).MulOverflow(a, b)
	if overflow {
		panic(&ArithmeticError{Op: "mul overflow"})
	}
	return z
}

// Div returns the integer quotient a/b rounded down.
func Div(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		panic(&ArithmeticError{Op: "division by zero"})
	}
	return new(uint256.Int).Div(a, b)
}

// DivRawUp returns the integer quotient a/b rounded up.
func DivRawUp(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		panic(&ArithmeticError{Op: "division by zero"})
	}
	if a.IsZero() {
		return new(uint256.Int)
	}
	q := new(uint256.Int).Div(Sub(a, uint256.NewInt(1)), b)
	return q.AddUint64(q, 1)
}

// MulDown returns a*b/ONE rounded down.
func MulDown(a, b *uint256.Int) *uint256.Int {
	return new(uint256.Int).Div(Mul(a, b), ONE)
}

// MulUp returns a*b/ONE rounded up.
func MulUp(a, b *uint256.Int) *uint256.Int {
	product := Mul(a, b)
	if product.IsZero() {
		return product
	}
	q := new(uint256.Int).Div(product.SubUint64(product, 1), ONE)
	return q.AddUint64(q, 1)
}

// DivDown returns a*ONE/b rounded down.
func DivDown(a, b *uint256.Int) *uint256.Int {
	if b.IsZero() {
		panic(&ArithmeticError{Op: "division by zero"})
	}
	return new(uint256.Int).Div(Mul(a, ONE), b)
}

// DivUp returns a*ONE/b rounded up.
func DivUp(a, b *uint256.Int) *uint256.Int {
	return DivRawUp(Mul(a, ONE), b)
}

// MulDivDown returns a*b/c rounded down with a 512-bit intermediate.
func MulDivDown(a, b, c *uint256.Int) *uint256.Int {
	if c.IsZero() {
		panic(&ArithmeticError{Op: "division by zero"})
	}
	z, overflow := new(uint256.Int).MulDivOverflow(a, b, c)
	if overflow {
		panic(&ArithmeticError{Op: "mulDiv overflow"})
	}
	return z
}

// MulDivUp returns a*b/c rounded up with a 512-bit intermediate.
func MulDivUp(a, b, c *uint256.Int) *uint256.Int {
	z := MulDivDown(a, b, c)
	if !new(uint256.Int).MulMod(a, b, c).IsZero() {
		return Add(z, uint256.NewInt(1))
	}
	return z
}

// Complement returns ONE-x, floored at zero.
func Complement(x *uint256.Int) *uint256.Int {
	if x.Cmp(ONE) >= 0 {
		return new(uint256.Int)
	}
	return new(uint256.Int).Sub(ONE, x)
}

// Min returns a copy of the smaller operand.
func Min(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) <= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// Max returns a copy of the larger operand.
func Max(a, b *uint256.Int) *uint256.Int {
	if a.Cmp(b) >= 0 {
		return Copy(a)
	}
	return Copy(b)
}

// Sqrt returns the integer square root of x in the requested direction.
func Sqrt(x *uint256.Int, rounding Rounding) *uint256.Int {
	root := new(uint256.Int).Sqrt(x)
	if rounding == RoundUp && !new(uint256.Int).Mul(root, root).Eq(x) {
		return Add(root, uint256.NewInt(1))
	}
	return root
}

// Pow10 returns 10^n.
func Pow10(n uint8) *uint256.Int {
	z := uint256.NewInt(1)
	ten := uint256.NewInt(10)
	for i := uint8(0); i < n; i++ {
		z = Mul(z, ten)
	}
	return z
}
