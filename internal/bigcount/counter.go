package bigcount

import (
	"errors"
	"fmt"
	"math"
	"slices"
	"strings"
)

var (
	// ErrUnderflow is returned when a result would be negative.
	ErrUnderflow = errors.New("bigcount: underflow")

	// ErrDivideByZero is returned for division by zero and for 0^0.
	ErrDivideByZero = errors.New("bigcount: divide by zero")

	// ErrOverflow is returned when a value does not fit the requested width.
	ErrOverflow = errors.New("bigcount: overflow")
)

const limbBits = 32

// Counter is an arbitrary-precision unsigned integer.
type Counter struct {
	limbs []uint32
}

var (
	zeroLimbs = []uint32{0}
	ten       = New(10)
)

// Zero returns the counter 0.
func Zero() Counter { return Counter{limbs: zeroLimbs} }

// One returns the counter 1.
func One() Counter { return New(1) }

// New returns a counter holding n.
func New(n uint64) Counter {
	if n>>limbBits == 0 {
		return Counter{limbs: []uint32{uint32(n)}}
	}
	return Counter{limbs: []uint32{uint32(n), uint32(n >> limbBits)}}
}

// FromLimbs builds a counter from least-significant-first limbs. The input
// is copied and normalized.
func FromLimbs(limbs []uint32) Counter {
	return Counter{limbs: normalize(slices.Clone(limbs))}
}

// ParseDecimal parses a base-10 string of ASCII digits.
func ParseDecimal(s string) (Counter, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Counter{}, fmt.Errorf("bigcount: parse %q: empty string", s)
	}
	acc := Zero()
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < '0' || c > '9' {
			return Counter{}, fmt.Errorf("bigcount: parse %q: invalid digit %q", s, c)
		}
		acc = acc.Mul(ten).Add(New(uint64(c - '0')))
	}
	return acc, nil
}

// Limbs returns a copy of the least-significant-first limbs.
func (a Counter) Limbs() []uint32 {
	return slices.Clone(a.digits())
}

// Len returns the number of limbs in the canonical representation.
func (a Counter) Len() int { return len(a.digits()) }

// IsZero reports whether a == 0.
func (a Counter) IsZero() bool {
	d := a.digits()
	return len(d) == 1 && d[0] == 0
}

// Cmp returns -1, 0 or +1 as a is less than, equal to or greater than b.
func (a Counter) Cmp(b Counter) int {
	return cmpLimbs(a.digits(), b.digits())
}

// Equal reports whether a == b.
func (a Counter) Equal(b Counter) bool { return a.Cmp(b) == 0 }

// Less reports whether a < b.
func (a Counter) Less(b Counter) bool { return a.Cmp(b) < 0 }

// Add returns a + b.
func (a Counter) Add(b Counter) Counter {
	return Counter{limbs: addLimbs(a.digits(), b.digits())}
}

// Sub returns a - b, or ErrUnderflow when b > a.
func (a Counter) Sub(b Counter) (Counter, error) {
	x, y := a.digits(), b.digits()
	if cmpLimbs(x, y) < 0 {
		return Counter{}, ErrUnderflow
	}
	return Counter{limbs: subLimbs(x, y)}, nil
}

// Inc returns a + 1.
func (a Counter) Inc() Counter { return a.Add(One()) }

// Dec returns a - 1, or ErrUnderflow at zero.
func (a Counter) Dec() (Counter, error) { return a.Sub(One()) }

// Mul returns a * b using schoolbook multiplication.
func (a Counter) Mul(b Counter) Counter {
	return Counter{limbs: mulLimbs(a.digits(), b.digits())}
}

// DivMod returns the quotient and remainder of a / b.
func (a Counter) DivMod(b Counter) (q, r Counter, err error) {
	if b.IsZero() {
		return Counter{}, Counter{}, ErrDivideByZero
	}
	ql, rl := divLimbs(a.digits(), b.digits())
	return Counter{limbs: ql}, Counter{limbs: rl}, nil
}

// Div returns a / b.
func (a Counter) Div(b Counter) (Counter, error) {
	q, _, err := a.DivMod(b)
	return q, err
}

// Mod returns a % b.
func (a Counter) Mod(b Counter) (Counter, error) {
	_, r, err := a.DivMod(b)
	return r, err
}

// Pow returns a raised to exp. 0^0 is reported as ErrDivideByZero.
func (a Counter) Pow(exp Counter) (Counter, error) {
	if a.IsZero() && exp.IsZero() {
		return Counter{}, ErrDivideByZero
	}
	result := One()
	base := a
	e := exp.digits()
	for i, limb := range e {
		for bit := 0; bit < limbBits; bit++ {
			if limb&(1<<bit) != 0 {
				result = result.Mul(base)
			}
			// No need to square past the highest set bit.
			if i == len(e)-1 && limb>>(bit+1) == 0 {
				return result, nil
			}
			base = base.Mul(base)
		}
	}
	return result, nil
}

// Uint64 converts a to uint64, or ErrOverflow if it needs more than two limbs.
func (a Counter) Uint64() (uint64, error) {
	d := a.digits()
	switch len(d) {
	case 1:
		return uint64(d[0]), nil
	case 2:
		return uint64(d[1])<<limbBits | uint64(d[0]), nil
	default:
		return 0, ErrOverflow
	}
}

// Int64 converts a to int64.
func (a Counter) Int64() (int64, error) {
	n, err := a.Uint64()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt64 {
		return 0, ErrOverflow
	}
	return int64(n), nil
}

// Uint32 converts a to uint32.
func (a Counter) Uint32() (uint32, error) {
	d := a.digits()
	if len(d) > 1 {
		return 0, ErrOverflow
	}
	return d[0], nil
}

// Int32 converts a to int32.
func (a Counter) Int32() (int32, error) {
	n, err := a.Uint32()
	if err != nil {
		return 0, err
	}
	if n > math.MaxInt32 {
		return 0, ErrOverflow
	}
	return int32(n), nil
}

// String renders a in base 10.
func (a Counter) String() string {
	if a.IsZero() {
		return "0"
	}
	var out []byte
	n := a
	for !n.IsZero() {
		q, r, _ := n.DivMod(ten)
		out = append(out, byte('0'+r.digits()[0]))
		n = q
	}
	slices.Reverse(out)
	return string(out)
}

// Format implements fmt.Formatter so counters print in decimal with %v and %d.
func (a Counter) Format(f fmt.State, verb rune) {
	switch verb {
	case 'v', 'd', 's':
		fmt.Fprint(f, a.String())
	default:
		fmt.Fprintf(f, "%%!%c(bigcount.Counter=%s)", verb, a.String())
	}
}

func (a Counter) digits() []uint32 {
	if len(a.limbs) == 0 {
		return zeroLimbs
	}
	return a.limbs
}

// normalize trims most-significant zero limbs, keeping one for zero.
func normalize(d []uint32) []uint32 {
	n := len(d)
	for n > 1 && d[n-1] == 0 {
		n--
	}
	if n == 0 {
		return []uint32{0}
	}
	return d[:n]
}
