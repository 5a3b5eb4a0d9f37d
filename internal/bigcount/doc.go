// Package bigcount implements an arbitrary-precision unsigned counter.
//
// A Counter is stored as a slice of 32-bit limbs, least-significant first.
// Counters are immutable: every arithmetic operation returns a new value and
// never writes into the limbs of its operands, so a Counter may be shared
// freely once constructed.
//
// The canonical form has no most-significant zero limb, except for zero
// itself which is exactly one zero limb. The zero value of Counter is a
// valid zero.
//
// Failure modes are reported as sentinel errors:
//   - ErrUnderflow: a subtraction or decrement would go below zero
//   - ErrDivideByZero: division or modulus by zero, or 0^0
//   - ErrOverflow: a conversion to a fixed-width integer does not fit
package bigcount
