// Package letterkey encodes counters as uppercase alphabetic keys.
//
// Keys are base-26 numerals, most-significant digit first, with digit
// values 0..25 written as 'A'..'Z'. Zero is "A". String primary keys that
// must be unique and ordered use this encoding for their sequence values.
package letterkey

import (
	"errors"
	"fmt"
	"slices"

	"github.com/roach88/seedgraph/internal/bigcount"
)

// Radix is the number of letters in the alphabet.
const Radix = 26

var radix = bigcount.New(Radix)

// ErrOverflow is returned when a value needs more digits than allowed.
// It wraps bigcount.ErrOverflow.
var ErrOverflow = fmt.Errorf("letterkey: too many digits: %w", bigcount.ErrOverflow)

// ErrInvalidDigit is returned when decoding a character outside 'A'..'Z'.
var ErrInvalidDigit = errors.New("letterkey: invalid digit")

// ErrInvalidLength is returned for a negative maxLength.
var ErrInvalidLength = errors.New("letterkey: negative max length")

// Encode renders n using at most maxLength letters. A maxLength of 0 fits
// no value; a negative one fails with ErrInvalidLength.
func Encode(n bigcount.Counter, maxLength int) (string, error) {
	if maxLength < 0 {
		return "", fmt.Errorf("%w: %d", ErrInvalidLength, maxLength)
	}
	orig := n
	var out []byte
	for {
		q, r, err := n.DivMod(radix)
		if err != nil {
			return "", err
		}
		if len(out) == maxLength {
			return "", fmt.Errorf("%w: %s needs more than %d", ErrOverflow, orig, maxLength)
		}
		digit, _ := r.Uint32()
		out = append(out, byte('A'+digit))
		n = q
		if n.IsZero() {
			break
		}
	}
	slices.Reverse(out)
	return string(out), nil
}

// Decode parses a key produced by Encode.
func Decode(s string) (bigcount.Counter, error) {
	if s == "" {
		return bigcount.Counter{}, fmt.Errorf("%w: empty key", ErrInvalidDigit)
	}
	acc := bigcount.Zero()
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c < 'A' || c > 'Z' {
			return bigcount.Counter{}, fmt.Errorf("%w: %q in %q", ErrInvalidDigit, c, s)
		}
		acc = acc.Mul(radix).Add(bigcount.New(uint64(c - 'A')))
	}
	return acc, nil
}

// MaxValue returns the largest counter representable in maxLength letters.
func MaxValue(maxLength int) (bigcount.Counter, error) {
	if maxLength < 0 {
		return bigcount.Counter{}, fmt.Errorf("%w: %d", ErrInvalidLength, maxLength)
	}
	limit, err := radix.Pow(bigcount.New(uint64(maxLength)))
	if err != nil {
		return bigcount.Counter{}, err
	}
	return limit.Dec()
}
