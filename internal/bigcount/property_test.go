package bigcount

import (
	"math/big"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// randomCounter draws a counter of 1..maxLimbs limbs. Limb values are biased
// toward 0 and 0xffffffff to exercise carries and borrows.
func randomCounter(r *rand.Rand, maxLimbs int) Counter {
	n := 1 + r.IntN(maxLimbs)
	limbs := make([]uint32, n)
	for i := range limbs {
		switch r.IntN(4) {
		case 0:
			limbs[i] = 0
		case 1:
			limbs[i] = 0xffffffff
		default:
			limbs[i] = r.Uint32()
		}
	}
	return FromLimbs(limbs)
}

func toBig(t *testing.T, c Counter) *big.Int {
	t.Helper()
	b, ok := new(big.Int).SetString(c.String(), 10)
	require.True(t, ok, "unparseable counter %q", c.String())
	return b
}

const propertyRounds = 500

func TestProperty_AddThenSub(t *testing.T) {
	r := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < propertyRounds; i++ {
		a, b := randomCounter(r, 6), randomCounter(r, 6)
		got, err := a.Add(b).Sub(b)
		require.NoError(t, err)
		assert.True(t, got.Equal(a), "(%s + %s) - %s = %s", a, b, b, got)
	}
}

func TestProperty_MulThenDiv(t *testing.T) {
	r := rand.New(rand.NewPCG(3, 4))
	for i := 0; i < propertyRounds; i++ {
		a, b := randomCounter(r, 5), randomCounter(r, 4)
		if b.IsZero() {
			continue
		}
		got, err := a.Mul(b).Div(b)
		require.NoError(t, err)
		assert.True(t, got.Equal(a), "(%s * %s) / %s = %s", a, b, b, got)
	}
}

func TestProperty_IncThenDec(t *testing.T) {
	r := rand.New(rand.NewPCG(5, 6))
	for i := 0; i < propertyRounds; i++ {
		a := randomCounter(r, 4)
		got, err := a.Inc().Dec()
		require.NoError(t, err)
		assert.True(t, got.Equal(a), "dec(inc(%s)) = %s", a, got)
	}
}

func TestProperty_DivModIdentity(t *testing.T) {
	r := rand.New(rand.NewPCG(7, 8))
	for i := 0; i < propertyRounds; i++ {
		a, b := randomCounter(r, 7), randomCounter(r, 4)
		if b.IsZero() {
			continue
		}
		q, rem, err := a.DivMod(b)
		require.NoError(t, err)
		assert.True(t, rem.Less(b), "remainder %s not below divisor %s", rem, b)
		assert.True(t, q.Mul(b).Add(rem).Equal(a), "q*b + r != a for a=%s b=%s", a, b)
	}
}

func TestProperty_AgreesWithMathBig(t *testing.T) {
	r := rand.New(rand.NewPCG(9, 10))
	for i := 0; i < propertyRounds; i++ {
		a, b := randomCounter(r, 5), randomCounter(r, 3)
		ba, bb := toBig(t, a), toBig(t, b)

		assert.Equal(t, new(big.Int).Add(ba, bb).String(), a.Add(b).String())
		assert.Equal(t, new(big.Int).Mul(ba, bb).String(), a.Mul(b).String())

		if ba.Cmp(bb) >= 0 {
			diff, err := a.Sub(b)
			require.NoError(t, err)
			assert.Equal(t, new(big.Int).Sub(ba, bb).String(), diff.String())
		} else {
			_, err := a.Sub(b)
			assert.ErrorIs(t, err, ErrUnderflow)
		}

		if !b.IsZero() {
			q, rem, err := a.DivMod(b)
			require.NoError(t, err)
			wq, wr := new(big.Int).QuoRem(ba, bb, new(big.Int))
			assert.Equal(t, wq.String(), q.String(), "%s / %s", a, b)
			assert.Equal(t, wr.String(), rem.String(), "%s %% %s", a, b)
		}
	}
}

func TestProperty_ParseRoundTrip(t *testing.T) {
	r := rand.New(rand.NewPCG(11, 12))
	for i := 0; i < propertyRounds; i++ {
		a := randomCounter(r, 6)
		back, err := ParseDecimal(a.String())
		require.NoError(t, err)
		assert.True(t, back.Equal(a))
	}
}

func TestProperty_PowAgreesWithMathBig(t *testing.T) {
	r := rand.New(rand.NewPCG(13, 14))
	for i := 0; i < 100; i++ {
		base := randomCounter(r, 2)
		exp := New(uint64(r.IntN(20)))
		if base.IsZero() && exp.IsZero() {
			continue
		}
		got, err := base.Pow(exp)
		require.NoError(t, err)
		want := new(big.Int).Exp(toBig(t, base), toBig(t, exp), nil)
		assert.Equal(t, want.String(), got.String(), "%s^%s", base, exp)
	}
}
