package bigcount

// Limb-vector kernels. Inputs are canonical and never modified; outputs are
// freshly allocated and normalized.

func cmpLimbs(x, y []uint32) int {
	if len(x) != len(y) {
		if len(x) < len(y) {
			return -1
		}
		return 1
	}
	for i := len(x) - 1; i >= 0; i-- {
		switch {
		case x[i] < y[i]:
			return -1
		case x[i] > y[i]:
			return 1
		}
	}
	return 0
}

func addLimbs(x, y []uint32) []uint32 {
	if len(x) < len(y) {
		x, y = y, x
	}
	out := make([]uint32, len(x)+1)
	var carry uint64
	for i := range x {
		sum := uint64(x[i]) + carry
		if i < len(y) {
			sum += uint64(y[i])
		}
		out[i] = uint32(sum)
		carry = sum >> limbBits
	}
	out[len(x)] = uint32(carry)
	return normalize(out)
}

// subLimbs requires x >= y.
func subLimbs(x, y []uint32) []uint32 {
	out := make([]uint32, len(x))
	var borrow int64
	for i := range x {
		diff := int64(x[i]) - borrow
		if i < len(y) {
			diff -= int64(y[i])
		}
		borrow = 0
		if diff < 0 {
			diff += 1 << limbBits
			borrow = 1
		}
		out[i] = uint32(diff)
	}
	return normalize(out)
}

func mulLimbs(x, y []uint32) []uint32 {
	out := make([]uint32, len(x)+len(y))
	for i, xi := range x {
		if xi == 0 {
			continue
		}
		var carry uint64
		for j, yj := range y {
			t := uint64(xi)*uint64(yj) + uint64(out[i+j]) + carry
			out[i+j] = uint32(t)
			carry = t >> limbBits
		}
		for k := i + len(y); carry != 0; k++ {
			t := uint64(out[k]) + carry
			out[k] = uint32(t)
			carry = t >> limbBits
		}
	}
	return normalize(out)
}

// mulSmall returns x * d.
func mulSmall(x []uint32, d uint32) []uint32 {
	if d == 0 {
		return []uint32{0}
	}
	out := make([]uint32, len(x)+1)
	var carry uint64
	for i, xi := range x {
		t := uint64(xi)*uint64(d) + carry
		out[i] = uint32(t)
		carry = t >> limbBits
	}
	out[len(x)] = uint32(carry)
	return normalize(out)
}

// shiftIn returns window*2^32 + limb.
func shiftIn(window []uint32, limb uint32) []uint32 {
	if len(window) == 1 && window[0] == 0 {
		return []uint32{limb}
	}
	out := make([]uint32, len(window)+1)
	out[0] = limb
	copy(out[1:], window)
	return out
}

// divLimbs performs long division of x by a non-zero y.
//
// The remainder window absorbs one numerator limb per outer iteration,
// most-significant first. Each quotient limb is the largest d with
// y*d <= window; it is found by a binary search that starts from the
// highest power-of-two candidate and halves the step, keeping every bit
// whose product still fits. Because window < y*2^32 holds on entry to each
// iteration, every quotient limb fits in 32 bits.
func divLimbs(x, y []uint32) (q, r []uint32) {
	if cmpLimbs(x, y) < 0 {
		return []uint32{0}, append([]uint32(nil), x...)
	}
	quot := make([]uint32, len(x))
	window := []uint32{0}
	for i := len(x) - 1; i >= 0; i-- {
		window = shiftIn(window, x[i])
		if cmpLimbs(window, y) < 0 {
			continue
		}
		var digit uint32
		var product []uint32
		for step := uint32(1) << (limbBits - 1); step != 0; step >>= 1 {
			candidate := digit | step
			p := mulSmall(y, candidate)
			if cmpLimbs(p, window) <= 0 {
				digit = candidate
				product = p
			}
		}
		quot[i] = digit
		window = subLimbs(window, product)
	}
	return normalize(quot), window
}
