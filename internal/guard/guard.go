// Package guard provides a recursion guard for depth-first graph walks.
//
// A Guard records which calls are currently on the active call stack. It is
// used to stop re-entrant traversal of cyclic foreign-key graphs without
// raising an error. It does not remember calls that have already returned:
// preventing repeated work across independent top-level calls is the job of
// the caller's own bookkeeping.
//
// A Guard is single-writer state and is not safe for concurrent use.
package guard

// Signature identifies one call: the operation name plus the identity of
// its target. Target must be comparable; pointers are the usual choice.
type Signature struct {
	Op     string
	Target any
}

// NewSignature returns the signature for op applied to target.
func NewSignature(op string, target any) Signature {
	return Signature{Op: op, Target: target}
}

// Guard is a stack of active call signatures.
type Guard struct {
	stack  []Signature
	active map[Signature]int
}

// New returns an empty guard.
func New() *Guard {
	return &Guard{active: make(map[Signature]int)}
}

// Push records that sig is now on the active call stack.
func (g *Guard) Push(sig Signature) {
	if g.active == nil {
		g.active = make(map[Signature]int)
	}
	g.stack = append(g.stack, sig)
	g.active[sig]++
}

// IsVisited reports whether any push of sig is still outstanding.
func (g *Guard) IsVisited(sig Signature) bool {
	return g.active[sig] > 0
}

// Pop removes the most recent entry. Popping an empty guard panics.
func (g *Guard) Pop() Signature {
	if len(g.stack) == 0 {
		panic("guard: pop of empty stack")
	}
	sig := g.stack[len(g.stack)-1]
	g.stack = g.stack[:len(g.stack)-1]
	if g.active[sig] <= 1 {
		delete(g.active, sig)
	} else {
		g.active[sig]--
	}
	return sig
}

// Depth returns the number of outstanding pushes.
func (g *Guard) Depth() int { return len(g.stack) }

// Enter pushes sig unless it is already visited. It reports whether the
// caller should proceed; when it returns true the caller must Pop.
func (g *Guard) Enter(sig Signature) bool {
	if g.IsVisited(sig) {
		return false
	}
	g.Push(sig)
	return true
}
