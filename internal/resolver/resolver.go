// Package resolver assigns unique sequential values to key fields.
//
// Many pending records may each need a fresh value for the same field. The
// Resolver queues one Request per record and, when the batch is about to
// execute, asks a CountSource for the field's initial count exactly once,
// then hands request k the value initial+k in registration order. The
// values are therefore distinct and ascending per field. Values already
// taken in the same batch are reported with Reserve; the sequence then
// starts after the largest of them.
//
// A Resolver is created for one persist call and discarded with its batch.
// It is not safe for concurrent use.
package resolver

import (
	"context"
	"fmt"

	"github.com/roach88/seedgraph/internal/bigcount"
	"github.com/roach88/seedgraph/internal/schema"
)

// FieldRef identifies one field of one table.
type FieldRef struct {
	Table string
	Field schema.Field
}

func (f FieldRef) String() string { return f.Table + "." + f.Field.Name }

// Ref returns the FieldRef for the named field of desc.
func Ref(desc *schema.Descriptor, field string) (FieldRef, error) {
	f, ok := desc.Field(field)
	if !ok {
		return FieldRef{}, fmt.Errorf("resolver: %s has no field %q", desc.Table, field)
	}
	return FieldRef{Table: desc.Table, Field: f}, nil
}

// CountSource supplies the first free count for a field. n is the number
// of values about to be handed out, so that stateful sources can reserve
// the whole range; stateless probes may ignore it.
type CountSource interface {
	InitialCount(ctx context.Context, field FieldRef, n int) (bigcount.Counter, error)
}

// Advancer is implemented by sources that remember what they handed out.
// Resolve calls Advance when reserved values pushed a field past the range
// the source reserved.
type Advancer interface {
	Advance(field FieldRef, next bigcount.Counter)
}

// Request is one queued demand for a unique value.
type Request struct {
	Field FieldRef
	Apply func(bigcount.Counter) error
}

// Resolver accumulates requests and resolves them in one pass.
type Resolver struct {
	source  CountSource
	order   []FieldRef
	pending map[FieldRef][]Request
	taken   map[FieldRef]bigcount.Counter // largest reserved count
}

// New returns a resolver backed by source.
func New(source CountSource) *Resolver {
	return &Resolver{
		source:  source,
		pending: make(map[FieldRef][]Request),
		taken:   make(map[FieldRef]bigcount.Counter),
	}
}

// Reserve records that count c of field is already used by the batch.
func (r *Resolver) Reserve(field FieldRef, c bigcount.Counter) {
	if top, ok := r.taken[field]; ok && !top.Less(c) {
		return
	}
	r.taken[field] = c
}

// Defer queues apply to receive the next unique count for field.
func (r *Resolver) Defer(field FieldRef, apply func(bigcount.Counter) error) {
	if _, seen := r.pending[field]; !seen {
		r.order = append(r.order, field)
	}
	r.pending[field] = append(r.pending[field], Request{Field: field, Apply: apply})
}

// Pending returns the number of queued requests.
func (r *Resolver) Pending() int {
	n := 0
	for _, reqs := range r.pending {
		n += len(reqs)
	}
	return n
}

// Fields returns the fields with queued requests, in first-registration order.
func (r *Resolver) Fields() []FieldRef {
	return append([]FieldRef(nil), r.order...)
}

// Resolve probes each field once and applies its requests in order. The
// queue and the reservations are emptied whether or not an error occurs.
func (r *Resolver) Resolve(ctx context.Context) error {
	order, pending, taken := r.order, r.pending, r.taken
	r.order, r.pending, r.taken = nil, make(map[FieldRef][]Request), make(map[FieldRef]bigcount.Counter)

	for _, field := range order {
		reqs := pending[field]
		initial, err := r.source.InitialCount(ctx, field, len(reqs))
		if err != nil {
			return fmt.Errorf("resolve %s: initial count: %w", field, err)
		}
		next := initial
		if top, ok := taken[field]; ok && !top.Less(next) {
			next = top.Inc()
		}
		shifted := !next.Equal(initial)
		for _, req := range reqs {
			if err := req.Apply(next); err != nil {
				return fmt.Errorf("resolve %s: %w", field, err)
			}
			next = next.Inc()
		}
		if adv, ok := r.source.(Advancer); ok && shifted {
			adv.Advance(field, next)
		}
	}
	return nil
}
