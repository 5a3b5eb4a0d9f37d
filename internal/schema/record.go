package schema

import (
	"fmt"
	"maps"
	"slices"
)

// RecordHandle is the capability the engine needs from a record.
// Implementations must be comparable (pointer types are) because the engine
// tracks one pending operation per handle.
type RecordHandle interface {
	// Descriptor returns the static description of the record's type.
	Descriptor() *Descriptor

	// Get returns the field's current value and whether it has been set.
	Get(field string) (any, bool)

	// Set assigns a field value.
	Set(field string, value any)

	// References returns the foreign-key edges to peer records.
	References() []Reference
}

// Reference is one foreign-key edge from a record to the peer whose key
// the field mirrors.
type Reference struct {
	Field  string
	Target RecordHandle
}

// Record is a map-backed RecordHandle.
type Record struct {
	name   string
	desc   *Descriptor
	values map[string]any
	refs   []Reference
}

// NewRecord returns an empty record of type desc. The name is only used
// for diagnostics and fixture lookups.
func NewRecord(desc *Descriptor, name string) *Record {
	return &Record{
		name:   name,
		desc:   desc,
		values: make(map[string]any),
	}
}

// Name returns the diagnostic name given to NewRecord.
func (r *Record) Name() string { return r.name }

func (r *Record) Descriptor() *Descriptor { return r.desc }

func (r *Record) Get(field string) (any, bool) {
	v, ok := r.values[field]
	return v, ok
}

func (r *Record) Set(field string, value any) { r.values[field] = value }

func (r *Record) References() []Reference { return slices.Clone(r.refs) }

// Values returns a copy of every field that has been set.
func (r *Record) Values() map[string]any { return maps.Clone(r.values) }

// With sets a field and returns r for chaining.
func (r *Record) With(field string, value any) *Record {
	r.Set(field, value)
	return r
}

// Ref registers a foreign-key edge from field to target, replacing any
// earlier edge on the same field. The edge is checked here, before any
// write: a declared foreign key must point at target's type, and the
// field must be able to hold target's key.
func (r *Record) Ref(field string, target RecordHandle) error {
	if target == nil {
		return &IntegrityError{Table: r.desc.Table, Field: field, Reason: "nil target"}
	}
	to := target.Descriptor()
	if fk, ok := r.desc.ForeignKey(field); ok && fk.References != nil && fk.References.Table != to.Table {
		return &IntegrityError{
			Table:      r.desc.Table,
			Field:      field,
			Referenced: to.Table,
			Reason:     fmt.Sprintf("field is declared to reference %s", fk.References.Table),
		}
	}
	if err := CheckReference(r.desc, field, to); err != nil {
		return err
	}
	for i, ref := range r.refs {
		if ref.Field == field {
			r.refs[i].Target = target
			return nil
		}
	}
	r.refs = append(r.refs, Reference{Field: field, Target: target})
	return nil
}

// MustRef is Ref for test fixtures and static graphs; it panics on error.
func (r *Record) MustRef(field string, target RecordHandle) *Record {
	if err := r.Ref(field, target); err != nil {
		panic(err)
	}
	return r
}

func (r *Record) String() string {
	if r.name != "" {
		return r.desc.Table + "/" + r.name
	}
	return r.desc.Table
}

// KeyValue returns h's key value, if its type has a key and it is set.
func KeyValue(h RecordHandle) (any, bool) {
	d := h.Descriptor()
	if _, ok := d.KeyField(); !ok {
		return nil, false
	}
	return h.Get(d.Key)
}
