package schema

import "fmt"

// Registry holds the descriptors of one data model, keyed by table.
type Registry struct {
	byTable map[string]*Descriptor
	order   []*Descriptor
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{byTable: make(map[string]*Descriptor)}
}

// Register validates d and adds it. Table names must be unique.
func (r *Registry) Register(d *Descriptor) error {
	if err := d.Validate(); err != nil {
		return err
	}
	if _, exists := r.byTable[d.Table]; exists {
		return fmt.Errorf("schema: table %q already registered", d.Table)
	}
	r.byTable[d.Table] = d
	r.order = append(r.order, d)
	return nil
}

// Link declares that fromTable.field references toTable's key. Both tables
// must already be registered. Incompatible key types are rejected with an
// *IntegrityError.
func (r *Registry) Link(fromTable, field, toTable string) error {
	from, ok := r.byTable[fromTable]
	if !ok {
		return fmt.Errorf("schema: link from unknown table %q", fromTable)
	}
	to, ok := r.byTable[toTable]
	if !ok {
		return fmt.Errorf("schema: link %s.%s to unknown table %q", fromTable, field, toTable)
	}
	if err := CheckReference(from, field, to); err != nil {
		return err
	}
	for i, fk := range from.ForeignKeys {
		if fk.Field == field {
			from.ForeignKeys[i].References = to
			return nil
		}
	}
	from.ForeignKeys = append(from.ForeignKeys, ForeignKey{Field: field, References: to})
	return nil
}

// Lookup returns the descriptor for table.
func (r *Registry) Lookup(table string) (*Descriptor, bool) {
	d, ok := r.byTable[table]
	return d, ok
}

// Descriptors returns every descriptor in registration order.
func (r *Registry) Descriptors() []*Descriptor {
	out := make([]*Descriptor, len(r.order))
	copy(out, r.order)
	return out
}
