// Package fixture loads declarative record graphs.
//
// A fixture file declares tables and the records to seed into them:
//
//	tables:
//	  - name: author
//	    key: id
//	    key_kind: auto
//	    fields:
//	      - {name: id, kind: int64}
//	      - {name: name, kind: string, max_length: 40}
//	  - name: book
//	    key: id
//	    key_kind: auto
//	    fields:
//	      - {name: id, kind: int64}
//	      - {name: author_id, kind: int64}
//	    references:
//	      - {field: author_id, table: author}
//	records:
//	  - {table: author, name: ann, values: {name: Ann}}
//	  - {table: book, name: b1, refs: {author_id: ann}}
//
// The same structure can be written in CUE. Record names are unique across
// the file; refs name the target record.
package fixture

import (
	"fmt"

	"github.com/roach88/seedgraph/internal/schema"
)

// File is the decoded form of a fixture.
type File struct {
	Tables  []Table  `yaml:"tables" json:"tables"`
	Records []Record `yaml:"records" json:"records"`
}

// Table declares one record type.
type Table struct {
	Name       string      `yaml:"name" json:"name"`
	Key        string      `yaml:"key,omitempty" json:"key,omitempty"`
	KeyKind    string      `yaml:"key_kind,omitempty" json:"key_kind,omitempty"`
	Fields     []Field     `yaml:"fields" json:"fields"`
	References []Reference `yaml:"references,omitempty" json:"references,omitempty"`
}

// Field declares one column.
type Field struct {
	Name      string `yaml:"name" json:"name"`
	Kind      string `yaml:"kind" json:"kind"`
	MaxLength int    `yaml:"max_length,omitempty" json:"max_length,omitempty"`
	Nullable  bool   `yaml:"nullable,omitempty" json:"nullable,omitempty"`
}

// Reference declares a foreign key.
type Reference struct {
	Field string `yaml:"field" json:"field"`
	Table string `yaml:"table" json:"table"`
}

// Record declares one record to seed.
type Record struct {
	Table  string            `yaml:"table" json:"table"`
	Name   string            `yaml:"name" json:"name"`
	Values map[string]any    `yaml:"values,omitempty" json:"values,omitempty"`
	Refs   map[string]string `yaml:"refs,omitempty" json:"refs,omitempty"`
}

// Set is a built fixture: the registry of types and the records in file
// order.
type Set struct {
	Registry *schema.Registry
	Records  []*schema.Record

	byName map[string]*schema.Record
}

// Record returns the record declared under name.
func (s *Set) Record(name string) (*schema.Record, bool) {
	r, ok := s.byName[name]
	return r, ok
}

// Handles returns the records as engine handles.
func (s *Set) Handles() []schema.RecordHandle {
	out := make([]schema.RecordHandle, len(s.Records))
	for i, r := range s.Records {
		out[i] = r
	}
	return out
}

// Build turns the decoded file into descriptors and linked records.
func (f *File) Build() (*Set, error) {
	reg := schema.NewRegistry()
	for _, t := range f.Tables {
		d, err := t.descriptor()
		if err != nil {
			return nil, err
		}
		if err := reg.Register(d); err != nil {
			return nil, err
		}
	}
	for _, t := range f.Tables {
		for _, ref := range t.References {
			if err := reg.Link(t.Name, ref.Field, ref.Table); err != nil {
				return nil, err
			}
		}
	}

	set := &Set{Registry: reg, byName: make(map[string]*schema.Record, len(f.Records))}
	for i, r := range f.Records {
		d, ok := reg.Lookup(r.Table)
		if !ok {
			return nil, fmt.Errorf("fixture: record %d: unknown table %q", i, r.Table)
		}
		if r.Name == "" {
			return nil, fmt.Errorf("fixture: record %d (%s): name is required", i, r.Table)
		}
		if _, dup := set.byName[r.Name]; dup {
			return nil, fmt.Errorf("fixture: duplicate record name %q", r.Name)
		}
		rec := schema.NewRecord(d, r.Name)
		for name, raw := range r.Values {
			field, ok := d.Field(name)
			if !ok {
				return nil, fmt.Errorf("fixture: %s: unknown field %q", rec, name)
			}
			v, err := schema.Coerce(field.Kind, raw)
			if err != nil {
				return nil, fmt.Errorf("fixture: %s.%s: %w", rec, name, err)
			}
			rec.Set(name, v)
		}
		set.byName[r.Name] = rec
		set.Records = append(set.Records, rec)
	}

	for i, r := range f.Records {
		rec := set.Records[i]
		for field, target := range r.Refs {
			peer, ok := set.byName[target]
			if !ok {
				return nil, fmt.Errorf("fixture: %s.%s: unknown record %q", rec, field, target)
			}
			if err := rec.Ref(field, peer); err != nil {
				return nil, err
			}
		}
	}
	return set, nil
}

func (t Table) descriptor() (*schema.Descriptor, error) {
	keyKind, err := schema.ParseKeyKind(t.KeyKind)
	if err != nil {
		return nil, fmt.Errorf("fixture: table %s: %w", t.Name, err)
	}
	d := &schema.Descriptor{Table: t.Name, Key: t.Key, KeyKind: keyKind}
	for _, f := range t.Fields {
		kind, err := schema.ParseKind(f.Kind)
		if err != nil {
			return nil, fmt.Errorf("fixture: %s.%s: %w", t.Name, f.Name, err)
		}
		d.Fields = append(d.Fields, schema.Field{
			Name:      f.Name,
			Kind:      kind,
			MaxLength: f.MaxLength,
			Nullable:  f.Nullable,
		})
	}
	return d, nil
}
