// Package schema describes record types to the persistence engine.
//
// A Descriptor is built once per record type and passed around as plain
// data: the table name, the ordered field list, which field is the key and
// how its value is produced, and the foreign-key edges to other types.
// Nothing here is discovered at runtime.
//
// Records are reached through the RecordHandle capability so that the
// ordering, resolver, and batch components never depend on a concrete
// record type.
package schema

import (
	"fmt"
)

// FieldKind is the storage type of a field.
type FieldKind int

const (
	KindInvalid FieldKind = iota
	KindInt32
	KindInt64
	KindString
	KindUUID
	KindBool
	KindFloat64
	KindTime
	KindBytes
)

var kindNames = map[FieldKind]string{
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindString:  "string",
	KindUUID:    "uuid",
	KindBool:    "bool",
	KindFloat64: "float64",
	KindTime:    "time",
	KindBytes:   "bytes",
}

func (k FieldKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("FieldKind(%d)", int(k))
}

// ParseKind maps a kind name such as "int64" back to its FieldKind.
func ParseKind(name string) (FieldKind, error) {
	for k, n := range kindNames {
		if n == name {
			return k, nil
		}
	}
	return KindInvalid, fmt.Errorf("schema: unknown field kind %q", name)
}

// IsInteger reports whether k is an integer kind.
func (k FieldKind) IsInteger() bool { return k == KindInt32 || k == KindInt64 }

func (k FieldKind) width() int {
	switch k {
	case KindInt32:
		return 32
	case KindInt64:
		return 64
	}
	return 0
}

// KeyKind says how a record's key value is produced.
type KeyKind int

const (
	// KeyNone means the type has no key and cannot be referenced.
	KeyNone KeyKind = iota
	// KeyAuto means the store generates the key on insert.
	KeyAuto
	// KeyManual means the key is written with the insert. Unset integer
	// and string keys are assigned unique sequential values; unset UUID
	// keys get a fresh GUID.
	KeyManual
)

func (k KeyKind) String() string {
	switch k {
	case KeyNone:
		return "none"
	case KeyAuto:
		return "auto"
	case KeyManual:
		return "manual"
	}
	return fmt.Sprintf("KeyKind(%d)", int(k))
}

// ParseKeyKind maps "none", "auto" or "manual" to a KeyKind.
func ParseKeyKind(name string) (KeyKind, error) {
	switch name {
	case "", "none":
		return KeyNone, nil
	case "auto":
		return KeyAuto, nil
	case "manual":
		return KeyManual, nil
	}
	return KeyNone, fmt.Errorf("schema: unknown key kind %q", name)
}

// Field is one column of a record type.
type Field struct {
	Name string
	Kind FieldKind

	// MaxLength bounds string fields, including letter-encoded keys.
	// Zero means unbounded.
	MaxLength int

	Nullable bool
}

// ForeignKey declares that Field holds the key of a References record.
type ForeignKey struct {
	Field      string
	References *Descriptor
}

// Descriptor is the static description of a record type.
type Descriptor struct {
	Table       string
	Fields      []Field
	Key         string
	KeyKind     KeyKind
	ForeignKeys []ForeignKey
}

// Field returns the named field.
func (d *Descriptor) Field(name string) (Field, bool) {
	for _, f := range d.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// KeyField returns the key field, if the type has one.
func (d *Descriptor) KeyField() (Field, bool) {
	if d.KeyKind == KeyNone || d.Key == "" {
		return Field{}, false
	}
	return d.Field(d.Key)
}

// ForeignKey returns the foreign-key declaration for field.
func (d *Descriptor) ForeignKey(field string) (ForeignKey, bool) {
	for _, fk := range d.ForeignKeys {
		if fk.Field == field {
			return fk, true
		}
	}
	return ForeignKey{}, false
}

// IsForeignKey reports whether field is declared as a foreign key.
func (d *Descriptor) IsForeignKey(field string) bool {
	_, ok := d.ForeignKey(field)
	return ok
}

// Validate checks the descriptor's own consistency.
func (d *Descriptor) Validate() error {
	if d.Table == "" {
		return fmt.Errorf("schema: descriptor has no table name")
	}
	seen := make(map[string]bool, len(d.Fields))
	for _, f := range d.Fields {
		if f.Name == "" {
			return fmt.Errorf("schema: %s: field with empty name", d.Table)
		}
		if seen[f.Name] {
			return fmt.Errorf("schema: %s: duplicate field %q", d.Table, f.Name)
		}
		if _, ok := kindNames[f.Kind]; !ok {
			return fmt.Errorf("schema: %s.%s: invalid kind %s", d.Table, f.Name, f.Kind)
		}
		seen[f.Name] = true
	}
	switch d.KeyKind {
	case KeyNone:
	case KeyAuto:
		key, ok := d.Field(d.Key)
		if !ok {
			return fmt.Errorf("schema: %s: key field %q not declared", d.Table, d.Key)
		}
		if !key.Kind.IsInteger() {
			return fmt.Errorf("schema: %s: auto key %q must be an integer, not %s", d.Table, d.Key, key.Kind)
		}
	case KeyManual:
		key, ok := d.Field(d.Key)
		if !ok {
			return fmt.Errorf("schema: %s: key field %q not declared", d.Table, d.Key)
		}
		if !key.Kind.IsInteger() && key.Kind != KindString && key.Kind != KindUUID {
			return fmt.Errorf("schema: %s: manual key %q has unsupported kind %s", d.Table, d.Key, key.Kind)
		}
	default:
		return fmt.Errorf("schema: %s: invalid key kind %s", d.Table, d.KeyKind)
	}
	for _, fk := range d.ForeignKeys {
		if err := CheckReference(d, fk.Field, fk.References); err != nil {
			return err
		}
	}
	return nil
}

// CheckReference verifies that from.field can hold the key of to. It fails
// with an *IntegrityError when the field is missing, when to has no key, or
// when the declared kinds are structurally incompatible.
func CheckReference(from *Descriptor, field string, to *Descriptor) error {
	if to == nil {
		return &IntegrityError{Table: from.Table, Field: field, Reason: "reference to nil descriptor"}
	}
	f, ok := from.Field(field)
	if !ok {
		return &IntegrityError{Table: from.Table, Field: field, Referenced: to.Table, Reason: "field not declared"}
	}
	key, ok := to.KeyField()
	if !ok {
		return &IntegrityError{Table: from.Table, Field: field, Referenced: to.Table, Reason: "referenced type has no key"}
	}
	if !compatible(f, key) {
		return &IntegrityError{
			Table:      from.Table,
			Field:      field,
			Referenced: to.Table,
			Reason:     fmt.Sprintf("field kind %s cannot hold key kind %s", f.Kind, key.Kind),
		}
	}
	return nil
}

// compatible reports whether a foreign-key field can store a key value.
// Integer fields may widen; string fields must be at least as long.
func compatible(fk, key Field) bool {
	if fk.Kind.IsInteger() && key.Kind.IsInteger() {
		return fk.Kind.width() >= key.Kind.width()
	}
	if fk.Kind != key.Kind {
		return false
	}
	if fk.Kind == KindString && fk.MaxLength > 0 {
		return key.MaxLength > 0 && fk.MaxLength >= key.MaxLength
	}
	return true
}
