// Package host models the platform collaborators the mind-map view relies on:
// table and field metadata, rows, the acting user, and the row store.
package host

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

var (
	ErrUnknownTable = errors.New("unknown table")
	ErrUnknownField = errors.New("unknown field")
	ErrRowNotFound  = errors.New("row not found")
	ErrNotOwner     = errors.New("row is not owned by user")
)

// FieldType is the host type name of a field.
type FieldType string

const (
	TypeString  FieldType = "String"
	TypeInteger FieldType = "Integer"
	TypeFloat   FieldType = "Float"
	TypeBool    FieldType = "Bool"
	TypeColor   FieldType = "Color"
	TypeKey     FieldType = "Key"
)

// OnDelete is the referential action of a Key field.
type OnDelete string

const (
	OnDeleteFail    OnDelete = "fail"
	OnDeleteCascade OnDelete = "cascade"
	OnDeleteSetNull OnDelete = "set null"
)

// Field describes one column of a table.
type Field struct {
	Name       string    `yaml:"name" validate:"required"`
	Label      string    `yaml:"label,omitempty"`
	Type       FieldType `yaml:"type" validate:"required,oneof=String Integer Float Bool Color Key"`
	RefTable   string    `yaml:"reftable,omitempty" validate:"required_if=Type Key"`
	PrimaryKey bool      `yaml:"primary_key,omitempty"`
	Required   bool      `yaml:"required,omitempty"`
	OnDelete   OnDelete  `yaml:"on_delete,omitempty" validate:"omitempty,oneof=fail cascade 'set null'"`
}

// IsKey reports whether the field references another table.
func (f Field) IsKey() bool {
	return f.Type == TypeKey && f.RefTable != ""
}

// Coerce converts a raw request value (usually a string) to the field's type.
// Empty strings coerce to nil.
func (f Field) Coerce(v any) (any, error) {
	s, ok := v.(string)
	if !ok {
		return v, nil
	}
	if s == "" {
		return nil, nil
	}
	switch f.Type {
	case TypeInteger:
		n, err := strconv.ParseInt(s, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not an integer", f.Name, s)
		}
		return n, nil
	case TypeKey:
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return n, nil
		}
		return s, nil
	case TypeFloat:
		n, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("field %s: %q is not a number", f.Name, s)
		}
		return n, nil
	case TypeBool:
		switch strings.ToLower(s) {
		case "true", "on", "1", "yes":
			return true, nil
		case "false", "off", "0", "no":
			return false, nil
		}
		return nil, fmt.Errorf("field %s: %q is not a boolean", f.Name, s)
	default:
		return s, nil
	}
}

// Table describes a host table.
type Table struct {
	Name             string  `yaml:"name" validate:"required"`
	Fields           []Field `yaml:"fields" validate:"required,min=1,dive"`
	MinRoleRead      int     `yaml:"min_role_read"`
	MinRoleWrite     int     `yaml:"min_role_write"`
	OwnershipField   string  `yaml:"ownership_field,omitempty"`
	OwnershipFormula string  `yaml:"ownership_formula,omitempty"`
	LabelField       string  `yaml:"label_field,omitempty"`
}

// PK returns the primary key field. Tables without an explicit key use an
// integer "id".
func (t *Table) PK() Field {
	for _, f := range t.Fields {
		if f.PrimaryKey {
			return f
		}
	}
	return Field{Name: "id", Type: TypeInteger, PrimaryKey: true}
}

// PKName returns the name of the primary key field.
func (t *Table) PKName() string {
	return t.PK().Name
}

// Field looks up a field by name, including the primary key.
func (t *Table) Field(name string) (Field, error) {
	if pk := t.PK(); pk.Name == name {
		return pk, nil
	}
	for _, f := range t.Fields {
		if f.Name == name {
			return f, nil
		}
	}
	return Field{}, fmt.Errorf("%w: %s.%s", ErrUnknownField, t.Name, name)
}

// HasOwnership reports whether rows can be owned by individual users.
func (t *Table) HasOwnership() bool {
	return t.OwnershipField != "" || t.OwnershipFormula != ""
}

// DisplayField returns the field used to label a row of this table: the
// configured label field, else the first String field, else the primary key.
func (t *Table) DisplayField() string {
	if t.LabelField != "" {
		return t.LabelField
	}
	for _, f := range t.Fields {
		if f.Type == TypeString && !f.PrimaryKey {
			return f.Name
		}
	}
	return t.PKName()
}

// NormalizeRow converts storage values to their field types in place:
// booleans stored as integers, integers decoded as floats and so on.
func (t *Table) NormalizeRow(row Row) Row {
	for name, v := range row {
		f, err := t.Field(name)
		if err != nil || v == nil {
			continue
		}
		row[name] = normalizeValue(f, v)
	}
	return row
}

func normalizeValue(f Field, v any) any {
	switch f.Type {
	case TypeBool:
		switch b := v.(type) {
		case int64:
			return b != 0
		case float64:
			return b != 0
		}
	case TypeInteger:
		if n, ok := v.(float64); ok {
			return int64(n)
		}
	case TypeKey:
		if n, ok := v.(float64); ok && n == float64(int64(n)) {
			return int64(n)
		}
	case TypeString, TypeColor:
		if b, ok := v.([]byte); ok {
			return string(b)
		}
	}
	return v
}
