package types

import "time"

// FieldKind is the semantic type of a variant field.
type FieldKind string

// Field kinds understood by the variant registry.
const (
	FieldText    FieldKind = "text"
	FieldKana    FieldKind = "kana"
	FieldInteger FieldKind = "integer"
	FieldBoolean FieldKind = "boolean"
	FieldDate    FieldKind = "date"
	FieldDecimal FieldKind = "decimal"
	FieldEnum    FieldKind = "enum"
)

// FieldSpec declares one variant field.
type FieldSpec struct {
	Name     string    `json:"name" yaml:"name"`
	Kind     FieldKind `json:"kind" yaml:"kind"`
	Required bool      `json:"required" yaml:"required"`

	// Rules is a validator tag (e.g. "max=50") applied to text, kana and
	// integer values.
	Rules string `json:"rules,omitempty" yaml:"rules,omitempty"`

	// Values lists the allowed values of an enum field.
	Values []string `json:"values,omitempty" yaml:"values,omitempty"`
}

// VariantSchema describes one member of a closed set of variants sharing a
// discriminator column.
type VariantSchema struct {
	Discriminator string      `json:"discriminator" yaml:"discriminator"`
	Description   string      `json:"description,omitempty" yaml:"description,omitempty"`
	Fields        []FieldSpec `json:"fields" yaml:"fields"`

	// Display and DisplayKana list the fields concatenated, in order, to
	// form a display name (e.g. last_name then first_name).
	Display     []string `json:"display,omitempty" yaml:"display,omitempty"`
	DisplayKana []string `json:"display_kana,omitempty" yaml:"display_kana,omitempty"`
}

// Field returns the field definition for name.
func (s *VariantSchema) Field(name string) (FieldSpec, bool) {
	for _, f := range s.Fields {
		if f.Name == name {
			return f, true
		}
	}
	return FieldSpec{}, false
}

// PolymorphicEntity is a base record whose Discriminator selects a variant.
// Fields holds the variant payload; base and variant share EntityID.
type PolymorphicEntity struct {
	EntityID      string         `json:"entity_id"`
	Discriminator string         `json:"discriminator"`
	Fields        map[string]any `json:"fields"`
	CreatedAt     time.Time      `json:"created_at"`
	UpdatedAt     time.Time      `json:"updated_at"`

	projection bool
}

// MarkProjection flags the entity as read through a derived view.
func (e *PolymorphicEntity) MarkProjection() { e.projection = true }

// IsProjection reports whether the entity came from a derived view.
func (e *PolymorphicEntity) IsProjection() bool { return e.projection }

// TypedEntity is a PolymorphicEntity whose fields were decoded against the
// variant schema: text and kana as string, integer as int64, boolean as bool,
// date as time.Time, decimal as decimal.Decimal, enum as string.
type TypedEntity struct {
	PolymorphicEntity
	Schema *VariantSchema `json:"-"`
}

// Text returns a string-valued field, or "" when absent.
func (e *TypedEntity) Text(name string) string {
	s, _ := e.Fields[name].(string)
	return s
}
