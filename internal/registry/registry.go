// Package registry holds the closed set of polymorphic entity variants and
// decodes variant payloads into typed records.
//
// A Registry is populated at startup (RegisterVariant, RegisterAll, or a
// YAML file through Load) and is read-only afterwards. Lookups take a read
// lock so one registry can serve concurrent units of work.
package registry

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"github.com/mesh-intelligence/keystone/pkg/types"
)

// Registry maps discriminators to variant schemas.
type Registry struct {
	mu       sync.RWMutex
	variants map[string]*types.VariantSchema
	validate *validator.Validate
}

// New returns an empty registry.
func New() *Registry {
	return &Registry{
		variants: make(map[string]*types.VariantSchema),
		validate: validator.New(),
	}
}

// RegisterVariant adds schema under its discriminator. It fails with
// ErrDuplicateVariant when the discriminator is taken and with
// ErrSchemaMismatch when the schema itself is malformed.
func (r *Registry) RegisterVariant(schema types.VariantSchema) error {
	if err := checkSchema(&schema); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.variants[schema.Discriminator]; ok {
		return fmt.Errorf("%w: %s", types.ErrDuplicateVariant, schema.Discriminator)
	}
	s := schema
	s.Fields = append([]types.FieldSpec(nil), schema.Fields...)
	r.variants[s.Discriminator] = &s
	return nil
}

// RegisterAll registers every schema, stopping at the first failure.
func (r *Registry) RegisterAll(schemas []types.VariantSchema) error {
	for _, s := range schemas {
		if err := r.RegisterVariant(s); err != nil {
			return err
		}
	}
	return nil
}

// Resolve returns the schema registered for discriminator.
func (r *Registry) Resolve(discriminator string) (*types.VariantSchema, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.variants[discriminator]
	if !ok {
		return nil, fmt.Errorf("%w: %q", types.ErrUnknownVariant, discriminator)
	}
	return s, nil
}

// Variants returns the registered discriminators in sorted order.
func (r *Registry) Variants() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.variants))
	for d := range r.variants {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Decode merges base with fields and checks the payload against the variant
// named by base.Discriminator. Every required field must be present, no field
// outside the schema is accepted, and each value must coerce to its field
// kind. The returned entity carries typed values.
func (r *Registry) Decode(base types.PolymorphicEntity, fields map[string]any) (*types.TypedEntity, error) {
	schema, err := r.Resolve(base.Discriminator)
	if err != nil {
		return nil, err
	}

	for name := range fields {
		if _, ok := schema.Field(name); !ok {
			return nil, mismatch(schema, name, "unknown field")
		}
	}

	typed := make(map[string]any, len(schema.Fields))
	for _, field := range schema.Fields {
		raw, present := fields[field.Name]
		if !present || raw == nil {
			if field.Required {
				return nil, mismatch(schema, field.Name, "required field missing")
			}
			continue
		}
		v, err := coerce(field, raw)
		if err != nil {
			return nil, mismatch(schema, field.Name, err.Error())
		}
		if field.Required && isBlank(v) {
			return nil, mismatch(schema, field.Name, "required field empty")
		}
		if field.Rules != "" && ruled(field.Kind) {
			if err := r.validate.Var(v, field.Rules); err != nil {
				return nil, mismatch(schema, field.Name, "fails "+field.Rules)
			}
		}
		typed[field.Name] = v
	}

	out := &types.TypedEntity{PolymorphicEntity: base, Schema: schema}
	out.Fields = typed
	return out, nil
}

// Encode converts a typed entity's fields to storable values: dates become
// "2006-01-02" strings and decimals their canonical string form.
func (r *Registry) Encode(e *types.TypedEntity) map[string]any {
	out := make(map[string]any, len(e.Fields))
	for name, v := range e.Fields {
		out[name] = encodeValue(v)
	}
	return out
}

// DisplayName concatenates the variant's display fields, e.g. last name then
// first name for a personal profile.
func (r *Registry) DisplayName(e *types.TypedEntity) string {
	if e.Schema == nil {
		return ""
	}
	return join(e, e.Schema.Display)
}

// DisplayNameKana is DisplayName over the kana display fields.
func (r *Registry) DisplayNameKana(e *types.TypedEntity) string {
	if e.Schema == nil {
		return ""
	}
	return join(e, e.Schema.DisplayKana)
}

func join(e *types.TypedEntity, names []string) string {
	var b strings.Builder
	for _, n := range names {
		b.WriteString(e.Text(n))
	}
	return b.String()
}

func mismatch(s *types.VariantSchema, field, reason string) error {
	return &types.SchemaMismatchError{Discriminator: s.Discriminator, Field: field, Reason: reason}
}

func ruled(k types.FieldKind) bool {
	return k == types.FieldText || k == types.FieldKana || k == types.FieldInteger
}

func isBlank(v any) bool {
	s, ok := v.(string)
	return ok && strings.TrimSpace(s) == ""
}

var knownKinds = map[types.FieldKind]bool{
	types.FieldText:    true,
	types.FieldKana:    true,
	types.FieldInteger: true,
	types.FieldBoolean: true,
	types.FieldDate:    true,
	types.FieldDecimal: true,
	types.FieldEnum:    true,
}

func checkSchema(s *types.VariantSchema) error {
	if s.Discriminator == "" {
		return &types.SchemaMismatchError{Reason: "discriminator is empty"}
	}
	seen := make(map[string]bool, len(s.Fields))
	for _, f := range s.Fields {
		if f.Name == "" {
			return mismatch(s, "", "field name is empty")
		}
		if seen[f.Name] {
			return mismatch(s, f.Name, "field declared twice")
		}
		seen[f.Name] = true
		if !knownKinds[f.Kind] {
			return mismatch(s, f.Name, fmt.Sprintf("unknown field kind %q", f.Kind))
		}
		if f.Kind == types.FieldEnum && len(f.Values) == 0 {
			return mismatch(s, f.Name, "enum field has no values")
		}
	}
	for _, d := range append(append([]string(nil), s.Display...), s.DisplayKana...) {
		if !seen[d] {
			return mismatch(s, d, "display field is not declared")
		}
	}
	return nil
}
