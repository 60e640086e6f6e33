package collection

import (
	"fmt"
	"regexp"
	"time"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	"github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

var nameRegex = regexp.MustCompile(`^[a-zA-Z0-9_-]+$`)

// vectorFieldName is how the embedding is addressed in index queries.
const vectorFieldName = "vector"

// DefaultTextField is the field embedded when a schema names none.
const DefaultTextField = "text"

// Schema describes the declared fields of a collection and which of them is embedded.
type Schema struct {
	Fields    []field.Field
	TextField string
	// Strict rejects fields that are not declared.
	Strict bool
}

// Collection is the record collection aggregate (immutable value object).
type Collection struct {
	name      string
	fields    []field.Field
	textField string
	strict    bool
	vectorDim int
	createdAt int64
}

func validateName(name string) error {
	if name == "" {
		return fmt.Errorf("collection name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("collection name too long (max 64)")
	}
	if !nameRegex.MatchString(name) {
		return fmt.Errorf("collection name must be alphanumeric with underscores and hyphens")
	}
	return nil
}

func validateFields(fields []field.Field, textField string) error {
	if len(fields) > 64 {
		return fmt.Errorf("too many fields (max 64)")
	}
	seen := make(map[string]bool, len(fields))
	for _, f := range fields {
		if seen[f.Name()] {
			return fmt.Errorf("duplicate field name: %s", f.Name())
		}
		seen[f.Name()] = true
		if f.Name() == vectorFieldName {
			return fmt.Errorf("field name %q is reserved for the embedding", f.Name())
		}
		if f.Name() == textField && f.Kind() != value.KindString {
			return fmt.Errorf("text field %q must be a string field", textField)
		}
	}
	return nil
}

// New validates and creates a Collection.
// Name: ^[a-zA-Z0-9_-]+$, 1-64 chars. Fields: unique names, max 64. VectorDim: > 0.
// An empty text field falls back to DefaultTextField.
func New(name string, schema Schema, vectorDim int) (Collection, error) {
	if err := validateName(name); err != nil {
		return Collection{}, err
	}
	if vectorDim <= 0 {
		return Collection{}, fmt.Errorf("vector dimension must be positive")
	}
	textField := schema.TextField
	if textField == "" {
		textField = DefaultTextField
	}
	if err := field.ValidateName(textField); err != nil {
		return Collection{}, fmt.Errorf("text field: %w", err)
	}
	if err := validateFields(schema.Fields, textField); err != nil {
		return Collection{}, err
	}

	return Collection{
		name:      name,
		fields:    schema.Fields,
		textField: textField,
		strict:    schema.Strict,
		vectorDim: vectorDim,
		createdAt: time.Now().UnixMilli(),
	}, nil
}

// Reconstruct creates a Collection without validation (storage hydration).
func Reconstruct(name string, schema Schema, vectorDim int, createdAt int64) Collection {
	textField := schema.TextField
	if textField == "" {
		textField = DefaultTextField
	}
	return Collection{
		name:      name,
		fields:    schema.Fields,
		textField: textField,
		strict:    schema.Strict,
		vectorDim: vectorDim,
		createdAt: createdAt,
	}
}

// Name returns the collection name.
func (c Collection) Name() string { return c.name }

// Fields returns the declared field definitions.
func (c Collection) Fields() []field.Field { return c.fields }

// TextField returns the name of the embedded field.
func (c Collection) TextField() string { return c.textField }

// Strict reports whether undeclared fields are rejected.
func (c Collection) Strict() bool { return c.strict }

// Schema returns the schema the collection was created with.
func (c Collection) Schema() Schema {
	return Schema{Fields: c.fields, TextField: c.textField, Strict: c.strict}
}

// VectorDim returns the vector dimension.
func (c Collection) VectorDim() int { return c.vectorDim }

// CreatedAt returns the creation timestamp (unix millis).
func (c Collection) CreatedAt() int64 { return c.createdAt }

// FieldByName looks up a declared field by name.
func (c Collection) FieldByName(name string) (field.Field, bool) {
	for _, f := range c.fields {
		if f.Name() == name {
			return f, true
		}
	}
	return field.Field{}, false
}

// kindOf returns the declared kind of a field. The text field is always a string.
func (c Collection) kindOf(name string) (value.Kind, bool) {
	if f, ok := c.FieldByName(name); ok {
		return f.Kind(), true
	}
	if name == c.textField {
		return value.KindString, true
	}
	return "", false
}

// Validate checks a record against the schema and the vector dimension.
// Violations wrap domain.ErrSchemaMismatch.
func (c Collection) Validate(rec record.Record) error {
	for name, v := range rec.Fields() {
		kind, declared := c.kindOf(name)
		if !declared {
			if c.strict {
				return fmt.Errorf("%w: field %q is not declared", domain.ErrSchemaMismatch, name)
			}
			continue
		}
		if v.Kind() != kind {
			return fmt.Errorf("%w: field %q is %s, want %s", domain.ErrSchemaMismatch, name, v.Kind(), kind)
		}
	}
	if rec.HasVector() {
		return c.CheckVector(rec.Vector())
	}
	return nil
}

// CheckVector verifies that a vector matches the collection dimension.
func (c Collection) CheckVector(vec []float32) error {
	if len(vec) != c.vectorDim {
		return fmt.Errorf("%w: vector has %d dimensions, collection %q expects %d",
			domain.ErrSchemaMismatch, len(vec), c.name, c.vectorDim)
	}
	return nil
}

// TextOf extracts the text to embed. The returned text may be blank.
func (c Collection) TextOf(rec record.Record) string {
	v, ok := rec.Field(c.textField)
	if !ok {
		return ""
	}
	return v.Str()
}
