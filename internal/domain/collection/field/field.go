package field

import (
	"fmt"
	"strings"

	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

// ReservedPrefix marks storage bookkeeping fields (kinds map, vector blob).
const ReservedPrefix = "__"

var reservedFieldNames = map[string]bool{
	"_id": true, "_vector": true, "_distance": true,
}

// Field is an immutable value object describing a declared collection field.
type Field struct {
	name string
	kind value.Kind
}

// ValidateName checks a field name for both declared and undeclared fields.
func ValidateName(name string) error {
	if name == "" {
		return fmt.Errorf("field name is required")
	}
	if len(name) > 64 {
		return fmt.Errorf("field name %q too long (max 64)", name)
	}
	if reservedFieldNames[name] || strings.HasPrefix(name, ReservedPrefix) {
		return fmt.Errorf("field name %q is reserved", name)
	}
	return nil
}

// New validates and creates a Field.
// Name must be non-empty, max 64 chars, and not reserved.
// Kind must be string, number or bool.
func New(name string, kind value.Kind) (Field, error) {
	if err := ValidateName(name); err != nil {
		return Field{}, err
	}
	if !kind.IsValid() {
		return Field{}, fmt.Errorf("invalid field kind %q for %q", kind, name)
	}
	return Field{name: name, kind: kind}, nil
}

// Reconstruct creates a Field without validation (storage hydration).
func Reconstruct(name string, kind value.Kind) Field {
	return Field{name: name, kind: kind}
}

// Name returns the field name.
func (f Field) Name() string { return f.name }

// Kind returns the declared value kind.
func (f Field) Kind() value.Kind { return f.kind }
