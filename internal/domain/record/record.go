package record

import (
	"fmt"
	"math"
	"regexp"

	"github.com/google/uuid"

	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

var idRegex = regexp.MustCompile(`^[a-zA-Z0-9_.-]+$`)

// MaxFields is the maximum number of fields a record may carry.
const MaxFields = 256

// Input is a record as submitted by a caller, before validation.
type Input struct {
	ID     string
	Fields map[string]value.Value
	Vector []float32
}

// Record is the stored record aggregate (immutable value object).
type Record struct {
	id     string
	fields map[string]value.Value
	vector []float32
}

// New validates and creates a Record.
// A blank ID is replaced with a random UUID. ID: ^[a-zA-Z0-9_.-]+$, 1-256 chars.
// Field names follow field.ValidateName. A supplied vector must be finite.
func New(in Input) (Record, error) {
	id := in.ID
	if id == "" {
		id = uuid.NewString()
	}
	if len(id) > 256 {
		return Record{}, fmt.Errorf("record ID too long (max 256)")
	}
	if !idRegex.MatchString(id) {
		return Record{}, fmt.Errorf("record ID must be alphanumeric with dots, underscores and hyphens")
	}
	if len(in.Fields) > MaxFields {
		return Record{}, fmt.Errorf("too many fields (max %d)", MaxFields)
	}
	for name, v := range in.Fields {
		if err := field.ValidateName(name); err != nil {
			return Record{}, err
		}
		if v.IsZero() {
			return Record{}, fmt.Errorf("field %q has no value", name)
		}
	}
	for i, x := range in.Vector {
		f := float64(x)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return Record{}, fmt.Errorf("vector element %d is not finite", i)
		}
	}

	return Record{
		id:     id,
		fields: cloneFields(in.Fields),
		vector: cloneVector(in.Vector),
	}, nil
}

// Reconstruct creates a Record without validation (storage hydration).
func Reconstruct(id string, fields map[string]value.Value, vector []float32) Record {
	return Record{id: id, fields: fields, vector: vector}
}

// ID returns the record identifier.
func (r Record) ID() string { return r.id }

// Fields returns the record field values.
func (r Record) Fields() map[string]value.Value { return r.fields }

// Field looks up a single field value.
func (r Record) Field(name string) (value.Value, bool) {
	v, ok := r.fields[name]
	return v, ok
}

// Vector returns the embedding vector, nil until derived.
func (r Record) Vector() []float32 { return r.vector }

// HasVector reports whether the record already carries a vector.
func (r Record) HasVector() bool { return len(r.vector) > 0 }

// WithVector returns a copy with the given vector set.
func (r Record) WithVector(v []float32) Record {
	return Record{id: r.id, fields: r.fields, vector: v}
}

func cloneFields(m map[string]value.Value) map[string]value.Value {
	c := make(map[string]value.Value, len(m))
	for k, v := range m {
		c[k] = v
	}
	return c
}

func cloneVector(v []float32) []float32 {
	if len(v) == 0 {
		return nil
	}
	c := make([]float32, len(v))
	copy(c, v)
	return c
}
