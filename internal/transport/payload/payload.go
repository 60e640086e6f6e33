// Package payload converts the flat JSON record format used by the HTTP API and
// the CLI to and from domain record inputs.
//
// A record is a JSON object of scalar values. Two keys are reserved:
// "_id" carries the record ID and "_vector" a precomputed embedding.
package payload

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/vecdesk/internal/domain"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	domsearch "github.com/kailas-cloud/vecdesk/internal/domain/search"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

const (
	// KeyID is the reserved key holding the record ID.
	KeyID = "_id"
	// KeyVector is the reserved key holding a precomputed vector.
	KeyVector = "_vector"
)

// DecodeOne parses a single JSON object into a record input.
func DecodeOne(data []byte) (domrec.Input, error) {
	var obj map[string]any
	if err := unmarshal(data, &obj); err != nil {
		return domrec.Input{}, fmt.Errorf("decode record: %v: %w", err, domain.ErrInvalidInput)
	}
	if obj == nil {
		return domrec.Input{}, fmt.Errorf("record must be a JSON object: %w", domain.ErrInvalidInput)
	}
	return FromMap(obj)
}

// DecodeMany parses a JSON array of objects. A single object is accepted as a
// one-element batch.
func DecodeMany(data []byte) ([]domrec.Input, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, fmt.Errorf("empty payload: %w", domain.ErrInvalidInput)
	}

	if trimmed[0] == '{' {
		in, err := DecodeOne(trimmed)
		if err != nil {
			return nil, err
		}
		return []domrec.Input{in}, nil
	}

	var objs []map[string]any
	if err := unmarshal(trimmed, &objs); err != nil {
		return nil, fmt.Errorf("decode records: %v: %w", err, domain.ErrInvalidInput)
	}

	inputs := make([]domrec.Input, 0, len(objs))
	for i, obj := range objs {
		if obj == nil {
			return nil, fmt.Errorf("record #%d must be a JSON object: %w", i, domain.ErrInvalidInput)
		}
		in, err := FromMap(obj)
		if err != nil {
			return nil, fmt.Errorf("record #%d: %w", i, err)
		}
		inputs = append(inputs, in)
	}
	return inputs, nil
}

// FromMap converts a decoded JSON object into a record input.
func FromMap(obj map[string]any) (domrec.Input, error) {
	in := domrec.Input{Fields: make(map[string]value.Value, len(obj))}

	for k, raw := range obj {
		switch k {
		case KeyID:
			id, ok := raw.(string)
			if !ok {
				return domrec.Input{}, fmt.Errorf("%s must be a string: %w", KeyID, domain.ErrInvalidInput)
			}
			in.ID = id
		case KeyVector:
			vec, err := toVector(raw)
			if err != nil {
				return domrec.Input{}, err
			}
			in.Vector = vec
		default:
			v, err := value.FromAny(raw)
			if err != nil {
				return domrec.Input{}, fmt.Errorf("field %q: %v: %w", k, err, domain.ErrInvalidInput)
			}
			in.Fields[k] = v
		}
	}
	return in, nil
}

// ToMap renders a record as a flat JSON object. The vector is included only
// when withVector is set.
func ToMap(rec domrec.Record, withVector bool) map[string]any {
	out := make(map[string]any, len(rec.Fields())+2)
	for k, v := range rec.Fields() {
		out[k] = v.Interface()
	}
	out[KeyID] = rec.ID()
	if withVector && rec.HasVector() {
		out[KeyVector] = rec.Vector()
	}
	return out
}

// FieldDefinition declares a typed collection field.
type FieldDefinition struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// Collection describes a collection on the wire.
type Collection struct {
	Name        string            `json:"name"`
	TextField   string            `json:"text_field"`
	Strict      bool              `json:"strict"`
	Fields      []FieldDefinition `json:"fields"`
	VectorDim   int               `json:"vector_dim"`
	CreatedAt   int64             `json:"created_at"`
	RecordCount *int              `json:"record_count,omitempty"`
}

// CollectionFrom renders a collection.
func CollectionFrom(c domcol.Collection) Collection {
	fields := make([]FieldDefinition, 0, len(c.Fields()))
	for _, f := range c.Fields() {
		fields = append(fields, FieldDefinition{Name: f.Name(), Kind: string(f.Kind())})
	}
	return Collection{
		Name:      c.Name(),
		TextField: c.TextField(),
		Strict:    c.Strict(),
		Fields:    fields,
		VectorDim: c.VectorDim(),
		CreatedAt: c.CreatedAt(),
	}
}

// SchemaFrom builds a collection schema from field definitions.
func SchemaFrom(defs []FieldDefinition, textField string, strict bool) (domcol.Schema, error) {
	fields := make([]field.Field, 0, len(defs))
	for _, fd := range defs {
		f, err := field.New(fd.Name, value.Kind(fd.Kind))
		if err != nil {
			return domcol.Schema{}, fmt.Errorf("field %q: %v: %w", fd.Name, err, domain.ErrInvalidInput)
		}
		fields = append(fields, f)
	}
	return domcol.Schema{Fields: fields, TextField: textField, Strict: strict}, nil
}

// SearchHit is one similarity search match.
type SearchHit struct {
	ID       string         `json:"id"`
	Distance float64        `json:"distance"`
	Record   map[string]any `json:"record"`
}

// HitsFrom renders search hits in their given order.
func HitsFrom(hits []domsearch.Hit) []SearchHit {
	out := make([]SearchHit, 0, len(hits))
	for _, h := range hits {
		out = append(out, SearchHit{
			ID:       h.ID(),
			Distance: h.Distance(),
			Record:   ToMap(h.Record(), false),
		})
	}
	return out
}

// Records renders records as flat objects.
func Records(recs []domrec.Record, withVector bool) []map[string]any {
	out := make([]map[string]any, 0, len(recs))
	for _, rec := range recs {
		out = append(out, ToMap(rec, withVector))
	}
	return out
}

func toVector(raw any) ([]float32, error) {
	items, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("%s must be an array of numbers: %w", KeyVector, domain.ErrInvalidInput)
	}
	vec := make([]float32, len(items))
	for i, it := range items {
		f, ok := it.(float64)
		if !ok {
			return nil, fmt.Errorf("%s[%d] must be a number: %w", KeyVector, i, domain.ErrInvalidInput)
		}
		vec[i] = float32(f)
	}
	return vec, nil
}

func unmarshal(data []byte, dst any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(dst); err != nil {
		return err //nolint:wrapcheck // wrapped by caller
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
