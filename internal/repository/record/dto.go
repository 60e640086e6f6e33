package record

import (
	"encoding/json"
	"fmt"

	"github.com/kailas-cloud/vecdesk/internal/db"
	domrec "github.com/kailas-cloud/vecdesk/internal/domain/record"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

// Bookkeeping hash fields. The field package reserves the "__" prefix for them.
const (
	kindsField  = "__kinds"
	vectorField = "__vector"
)

// buildHashFields converts a domain Record into a flat map for HSET.
// Values are stored as text; __kinds remembers each field's kind for decoding.
func buildHashFields(rec domrec.Record) (map[string]string, error) {
	m := make(map[string]string, 2+len(rec.Fields()))
	kinds := make(map[string]value.Kind, len(rec.Fields()))
	for name, v := range rec.Fields() {
		m[name] = v.Text()
		kinds[name] = v.Kind()
	}
	raw, err := json.Marshal(kinds)
	if err != nil {
		return nil, fmt.Errorf("marshal kinds: %w", err)
	}
	m[kindsField] = string(raw)
	if rec.HasVector() {
		m[vectorField] = db.EncodeVector(rec.Vector())
	}
	return m, nil
}

// FromHash converts a record hash back into a domain Record.
// Only fields listed in __kinds are decoded, so leftovers of an earlier version are ignored.
func FromHash(id string, m map[string]string) (domrec.Record, error) {
	var kinds map[string]value.Kind
	if raw := m[kindsField]; raw != "" {
		if err := json.Unmarshal([]byte(raw), &kinds); err != nil {
			return domrec.Record{}, fmt.Errorf("unmarshal kinds of %s: %w", id, err)
		}
	}

	fields := make(map[string]value.Value, len(kinds))
	for name, kind := range kinds {
		text, ok := m[name]
		if !ok {
			continue
		}
		v, err := value.Parse(kind, text)
		if err != nil {
			return domrec.Record{}, fmt.Errorf("field %s of %s: %w", name, id, err)
		}
		fields[name] = v
	}

	var vector []float32
	if raw, ok := m[vectorField]; ok {
		v, err := db.DecodeVector(raw)
		if err != nil {
			return domrec.Record{}, fmt.Errorf("vector of %s: %w", id, err)
		}
		vector = v
	}

	return domrec.Reconstruct(id, fields, vector), nil
}
