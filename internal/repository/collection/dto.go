package collection

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/domain/collection/field"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
)

// fieldRow is the JSON-serializable representation of a field for HSET.
type fieldRow struct {
	Name string `json:"name"`
	Kind string `json:"kind"`
}

// collectionToHash converts a domain Collection to a map for HSET.
func collectionToHash(col collection.Collection) (map[string]string, error) {
	rows := make([]fieldRow, len(col.Fields()))
	for i, f := range col.Fields() {
		rows[i] = fieldRow{Name: f.Name(), Kind: string(f.Kind())}
	}
	fieldsJSON, err := json.Marshal(rows)
	if err != nil {
		return nil, fmt.Errorf("marshal fields: %w", err)
	}
	return map[string]string{
		"name":        col.Name(),
		"fields_json": string(fieldsJSON),
		"text_field":  col.TextField(),
		"strict":      strconv.FormatBool(col.Strict()),
		"vector_dim":  strconv.Itoa(col.VectorDim()),
		"created_at":  strconv.FormatInt(col.CreatedAt(), 10),
	}, nil
}

// collectionFromHash hydrates a domain Collection from an HGETALL result map.
func collectionFromHash(m map[string]string) (collection.Collection, error) {
	name := m["name"]

	createdAt, err := strconv.ParseInt(m["created_at"], 10, 64)
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid created_at: %w", err)
	}

	vectorDim, err := strconv.Atoi(m["vector_dim"])
	if err != nil {
		return collection.Collection{}, fmt.Errorf("invalid vector_dim: %w", err)
	}

	var rows []fieldRow
	if fieldsJSON := m["fields_json"]; fieldsJSON != "" {
		if err := json.Unmarshal([]byte(fieldsJSON), &rows); err != nil {
			return collection.Collection{}, fmt.Errorf("unmarshal fields: %w", err)
		}
	}

	fields := make([]field.Field, len(rows))
	for i, r := range rows {
		fields[i] = field.Reconstruct(r.Name, value.Kind(r.Kind))
	}

	strict, _ := strconv.ParseBool(m["strict"])

	schema := collection.Schema{Fields: fields, TextField: m["text_field"], Strict: strict}
	return collection.Reconstruct(name, schema, vectorDim, createdAt), nil
}
