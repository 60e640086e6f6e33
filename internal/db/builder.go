package db

import "strings"

// IndexBuilder is a fluent builder for FT index definitions over HASH keys.
type IndexBuilder struct {
	def IndexDefinition
}

// NewIndex starts building an FT index definition.
func NewIndex(name string) *IndexBuilder {
	return &IndexBuilder{def: IndexDefinition{Name: name}}
}

// Prefix adds key prefixes to the index.
func (b *IndexBuilder) Prefix(prefixes ...string) *IndexBuilder {
	b.def.Prefixes = append(b.def.Prefixes, prefixes...)
	return b
}

// Numeric adds a NUMERIC field to the index.
func (b *IndexBuilder) Numeric(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldNumeric})
	return b
}

// Tag adds a TAG field to the index.
func (b *IndexBuilder) Tag(name string) *IndexBuilder {
	b.def.Fields = append(b.def.Fields, IndexField{Name: name, Type: IndexFieldTag})
	return b
}

// Vector adds a VECTOR field stored at name and queried as alias.
// HNSW uses m and efConstruct when positive; FLAT ignores them.
func (b *IndexBuilder) Vector(
	name, alias string, dim int, algo VectorAlgorithm, distance DistanceMetric, m, efConstruct int,
) *IndexBuilder {
	f := IndexField{
		Name:           name,
		Alias:          alias,
		Type:           IndexFieldVector,
		VectorAlgo:     algo,
		VectorDim:      dim,
		VectorDistance: distance,
	}
	if algo == VectorHNSW {
		f.VectorM = m
		f.VectorEFConstruct = efConstruct
	}
	b.def.Fields = append(b.def.Fields, f)
	return b
}

// Build validates and returns the index definition.
func (b *IndexBuilder) Build() (*IndexDefinition, error) {
	if err := b.def.Validate(); err != nil {
		return nil, err
	}
	return &b.def, nil
}

// MustBuild calls Build and panics on error.
func (b *IndexBuilder) MustBuild() *IndexDefinition {
	def, err := b.Build()
	if err != nil {
		panic(err)
	}
	return def
}

// String returns a debug representation resembling the FT.CREATE command.
func (idx *IndexDefinition) String() string {
	parts := []string{"FT.CREATE", idx.Name, "ON", "HASH"}
	if len(idx.Prefixes) > 0 {
		parts = append(parts, "PREFIX")
		parts = append(parts, idx.Prefixes...)
	}
	parts = append(parts, "SCHEMA")
	for i := range idx.Fields {
		f := &idx.Fields[i]
		parts = append(parts, f.Name)
		if f.Alias != "" {
			parts = append(parts, "AS", f.Alias)
		}
		switch f.Type {
		case IndexFieldTag:
			parts = append(parts, "TAG")
		case IndexFieldNumeric:
			parts = append(parts, "NUMERIC")
		case IndexFieldVector:
			parts = append(parts, "VECTOR", string(f.VectorAlgo))
		}
	}
	return strings.Join(parts, " ")
}
