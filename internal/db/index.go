package db

import (
	"errors"
	"strconv"
)

// DistanceMetric used by FT.SEARCH vector similarity queries.
type DistanceMetric string

const (
	// DistanceL2 is squared Euclidean distance.
	DistanceL2 DistanceMetric = "L2"
	// DistanceIP is inner product distance (1 - dot).
	DistanceIP DistanceMetric = "IP"
	// DistanceCosine is cosine distance (1 - cosine similarity).
	DistanceCosine DistanceMetric = "COSINE"
)

// IsValid checks if the metric is supported.
func (m DistanceMetric) IsValid() bool {
	return m == DistanceL2 || m == DistanceIP || m == DistanceCosine
}

// VectorAlgorithm selects the indexing algorithm for vector fields in FT.CREATE.
type VectorAlgorithm string

const (
	// VectorHNSW uses the HNSW algorithm.
	VectorHNSW VectorAlgorithm = "HNSW"
	// VectorFlat uses the FLAT (brute-force) algorithm.
	VectorFlat VectorAlgorithm = "FLAT"
)

// IsValid checks if the algorithm is supported.
func (a VectorAlgorithm) IsValid() bool {
	return a == VectorHNSW || a == VectorFlat
}

// IndexFieldType enumerates supported FT index field types.
type IndexFieldType int

const (
	// IndexFieldNumeric is a numeric field.
	IndexFieldNumeric IndexFieldType = iota
	// IndexFieldTag is a tag field.
	IndexFieldTag
	// IndexFieldVector is a vector field.
	IndexFieldVector
)

// IndexField describes a single field in an FT index schema.
type IndexField struct {
	Name  string
	Alias string // AS alias in FT.CREATE SCHEMA
	Type  IndexFieldType

	// VECTOR options
	VectorAlgo        VectorAlgorithm
	VectorDim         int
	VectorDistance    DistanceMetric
	VectorM           int // HNSW M parameter: max edges per node (default 16)
	VectorEFConstruct int // HNSW EF_CONSTRUCTION: build-time dynamic list size (default 200)
}

// QueryName returns the name a query refers to the field by.
func (f *IndexField) QueryName() string {
	if f.Alias != "" {
		return f.Alias
	}
	return f.Name
}

// IndexDefinition is a complete FT index definition over HASH keys used by FT.CREATE.
type IndexDefinition struct {
	Name     string
	Prefixes []string
	Fields   []IndexField
}

// VectorField returns the first vector field of the definition.
func (idx *IndexDefinition) VectorField() (IndexField, bool) {
	for _, f := range idx.Fields {
		if f.Type == IndexFieldVector {
			return f, true
		}
	}
	return IndexField{}, false
}

// Validate checks that the index definition is well-formed.
func (idx *IndexDefinition) Validate() error {
	if idx.Name == "" {
		return errors.New("index name is required")
	}
	if !IsValidIdentifier(idx.Name) {
		return errors.New("index name contains invalid characters")
	}
	if len(idx.Fields) == 0 {
		return errors.New("at least one field is required")
	}

	seen := make(map[string]bool)
	for i := range idx.Fields {
		f := &idx.Fields[i]
		if f.Name == "" {
			return errors.New("field name is required at index " + strconv.Itoa(i))
		}
		key := f.QueryName()
		if seen[key] {
			return errors.New("duplicate field name: " + key)
		}
		seen[key] = true

		if f.Type == IndexFieldVector && f.VectorDim <= 0 {
			return errors.New("vector field requires positive DIM")
		}
	}

	return nil
}

// IsValidIdentifier returns true if s matches [a-zA-Z0-9_:-]+.
func IsValidIdentifier(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		isAlpha := (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z')
		isDigit := r >= '0' && r <= '9'
		isSpecial := r == '_' || r == ':' || r == '-'
		if !isAlpha && !isDigit && !isSpecial {
			return false
		}
	}
	return true
}
