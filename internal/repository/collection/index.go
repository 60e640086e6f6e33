package collection

import (
	"fmt"

	"github.com/kailas-cloud/vecdesk/internal/db"
	domcol "github.com/kailas-cloud/vecdesk/internal/domain/collection"
	"github.com/kailas-cloud/vecdesk/internal/domain/value"
	"github.com/kailas-cloud/vecdesk/internal/repository/keyspace"
)

// buildIndex creates an IndexDefinition from the declared collection fields.
// Numbers are NUMERIC, strings and bools are TAG. The vector lives at __vector and is queried as @vector.
func buildIndex(keys keyspace.Keyspace, col domcol.Collection, cfg IndexConfig) (*db.IndexDefinition, error) {
	b := db.NewIndex(keys.Index(col.Name())).Prefix(keys.RecordPrefix(col.Name()))

	for _, f := range col.Fields() {
		switch f.Kind() {
		case value.KindNumber:
			b.Numeric(f.Name())
		case value.KindString, value.KindBool:
			b.Tag(f.Name())
		default:
			return nil, fmt.Errorf("unknown field kind: %s", f.Kind())
		}
	}

	b.Vector("__vector", "vector", col.VectorDim(), cfg.Algorithm, cfg.Distance, cfg.M, cfg.EFConstruct)

	return b.Build()
}
