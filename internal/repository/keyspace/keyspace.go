// Package keyspace owns the Redis key layout shared by the repositories:
//
//	{prefix}col:{collection}          collection metadata hash
//	{prefix}rec:{collection}:{id}     record hash
//	{prefix}idx:{collection}          FT index over the record hashes
//	{prefix}emb:{sha256}              cached embedding
package keyspace

// DefaultPrefix is used when no prefix is configured.
const DefaultPrefix = "vecdesk:"

// Keyspace builds keys under a common prefix.
type Keyspace struct {
	prefix string
}

// New creates a Keyspace. An empty prefix falls back to DefaultPrefix.
func New(prefix string) Keyspace {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return Keyspace{prefix: prefix}
}

// Prefix returns the configured prefix.
func (k Keyspace) Prefix() string { return k.prefix }

// Collection returns the metadata key of a collection.
func (k Keyspace) Collection(name string) string { return k.prefix + "col:" + name }

// CollectionPattern matches every collection metadata key.
func (k Keyspace) CollectionPattern() string { return k.prefix + "col:*" }

// RecordPrefix returns the key prefix shared by all records of a collection.
func (k Keyspace) RecordPrefix(collection string) string { return k.prefix + "rec:" + collection + ":" }

// Record returns the key of a single record.
func (k Keyspace) Record(collection, id string) string { return k.RecordPrefix(collection) + id }

// RecordPattern matches every record key of a collection.
func (k Keyspace) RecordPattern(collection string) string { return k.RecordPrefix(collection) + "*" }

// RecordID strips the collection prefix from a record key.
func (k Keyspace) RecordID(collection, key string) string {
	p := k.RecordPrefix(collection)
	if len(key) >= len(p) && key[:len(p)] == p {
		return key[len(p):]
	}
	return key
}

// Index returns the FT index name of a collection.
func (k Keyspace) Index(collection string) string { return k.prefix + "idx:" + collection }

// Embedding returns the cache key for an embedding digest.
func (k Keyspace) Embedding(digest string) string { return k.prefix + "emb:" + digest }
