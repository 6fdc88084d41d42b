// Package entity defines the typed property-bag data model and the codec
// that maps it onto relational rows.
//
// An Entity is a Key plus a map of property names to scalar values drawn from
// a closed set of four types: Int64, String, Bool, Double. Each property
// materializes as one physical column named {tag}_{name}, which makes the
// stored schema self-describing: the logical schema can always be recovered
// by splitting column names on the first underscore.
//
// Two reserved columns, pk_int and pk_string, carry the primary key and are
// excluded from property round-tripping. KeyFromRow recovers the key from a
// raw row; Codec.Decode recovers the properties.
package entity
