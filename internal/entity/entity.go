// ABOUTME: Entity and Key data types plus the closed set of property values
// ABOUTME: Values form a sealed sum type: Int64, String, Bool, Double

package entity

// Key identifies an entity within a kind. Exactly one of ID and Name is
// meaningful: ID holds a storage-assigned integer key, Name a caller-supplied
// string key. A zero ID together with an empty Name means the key is
// incomplete and an ID will be assigned on Put.
type Key struct {
	Kind string
	ID   int64
	Name string
}

// HasName reports whether the key is a string-named key.
func (k Key) HasName() bool { return k.Name != "" }

// Incomplete reports whether the key still needs a storage-assigned ID.
func (k Key) Incomplete() bool { return k.ID == 0 && k.Name == "" }

// Value is the sealed interface over the supported property types.
// Only Int64, String, Bool and Double implement it; anything else a caller
// smuggles in fails encoding with ErrUnsupportedType.
type Value interface {
	propertyValue() // sealed
}

// Int64 is a 64-bit integer property value.
type Int64 int64

// String is a UTF-8 string property value.
type String string

// Bool is a boolean property value. It is stored as the integers 1 and 0.
type Bool bool

// Double is a 64-bit floating point property value.
type Double float64

func (Int64) propertyValue()  {}
func (String) propertyValue() {}
func (Bool) propertyValue()   {}
func (Double) propertyValue() {}

// Entity is a keyed, typed property bag. Each property holds a scalar of
// exactly one supported type; a property keeps a single type for the lifetime
// of its kind.
type Entity struct {
	Key        Key
	Properties map[string]Value
}

// New returns an entity of the given kind with an empty property bag.
func New(kind string) *Entity {
	return &Entity{
		Key:        Key{Kind: kind},
		Properties: make(map[string]Value),
	}
}

// Clone returns a deep copy of the entity. Property values are immutable
// scalars, so copying the map is enough.
func (e *Entity) Clone() *Entity {
	props := make(map[string]Value, len(e.Properties))
	for name, val := range e.Properties {
		props[name] = val
	}
	return &Entity{Key: e.Key, Properties: props}
}
