// Package schema derives and evolves the physical table schema backing each
// entity kind. The logical schema is never stored separately; it is rebuilt
// on demand from table metadata via the type-tagged column naming convention.
package schema
