// Package query translates structured filter/sort/pagination queries into
// parameterized SQL statements.
//
// The supported surface is deliberately narrow: comparisons and an existence
// test, AND-joined, at most one condition per physical column, no joins, no
// OR. Sort orders resolve against the live schema and degrade gracefully when
// a property is unknown. Offset and limit are not pushed into the SQL; the
// caller discards leading rows and stops reading at the clamped limit.
package query
