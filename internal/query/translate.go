// ABOUTME: Translates structured entity queries into parameterized SQL
// ABOUTME: Filters bind values as parameters; identifiers come from the schema

package query

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/openprm/datastore/internal/entity"
	"github.com/openprm/datastore/internal/schema"
)

// MaxResults is the hard ceiling on a single query's buffered result count.
// It protects the cursor registry from unbounded buffering and is not a
// caller-visible error: requested limits are clamped silently.
const MaxResults = 1000

// ErrUnsupportedOperator is returned for a filter comparator outside the
// supported set.
var ErrUnsupportedOperator = errors.New("unsupported operator")

// ErrDuplicateCondition is returned when two filters target the same physical
// column. At most one condition per column is supported.
var ErrDuplicateCondition = errors.New("duplicate condition")

// Operator is a filter comparator.
type Operator int

const (
	LessThan Operator = iota + 1
	LessThanOrEqual
	GreaterThan
	GreaterThanOrEqual
	Equal
	// HasValue is the unary existence test: the property holds any value.
	HasValue
)

var operatorSQL = map[Operator]string{
	LessThan:           "<",
	LessThanOrEqual:    "<=",
	GreaterThan:        ">",
	GreaterThanOrEqual: ">=",
	Equal:              "=",
}

// Filter restricts a query to rows whose property compares true against the
// filter value. The value's type selects the physical column, the same way
// entity encoding does.
type Filter struct {
	Property string
	Op       Operator
	Value    entity.Value
}

// Direction orders a sort dimension.
type Direction int

const (
	Ascending Direction = iota
	Descending
)

// Order sorts results by a logical property.
type Order struct {
	Property  string
	Direction Direction
}

// Query is a structured query against one kind.
type Query struct {
	Kind    string
	Filters []Filter
	Orders  []Order
	Offset  int
	Limit   int
}

// Statement is a translated query: SQL text with bound parameters, plus the
// clamped offset/limit the caller applies while consuming rows. The engine
// level never sees LIMIT/OFFSET; leading rows are discarded and trailing rows
// left unread.
type Statement struct {
	SQL    string
	Args   []any
	Offset int
	Limit  int
}

// ClampLimit restricts a requested limit to the inclusive range
// [0, MaxResults].
func ClampLimit(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxResults {
		return MaxResults
	}
	return n
}

// Translator converts structured queries into SQL, resolving sort properties
// against the live schema.
type Translator struct {
	mapper *schema.Mapper
	logger *slog.Logger
}

// NewTranslator returns a translator using the given schema mapper.
func NewTranslator(m *schema.Mapper) *Translator {
	return &Translator{
		mapper: m,
		logger: slog.Default().With("component", "query"),
	}
}

// Translate builds a parameterized statement for the query. The second return
// is false when no table backs the kind; the caller must then treat the query
// as having zero results instead of executing anything.
//
// Kind and property names are trusted identifiers; only filter values are
// bound as parameters.
func (t *Translator) Translate(ctx context.Context, q schema.Querier, req Query) (*Statement, bool, error) {
	sch, err := t.mapper.GetSchema(ctx, q, req.Kind)
	if err != nil {
		return nil, false, err
	}
	if sch == nil {
		t.logger.Debug("query against missing table", "kind", req.Kind)
		return nil, false, nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "SELECT * FROM %s", req.Kind)

	var args []any
	seen := make(map[string]bool, len(req.Filters))
	for i, filter := range req.Filters {
		column, value, err := entity.Column(filter.Property, filter.Value)
		if err != nil {
			return nil, false, err
		}
		if seen[column] {
			return nil, false, fmt.Errorf("%w: column %s", ErrDuplicateCondition, column)
		}
		seen[column] = true

		var condition string
		switch {
		case filter.Op == HasValue:
			condition = column + " NOT NULL"
		case operatorSQL[filter.Op] != "":
			condition = column + " " + operatorSQL[filter.Op] + " ?"
			args = append(args, value)
		default:
			return nil, false, fmt.Errorf("%w: %d", ErrUnsupportedOperator, filter.Op)
		}

		if i == 0 {
			sb.WriteString(" WHERE ")
		} else {
			sb.WriteString(" AND ")
		}
		sb.WriteString(condition)
	}

	if orderBy := orderClause(sch, req.Orders); orderBy != "" {
		sb.WriteString(" ORDER BY ")
		sb.WriteString(orderBy)
	}

	return &Statement{
		SQL:    sb.String(),
		Args:   args,
		Offset: max(0, req.Offset),
		Limit:  ClampLimit(req.Limit),
	}, true, nil
}

// orderClause resolves sort orders against the live schema. A property may be
// stored under several type tags; every physical column contributes one entry
// in the requested direction. Properties unknown to the schema are silently
// dropped, leaving the result unordered on that dimension.
func orderClause(sch schema.Schema, orders []Order) string {
	var entries []string
	for _, order := range orders {
		direction := "ASC"
		if order.Direction == Descending {
			direction = "DESC"
		}
		for _, column := range sch[order.Property] {
			entries = append(entries, column+" "+direction)
		}
	}
	return strings.Join(entries, ", ")
}
