// Package listquery turns the search, filter and page parameters of a list
// endpoint into a parameterized SQL predicate.
//
// A Spec is declared once per endpoint by the repository that owns the SQL.
// Build reads only the query-string keys the Spec names; every value read
// from the request is carried as a $n bind argument and never appears in the
// SQL text. Column expressions and ordering come from the Spec, never from
// the request.
package listquery

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"
)

// Match selects how a filter value is compared against its columns.
type Match int

const (
	// Exact compares with "=" against the (optionally converted) value.
	Exact Match = iota
	// Contains compares with ILIKE against "%value%".
	Contains
)

// Field declares one recognised query-string parameter.
type Field struct {
	// Param is the query-string key, e.g. "search".
	Param string
	// Columns are SQL expressions. More than one forms an OR-group that
	// shares a single bind parameter.
	Columns []string
	Match   Match
	// AnyValue, when set, is the value meaning "no filter" (e.g. "All").
	AnyValue string
	// NullToken, when set, is translated to "<first column> IS NULL".
	NullToken string
	// Convert turns the raw value into the bind argument for Exact fields.
	Convert func(string) (any, error)
}

// Spec is the fixed list configuration of one endpoint.
type Spec struct {
	Fields   []Field
	OrderBy  string
	PageSize int
}

// FieldError reports a filter value that could not be converted.
type FieldError struct {
	Field   string
	Message string
}

func (e FieldError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Message)
}

// Query is the result of Build.
type Query struct {
	// Predicates are ANDed together; empty means match all rows.
	Predicates []string
	Args       []any
	OrderBy    string
	Limit      int
	Offset     int
}

// Where returns the predicate prefixed with " WHERE ", or "" when there is
// nothing to filter on.
func (q Query) Where() string {
	if len(q.Predicates) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(q.Predicates, " AND ")
}

// SQL appends the predicate, ordering and pagination to base and returns the
// final statement with its arguments. Limit and offset are bound too.
func (q Query) SQL(base string) (string, []any) {
	args := make([]any, len(q.Args), len(q.Args)+2)
	copy(args, q.Args)

	var b strings.Builder
	b.WriteString(base)
	b.WriteString(q.Where())
	if q.OrderBy != "" {
		b.WriteString(" ORDER BY ")
		b.WriteString(q.OrderBy)
	}
	if q.Limit > 0 {
		args = append(args, q.Limit)
		b.WriteString(" LIMIT $" + strconv.Itoa(len(args)))
		args = append(args, q.Offset)
		b.WriteString(" OFFSET $" + strconv.Itoa(len(args)))
	}
	return b.String(), args
}

// CountSQL wraps the predicate in a count over base, ignoring ordering and
// pagination.
func (q Query) CountSQL(base string) (string, []any) {
	args := make([]any, len(q.Args))
	copy(args, q.Args)
	return base + q.Where(), args
}

// Scope adds a predicate that does not come from the request, such as
// restricting rows to the signed-in user.
type Scope func(*Builder)

// ScopeEqual restricts column to value.
func ScopeEqual(column string, value any) Scope {
	return func(b *Builder) {
		b.Equal(column, value)
	}
}

// Offset returns the row offset of page. page is expected to be >= 1.
func Offset(page, pageSize int) int {
	return (page - 1) * pageSize
}

// Build produces the query for page from values. Callers clamp page to at
// least 1 before calling.
func (s Spec) Build(values url.Values, page int, scopes ...Scope) (Query, error) {
	b := &Builder{}
	for _, scope := range scopes {
		scope(b)
	}

	for _, field := range s.Fields {
		raw := strings.TrimSpace(values.Get(field.Param))
		if raw == "" {
			continue
		}
		if field.AnyValue != "" && strings.EqualFold(raw, field.AnyValue) {
			continue
		}
		if len(field.Columns) == 0 {
			continue
		}
		if field.NullToken != "" && strings.EqualFold(raw, field.NullToken) {
			b.IsNull(field.Columns[0])
			continue
		}

		switch field.Match {
		case Contains:
			b.Contains(field.Columns, raw)
		default:
			var value any = raw
			if field.Convert != nil {
				converted, err := field.Convert(raw)
				if err != nil {
					return Query{}, FieldError{Field: field.Param, Message: err.Error()}
				}
				value = converted
			}
			b.AnyEqual(field.Columns, value)
		}
	}

	return Query{
		Predicates: b.predicates,
		Args:       b.args,
		OrderBy:    s.OrderBy,
		Limit:      s.PageSize,
		Offset:     Offset(page, s.PageSize),
	}, nil
}

// Builder accumulates ANDed predicates and their bind arguments.
type Builder struct {
	predicates []string
	args       []any
}

func (b *Builder) bind(value any) string {
	b.args = append(b.args, value)
	return "$" + strconv.Itoa(len(b.args))
}

// Equal adds "column = $n".
func (b *Builder) Equal(column string, value any) {
	b.AnyEqual([]string{column}, value)
}

// AnyEqual adds "(c1 = $n OR c2 = $n ...)" with a single bind.
func (b *Builder) AnyEqual(columns []string, value any) {
	b.group(columns, "=", value)
}

// Contains adds a case-insensitive substring match of term against any of
// columns, sharing one bind.
func (b *Builder) Contains(columns []string, term string) {
	b.group(columns, "ILIKE", "%"+EscapeLike(term)+"%")
}

// IsNull adds "column IS NULL".
func (b *Builder) IsNull(column string) {
	b.predicates = append(b.predicates, column+" IS NULL")
}

func (b *Builder) group(columns []string, op string, value any) {
	placeholder := b.bind(value)
	parts := make([]string, len(columns))
	for i, column := range columns {
		parts[i] = column + " " + op + " " + placeholder
	}
	if len(parts) == 1 {
		b.predicates = append(b.predicates, parts[0])
		return
	}
	b.predicates = append(b.predicates, "("+strings.Join(parts, " OR ")+")")
}

// EscapeLike escapes the LIKE metacharacters so a search term only ever
// matches literally.
func EscapeLike(s string) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, `%`, `\%`)
	s = strings.ReplaceAll(s, `_`, `\_`)
	return s
}
