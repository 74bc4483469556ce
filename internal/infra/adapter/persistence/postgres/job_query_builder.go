package postgres

import (
	"fmt"
	"strings"
)

// updateBuilder assembles an UPDATE ... SET clause from a variable set of
// present columns while owning the field/placeholder/value invariants:
// every Set adds exactly one
// field, one placeholder, and one value, and SetRaw-marked expressions
// (now() timestamps) are detected and excluded from the value list before
// execution.
type updateBuilder struct {
	table        string
	fields       []string
	placeholders []string
	values       []any
	argIndex     int
}

func newUpdateBuilder(table string) *updateBuilder {
	return &updateBuilder{table: table}
}

// Set binds one column to one parameterized value.
func (b *updateBuilder) Set(column string, value any) *updateBuilder {
	b.argIndex++
	b.fields = append(b.fields, column)
	b.placeholders = append(b.placeholders, fmt.Sprintf("$%d", b.argIndex))
	b.values = append(b.values, value)
	return b
}

// SetRaw binds one column to a raw SQL expression (now(), DEFAULT). The
// expression carries no value, so it must not contain a placeholder.
func (b *updateBuilder) SetRaw(column, expr string) *updateBuilder {
	b.fields = append(b.fields, column)
	b.placeholders = append(b.placeholders, expr)
	return b
}

// Build renders "UPDATE table SET f1 = $1, ... WHERE <where>" and returns
// the statement plus its argument list (the WHERE arguments appended after
// the SET values). It panics on an invariant violation: these are
// programming errors, not runtime conditions.
func (b *updateBuilder) Build(where string, whereArgs ...any) (string, []any) {
	if len(b.fields) == 0 {
		panic("updateBuilder: no fields set")
	}
	if len(b.fields) != len(b.placeholders) {
		panic(fmt.Sprintf("updateBuilder: %d fields vs %d placeholders", len(b.fields), len(b.placeholders)))
	}

	assignments := make([]string, len(b.fields))
	paramCount := 0
	for i, f := range b.fields {
		p := b.placeholders[i]
		if strings.HasPrefix(p, "$") {
			paramCount++
		} else if strings.Contains(p, "$") {
			panic(fmt.Sprintf("updateBuilder: raw expression %q must not contain a placeholder", p))
		}
		assignments[i] = f + " = " + p
	}
	if paramCount != len(b.values) {
		panic(fmt.Sprintf("updateBuilder: %d placeholders vs %d values", paramCount, len(b.values)))
	}

	// WHERE placeholders continue the parameter numbering after the SET
	// values.
	for i := 1; i <= len(whereArgs); i++ {
		where = strings.ReplaceAll(where, fmt.Sprintf("$w%d", i), fmt.Sprintf("$%d", b.argIndex+i))
	}

	query := fmt.Sprintf("UPDATE %s SET %s WHERE %s", b.table, strings.Join(assignments, ", "), where)
	return query, append(b.values, whereArgs...)
}
