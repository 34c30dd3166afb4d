package query

import (
	"fmt"
	"strings"

	"github.com/screenlab/reports/pkg/filter"
)

// Statement is a built SQL statement and its bound parameters
type Statement struct {
	SQL  string
	Args []interface{}
}

// Builder composes SELECT statements against the base tables of a resource
type Builder struct {
	table        string
	columns      []string
	joins        []string
	whereClauses []string
	params       []interface{}
	orderBy      []string
	limit        *int
	offset       *int
}

// From creates a new SELECT builder rooted at the given table
func From(table string) *Builder {
	return &Builder{
		table:        table,
		columns:      make([]string, 0),
		joins:        make([]string, 0),
		whereClauses: make([]string, 0),
		params:       make([]interface{}, 0),
	}
}

// SelectColumn adds a physical column selection aliased to the field key
func (b *Builder) SelectColumn(table, column, alias string) *Builder {
	b.columns = append(b.columns,
		fmt.Sprintf("`%s`.`%s` AS `%s`", table, column, alias))
	return b
}

// SelectRaw adds a raw select expression, optionally aliased
func (b *Builder) SelectRaw(expression string, alias ...string) *Builder {
	if len(alias) > 0 && alias[0] != "" {
		b.columns = append(b.columns, fmt.Sprintf("%s AS `%s`", expression, alias[0]))
	} else {
		b.columns = append(b.columns, expression)
	}
	return b
}

// Join adds a JOIN clause. joinType is "INNER", "LEFT" or "RIGHT".
func (b *Builder) Join(joinType, table, alias, on string) *Builder {
	ref := fmt.Sprintf("`%s`", table)
	if alias != "" {
		ref = fmt.Sprintf("`%s` AS `%s`", table, alias)
	}
	b.joins = append(b.joins, fmt.Sprintf("%s JOIN %s ON %s", joinType, ref, on))
	return b
}

// Where adds a WHERE condition; conditions are AND-ed together
func (b *Builder) Where(condition string, args ...interface{}) *Builder {
	b.whereClauses = append(b.whereClauses, condition)
	b.params = append(b.params, args...)
	return b
}

// OrderByRaw appends raw ORDER BY clauses
func (b *Builder) OrderByRaw(clauses ...string) *Builder {
	b.orderBy = append(b.orderBy, clauses...)
	return b
}

// Limit adds a LIMIT clause
func (b *Builder) Limit(n int) *Builder {
	b.limit = &n
	return b
}

// Offset adds an OFFSET clause
func (b *Builder) Offset(n int) *Builder {
	b.offset = &n
	return b
}

// Build constructs the final SQL statement
func (b *Builder) Build() Statement {
	var parts []string

	columns := "*"
	if len(b.columns) > 0 {
		columns = strings.Join(b.columns, ", ")
	}
	parts = append(parts, fmt.Sprintf("SELECT %s FROM `%s`", columns, b.table))

	if len(b.joins) > 0 {
		parts = append(parts, strings.Join(b.joins, " "))
	}
	if len(b.whereClauses) > 0 {
		parts = append(parts, fmt.Sprintf("WHERE %s", strings.Join(b.whereClauses, " AND ")))
	}
	if len(b.orderBy) > 0 {
		parts = append(parts, fmt.Sprintf("ORDER BY %s", strings.Join(b.orderBy, ", ")))
	}
	if b.limit != nil {
		parts = append(parts, fmt.Sprintf("LIMIT %d", *b.limit))
	}
	if b.offset != nil {
		parts = append(parts, fmt.Sprintf("OFFSET %d", *b.offset))
	}

	return Statement{SQL: strings.Join(parts, " "), Args: b.params}
}

// WrapStatement wraps an inner statement with the compiled filter predicate
// and ordering clauses, applied over the aliased output columns, and derives
// the COUNT statement from the same filtered but unordered inner statement.
func WrapStatement(inner Statement, orderClauses []string, filterExpr *filter.Predicate) (stmt, countStmt Statement) {
	filtered := fmt.Sprintf("SELECT * FROM (%s) AS `base`", inner.SQL)
	args := append([]interface{}{}, inner.Args...)
	if filterExpr != nil {
		filtered += " WHERE " + filterExpr.SQL
		args = append(args, filterExpr.Args...)
	}

	stmtSQL := filtered
	if len(orderClauses) > 0 {
		stmtSQL += " ORDER BY " + strings.Join(orderClauses, ", ")
	}
	stmt = Statement{SQL: stmtSQL, Args: args}

	countStmt = Statement{
		SQL:  fmt.Sprintf("SELECT COUNT(*) FROM (%s) AS `filtered`", filtered),
		Args: append([]interface{}{}, args...),
	}
	return stmt, countStmt
}

// WithWindow returns a copy of the statement with LIMIT/OFFSET attached.
// A limit of 0 means unbounded; MySQL requires a LIMIT before OFFSET, so
// the documented all-rows limit stands in when only an offset is given.
func WithWindow(stmt Statement, limit, offset int) Statement {
	sql := stmt.SQL
	switch {
	case limit > 0 && offset > 0:
		sql += fmt.Sprintf(" LIMIT %d OFFSET %d", limit, offset)
	case limit > 0:
		sql += fmt.Sprintf(" LIMIT %d", limit)
	case offset > 0:
		sql += fmt.Sprintf(" LIMIT 18446744073709551615 OFFSET %d", offset)
	}
	return Statement{SQL: sql, Args: stmt.Args}
}
