package query

import (
	"fmt"
	"log"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/schema"
)

// Column binds a field key to the select expression producing its value
type Column struct {
	Key  string
	Expr string
}

// BuildColumns resolves the visible fields into concrete select
// expressions, in field order:
//
//   - custom column expressions take precedence for any key they cover;
//   - fields bound to a base table select the physical column directly;
//   - linked fields select through a correlated subquery against the
//     parent row's key, aggregated with GROUP_CONCAT for list values;
//   - fields with no binding at all are dropped with a debug log, which
//     tolerates drift between schema and query.
func BuildColumns(fields []*schema.FieldDescriptor, baseTables []string, customColumns map[string]string) []Column {
	base := make(map[string]bool, len(baseTables))
	for _, t := range baseTables {
		base[t] = true
	}

	columns := make([]Column, 0, len(fields))
	for _, field := range fields {
		if expr, ok := customColumns[field.Key]; ok {
			columns = append(columns, Column{Key: field.Key, Expr: expr})
			continue
		}

		if field.IsLinked() {
			columns = append(columns, Column{Key: field.Key, Expr: linkedExpr(field)})
			continue
		}

		if field.Table != "" && base[field.Table] {
			columns = append(columns, Column{
				Key:  field.Key,
				Expr: fmt.Sprintf("`%s`.`%s`", field.Table, field.ColumnName()),
			})
			continue
		}

		log.Printf("columns: field %q has no table binding or custom column, dropping", field.Key)
	}
	return columns
}

// linkedExpr builds the correlated subquery selecting a linked field's
// value from its joined table, keyed on the parent row.
func linkedExpr(f *schema.FieldDescriptor) string {
	where := fmt.Sprintf("`%s`.`%s` = `%s`.`%s`",
		f.LinkedTable, f.ParentKey, f.Table, f.ParentKey)

	if f.IsList() {
		orderBy := ""
		if f.OrdinalField != "" {
			orderBy = fmt.Sprintf(" ORDER BY `%s`.`%s`", f.LinkedTable, f.OrdinalField)
		}
		return fmt.Sprintf(
			"(SELECT GROUP_CONCAT(`%s`.`%s`%s SEPARATOR '%s') FROM `%s` WHERE %s)",
			f.LinkedTable, f.ColumnName(), orderBy,
			constants.ListDelimiterSQLArray, f.LinkedTable, where)
	}

	return fmt.Sprintf("(SELECT `%s`.`%s` FROM `%s` WHERE %s LIMIT 1)",
		f.LinkedTable, f.ColumnName(), f.LinkedTable, where)
}

// ApplyColumns adds the resolved columns to the builder, aliased to their
// field keys.
func ApplyColumns(b *Builder, columns []Column) *Builder {
	for _, col := range columns {
		b.SelectRaw(col.Expr, col.Key)
	}
	return b
}
