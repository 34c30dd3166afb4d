package filter

import (
	"fmt"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/schema"
)

// columnExpr returns the SQL expression referencing the field's aliased
// output column, cast for comparison according to its data type.
func columnExpr(f *schema.FieldDescriptor, op Operator) string {
	col := fmt.Sprintf("`%s`", f.Key)
	switch {
	case f.DataType.IsNumeric():
		return fmt.Sprintf("CAST(%s AS DECIMAL(65,10))", col)
	case f.DataType == schema.DataTypeBoolean && op != OpIsNull:
		return fmt.Sprintf("COALESCE(%s, FALSE)", col)
	case f.DataType == schema.DataTypeString:
		return fmt.Sprintf("CAST(%s AS CHAR)", col)
	}
	return col
}

// buildPredicate translates one clause into a SQL predicate against the
// wrapped statement's aliased columns.
func buildPredicate(f *schema.FieldDescriptor, c Clause) (*Predicate, error) {
	col := columnExpr(f, c.Operator)
	paramName := c.Field + constants.LookupSep + string(c.Operator)

	var p *Predicate
	value := ""
	if len(c.Values) > 0 {
		value = c.Values[0]
	}

	switch c.Operator {
	case OpExact, OpEqual:
		if f.IsList() {
			// membership test against the delimiter-joined list value
			p = &Predicate{
				SQL:  fmt.Sprintf("FIND_IN_SET(?, REPLACE(`%s`, '%s', ',')) > 0", f.Key, constants.ListDelimiterSQLArray),
				Args: []interface{}{value},
			}
		} else {
			p = &Predicate{SQL: col + " = ?", Args: []interface{}{value}}
		}

	case OpNotEqual:
		p = &Predicate{SQL: col + " <> ?", Args: []interface{}{value}}

	case OpContains, OpIContain:
		pattern := value
		if strings.HasPrefix(pattern, "^") {
			pattern = pattern[1:]
		} else {
			pattern = "%" + pattern
		}
		if strings.HasSuffix(pattern, "$") {
			pattern = pattern[:len(pattern)-1]
		} else {
			pattern = pattern + "%"
		}
		like := "LIKE BINARY"
		if c.Operator == OpIContain {
			like = "LIKE"
		}
		p = &Predicate{SQL: fmt.Sprintf("%s %s ?", col, like), Args: []interface{}{pattern}}

	case OpAbout:
		// round the column to the literal's decimal places before comparing
		decimals := 0
		if idx := strings.Index(value, "."); idx >= 0 {
			decimals = len(value) - idx - 1
		}
		p = &Predicate{
			SQL:  fmt.Sprintf("ROUND(%s, %d) = ?", col, decimals),
			Args: []interface{}{value},
		}

	case OpLt:
		p = &Predicate{SQL: col + " < ?", Args: []interface{}{value}}
	case OpLte:
		p = &Predicate{SQL: col + " <= ?", Args: []interface{}{value}}
	case OpGt:
		p = &Predicate{SQL: col + " > ?", Args: []interface{}{value}}
	case OpGte:
		p = &Predicate{SQL: col + " >= ?", Args: []interface{}{value}}

	case OpIsNull:
		if isFalse(value) {
			p = &Predicate{SQL: fmt.Sprintf("`%s` IS NOT NULL", f.Key)}
		} else {
			p = &Predicate{SQL: fmt.Sprintf("`%s` IS NULL", f.Key)}
		}

	case OpIsBlank:
		p = blankPredicate(f, !isFalse(value))

	case OpIn:
		if len(c.Values) == 0 {
			return nil, errors.NewInvalidFilterError(paramName, "requires at least one value")
		}
		if f.IsList() {
			// any-element-contains semantics for list-valued fields
			clauses := make([]string, len(c.Values))
			args := make([]interface{}, len(c.Values))
			for i, v := range c.Values {
				clauses[i] = fmt.Sprintf("`%s` LIKE ?", f.Key)
				args[i] = "%" + v + "%"
			}
			p = &Predicate{SQL: strings.Join(clauses, " OR "), Args: args}
		} else {
			placeholders := strings.TrimSuffix(strings.Repeat("?,", len(c.Values)), ",")
			args := make([]interface{}, len(c.Values))
			for i, v := range c.Values {
				args[i] = v
			}
			p = &Predicate{
				SQL:  fmt.Sprintf("%s IN (%s)", col, placeholders),
				Args: args,
			}
		}

	case OpRange:
		if len(c.Values) != 2 {
			return nil, errors.NewInvalidFilterError(
				paramName, "range requires exactly 2 values")
		}
		// symmetric: bounds accepted in either order
		p = &Predicate{
			SQL:  fmt.Sprintf("%s BETWEEN LEAST(?, ?) AND GREATEST(?, ?)", col),
			Args: []interface{}{c.Values[0], c.Values[1], c.Values[0], c.Values[1]},
		}

	default:
		return nil, errors.NewInvalidFilterError(
			paramName, fmt.Sprintf("unknown operator '%s'", c.Operator))
	}

	if c.Inverted && p != nil {
		p = &Predicate{SQL: "NOT (" + p.SQL + ")", Args: p.Args}
	}
	return p, nil
}

// blankPredicate builds the is_blank test: strings compare trimmed to the
// empty string, other types compare to null.
func blankPredicate(f *schema.FieldDescriptor, blank bool) *Predicate {
	col := fmt.Sprintf("`%s`", f.Key)
	switch f.DataType {
	case schema.DataTypeString:
		if blank {
			return &Predicate{SQL: fmt.Sprintf("(%s IS NULL OR TRIM(%s) = '')", col, col)}
		}
		return &Predicate{SQL: fmt.Sprintf("TRIM(%s) <> ''", col)}
	case schema.DataTypeList:
		if blank {
			return &Predicate{SQL: fmt.Sprintf("(%s IS NULL OR %s = '')", col, col)}
		}
		return &Predicate{SQL: fmt.Sprintf("%s <> ''", col)}
	}
	if blank {
		return &Predicate{SQL: col + " IS NULL"}
	}
	return &Predicate{SQL: col + " IS NOT NULL"}
}

func isFalse(value string) bool {
	return strings.EqualFold(value, "false")
}
