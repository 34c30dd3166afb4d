package query

import (
	"fmt"

	"github.com/pingcap/tidb/pkg/parser"
	"github.com/pingcap/tidb/pkg/parser/ast"
	_ "github.com/pingcap/tidb/pkg/parser/test_driver"
)

// ValidateCustomColumn checks that a caller-supplied raw column expression
// parses as exactly one select item. The expression itself is accepted
// opaquely; this only rejects fragments that would break out of the column
// position (multiple statements, multiple select items, non-SELECT text).
func ValidateCustomColumn(expr string) error {
	p := parser.New()
	stmtNodes, _, err := p.Parse(fmt.Sprintf("SELECT %s", expr), "", "")
	if err != nil {
		return fmt.Errorf("custom column does not parse as an expression: %w", err)
	}
	if len(stmtNodes) != 1 {
		return fmt.Errorf("custom column must be a single expression")
	}
	selectStmt, ok := stmtNodes[0].(*ast.SelectStmt)
	if !ok {
		return fmt.Errorf("custom column must be a select expression")
	}
	if selectStmt.Fields == nil || len(selectStmt.Fields.Fields) != 1 {
		return fmt.Errorf("custom column must produce exactly one column")
	}
	if selectStmt.From != nil {
		return fmt.Errorf("custom column must not carry its own FROM clause; use a parenthesized subquery")
	}
	return nil
}

// ValidateCustomColumns validates a custom column map and reports the first
// offending key.
func ValidateCustomColumns(customColumns map[string]string) error {
	for key, expr := range customColumns {
		if err := ValidateCustomColumn(expr); err != nil {
			return fmt.Errorf("custom column %q: %w", key, err)
		}
	}
	return nil
}
