package query

import (
	"database/sql"
)

// RowMap is one decoded result row, keyed by output column alias
type RowMap map[string]interface{}

// DecodeRow scans the current row of the result set into a RowMap,
// converting byte slices to strings.
func DecodeRow(rows *sql.Rows, columns []string) (RowMap, error) {
	values := make([]interface{}, len(columns))
	valuePtrs := make([]interface{}, len(columns))
	for i := range values {
		valuePtrs[i] = &values[i]
	}
	if err := rows.Scan(valuePtrs...); err != nil {
		return nil, err
	}

	row := make(RowMap, len(columns))
	for i, col := range columns {
		if b, ok := values[i].([]byte); ok {
			row[col] = string(b)
		} else {
			row[col] = values[i]
		}
	}
	return row, nil
}

// ScanRows drains a result set into a slice of RowMaps
func ScanRows(rows *sql.Rows) ([]RowMap, error) {
	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	results := make([]RowMap, 0)
	for rows.Next() {
		row, err := DecodeRow(rows, columns)
		if err != nil {
			return nil, err
		}
		results = append(results, row)
	}
	return results, rows.Err()
}
