package query

import (
	"fmt"
	"log"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/schema"
)

// BuildOrdering maps the order_by keys onto ORDER BY clauses over the
// wrapped statement's aliased columns. A "-" prefix selects descending
// order. MySQL sorts NULLs first ascending and last descending, which
// matches the required null placement without extra clauses.
//
// String fields flagged alphanumeric sort naturally: the non-numeric
// prefix compares as text, the first numeric run as an integer, so
// "plate 9" orders before "plate 10".
//
// Keys that do not resolve to a visible field are dropped with a warning.
func BuildOrdering(orderKeys []string, visibleFields map[string]*schema.FieldDescriptor) []string {
	clauses := make([]string, 0, len(orderKeys))
	for _, orderKey := range orderKeys {
		key := orderKey
		direction := "ASC"
		if strings.HasPrefix(orderKey, constants.InvertedPrefix) {
			key = strings.TrimPrefix(orderKey, constants.InvertedPrefix)
			direction = "DESC"
		}

		field, ok := visibleFields[key]
		if !ok {
			log.Printf("ordering: field %q not in visible fields, skipping", orderKey)
			continue
		}

		if field.IsAlphanumeric && field.DataType == schema.DataTypeString {
			// non-numeric prefix as text, first numeric run as integer,
			// then the full value as the final tiebreak
			clauses = append(clauses,
				fmt.Sprintf("REGEXP_SUBSTR(`%s`, '^[^0-9]*') %s", key, direction),
				fmt.Sprintf("CAST(REGEXP_SUBSTR(`%s`, '[0-9]+') AS UNSIGNED) %s", key, direction),
				fmt.Sprintf("`%s` %s", key, direction))
			continue
		}

		clauses = append(clauses, fmt.Sprintf("`%s` %s", key, direction))
	}
	return clauses
}
