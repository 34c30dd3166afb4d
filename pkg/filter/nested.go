package filter

import (
	"encoding/json"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
)

// parseNestedSearch decodes the nested_search_data payload: a JSON array of
// parameter maps, or a single JSON map, each compiling to one AND-ed group.
func parseNestedSearch(raw string) ([]map[string]string, error) {
	var groups []map[string]string
	if err := json.Unmarshal([]byte(raw), &groups); err == nil {
		return groups, nil
	}

	var single map[string]string
	if err := json.Unmarshal([]byte(raw), &single); err == nil {
		return []map[string]string{single}, nil
	}

	return nil, errors.NewInvalidFilterError(
		constants.ParamNestedSearch,
		"must be a JSON object or array of objects with string values")
}
