package filter

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/schema"
)

// Operator identifies a filter comparison
type Operator string

const (
	OpExact    Operator = "exact"
	OpEqual    Operator = "eq"
	OpNotEqual Operator = "ne"
	OpContains Operator = "contains"
	OpIContain Operator = "icontains"
	OpLt       Operator = "lt"
	OpLte      Operator = "lte"
	OpGt       Operator = "gt"
	OpGte      Operator = "gte"
	OpIn       Operator = "in"
	OpRange    Operator = "range"
	OpAbout    Operator = "about"
	OpIsNull   Operator = "is_null"
	OpIsBlank  Operator = "is_blank"
)

var knownOperators = map[Operator]bool{
	OpExact: true, OpEqual: true, OpNotEqual: true,
	OpContains: true, OpIContain: true,
	OpLt: true, OpLte: true, OpGt: true, OpGte: true,
	OpIn: true, OpRange: true, OpAbout: true,
	OpIsNull: true, OpIsBlank: true,
}

// Clause is one parsed filter parameter
type Clause struct {
	Field    string
	Operator Operator
	Inverted bool
	Values   []string
}

// Predicate is a SQL condition fragment with bound arguments
type Predicate struct {
	SQL  string
	Args []interface{}
}

// Compiled is the output of filter compilation
type Compiled struct {
	// Expression is the full combined predicate, or nil when the request
	// carries no filters
	Expression *Predicate

	// FieldKeys are the schema fields referenced by any clause,
	// including nested search clauses
	FieldKeys []string

	// Readable maps field key to a reduced description of its filter,
	// used for cache keys and debugging only
	Readable map[string]string
}

// ParseClause splits a parameter key of the form "field__operator" into its
// parts. Absence of the separator implies the exact operator; a leading "-"
// on the field inverts the clause.
func ParseClause(paramKey string) (field string, op Operator, inverted bool, err error) {
	op = OpExact
	field = paramKey
	if strings.Contains(paramKey, constants.LookupSep) {
		bits := strings.SplitN(paramKey, constants.LookupSep, 2)
		if bits[0] == "" || bits[1] == "" {
			return "", "", false, errors.NewInvalidFilterError(
				paramKey, "must be of the form field_name__operator")
		}
		field = bits[0]
		op = Operator(bits[1])
	}
	if strings.HasPrefix(field, constants.InvertedPrefix) {
		inverted = true
		field = strings.TrimPrefix(field, constants.InvertedPrefix)
	}
	return field, op, inverted, nil
}

// parseValue percent-decodes the raw value and, for multi-valued operators,
// splits it on the URL list delimiter.
func parseValue(raw string, op Operator) []string {
	if decoded, err := url.QueryUnescape(raw); err == nil {
		raw = decoded
	}
	raw = strings.TrimSpace(raw)
	if op == OpIn || op == OpRange {
		parts := strings.Split(raw, constants.ListDelimiterURLParam)
		values := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				values = append(values, p)
			}
		}
		return values
	}
	return []string{raw}
}

// Compile parses every non-reserved parameter into a typed clause and builds
// the combined predicate: top-level clauses are AND-ed, and the nested
// search groups (if any) are OR-ed together and AND-ed with the top level.
//
// Unknown field names are skipped with a warning; malformed parameters fail
// with InvalidFilterError.
func Compile(s *schema.Schema, params map[string][]string) (*Compiled, error) {
	topLevel, readable, err := compileParamSet(s, params)
	if err != nil {
		return nil, err
	}

	fieldSet := make(map[string]bool)
	for key := range topLevel {
		fieldSet[key] = true
	}

	var expression *Predicate
	if len(topLevel) > 0 {
		expression = and(orderedValues(s, topLevel))
	}

	// Nested search: an OR of independently AND-ed parameter sets
	if raw, ok := firstValue(params, constants.ParamNestedSearch); ok && raw != "" {
		groups, err := parseNestedSearch(raw)
		if err != nil {
			return nil, err
		}
		var alternatives []*Predicate
		groupFields := make([]string, 0)
		for _, group := range groups {
			groupParams := make(map[string][]string, len(group))
			for k, v := range group {
				groupParams[k] = []string{v}
			}
			compiled, readableGroup, err := compileParamSet(s, groupParams)
			if err != nil {
				return nil, err
			}
			if len(compiled) == 0 {
				continue
			}
			alternatives = append(alternatives, and(orderedValues(s, compiled)))
			for key := range compiled {
				fieldSet[key] = true
			}
			for key := range readableGroup {
				groupFields = append(groupFields, key)
			}
		}
		if len(alternatives) > 0 {
			search := or(alternatives)
			if expression != nil {
				expression = and([]*Predicate{search, expression})
			} else {
				expression = search
			}
			readable["search"] = strings.Join(groupFields, "_")
		}
	}

	keys := make([]string, 0, len(fieldSet))
	for _, key := range s.Keys() {
		if fieldSet[key] {
			keys = append(keys, key)
		}
	}

	return &Compiled{
		Expression: expression,
		FieldKeys:  keys,
		Readable:   readable,
	}, nil
}

// compileParamSet compiles one flat parameter map into per-field predicates
func compileParamSet(s *schema.Schema, params map[string][]string) (map[string]*Predicate, map[string]string, error) {
	predicates := make(map[string]*Predicate)
	readable := make(map[string]string)

	for paramKey, rawValues := range params {
		if reservedParams[paramKey] {
			continue
		}
		if len(rawValues) == 0 {
			continue
		}

		field, op, inverted, err := ParseClause(paramKey)
		if err != nil {
			return nil, nil, err
		}
		if !knownOperators[op] {
			return nil, nil, errors.NewInvalidFilterError(
				paramKey, fmt.Sprintf("unknown operator '%s'", op))
		}
		descriptor := s.Field(field)
		if descriptor == nil {
			log.Printf("filter: unknown field %q in %q, skipping", field, paramKey)
			continue
		}

		values := parseValue(rawValues[0], op)
		clause := Clause{Field: field, Operator: op, Inverted: inverted, Values: values}

		predicate, err := buildPredicate(descriptor, clause)
		if err != nil {
			return nil, nil, err
		}
		if predicate == nil {
			continue
		}
		// Last clause per field wins within one parameter set, matching
		// map-shaped request parameters
		predicates[field] = predicate
		readable[field] = describeClause(clause)
	}
	return predicates, readable, nil
}

// reservedParams are not filter expressions
var reservedParams = map[string]bool{
	constants.ParamLimit:        true,
	constants.ParamOffset:       true,
	constants.ParamOrderBy:      true,
	constants.ParamIncludes:     true,
	constants.ParamExcludes:     true,
	constants.ParamExactFields:  true,
	constants.ParamVisibilities: true,
	constants.ParamNestedSearch: true,
	constants.ParamFormat:       true,
	constants.ParamUseTitles:    true,
	constants.ParamRawLists:     true,
	constants.ParamDownloadID:   true,
}

// describeClause renders the reduced human-readable form of a clause:
// the operator name (unless exact), then the literal value.
func describeClause(c Clause) string {
	parts := make([]string, 0, 3)
	if c.Inverted {
		parts = append(parts, "not")
	}
	if c.Operator != OpExact && c.Operator != OpEqual {
		parts = append(parts, string(c.Operator))
	}
	parts = append(parts, strings.Join(c.Values, "_"))
	return strings.Join(parts, "_")
}

// orderedValues returns the per-field predicates in schema declaration
// order so that the combined SQL text is deterministic
func orderedValues(s *schema.Schema, predicates map[string]*Predicate) []*Predicate {
	out := make([]*Predicate, 0, len(predicates))
	for _, key := range s.Keys() {
		if p, ok := predicates[key]; ok {
			out = append(out, p)
		}
	}
	return out
}

func and(predicates []*Predicate) *Predicate {
	return combine(predicates, " AND ")
}

func or(predicates []*Predicate) *Predicate {
	return combine(predicates, " OR ")
}

func combine(predicates []*Predicate, sep string) *Predicate {
	if len(predicates) == 1 {
		return predicates[0]
	}
	clauses := make([]string, len(predicates))
	var args []interface{}
	for i, p := range predicates {
		clauses[i] = "(" + p.SQL + ")"
		args = append(args, p.Args...)
	}
	return &Predicate{SQL: strings.Join(clauses, sep), Args: args}
}

func firstValue(params map[string][]string, key string) (string, bool) {
	values, ok := params[key]
	if !ok || len(values) == 0 {
		return "", false
	}
	return values[0], true
}
