package schema

import (
	"log"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
)

// VisibilityRequest carries the request-side inputs of field resolution
type VisibilityRequest struct {
	// FilterFields are keys referenced by compiled filters; a field must
	// be queryable to be filtered on even if hidden from output
	FilterFields []string

	// OrderFields are the order_by keys, possibly "-" prefixed
	OrderFields []string

	// Includes are manual field includes; supports the "*" wildcard and
	// the "-key" exclusion convention
	Includes []string

	// Excludes removes fields even if otherwise visible
	Excludes []string

	// Visibilities are the caller's requested visibility tags
	Visibilities []string

	// ExactFields short-circuits tag-based resolution: the visible set is
	// ExactFields plus manual includes, their template dependencies, and
	// the filter/order fields
	ExactFields []string
}

// ResolveVisibleFields computes the ordered set of fields that the composed
// query must select for this request. The result is ordered by field
// ordinal, with schema insertion order breaking ties.
//
// Fails with NoVisibleFieldsError when the request resolves to an empty
// column set.
func (s *Schema) ResolveVisibleFields(req VisibilityRequest) ([]*FieldDescriptor, error) {
	visible := make(map[string]bool)

	includes := make(map[string]bool)
	excluded := make(map[string]bool)
	star := false
	for _, key := range req.Includes {
		if key == "*" {
			star = true
			continue
		}
		if strings.HasPrefix(key, constants.InvertedPrefix) {
			excluded[strings.TrimPrefix(key, constants.InvertedPrefix)] = true
			continue
		}
		includes[key] = true
	}
	for _, key := range req.Excludes {
		excluded[key] = true
	}

	filterFields := make(map[string]bool)
	for _, key := range req.FilterFields {
		filterFields[key] = true
	}

	if len(req.ExactFields) > 0 {
		// Exact mode: tag-based visibility does not apply
		for _, key := range req.ExactFields {
			if !excluded[key] {
				visible[key] = true
			}
		}
		for key := range includes {
			if !excluded[key] {
				visible[key] = true
			}
		}
	} else {
		tags := make(map[string]bool)
		for _, tag := range req.Visibilities {
			tags[tag] = true
		}
		for _, key := range s.keys {
			field := s.fields[key]
			switch {
			case excluded[key]:
				// removed at this phase; the dependency closure and the
				// filter/order force-include below may still pull it back
			case includes[key]:
				visible[key] = true
			case field.HasVisibility(VisibilityNone):
				// hidden unless manually included
			case star:
				visible[key] = true
			default:
				for _, tag := range field.Visibility {
					if tags[tag] {
						visible[key] = true
						break
					}
				}
			}
		}
	}

	// Fields required by a visible field's value template, display
	// options, or declared dependencies are pulled in regardless of
	// their own visibility or exclusion: a visible templated field
	// cannot render without them.
	dependencies := make(map[string]bool)
	for key := range visible {
		if field := s.fields[key]; field != nil {
			for _, dep := range TemplateDependencies(field) {
				dependencies[dep] = true
			}
		}
	}
	for dep := range dependencies {
		if s.HasField(dep) {
			visible[dep] = true
		}
	}

	// Force-include filtered and ordered fields: they must be present in
	// the composed statement to be referenced by WHERE and ORDER BY, even
	// when the request excludes them from display.
	for key := range filterFields {
		if s.HasField(key) {
			visible[key] = true
		}
	}
	for _, key := range req.OrderFields {
		key = strings.TrimPrefix(key, constants.InvertedPrefix)
		if s.HasField(key) {
			visible[key] = true
		}
	}

	keys := make([]string, 0, len(visible))
	for _, key := range s.keys {
		if visible[key] {
			keys = append(keys, key)
			delete(visible, key)
		}
	}
	for key := range visible {
		// requested keys the schema does not declare are dropped
		log.Printf("visibility: unknown field %q requested for %q", key, s.Resource)
	}

	if len(keys) == 0 {
		return nil, errors.NewNoVisibleFieldsError(s.Resource)
	}

	keys = s.sortByOrdinal(keys)
	fields := make([]*FieldDescriptor, len(keys))
	for i, key := range keys {
		fields[i] = s.fields[key]
	}
	return fields, nil
}
