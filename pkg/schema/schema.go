package schema

import (
	"fmt"
	"regexp"
	"sort"
)

// templatePlaceholder matches "{field_key}" placeholders inside value
// templates and display options
var templatePlaceholder = regexp.MustCompile(`\{([a-zA-Z0-9_-]+)\}`)

// Schema is the declarative field set of one resource. Field insertion
// order is preserved for ordinal tie-breaking.
type Schema struct {
	// Resource is the resource name this schema describes
	Resource string

	// BaseTables are the tables already joined in the resource's base
	// query; fields bound to them select directly without a subquery
	BaseTables []string

	// KeyField identifies a single row for detail requests
	KeyField string

	fields map[string]*FieldDescriptor
	keys   []string
}

// New creates an empty schema for the named resource
func New(resource string, baseTables ...string) *Schema {
	return &Schema{
		Resource:   resource,
		BaseTables: baseTables,
		fields:     make(map[string]*FieldDescriptor),
	}
}

// AddField registers a field descriptor. Re-adding a key replaces the
// descriptor but keeps its original position.
func (s *Schema) AddField(f *FieldDescriptor) *Schema {
	if _, exists := s.fields[f.Key]; !exists {
		s.keys = append(s.keys, f.Key)
	}
	s.fields[f.Key] = f
	return s
}

// Field returns the descriptor for key, or nil
func (s *Schema) Field(key string) *FieldDescriptor {
	return s.fields[key]
}

// HasField reports whether key is declared in the schema
func (s *Schema) HasField(key string) bool {
	_, ok := s.fields[key]
	return ok
}

// Keys returns the field keys in insertion order
func (s *Schema) Keys() []string {
	return s.keys
}

// Fields returns the descriptors in insertion order
func (s *Schema) Fields() []*FieldDescriptor {
	fields := make([]*FieldDescriptor, 0, len(s.keys))
	for _, key := range s.keys {
		fields = append(fields, s.fields[key])
	}
	return fields
}

// Len returns the number of declared fields
func (s *Schema) Len() int {
	return len(s.keys)
}

// TemplateDependencies extracts the field keys referenced by a field's
// value template, display options, and declared dependencies.
func TemplateDependencies(f *FieldDescriptor) []string {
	seen := make(map[string]bool)
	deps := make([]string, 0)

	add := func(key string) {
		if !seen[key] {
			seen[key] = true
			deps = append(deps, key)
		}
	}

	for _, template := range []string{f.ValueTemplate, f.DisplayOptions} {
		for _, match := range templatePlaceholder.FindAllStringSubmatch(template, -1) {
			add(match[1])
		}
	}
	for _, dep := range f.Dependencies {
		add(dep)
	}
	return deps
}

// InterpolateTemplate replaces each {key} placeholder in template with
// the value returned by lookup for that key.
func InterpolateTemplate(template string, lookup func(key string) string) string {
	return templatePlaceholder.ReplaceAllStringFunc(template, func(m string) string {
		return lookup(m[1 : len(m)-1])
	})
}

// Validate checks schema consistency: every key referenced in a value
// template, display options, or dependency list must resolve to another
// field of the same schema.
func (s *Schema) Validate() error {
	for _, key := range s.keys {
		for _, dep := range TemplateDependencies(s.fields[key]) {
			if !s.HasField(dep) {
				return fmt.Errorf(
					"schema %q: field %q references unknown field %q",
					s.Resource, key, dep)
			}
		}
	}
	return nil
}

// sortByOrdinal orders fields by ordinal, preserving schema insertion
// order for ties.
func (s *Schema) sortByOrdinal(keys []string) []string {
	position := make(map[string]int, len(s.keys))
	for i, key := range s.keys {
		position[key] = i
	}
	sorted := make([]string, len(keys))
	copy(sorted, keys)
	sort.SliceStable(sorted, func(i, j int) bool {
		fi, fj := s.fields[sorted[i]], s.fields[sorted[j]]
		if fi.Ordinal != fj.Ordinal {
			return fi.Ordinal < fj.Ordinal
		}
		return position[sorted[i]] < position[sorted[j]]
	})
	return sorted
}
