package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlab/reports/pkg/errors"
)

func wellSchema() *Schema {
	s := New("wells", "well")
	s.KeyField = "well_id"
	s.AddField(&FieldDescriptor{Key: "well_id", DataType: DataTypeString, Visibility: []string{VisibilityList, VisibilityDetail}, Ordinal: 1, Table: "well"})
	s.AddField(&FieldDescriptor{Key: "plate_number", DataType: DataTypeString, Visibility: []string{VisibilityList}, Ordinal: 2, Table: "well", IsAlphanumeric: true})
	s.AddField(&FieldDescriptor{Key: "volume", DataType: DataTypeDecimal, Visibility: []string{VisibilityDetail}, Ordinal: 3, Table: "well"})
	s.AddField(&FieldDescriptor{Key: "well_name", DataType: DataTypeString, Visibility: []string{VisibilityList}, Ordinal: 4, Table: "well",
		ValueTemplate: "{plate_number}:{row_letter}"})
	s.AddField(&FieldDescriptor{Key: "row_letter", DataType: DataTypeString, Visibility: []string{VisibilityNone}, Ordinal: 5, Table: "well"})
	s.AddField(&FieldDescriptor{Key: "internal_note", DataType: DataTypeString, Visibility: []string{VisibilityNone}, Ordinal: 6, Table: "well"})
	return s
}

func keysOf(fields []*FieldDescriptor) []string {
	keys := make([]string, len(fields))
	for i, f := range fields {
		keys[i] = f.Key
	}
	return keys
}

func TestResolveVisibleFields_TagIntersection(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{Visibilities: []string{VisibilityList}})
	require.NoError(t, err)

	// row_letter rides in as a template dependency of well_name despite
	// its "none" tag; internal_note stays hidden
	assert.Equal(t, []string{"well_id", "plate_number", "well_name", "row_letter"}, keysOf(fields))
}

func TestResolveVisibleFields_TemplateClosure(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{Visibilities: []string{VisibilityList}})
	require.NoError(t, err)

	byKey := make(map[string]bool)
	for _, f := range fields {
		byKey[f.Key] = true
	}
	for _, f := range fields {
		for _, dep := range TemplateDependencies(f) {
			assert.True(t, byKey[dep], "dependency %s of %s must be visible", dep, f.Key)
		}
	}
}

func TestResolveVisibleFields_ExactModeShortCircuits(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		ExactFields:  []string{"internal_note"},
		FilterFields: []string{"volume"},
		Visibilities: []string{VisibilityList},
	})
	require.NoError(t, err)

	// exact mode ignores tags entirely: only the exact set plus filter
	// fields survive
	assert.Equal(t, []string{"volume", "internal_note"}, keysOf(fields))
}

func TestResolveVisibleFields_StarAndExclusion(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		Includes: []string{"*", "-well_name"},
	})
	require.NoError(t, err)

	// star skips "none"-tagged fields, and the "-" convention removes
	// well_name even though star matched it
	assert.Equal(t, []string{"well_id", "plate_number", "volume"}, keysOf(fields))
}

func TestResolveVisibleFields_ExcludedDependencyKeptByClosure(t *testing.T) {
	s := wellSchema()

	// exclusion applies before the dependency closure, so a dependency
	// of a still-visible templated field survives its own exclusion
	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		Visibilities: []string{VisibilityList},
		Excludes:     []string{"row_letter"},
	})
	require.NoError(t, err)

	keys := keysOf(fields)
	assert.Contains(t, keys, "well_name")
	assert.Contains(t, keys, "row_letter")
}

func TestResolveVisibleFields_ExcludedFilterFieldKept(t *testing.T) {
	s := wellSchema()

	// a filtered field must stay in the select list or the wrapped
	// statement's WHERE would reference a missing alias
	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		Visibilities: []string{VisibilityDetail},
		FilterFields: []string{"volume"},
		Excludes:     []string{"volume"},
	})
	require.NoError(t, err)
	assert.Contains(t, keysOf(fields), "volume")
}

func TestResolveVisibleFields_ExactModeDependencyClosure(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		ExactFields: []string{"well_name"},
	})
	require.NoError(t, err)

	// the template {plate_number}:{row_letter} cannot render without its
	// placeholder fields
	assert.Equal(t, []string{"plate_number", "well_name", "row_letter"}, keysOf(fields))
}

func TestResolveVisibleFields_ManualIncludeOverridesNone(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		Visibilities: []string{VisibilityDetail},
		Includes:     []string{"internal_note"},
	})
	require.NoError(t, err)
	assert.Contains(t, keysOf(fields), "internal_note")
}

func TestResolveVisibleFields_FilterAndOrderForceInclude(t *testing.T) {
	s := wellSchema()

	fields, err := s.ResolveVisibleFields(VisibilityRequest{
		Visibilities: []string{VisibilityList},
		FilterFields: []string{"volume"},
		OrderFields:  []string{"-internal_note"},
	})
	require.NoError(t, err)

	keys := keysOf(fields)
	assert.Contains(t, keys, "volume")
	assert.Contains(t, keys, "internal_note")
}

func TestResolveVisibleFields_Empty(t *testing.T) {
	s := wellSchema()

	_, err := s.ResolveVisibleFields(VisibilityRequest{Visibilities: []string{"nonexistent-tag"}})
	require.Error(t, err)
	assert.True(t, errors.IsNoVisibleFields(err))
}

func TestResolveVisibleFields_OrdinalOrder(t *testing.T) {
	s := New("r", "t")
	s.AddField(&FieldDescriptor{Key: "b", Ordinal: 2, Visibility: []string{VisibilityList}, Table: "t"})
	s.AddField(&FieldDescriptor{Key: "c", Ordinal: 1, Visibility: []string{VisibilityList}, Table: "t"})
	s.AddField(&FieldDescriptor{Key: "a", Ordinal: 2, Visibility: []string{VisibilityList}, Table: "t"})

	fields, err := s.ResolveVisibleFields(VisibilityRequest{Visibilities: []string{VisibilityList}})
	require.NoError(t, err)

	// ordinal first, insertion order breaking the b/a tie
	assert.Equal(t, []string{"c", "b", "a"}, keysOf(fields))
}

func TestValidate_RejectsUnresolvedDependency(t *testing.T) {
	s := New("r", "t")
	s.AddField(&FieldDescriptor{Key: "a", Table: "t", ValueTemplate: "{missing}"})

	assert.Error(t, s.Validate())
	assert.NoError(t, wellSchema().Validate())
}
