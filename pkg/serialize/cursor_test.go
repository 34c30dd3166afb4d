package serialize

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlab/reports/pkg/query"
	"github.com/screenlab/reports/pkg/schema"
)

// sliceSource is a test RowSource over fixed rows
type sliceSource struct {
	rows []query.RowMap
	idx  int
}

func (s *sliceSource) Next() bool {
	if s.idx >= len(s.rows) {
		return false
	}
	s.idx++
	return true
}

func (s *sliceSource) Row() query.RowMap { return s.rows[s.idx-1] }
func (s *sliceSource) Err() error        { return nil }
func (s *sliceSource) Close() error      { return nil }

func projectionFields() []*schema.FieldDescriptor {
	return []*schema.FieldDescriptor{
		{Key: "well_id", DataType: schema.DataTypeString, Ordinal: 1},
		{Key: "compound_names", DataType: schema.DataTypeList, Ordinal: 2},
		{Key: "well_name", DataType: schema.DataTypeString, Ordinal: 3,
			ValueTemplate: "{plate_number}:{well_id}"},
		{Key: "plate_number", DataType: schema.DataTypeString, Ordinal: 4},
	}
}

func TestProjector_ListSplitting(t *testing.T) {
	source := &sliceSource{rows: []query.RowMap{
		{"well_id": "A01", "compound_names": "aspirin;asa;", "plate_number": "1"},
		{"well_id": "A02", "compound_names": nil, "plate_number": "1"},
		{"well_id": "A03", "compound_names": "", "plate_number": "1"},
	}}

	p, err := NewProjector(source, projectionFields())
	require.NoError(t, err)

	require.True(t, p.Next())
	assert.Equal(t, []string{"aspirin", "asa"}, p.Row()["compound_names"])

	// null stays null, empty string becomes an empty list
	require.True(t, p.Next())
	assert.Nil(t, p.Row()["compound_names"])
	require.True(t, p.Next())
	assert.Equal(t, []string{}, p.Row()["compound_names"])

	assert.False(t, p.Next())
	assert.NoError(t, p.Err())
}

func TestProjector_ValueTemplate(t *testing.T) {
	source := &sliceSource{rows: []query.RowMap{
		{"well_id": "B02", "compound_names": nil, "plate_number": "7"},
	}}

	p, err := NewProjector(source, projectionFields())
	require.NoError(t, err)

	require.True(t, p.Next())
	assert.Equal(t, "7:B02", p.Row()["well_name"])
}

func TestProjector_ComputedExpression(t *testing.T) {
	fields := []*schema.FieldDescriptor{
		{Key: "volume", DataType: schema.DataTypeDecimal, Ordinal: 1},
		{Key: "volume_ul", DataType: schema.DataTypeDecimal, Ordinal: 2,
			Expression: "volume * 1000"},
	}
	source := &sliceSource{rows: []query.RowMap{{"volume": 1.5}}}

	p, err := NewProjector(source, fields)
	require.NoError(t, err)

	require.True(t, p.Next())
	assert.Equal(t, 1500.0, p.Row()["volume_ul"])
}

func TestProjector_BadExpressionFailsConstruction(t *testing.T) {
	fields := []*schema.FieldDescriptor{
		{Key: "x", Expression: "((("},
	}
	_, err := NewProjector(&sliceSource{}, fields)
	assert.Error(t, err)
}

func TestProjector_RestrictsToVisibleFields(t *testing.T) {
	source := &sliceSource{rows: []query.RowMap{
		{"well_id": "A01", "compound_names": nil, "plate_number": "1", "hidden_column": "x"},
	}}

	p, err := NewProjector(source, projectionFields())
	require.NoError(t, err)

	require.True(t, p.Next())
	assert.NotContains(t, p.Row(), "hidden_column")
}

func TestImagePass(t *testing.T) {
	fields := []*schema.FieldDescriptor{
		{Key: "well_id", DataType: schema.DataTypeString},
		{Key: "structure_image", DataType: schema.DataTypeString, DisplayType: schema.DisplayTypeImage},
	}
	source := &sliceSource{rows: []query.RowMap{
		{"well_id": "A01", "structure_image": "structs/a01.png"},
		{"well_id": "A02", "structure_image": "missing.png"},
		{"well_id": "A03", "structure_image": nil},
	}}

	resolver := ImageResolverFunc(func(ref string) (string, bool) {
		if ref == "structs/a01.png" {
			return "/media/structs/a01.png", true
		}
		return "", false
	})

	pass := NewImagePass(source, fields, resolver)

	require.True(t, pass.Next())
	assert.Equal(t, "/media/structs/a01.png", pass.Row()["structure_image"])

	// unresolved references are nulled, never an error
	require.True(t, pass.Next())
	assert.Nil(t, pass.Row()["structure_image"])
	require.True(t, pass.Next())
	assert.Nil(t, pass.Row()["structure_image"])
	assert.NoError(t, pass.Err())
}

func TestImagePass_NoImageFieldsIsPassThrough(t *testing.T) {
	fields := []*schema.FieldDescriptor{{Key: "well_id"}}
	source := &sliceSource{}
	assert.Same(t, RowSource(source), NewImagePass(source, fields, ImageResolverFunc(func(string) (string, bool) { return "", false })))
}
