package filter

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/schema"
)

func testSchema() *schema.Schema {
	s := schema.New("reagents", "reagent")
	s.AddField(&schema.FieldDescriptor{Key: "status", DataType: schema.DataTypeString, Table: "reagent", Ordinal: 1})
	s.AddField(&schema.FieldDescriptor{Key: "name", DataType: schema.DataTypeString, Table: "reagent", Ordinal: 2})
	s.AddField(&schema.FieldDescriptor{Key: "concentration", DataType: schema.DataTypeDecimal, Table: "reagent", Ordinal: 3})
	s.AddField(&schema.FieldDescriptor{Key: "aliases", DataType: schema.DataTypeList, Table: "reagent", Ordinal: 4})
	s.AddField(&schema.FieldDescriptor{Key: "active", DataType: schema.DataTypeBoolean, Table: "reagent", Ordinal: 5})
	s.AddField(&schema.FieldDescriptor{Key: "a", DataType: schema.DataTypeInteger, Table: "reagent", Ordinal: 6})
	s.AddField(&schema.FieldDescriptor{Key: "b", DataType: schema.DataTypeInteger, Table: "reagent", Ordinal: 7})
	s.AddField(&schema.FieldDescriptor{Key: "c", DataType: schema.DataTypeInteger, Table: "reagent", Ordinal: 8})
	return s
}

func TestParseClause(t *testing.T) {
	testCases := []struct {
		name     string
		param    string
		field    string
		op       Operator
		inverted bool
	}{
		{name: "bare field is exact", param: "status", field: "status", op: OpExact},
		{name: "field with operator", param: "concentration__gte", field: "concentration", op: OpGte},
		{name: "inverted", param: "-status__in", field: "status", op: OpIn, inverted: true},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			field, op, inverted, err := ParseClause(tc.param)
			require.NoError(t, err)
			assert.Equal(t, tc.field, field)
			assert.Equal(t, tc.op, op)
			assert.Equal(t, tc.inverted, inverted)
		})
	}

	_, _, _, err := ParseClause("__gte")
	assert.True(t, errors.IsInvalidFilter(err))
}

func TestCompile_ScalarIn(t *testing.T) {
	s := testSchema()

	compiled, err := Compile(s, map[string][]string{"status__in": {"open,closed"}})
	require.NoError(t, err)
	require.NotNil(t, compiled.Expression)

	assert.Equal(t, "CAST(`status` AS CHAR) IN (?,?)", compiled.Expression.SQL)
	assert.Equal(t, []interface{}{"open", "closed"}, compiled.Expression.Args)
	assert.Equal(t, []string{"status"}, compiled.FieldKeys)
}

func TestCompile_AnchoredContains(t *testing.T) {
	s := testSchema()

	testCases := []struct {
		name    string
		value   string
		pattern string
	}{
		{name: "both anchors make an exact pattern", value: "^abc$", pattern: "abc"},
		{name: "no anchors", value: "abc", pattern: "%abc%"},
		{name: "start anchor", value: "^abc", pattern: "abc%"},
		{name: "end anchor", value: "abc$", pattern: "%abc"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compiled, err := Compile(s, map[string][]string{"name__contains": {tc.value}})
			require.NoError(t, err)
			assert.Equal(t, "CAST(`name` AS CHAR) LIKE BINARY ?", compiled.Expression.SQL)
			assert.Equal(t, []interface{}{tc.pattern}, compiled.Expression.Args)
		})
	}
}

func TestCompile_IContainsIsCaseInsensitive(t *testing.T) {
	compiled, err := Compile(testSchema(), map[string][]string{"name__icontains": {"abc"}})
	require.NoError(t, err)
	assert.Equal(t, "CAST(`name` AS CHAR) LIKE ?", compiled.Expression.SQL)
}

func TestCompile_NestedSearch(t *testing.T) {
	s := testSchema()

	compiled, err := Compile(s, map[string][]string{
		"c__eq":              {"3"},
		"nested_search_data": {`[{"a__eq":"1"},{"b__eq":"2"}]`},
	})
	require.NoError(t, err)
	require.NotNil(t, compiled.Expression)

	// (a=1 OR b=2) AND c=3
	assert.Equal(t,
		"((CAST(`a` AS DECIMAL(65,10)) = ?) OR (CAST(`b` AS DECIMAL(65,10)) = ?)) AND (CAST(`c` AS DECIMAL(65,10)) = ?)",
		compiled.Expression.SQL)
	assert.Equal(t, []interface{}{"1", "2", "3"}, compiled.Expression.Args)
	assert.ElementsMatch(t, []string{"a", "b", "c"}, compiled.FieldKeys)
	assert.Contains(t, compiled.Readable, "search")
}

func TestCompile_NestedSearchMalformed(t *testing.T) {
	_, err := Compile(testSchema(), map[string][]string{
		"nested_search_data": {"not json"},
	})
	assert.True(t, errors.IsInvalidFilter(err))
}

func TestCompile_RangeArity(t *testing.T) {
	s := testSchema()

	_, err := Compile(s, map[string][]string{"concentration__range": {"1,2,3"}})
	assert.True(t, errors.IsInvalidFilter(err))

	compiled, err := Compile(s, map[string][]string{"concentration__range": {"5,1"}})
	require.NoError(t, err)
	assert.Equal(t,
		"CAST(`concentration` AS DECIMAL(65,10)) BETWEEN LEAST(?, ?) AND GREATEST(?, ?)",
		compiled.Expression.SQL)
	assert.Len(t, compiled.Expression.Args, 4)
}

func TestCompile_UnknownFieldIsSkipped(t *testing.T) {
	compiled, err := Compile(testSchema(), map[string][]string{
		"no_such_field__eq": {"1"},
	})
	require.NoError(t, err)
	assert.Nil(t, compiled.Expression)
	assert.Empty(t, compiled.FieldKeys)
}

func TestCompile_UnknownOperatorFails(t *testing.T) {
	_, err := Compile(testSchema(), map[string][]string{"status__regex": {"x"}})
	assert.True(t, errors.IsInvalidFilter(err))
}

func TestCompile_ListMembership(t *testing.T) {
	s := testSchema()

	compiled, err := Compile(s, map[string][]string{"aliases__eq": {"aspirin"}})
	require.NoError(t, err)
	assert.Equal(t, "FIND_IN_SET(?, REPLACE(`aliases`, ';', ',')) > 0", compiled.Expression.SQL)

	compiled, err = Compile(s, map[string][]string{"aliases__in": {"asa,acetyl"}})
	require.NoError(t, err)
	assert.Equal(t, "`aliases` LIKE ? OR `aliases` LIKE ?", compiled.Expression.SQL)
	assert.Equal(t, []interface{}{"%asa%", "%acetyl%"}, compiled.Expression.Args)
}

func TestCompile_Inverted(t *testing.T) {
	compiled, err := Compile(testSchema(), map[string][]string{"-status__eq": {"open"}})
	require.NoError(t, err)
	assert.Equal(t, "NOT (CAST(`status` AS CHAR) = ?)", compiled.Expression.SQL)
}

func TestCompile_About(t *testing.T) {
	compiled, err := Compile(testSchema(), map[string][]string{"concentration__about": {"1.20"}})
	require.NoError(t, err)
	assert.Equal(t, "ROUND(CAST(`concentration` AS DECIMAL(65,10)), 2) = ?", compiled.Expression.SQL)
}

func TestCompile_IsBlank(t *testing.T) {
	s := testSchema()

	compiled, err := Compile(s, map[string][]string{"name__is_blank": {"true"}})
	require.NoError(t, err)
	assert.Equal(t, "(`name` IS NULL OR TRIM(`name`) = '')", compiled.Expression.SQL)

	compiled, err = Compile(s, map[string][]string{"concentration__is_blank": {"false"}})
	require.NoError(t, err)
	assert.Equal(t, "`concentration` IS NOT NULL", compiled.Expression.SQL)
}

func TestCompile_TopLevelOrderIsDeterministic(t *testing.T) {
	s := testSchema()

	for i := 0; i < 10; i++ {
		compiled, err := Compile(s, map[string][]string{
			"c__eq": {"3"}, "a__eq": {"1"}, "b__eq": {"2"},
		})
		require.NoError(t, err)
		// schema declaration order, not map iteration order
		assert.Equal(t, []interface{}{"1", "2", "3"}, compiled.Expression.Args)
	}
}

func TestReadableRoundTrip(t *testing.T) {
	s := testSchema()

	testCases := []struct {
		name     string
		params   map[string][]string
		field    string
		expected string
	}{
		{name: "exact omits operator", params: map[string][]string{"status": {"open"}}, field: "status", expected: "open"},
		{name: "eq omits operator", params: map[string][]string{"status__eq": {"open"}}, field: "status", expected: "open"},
		{name: "named operator", params: map[string][]string{"concentration__gte": {"5"}}, field: "concentration", expected: "gte_5"},
		{name: "inverted", params: map[string][]string{"-status__contains": {"ab"}}, field: "status", expected: "not_contains_ab"},
		{name: "list values joined", params: map[string][]string{"status__in": {"open,closed"}}, field: "status", expected: "in_open_closed"},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			compiled, err := Compile(s, tc.params)
			require.NoError(t, err)
			assert.Equal(t, tc.expected, compiled.Readable[tc.field])
		})
	}
}
