package serialize

import (
	"bytes"
	"encoding/csv"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamCSV_HeaderAndLists(t *testing.T) {
	var out bytes.Buffer
	err := StreamCSV(&out, &sliceSource{rows: exportRows()}, exportFields(), CSVOptions{})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, []string{"well_id", "volume", "compound_names"}, records[0])
	assert.Equal(t, []string{"A01", "1.5", "[aspirin;asa]"}, records[1])
	assert.Equal(t, []string{"A02", "2.0", "[]"}, records[2])
}

func TestStreamCSV_UseTitles(t *testing.T) {
	var out bytes.Buffer
	err := StreamCSV(&out, &sliceSource{}, exportFields(), CSVOptions{UseTitles: true})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, []string{"Well", "Volume", "Compound Names"}, records[0])
}

func TestStreamCSV_RawLists(t *testing.T) {
	var out bytes.Buffer
	err := StreamCSV(&out, &sliceSource{rows: exportRows()[:1]}, exportFields(), CSVOptions{RawLists: true})
	require.NoError(t, err)

	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, "aspirin;asa", records[1][2])
}

func TestWriteCSVError(t *testing.T) {
	var out bytes.Buffer
	err := WriteCSVError(&out, map[string]interface{}{
		"code":    "QUERY_EXECUTION_ERROR",
		"message": "query failed for wells",
	})
	require.NoError(t, err)

	reader := csv.NewReader(strings.NewReader(out.String()))
	reader.FieldsPerRecord = -1
	records, err := reader.ReadAll()
	require.NoError(t, err)
	// keys are emitted sorted for a stable table
	assert.Equal(t, [][]string{
		{"error"},
		{"code", "QUERY_EXECUTION_ERROR"},
		{"message", "query failed for wells"},
	}, records)
}
