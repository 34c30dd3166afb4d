package services

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"regexp"
	"strings"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/screenlab/reports/internal/infrastructure/database"
	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/schema"
)

const (
	wellInnerSQL = "SELECT `well`.`well_id` AS `well_id`, `well`.`volume` AS `volume` FROM `well`"
	wellBaseSQL  = "SELECT * FROM (" + wellInnerSQL + ") AS `base`"
)

func newTestService(t *testing.T) (*ServiceManager, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	sm := NewServiceManager(database.NewFromDB(db), ManagerConfig{ExportDir: t.TempDir()})
	require.NoError(t, sm.Registry.Register(&ResourceDefinition{
		Resource:   "wells",
		BaseTables: []string{"well"},
		KeyField:   "well_id",
		Fields: []*schema.FieldDescriptor{
			{Key: "well_id", DataType: schema.DataTypeString, Ordinal: 1, Table: "well",
				Visibility: []string{schema.VisibilityList, schema.VisibilityDetail}},
			{Key: "volume", DataType: schema.DataTypeDecimal, Ordinal: 2, Table: "well",
				Visibility: []string{schema.VisibilityList, schema.VisibilityDetail}},
		},
	}))
	return sm, mock
}

func TestReportService_JSONList(t *testing.T) {
	sm, mock := newTestService(t)

	// limit 2 prefetches 10 through the window cache
	mock.ExpectQuery(regexp.QuoteMeta(wellBaseSQL + " LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"well_id", "volume"}).
			AddRow("A01", "1.5").
			AddRow("A02", "2.0"))

	resp, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		Params:   map[string][]string{"limit": {"2"}},
	})
	require.NoError(t, err)
	defer resp.Close()
	assert.Equal(t, "application/json", resp.ContentType)
	assert.Empty(t, resp.Filename)

	var out bytes.Buffer
	require.NoError(t, resp.Write(&out))

	var decoded struct {
		Meta    map[string]interface{}   `json:"meta"`
		Objects []map[string]interface{} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, float64(2), decoded.Meta["total_count"])
	assert.Equal(t, float64(2), decoded.Meta["limit"])
	require.Len(t, decoded.Objects, 2)
	assert.Equal(t, "A01", decoded.Objects[0]["well_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_SecondPageHitsCache(t *testing.T) {
	sm, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(wellBaseSQL + " LIMIT 10")).
		WillReturnRows(sqlmock.NewRows([]string{"well_id", "volume"}).
			AddRow("A01", "1.5").AddRow("A02", "2.0").
			AddRow("A03", "2.5").AddRow("A04", "3.0"))

	first, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		Params:   map[string][]string{"limit": {"2"}},
	})
	require.NoError(t, err)
	var out bytes.Buffer
	require.NoError(t, first.Write(&out))

	// the next page must not reach the database
	second, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		Params:   map[string][]string{"limit": {"2"}, "offset": {"2"}},
	})
	require.NoError(t, err)
	out.Reset()
	require.NoError(t, second.Write(&out))

	var decoded struct {
		Objects []map[string]interface{} `json:"objects"`
	}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	require.Len(t, decoded.Objects, 2)
	assert.Equal(t, "A03", decoded.Objects[0]["well_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_Detail(t *testing.T) {
	sm, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(wellBaseSQL+" WHERE CAST(`well_id` AS CHAR) = ? LIMIT 1")).
		WithArgs("A01").
		WillReturnRows(sqlmock.NewRows([]string{"well_id", "volume"}).AddRow("A01", "1.5"))

	resp, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		ID:       "A01",
		Params:   map[string][]string{},
	})
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, resp.Write(&out))

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(out.Bytes(), &decoded))
	assert.Equal(t, "A01", decoded["well_id"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_DetailNotFound(t *testing.T) {
	sm, mock := newTestService(t)

	mock.ExpectQuery(regexp.QuoteMeta(wellBaseSQL+" WHERE CAST(`well_id` AS CHAR) = ? LIMIT 1")).
		WithArgs("Z99").
		WillReturnRows(sqlmock.NewRows([]string{"well_id", "volume"}))

	_, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		ID:       "Z99",
		Params:   map[string][]string{},
	})
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestReportService_CSVExport(t *testing.T) {
	sm, mock := newTestService(t)

	// exports default to unbounded and bypass the cache
	mock.ExpectQuery(regexp.QuoteMeta(wellBaseSQL)).
		WillReturnRows(sqlmock.NewRows([]string{"well_id", "volume"}).
			AddRow("A01", "1.5").
			AddRow("A02", "2.0"))

	resp, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		Params:   map[string][]string{"format": {"csv"}},
	})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", resp.ContentType)
	assert.Equal(t, "wells.csv", resp.Filename)

	var out bytes.Buffer
	require.NoError(t, resp.Write(&out))

	records, err := csv.NewReader(strings.NewReader(out.String())).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, []string{"well_id", "volume"}, records[0])
	assert.Equal(t, []string{"A01", "1.5"}, records[1])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestReportService_UnknownResource(t *testing.T) {
	sm, _ := newTestService(t)

	_, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "plates",
		Params:   map[string][]string{},
	})
	assert.True(t, errors.IsNotFound(err))
}

func TestReportService_UnsupportedFormat(t *testing.T) {
	sm, _ := newTestService(t)

	_, err := sm.Reports.Query(context.Background(), &ReportRequest{
		Resource: "wells",
		Params:   map[string][]string{"format": {"pdf"}},
	})
	assert.True(t, errors.IsUnsupportedFormat(err))
}

func TestSchemaRegistry_RejectsInvalidDefinition(t *testing.T) {
	registry := NewSchemaRegistry()

	err := registry.Register(&ResourceDefinition{
		Resource:   "bad",
		BaseTables: []string{"t"},
		Fields: []*schema.FieldDescriptor{
			{Key: "a", Table: "t", ValueTemplate: "{missing}"},
		},
	})
	assert.Error(t, err)

	err = registry.Register(&ResourceDefinition{
		Resource:      "bad2",
		BaseTables:    []string{"t"},
		Fields:        []*schema.FieldDescriptor{{Key: "a", Table: "t"}},
		CustomColumns: map[string]string{"a": "1; DROP TABLE t"},
	})
	assert.Error(t, err)
}
