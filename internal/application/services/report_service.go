package services

import (
	"context"
	"io"
	"log"
	"os"

	"github.com/screenlab/reports/internal/infrastructure/database"
	"github.com/screenlab/reports/internal/infrastructure/persistence"
	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/errors"
	"github.com/screenlab/reports/pkg/filter"
	"github.com/screenlab/reports/pkg/query"
	"github.com/screenlab/reports/pkg/schema"
	"github.com/screenlab/reports/pkg/serialize"
)

// ReportRequest is one report query against a registered resource
type ReportRequest struct {
	Resource string

	// ID selects a single row by the schema's key field; empty for lists
	ID string

	// Params is the decoded query-string multi-value map; reserved keys
	// control paging/shape, everything else compiles to filters
	Params map[string][]string

	// Accept is the request's Accept header, consulted when no format
	// parameter is given
	Accept string

	// ExtraMeta is merged into the JSON meta envelope
	ExtraMeta map[string]interface{}

	// CustomColumns are caller-supplied raw column expressions, keyed by
	// field key; they override the resource's registered expressions
	CustomColumns map[string]string
}

// StreamResponse is a prepared report stream. Write produces the body;
// Close releases held resources when Write is never invoked.
type StreamResponse struct {
	ContentType string

	// Filename suggests a download name for file formats; empty means
	// inline
	Filename string

	Write func(w io.Writer) error
	Close func() error
}

// ReportService composes, executes, caches, and streams report queries
type ReportService struct {
	db        *database.Connection
	repo      *persistence.QueryRepository
	registry  *SchemaRegistry
	cache     *persistence.ResultWindowCache
	images    serialize.ImageResolver
	fetchFile func(uri string) ([]byte, error)
	exportDir string
}

// NewReportService creates a report service. images and fetchFile may be
// nil when no resource exposes image fields.
func NewReportService(db *database.Connection, registry *SchemaRegistry, cache *persistence.ResultWindowCache, images serialize.ImageResolver, fetchFile func(string) ([]byte, error), exportDir string) *ReportService {
	return &ReportService{
		db:        db,
		repo:      persistence.NewQueryRepository(db),
		registry:  registry,
		cache:     cache,
		images:    images,
		fetchFile: fetchFile,
		exportDir: exportDir,
	}
}

// ClearCache drops every cached result window. Writers to the backing
// tables are expected to call this after mutations.
func (s *ReportService) ClearCache() {
	s.cache.ClearAll()
}

// Query validates the request, composes and executes the statement, and
// returns a prepared stream. Parameter and shape errors surface here,
// before any body byte is written.
func (s *ReportService) Query(ctx context.Context, req *ReportRequest) (*StreamResponse, error) {
	entry, err := s.registry.Get(req.Resource)
	if err != nil {
		return nil, err
	}

	opts, err := parseRequestOptions(req.Params, req.Accept)
	if err != nil {
		return nil, err
	}

	detail := req.ID != ""
	params := req.Params
	if detail {
		opts.limit = 1
		opts.offset = 0
		params = make(map[string][]string, len(req.Params)+1)
		for k, v := range req.Params {
			params[k] = v
		}
		params[entry.Schema.KeyField] = []string{req.ID}
	}
	if len(opts.visibilities) == 0 {
		if detail {
			opts.visibilities = []string{schema.VisibilityDetail}
		} else {
			opts.visibilities = []string{schema.VisibilityList}
		}
	}

	compiled, err := filter.Compile(entry.Schema, params)
	if err != nil {
		return nil, err
	}

	visible, err := entry.Schema.ResolveVisibleFields(schema.VisibilityRequest{
		FilterFields: compiled.FieldKeys,
		OrderFields:  opts.orderBy,
		Includes:     opts.includes,
		Excludes:     opts.excludes,
		Visibilities: opts.visibilities,
		ExactFields:  opts.exactFields,
	})
	if err != nil {
		return nil, err
	}

	customColumns, err := s.mergeCustomColumns(entry, req.CustomColumns)
	if err != nil {
		return nil, err
	}

	columns := query.BuildColumns(visible, entry.Schema.BaseTables, customColumns)
	if len(columns) == 0 {
		return nil, errors.NewNoVisibleFieldsError(req.Resource)
	}

	builder := query.From(entry.Schema.BaseTables[0])
	for _, j := range entry.Joins {
		builder.Join(j.Type, j.Table, j.Alias, j.On)
	}
	query.ApplyColumns(builder, columns)

	visibleMap := make(map[string]*schema.FieldDescriptor, len(visible))
	for _, f := range visible {
		visibleMap[f.Key] = f
	}
	ordering := query.BuildOrdering(opts.orderBy, visibleMap)

	stmt, countStmt := query.WrapStatement(builder.Build(), ordering, compiled.Expression)

	switch opts.format {
	case constants.FormatJSON:
		return s.jsonResponse(ctx, req, stmt, countStmt, visible, opts, detail)
	case constants.FormatCSV, constants.FormatSDF:
		return s.textResponse(ctx, req, stmt, visible, opts)
	case constants.FormatXLSX:
		return s.xlsxResponse(ctx, req, stmt, visible, opts)
	}
	return nil, errors.NewUnsupportedFormatError(opts.format)
}

func (s *ReportService) mergeCustomColumns(entry *ResourceEntry, override map[string]string) (map[string]string, error) {
	if len(override) == 0 {
		return entry.CustomColumns, nil
	}
	if err := query.ValidateCustomColumns(override); err != nil {
		return nil, err
	}
	merged := make(map[string]string, len(entry.CustomColumns)+len(override))
	for key, expr := range entry.CustomColumns {
		merged[key] = expr
	}
	for key, expr := range override {
		merged[key] = expr
	}
	return merged, nil
}

// jsonResponse serves list and detail JSON, going through the result
// window cache and falling back to direct streaming when the result is
// too large to cache.
func (s *ReportService) jsonResponse(ctx context.Context, req *ReportRequest, stmt, countStmt query.Statement, visible []*schema.FieldDescriptor, opts *requestOptions, detail bool) (*StreamResponse, error) {
	window, err := s.cache.Fetch(ctx, s.db.DB(), stmt, countStmt, opts.limit, opts.offset)
	if err != nil {
		return nil, errors.NewQueryExecutionError(req.Resource, err)
	}

	var (
		source serialize.RowSource
		total  int
	)
	if window != nil {
		if detail && len(window.Rows) == 0 {
			return nil, errors.NewNotFoundError(req.Resource, req.ID)
		}
		source = persistence.NewSliceCursor(window.Rows)
		total = window.TotalCount
	} else {
		// uncacheable result, stream it directly
		total, err = s.repo.Count(ctx, countStmt)
		if err != nil {
			return nil, errors.NewQueryExecutionError(req.Resource, err)
		}
		cursor, err := s.repo.Stream(ctx, query.WithWindow(stmt, opts.limit, opts.offset))
		if err != nil {
			return nil, errors.NewQueryExecutionError(req.Resource, err)
		}
		source = cursor
	}

	pipeline, err := s.pipeline(source, visible)
	if err != nil {
		source.Close()
		return nil, err
	}

	meta := make(map[string]interface{}, len(req.ExtraMeta)+3)
	for key, value := range req.ExtraMeta {
		meta[key] = value
	}
	meta[constants.ParamLimit] = opts.limit
	meta[constants.ParamOffset] = opts.offset
	meta["total_count"] = total

	return &StreamResponse{
		ContentType: constants.JSONMimeType,
		Write: func(w io.Writer) error {
			cw := serialize.NewChunkWriter(w, 0)
			var werr error
			if detail {
				werr = serialize.StreamJSONDetail(cw, pipeline)
			} else {
				werr = serialize.StreamJSON(cw, pipeline, meta)
			}
			if werr != nil {
				return werr
			}
			return cw.Flush()
		},
		Close: pipeline.Close,
	}, nil
}

// textResponse serves the row-at-a-time text formats (CSV, SDF) by
// streaming straight off the database cursor.
func (s *ReportService) textResponse(ctx context.Context, req *ReportRequest, stmt query.Statement, visible []*schema.FieldDescriptor, opts *requestOptions) (*StreamResponse, error) {
	cursor, err := s.repo.Stream(ctx, query.WithWindow(stmt, opts.limit, opts.offset))
	if err != nil {
		return nil, errors.NewQueryExecutionError(req.Resource, err)
	}
	pipeline, err := s.pipeline(cursor, visible)
	if err != nil {
		cursor.Close()
		return nil, err
	}

	contentType := constants.ContentTypeForFormat(opts.format)
	return &StreamResponse{
		ContentType: contentType,
		Filename:    req.Resource + "." + opts.format,
		Write: func(w io.Writer) error {
			cw := serialize.NewChunkWriter(w, 0)
			var werr error
			if opts.format == constants.FormatSDF {
				werr = serialize.StreamSDF(cw, pipeline, visible, opts.useTitles)
			} else {
				werr = serialize.StreamCSV(cw, pipeline, visible, serialize.CSVOptions{
					UseTitles: opts.useTitles,
					RawLists:  opts.rawLists,
				})
			}
			if werr != nil {
				return werr
			}
			return cw.Flush()
		},
		Close: pipeline.Close,
	}, nil
}

// xlsxResponse materializes the workbook files up front so the final
// content type and filename (single file vs archive) are known before
// the first body byte.
func (s *ReportService) xlsxResponse(ctx context.Context, req *ReportRequest, stmt query.Statement, visible []*schema.FieldDescriptor, opts *requestOptions) (*StreamResponse, error) {
	cursor, err := s.repo.Stream(ctx, query.WithWindow(stmt, opts.limit, opts.offset))
	if err != nil {
		return nil, errors.NewQueryExecutionError(req.Resource, err)
	}
	pipeline, err := s.pipeline(cursor, visible)
	if err != nil {
		cursor.Close()
		return nil, err
	}

	files, err := serialize.WriteXLSX(s.exportDir, pipeline, visible, serialize.XLSXOptions{
		UseTitles:    opts.useTitles,
		RawLists:     opts.rawLists,
		ImageFetcher: s.fetchFile,
	})
	if cerr := pipeline.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.NewQueryExecutionError(req.Resource, err)
	}

	path, contentType, filename, err := serialize.PackageFiles(s.exportDir, files, req.Resource)
	if err != nil {
		return nil, err
	}

	return &StreamResponse{
		ContentType: contentType,
		Filename:    filename,
		Write: func(w io.Writer) error {
			reader, err := serialize.OpenAndRemove(path)
			if err != nil {
				return err
			}
			defer reader.Close()
			cw := serialize.NewChunkWriter(w, 0)
			if _, err := io.Copy(cw, reader); err != nil {
				return err
			}
			return cw.Flush()
		},
		Close: func() error {
			if err := os.Remove(path); err == nil {
				log.Printf("INFO: discarded unserved export %s", path)
			}
			return nil
		},
	}, nil
}

// pipeline chains the projection and image resolution passes over a row
// source.
func (s *ReportService) pipeline(source serialize.RowSource, visible []*schema.FieldDescriptor) (serialize.RowSource, error) {
	projector, err := serialize.NewProjector(source, visible)
	if err != nil {
		return nil, err
	}
	return serialize.NewImagePass(projector, visible, s.images), nil
}
