package serialize

import (
	"encoding/csv"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/schema"
)

// CSVOptions control header naming and list rendering
type CSVOptions struct {
	// UseTitles emits field titles instead of field keys in the header
	UseTitles bool

	// RawLists renders list values without the surrounding brackets
	RawLists bool
}

// StreamCSV renders the source as CSV, one header row of field keys (or
// titles) followed by one record per row in field order.
func StreamCSV(w io.Writer, source RowSource, fields []*schema.FieldDescriptor, opts CSVOptions) error {
	defer source.Close()

	cw := csv.NewWriter(w)
	header := make([]string, len(fields))
	for i, f := range fields {
		header[i] = headerName(f, opts.UseTitles)
	}
	if err := cw.Write(header); err != nil {
		return err
	}

	record := make([]string, len(fields))
	for source.Next() {
		row := source.Row()
		for i, f := range fields {
			record[i] = renderValue(row[f.Key], opts.RawLists)
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	if err := source.Err(); err != nil {
		return err
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSVError writes a flat key/value table for an error payload,
// bypassing the normal header/record shape.
func WriteCSVError(w io.Writer, payload map[string]interface{}) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"error"}); err != nil {
		return err
	}

	keys := make([]string, 0, len(payload))
	for key := range payload {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	for _, key := range keys {
		if err := cw.Write([]string{key, renderValue(payload[key], true)}); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func headerName(f *schema.FieldDescriptor, useTitles bool) string {
	if useTitles && f.Title != "" {
		return f.Title
	}
	return f.Key
}

// renderValue stringifies a projected value for text output. List
// values are joined with the export delimiter and, unless raw is set,
// wrapped in brackets.
func renderValue(value interface{}, raw bool) string {
	switch v := value.(type) {
	case nil:
		return ""
	case []string:
		return renderList(v, raw)
	case []interface{}:
		elems := make([]string, len(v))
		for i, e := range v {
			elems[i] = stringValue(e)
		}
		return renderList(elems, raw)
	default:
		return stringValue(value)
	}
}

func renderList(elems []string, raw bool) string {
	joined := strings.Join(elems, constants.ListDelimiterExport)
	if raw {
		return joined
	}
	return fmt.Sprintf("%c%s%c", constants.ListBrackets[0], joined, constants.ListBrackets[1])
}
