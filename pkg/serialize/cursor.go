package serialize

import (
	"fmt"
	"log"
	"strings"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/screenlab/reports/pkg/constants"
	"github.com/screenlab/reports/pkg/query"
	"github.com/screenlab/reports/pkg/schema"
)

// Projector shapes raw query rows for serialization: it restricts each
// row to the visible fields, splits list values on the array delimiter,
// interpolates value templates, and evaluates computed field
// expressions. It is a lazy pass: one upstream row is consumed per Next.
type Projector struct {
	source   RowSource
	fields   []*schema.FieldDescriptor
	programs map[string]*vm.Program
	current  query.RowMap
	err      error
}

// NewProjector builds the projection pass over source. Computed field
// expressions are compiled once up front; a field whose expression does
// not compile fails construction rather than failing per row.
func NewProjector(source RowSource, fields []*schema.FieldDescriptor) (*Projector, error) {
	programs := make(map[string]*vm.Program)
	for _, f := range fields {
		if f.Expression == "" {
			continue
		}
		program, err := expr.Compile(f.Expression, expr.AllowUndefinedVariables())
		if err != nil {
			return nil, fmt.Errorf("compile expression for field %s: %w", f.Key, err)
		}
		programs[f.Key] = program
	}
	return &Projector{source: source, fields: fields, programs: programs}, nil
}

func (p *Projector) Next() bool {
	if p.err != nil || !p.source.Next() {
		return false
	}
	row := p.source.Row()

	out := make(query.RowMap, len(p.fields))
	for _, f := range p.fields {
		value, err := p.fieldValue(f, row)
		if err != nil {
			log.Printf("ERROR: projecting field %s of row %v: %v", f.Key, row, err)
			p.err = err
			return false
		}
		out[f.Key] = value
	}
	p.current = out
	return true
}

func (p *Projector) fieldValue(f *schema.FieldDescriptor, row query.RowMap) (interface{}, error) {
	if program, ok := p.programs[f.Key]; ok {
		result, err := expr.Run(program, map[string]interface{}(row))
		if err != nil {
			return nil, err
		}
		return result, nil
	}

	if f.ValueTemplate != "" {
		return schema.InterpolateTemplate(f.ValueTemplate, func(key string) string {
			return stringValue(row[key])
		}), nil
	}

	value := row[f.Key]
	if f.IsList() {
		return splitListValue(value), nil
	}
	return value, nil
}

func (p *Projector) Row() query.RowMap {
	return p.current
}

func (p *Projector) Err() error {
	if p.err != nil {
		return p.err
	}
	return p.source.Err()
}

func (p *Projector) Close() error {
	return p.source.Close()
}

// splitListValue turns a delimiter-joined list column into a string
// slice, dropping empty elements. Null stays nil rather than becoming
// an empty list.
func splitListValue(value interface{}) interface{} {
	if value == nil {
		return nil
	}
	joined := stringValue(value)
	if joined == "" {
		return []string{}
	}
	parts := strings.Split(joined, constants.ListDelimiterSQLArray)
	elems := make([]string, 0, len(parts))
	for _, part := range parts {
		if part != "" {
			elems = append(elems, part)
		}
	}
	return elems
}

func stringValue(value interface{}) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case []byte:
		return string(v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
