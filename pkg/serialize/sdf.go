package serialize

import (
	"fmt"
	"io"
	"strings"

	"github.com/screenlab/reports/pkg/schema"
)

// MoleculeFieldKey is the field whose value supplies the structure
// block of an SDF record.
const MoleculeFieldKey = "molfile"

// sdfRecordTerminator closes each SDF record
const sdfRecordTerminator = "$$$$\n"

// StreamSDF renders the source as an SD file: per row, the molfile
// field is written verbatim as the structure block, every other field
// becomes a "> <title>" annotation block (list values one per line),
// and the record is closed with the $$$$ terminator.
func StreamSDF(w io.Writer, source RowSource, fields []*schema.FieldDescriptor, useTitles bool) error {
	defer source.Close()

	for source.Next() {
		row := source.Row()

		if mol := stringValue(row[MoleculeFieldKey]); mol != "" {
			if _, err := io.WriteString(w, ensureTrailingNewline(mol)); err != nil {
				return err
			}
		}

		for _, f := range fields {
			if f.Key == MoleculeFieldKey {
				continue
			}
			value, ok := row[f.Key]
			if !ok || value == nil {
				continue
			}
			if _, err := fmt.Fprintf(w, "> <%s>\n", headerName(f, useTitles)); err != nil {
				return err
			}
			for _, line := range annotationLines(value) {
				if _, err := io.WriteString(w, line+"\n"); err != nil {
					return err
				}
			}
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}

		if _, err := io.WriteString(w, sdfRecordTerminator); err != nil {
			return err
		}
	}
	return source.Err()
}

func annotationLines(value interface{}) []string {
	switch v := value.(type) {
	case []string:
		return v
	case []interface{}:
		lines := make([]string, len(v))
		for i, e := range v {
			lines[i] = stringValue(e)
		}
		return lines
	default:
		return []string{stringValue(value)}
	}
}

func ensureTrailingNewline(s string) string {
	if strings.HasSuffix(s, "\n") {
		return s
	}
	return s + "\n"
}
