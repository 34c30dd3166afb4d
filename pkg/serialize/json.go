package serialize

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"unicode/utf16"
)

// StreamJSON renders a list response as {"meta": {...}, "objects": [...]},
// emitting one object at a time. All non-ASCII characters are \u-escaped
// so the byte stream chunks safely regardless of downstream encoding
// assumptions.
func StreamJSON(w io.Writer, source RowSource, meta map[string]interface{}) error {
	defer source.Close()

	metaBytes, err := encodeASCII(meta)
	if err != nil {
		return fmt.Errorf("encode meta: %w", err)
	}
	if _, err := fmt.Fprintf(w, `{"meta": %s, "objects": [`, metaBytes); err != nil {
		return err
	}

	first := true
	for source.Next() {
		row := source.Row()
		encoded, err := encodeASCII(row)
		if err != nil {
			log.Printf("ERROR: encoding row %v: %v", row, err)
			return err
		}
		if !first {
			if _, err := io.WriteString(w, ","); err != nil {
				return err
			}
		}
		first = false
		if _, err := w.Write(encoded); err != nil {
			return err
		}
	}
	if err := source.Err(); err != nil {
		return err
	}

	_, err = io.WriteString(w, "]}")
	return err
}

// StreamJSONDetail renders the first row of the source as a bare object.
func StreamJSONDetail(w io.Writer, source RowSource) error {
	defer source.Close()

	if !source.Next() {
		if err := source.Err(); err != nil {
			return err
		}
		_, err := io.WriteString(w, "{}")
		return err
	}
	encoded, err := encodeASCII(source.Row())
	if err != nil {
		return err
	}
	_, err = w.Write(encoded)
	return err
}

// encodeASCII marshals v to JSON with every non-ASCII rune escaped
func encodeASCII(v interface{}) ([]byte, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, err
	}
	return escapeNonASCII(raw), nil
}

// escapeNonASCII rewrites non-ASCII runes as \u escapes. The input is
// valid JSON, so any such rune can only occur inside a string literal,
// where the escape is always legal.
func escapeNonASCII(in []byte) []byte {
	ascii := true
	for _, b := range in {
		if b >= 0x80 {
			ascii = false
			break
		}
	}
	if ascii {
		return in
	}

	var out bytes.Buffer
	out.Grow(len(in))
	for _, r := range string(in) {
		switch {
		case r < 0x80:
			out.WriteByte(byte(r))
		case r > 0xFFFF:
			hi, lo := utf16.EncodeRune(r)
			fmt.Fprintf(&out, `\u%04x\u%04x`, hi, lo)
		default:
			fmt.Fprintf(&out, `\u%04x`, r)
		}
	}
	return out.Bytes()
}
