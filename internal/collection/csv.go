package collection

import (
	"bytes"
	"encoding/csv"
	"errors"
	"strings"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// CSVTable holds a header line and raw body lines. Lines are kept verbatim
// so that an unmodified table serializes back to its input.
type CSVTable struct {
	Header string
	Rows   []string

	trailingNewline bool
}

func (*CSVTable) Shape() domain.Shape { return domain.ShapeCSV }
func (t *CSVTable) Len() int          { return len(t.Rows) }

// Columns returns the header column names.
func (t *CSVTable) Columns() ([]string, error) {
	if t.Header == "" {
		return nil, nil
	}
	return splitRecord(t.Header)
}

func (t *CSVTable) empty() bool { return t.Header == "" && len(t.Rows) == 0 }

func (t *CSVTable) clone() *CSVTable {
	return &CSVTable{
		Header:          t.Header,
		Rows:            append([]string(nil), t.Rows...),
		trailingNewline: t.trailingNewline,
	}
}

type csvCodec struct {
	format domain.Format
}

func (c csvCodec) Parse(body []byte) (Value, error) {
	lines := strings.Split(string(body), "\n")
	t := &CSVTable{}
	if n := len(lines); n > 1 && lines[n-1] == "" {
		t.trailingNewline = true
		lines = lines[:n-1]
	}
	t.Header = lines[0]
	t.Rows = lines[1:]

	if t.Header == "" {
		if len(t.Rows) > 0 {
			return nil, parseErr(c.format, errors.New("missing header line"))
		}
		return t, nil
	}
	if _, err := splitRecord(t.Header); err != nil {
		return nil, parseErr(c.format, err)
	}
	return t, nil
}

func (c csvCodec) Serialize(v Value) ([]byte, error) {
	t, ok := v.(*CSVTable)
	if !ok {
		return nil, mismatch(c.format, v)
	}
	var buf bytes.Buffer
	buf.WriteString(t.Header)
	for _, r := range t.Rows {
		buf.WriteByte('\n')
		buf.WriteString(r)
	}
	if t.trailingNewline {
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

// Merge appends other's rows to base. When the headers differ, each
// incoming row is reordered by column name to match base's header.
func (c csvCodec) Merge(base, other Value) (Value, error) {
	a, ok := base.(*CSVTable)
	if !ok {
		return nil, mismatch(c.format, base)
	}
	b, ok := other.(*CSVTable)
	if !ok {
		return nil, mismatch(c.format, other)
	}

	if a.empty() {
		return b.clone(), nil
	}
	out := a.clone()
	if len(b.Rows) == 0 {
		return out, nil
	}
	if a.Header == b.Header {
		out.Rows = append(out.Rows, b.Rows...)
		return out, nil
	}

	rows, err := c.reindex(a.Header, b)
	if err != nil {
		return nil, err
	}
	out.Rows = append(out.Rows, rows...)
	return out, nil
}

func (c csvCodec) reindex(header string, in *CSVTable) ([]string, error) {
	want, err := splitRecord(header)
	if err != nil {
		return nil, parseErr(c.format, err)
	}
	have, err := splitRecord(in.Header)
	if err != nil {
		return nil, parseErr(c.format, err)
	}
	pos := make(map[string]int, len(have))
	for i, name := range have {
		pos[name] = i
	}

	out := make([]string, 0, len(in.Rows))
	for _, row := range in.Rows {
		if row == "" {
			out = append(out, row)
			continue
		}
		fields, err := splitRecord(row)
		if err != nil {
			return nil, parseErr(c.format, err)
		}
		reordered := make([]string, len(want))
		for i, name := range want {
			if j, ok := pos[name]; ok && j < len(fields) {
				reordered[i] = fields[j]
			}
		}
		line, err := joinRecord(reordered)
		if err != nil {
			return nil, parseErr(c.format, err)
		}
		if strings.HasSuffix(row, "\r") {
			line += "\r"
		}
		out = append(out, line)
	}
	return out, nil
}

func splitRecord(line string) ([]string, error) {
	r := csv.NewReader(strings.NewReader(strings.TrimSuffix(line, "\r")))
	r.FieldsPerRecord = -1
	return r.Read()
}

func joinRecord(fields []string) (string, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(fields); err != nil {
		return "", err
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}
