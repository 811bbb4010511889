package collection

import (
	"bytes"
	"encoding/json"
	"errors"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// BlitzenArray is a flat array of strike records, one raw JSON object each.
type BlitzenArray []json.RawMessage

func (BlitzenArray) Shape() domain.Shape { return domain.ShapeBlitzen }
func (a BlitzenArray) Len() int          { return len(a) }

type blitzenCodec struct {
	format domain.Format
}

func (c blitzenCodec) Parse(body []byte) (Value, error) {
	trimmed := bytes.TrimSpace(body)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, parseErr(c.format, errors.New("expected a JSON array"))
	}
	var records []json.RawMessage
	if err := json.Unmarshal(trimmed, &records); err != nil {
		return nil, parseErr(c.format, err)
	}
	out := make(BlitzenArray, len(records))
	for i, r := range records {
		compact, err := compactJSON(r)
		if err != nil {
			return nil, parseErr(c.format, err)
		}
		out[i] = compact
	}
	return out, nil
}

func (c blitzenCodec) Serialize(v Value) ([]byte, error) {
	a, ok := v.(BlitzenArray)
	if !ok {
		return nil, mismatch(c.format, v)
	}
	var buf bytes.Buffer
	writeArray(&buf, a)
	return buf.Bytes(), nil
}

func (c blitzenCodec) Merge(base, other Value) (Value, error) {
	a, ok := base.(BlitzenArray)
	if !ok {
		return nil, mismatch(c.format, base)
	}
	b, ok := other.(BlitzenArray)
	if !ok {
		return nil, mismatch(c.format, other)
	}
	out := make(BlitzenArray, 0, len(a)+len(b))
	out = append(out, a...)
	return append(out, b...), nil
}

func compactJSON(raw []byte) (json.RawMessage, error) {
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func writeArray(buf *bytes.Buffer, items []json.RawMessage) {
	buf.WriteByte('[')
	for i, it := range items {
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(it)
	}
	buf.WriteByte(']')
}
