package collection

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

const featuresKey = "features"

// GeoJSONCollection is a FeatureCollection whose top-level members keep
// their original order. Features are held separately so merges only touch
// that array.
type GeoJSONCollection struct {
	members  []member
	features []json.RawMessage
}

type member struct {
	key string
	raw json.RawMessage // nil for the features member
}

func (*GeoJSONCollection) Shape() domain.Shape { return domain.ShapeGeoJSON }
func (g *GeoJSONCollection) Len() int          { return len(g.features) }

// Features returns the raw feature objects in order.
func (g *GeoJSONCollection) Features() []json.RawMessage { return g.features }

// Member returns the raw value of a top-level member other than features.
func (g *GeoJSONCollection) Member(key string) (json.RawMessage, bool) {
	for _, m := range g.members {
		if m.key == key && m.raw != nil {
			return m.raw, true
		}
	}
	return nil, false
}

type geoJSONCodec struct {
	format domain.Format
}

func (c geoJSONCodec) Parse(body []byte) (Value, error) {
	g, err := decodeFeatureCollection(body)
	if err != nil {
		return nil, parseErr(c.format, err)
	}
	return g, nil
}

func decodeFeatureCollection(body []byte) (*GeoJSONCollection, error) {
	dec := json.NewDecoder(bytes.NewReader(body))
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, errors.New("expected a JSON object")
	}

	g := &GeoJSONCollection{}
	seenFeatures := false
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("unexpected token %v", tok)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}
		compact, err := compactJSON(raw)
		if err != nil {
			return nil, fmt.Errorf("member %q: %w", key, err)
		}

		if key != featuresKey {
			g.members = append(g.members, member{key: key, raw: compact})
			continue
		}
		if len(compact) == 0 || compact[0] != '[' {
			return nil, errors.New("features must be an array")
		}
		if err := json.Unmarshal(compact, &g.features); err != nil {
			return nil, fmt.Errorf("features: %w", err)
		}
		if !seenFeatures {
			g.members = append(g.members, member{key: key})
			seenFeatures = true
		}
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("trailing data after object")
	}
	if !seenFeatures {
		return nil, errors.New("missing features array")
	}
	return g, nil
}

func (c geoJSONCodec) Serialize(v Value) ([]byte, error) {
	g, ok := v.(*GeoJSONCollection)
	if !ok {
		return nil, mismatch(c.format, v)
	}
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, m := range g.members {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeKey(&buf, m.key); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if m.raw == nil {
			writeArray(&buf, g.features)
			continue
		}
		buf.Write(m.raw)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (c geoJSONCodec) Merge(base, other Value) (Value, error) {
	a, ok := base.(*GeoJSONCollection)
	if !ok {
		return nil, mismatch(c.format, base)
	}
	b, ok := other.(*GeoJSONCollection)
	if !ok {
		return nil, mismatch(c.format, other)
	}
	features := make([]json.RawMessage, 0, len(a.features)+len(b.features))
	features = append(features, a.features...)
	features = append(features, b.features...)
	return &GeoJSONCollection{
		members:  append([]member(nil), a.members...),
		features: features,
	}, nil
}

func writeKey(buf *bytes.Buffer, key string) error {
	var kb bytes.Buffer
	enc := json.NewEncoder(&kb)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(key); err != nil {
		return fmt.Errorf("encode key %q: %w", key, err)
	}
	buf.Write(bytes.TrimRight(kb.Bytes(), "\n"))
	return nil
}
