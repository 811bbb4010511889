// Package collection parses, merges, and serializes strike API responses.
//
// Each wire format has a Codec producing a format-specific Value. A
// Collection carries its Format alongside the parsed Value and dispatches to
// the matching Codec at runtime.
package collection

import (
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// Value is the parsed form of one or more merged response bodies.
type Value interface {
	Shape() domain.Shape
	// Len is the number of strike records held.
	Len() int
}

// Codec converts between a wire format and its Value.
//
// Merge never mutates either argument.
type Codec interface {
	Parse(body []byte) (Value, error)
	Serialize(v Value) ([]byte, error)
	Merge(base, other Value) (Value, error)
}

// CodecFor returns the codec for f, or UnsupportedFormatError.
func CodecFor(f domain.Format) (Codec, error) {
	switch f.Shape() {
	case domain.ShapeKML:
		return kmlCodec{format: f}, nil
	case domain.ShapeCSV:
		return csvCodec{format: f}, nil
	case domain.ShapeGeoJSON:
		return geoJSONCodec{format: f}, nil
	case domain.ShapeBlitzen:
		return blitzenCodec{format: f}, nil
	default:
		return nil, &domain.UnsupportedFormatError{Format: string(f)}
	}
}

func parseErr(f domain.Format, err error) error {
	return &domain.ParseError{Format: f, Err: err}
}

func mismatch(f domain.Format, v Value) error {
	other := domain.Format("")
	if v != nil {
		other = shapeFormat(v.Shape())
	}
	return &domain.MergeShapeMismatchError{Base: f, Other: other}
}

// shapeFormat picks a representative format for error messages.
func shapeFormat(s domain.Shape) domain.Format {
	switch s {
	case domain.ShapeKML:
		return domain.FormatKML
	case domain.ShapeCSV:
		return domain.FormatCSV
	case domain.ShapeGeoJSON:
		return domain.FormatGeoJSON
	case domain.ShapeBlitzen:
		return domain.FormatBlitzen
	default:
		return ""
	}
}
