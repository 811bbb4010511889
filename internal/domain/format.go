package domain

import "strings"

// Format is the MIME type of a wire format accepted by the strike API.
type Format string

const (
	FormatKML       Format = "application/vnd.google-earth.kml+xml"
	FormatCSV       Format = "text/csv"
	FormatBlitzen   Format = "application/vnd.metraweather.blitzen"
	FormatBlitzenV3 Format = "application/vnd.metraweather.blitzen.v3"
	FormatBlitzenV2 Format = "application/vnd.metraweather.blitzen.v2"
	FormatBlitzenV1 Format = "application/vnd.metraweather.blitzen.v1"
	FormatGeoJSON   Format = "application/vnd.geo+json"
	FormatGeoJSONV3 Format = "application/vnd.metraweather.lightning.geo+json.v3"
	FormatGeoJSONV2 Format = "application/vnd.metraweather.lightning.geo+json.v2"
)

// Shape groups formats by the in-memory layout their codec uses.
type Shape int

const (
	ShapeUnknown Shape = iota
	ShapeKML
	ShapeCSV
	ShapeGeoJSON
	ShapeBlitzen
)

func (s Shape) String() string {
	switch s {
	case ShapeKML:
		return "kml"
	case ShapeCSV:
		return "csv"
	case ShapeGeoJSON:
		return "geojson"
	case ShapeBlitzen:
		return "blitzen"
	default:
		return "unknown"
	}
}

var formatShapes = map[Format]Shape{
	FormatKML:       ShapeKML,
	FormatCSV:       ShapeCSV,
	FormatBlitzen:   ShapeBlitzen,
	FormatBlitzenV3: ShapeBlitzen,
	FormatBlitzenV2: ShapeBlitzen,
	FormatBlitzenV1: ShapeBlitzen,
	FormatGeoJSON:   ShapeGeoJSON,
	FormatGeoJSONV3: ShapeGeoJSON,
	FormatGeoJSONV2: ShapeGeoJSON,
}

// Short names accepted on the command line and in query files.
var formatNames = map[string]Format{
	"kml":        FormatKML,
	"csv":        FormatCSV,
	"blitzen":    FormatBlitzen,
	"blitzen-v3": FormatBlitzenV3,
	"blitzen-v2": FormatBlitzenV2,
	"blitzen-v1": FormatBlitzenV1,
	"geojson":    FormatGeoJSON,
	"geojson-v3": FormatGeoJSONV3,
	"geojson-v2": FormatGeoJSONV2,
}

// ParseFormat resolves a MIME type or short name to a Format.
func ParseFormat(s string) (Format, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	if f, ok := formatNames[v]; ok {
		return f, nil
	}
	if _, ok := formatShapes[Format(v)]; ok {
		return Format(v), nil
	}
	return "", &UnsupportedFormatError{Format: s}
}

// Shape reports the codec layout for f, or ShapeUnknown.
func (f Format) Shape() Shape {
	return formatShapes[f]
}

// Validate fails with UnsupportedFormatError for unknown formats.
func (f Format) Validate() error {
	if f.Shape() == ShapeUnknown {
		return &UnsupportedFormatError{Format: string(f)}
	}
	return nil
}

// Extension is the file extension used when persisting a collection.
func (f Format) Extension() string {
	switch f.Shape() {
	case ShapeKML:
		return "kml"
	case ShapeCSV:
		return "csv"
	case ShapeGeoJSON:
		return "geojson"
	case ShapeBlitzen:
		return "json"
	default:
		return "txt"
	}
}

func (f Format) String() string { return string(f) }
