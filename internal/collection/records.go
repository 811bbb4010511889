package collection

import (
	"encoding/json"
	"fmt"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// BlitzenStrikeV1 is one record of the v1 Blitzen format.
type BlitzenStrikeV1 struct {
	Current    float64 `json:"current"`
	Direction  string  `json:"direction"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TimeMillis int64   `json:"timeMillis"`
}

// Ellipse is the location uncertainty of a strike, in kilometres.
type Ellipse struct {
	Bearing float64 `json:"bearing"`
	Major   float64 `json:"major"`
	Minor   float64 `json:"minor"`
}

// BlitzenStrikeV2 is one record of the v2 Blitzen format.
type BlitzenStrikeV2 struct {
	Amplitude  float64 `json:"amplitude"`
	Direction  string  `json:"direction"`
	Latitude   float64 `json:"latitude"`
	Longitude  float64 `json:"longitude"`
	TimeMillis int64   `json:"timeMillis"`
	DateTime   string  `json:"dateTime"`
	Ellipse    Ellipse `json:"ellipse"`
}

// SensorDetails describes how the detection network located a strike.
type SensorDetails struct {
	ChiSquared            float64 `json:"chiSquared"`
	ReportingSensors      int     `json:"reportingSensors"`
	DegreesFreedom        int     `json:"degreesFreedom"`
	RangeNormalizedSignal float64 `json:"rangeNormalizedSignal"`
	SensorInformation     string  `json:"sensorInformation"`
	RiseTime              float64 `json:"riseTime"`
	PeakTime              float64 `json:"peakTime"`
}

// BlitzenStrikeV3 is one record of the v3 Blitzen format.
type BlitzenStrikeV3 struct {
	BlitzenStrikeV2
	NanosecondsRemainder int64         `json:"nanosecondsRemainder"`
	SensorDetails        SensorDetails `json:"sensorDetails"`
}

// StrikeFeature is one GeoJSON feature. ID is the API's deterministic
// strike identity and is passed through untouched.
type StrikeFeature struct {
	Type       string           `json:"type"`
	ID         string           `json:"id"`
	Geometry   PointGeometry    `json:"geometry"`
	Properties StrikeProperties `json:"properties"`
}

// PointGeometry holds [lon, lat].
type PointGeometry struct {
	Type        string    `json:"type"`
	Coordinates []float64 `json:"coordinates"`
}

// StrikeProperties are the GeoJSON feature properties; optional fields
// depend on the format version.
type StrikeProperties struct {
	DateTime                    string   `json:"dateTime"`
	Source                      string   `json:"source"`
	StrikeType                  string   `json:"strike_type"`
	GDOP                        *float64 `json:"GDOP,omitempty"`
	UnixTime                    *float64 `json:"unixTime,omitempty"`
	EllipseBearing              *float64 `json:"ellipse_bearing,omitempty"`
	EllipseMajorAxis            *float64 `json:"ellipse_major_axis,omitempty"`
	EllipseMinorAxis            *float64 `json:"ellipse_minor_axis,omitempty"`
	KA                          *float64 `json:"kA,omitempty"`
	NanosecondsRemainder        *int64   `json:"nanoseconds_remainder,omitempty"`
	SensorChiSquared            *float64 `json:"sensor_chi_squared,omitempty"`
	SensorDegreesFreedom        *int     `json:"sensor_degrees_freedom,omitempty"`
	SensorInformation           *string  `json:"sensor_information,omitempty"`
	SensorPeakTime              *float64 `json:"sensor_peak_time,omitempty"`
	SensorRangeNormalisedSignal *float64 `json:"sensor_range_normalised_signal,omitempty"`
	SensorReportingSensors      *int     `json:"sensor_reporting_sensors,omitempty"`
	SensorRiseTime              *float64 `json:"sensor_rise_time,omitempty"`
}

// DecodeRecords decodes each record of a GeoJSON or Blitzen collection into T.
func DecodeRecords[T any](c *Collection) ([]T, error) {
	v, err := c.Value()
	if err != nil {
		return nil, err
	}
	var raws []json.RawMessage
	switch tv := v.(type) {
	case BlitzenArray:
		raws = tv
	case *GeoJSONCollection:
		raws = tv.features
	default:
		return nil, fmt.Errorf("decode records: %s collections hold no JSON records", v.Shape())
	}
	out := make([]T, len(raws))
	for i, r := range raws {
		if err := json.Unmarshal(r, &out[i]); err != nil {
			return nil, &domain.ParseError{Format: c.format, Err: fmt.Errorf("record %d: %w", i, err)}
		}
	}
	return out, nil
}
