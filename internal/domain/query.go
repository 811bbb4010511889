package domain

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
)

// MaxPageLimit is the largest page size the API accepts.
const MaxPageLimit = 10000

// CredentialType selects how the Authorization header is built.
type CredentialType string

const (
	CredentialAPIKey            CredentialType = "apiKey"
	CredentialJWT               CredentialType = "jwt"
	CredentialClientCredentials CredentialType = "clientCredentials"
)

// Credentials authenticate requests to the strike API.
type Credentials struct {
	Type         CredentialType
	Token        string // API key or JWT
	ClientID     string
	ClientSecret string
}

// Validate checks that the fields needed by Type are present.
func (c Credentials) Validate() error {
	switch c.Type {
	case CredentialAPIKey, CredentialJWT:
		if c.Token == "" {
			return fmt.Errorf("%s credentials require a token", c.Type)
		}
	case CredentialClientCredentials:
		if c.ClientID == "" || c.ClientSecret == "" {
			return errors.New("client credentials require a client id and secret")
		}
	default:
		return fmt.Errorf("unknown credential type %q", c.Type)
	}
	return nil
}

// Provider filters strikes by detection network.
type Provider string

const (
	ProviderTOA        Provider = "toa"
	ProviderTranspower Provider = "transpower"
	ProviderMock       Provider = "mock"
)

// Direction filters strikes by discharge type.
type Direction string

const (
	DirectionCloud  Direction = "CLOUD"
	DirectionGround Direction = "GROUND"
)

// BBox is a bounding box: lower-left lon/lat, upper-right lon/lat.
type BBox [4]float64

// WorldBBox covers the whole globe.
var WorldBBox = BBox{-180, -90, 180, 90}

// Validate enforces latitude range and lower <= upper on both axes.
// Longitudes are unbounded so boxes can cross the antimeridian.
func (b BBox) Validate() error {
	for _, lat := range []float64{b[1], b[3]} {
		if lat < -90 || lat > 90 {
			return fmt.Errorf("bbox latitude %v outside [-90, 90]", lat)
		}
	}
	if b[3] < b[1] {
		return fmt.Errorf("bbox upper latitude %v below lower latitude %v", b[3], b[1])
	}
	if b[2] < b[0] {
		return fmt.Errorf("bbox upper longitude %v below lower longitude %v", b[2], b[0])
	}
	return nil
}

// Join renders the four numbers in shortest decimal form separated by sep.
func (b BBox) Join(sep string) string {
	parts := make([]string, len(b))
	for i, v := range b {
		parts[i] = strconv.FormatFloat(v, 'f', -1, 64)
	}
	return strings.Join(parts, sep)
}

// String renders the bbox as the API expects it.
func (b BBox) String() string { return b.Join(",") }

// ParseBBox parses four comma-separated numbers.
func ParseBBox(s string) (BBox, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 4 {
		return BBox{}, fmt.Errorf("bbox %q: want 4 comma-separated numbers", s)
	}
	var b BBox
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return BBox{}, fmt.Errorf("bbox %q: %w", s, err)
		}
		b[i] = v
	}
	return b, b.Validate()
}

// Query is an immutable description of one strike API request window.
// An open-ended query has a zero Time.End and is only valid for streaming.
type Query struct {
	Credentials Credentials
	BBox        BBox
	Time        Interval
	Limit       int
	Providers   []Provider
	Directions  []Direction
}

// Validate checks the query for use with a closed window.
func (q Query) Validate() error {
	if err := q.validateCommon(); err != nil {
		return err
	}
	if q.Time.IsOpen() {
		return errors.New("query requires an end time")
	}
	return q.Time.Validate()
}

// ValidateOpen checks the query for use with an open-ended window.
func (q Query) ValidateOpen() error {
	if err := q.validateCommon(); err != nil {
		return err
	}
	if q.Time.Start.IsZero() {
		return errors.New("query requires a start time")
	}
	return nil
}

func (q Query) validateCommon() error {
	if err := q.Credentials.Validate(); err != nil {
		return err
	}
	if err := q.BBox.Validate(); err != nil {
		return err
	}
	if q.Limit < 1 || q.Limit > MaxPageLimit {
		return fmt.Errorf("limit %d outside [1, %d]", q.Limit, MaxPageLimit)
	}
	return nil
}

// WithTime returns a copy of q covering iv.
func (q Query) WithTime(iv Interval) Query {
	q.Time = iv
	return q
}
