package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strconv"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/adapter/filestore"
	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const geoBody = `{"type":"FeatureCollection","features":[{"type":"Feature","geometry":{"type":"Point","coordinates":[174.7,-41.2]},"properties":{}}]}`

func writeChunk(t *testing.T, dir string, start time.Time, d time.Duration, body string) {
	t.Helper()
	name := filestore.FormatStamp(start) + "--" + filestore.FormatStamp(start.Add(d)) + ".geojson"
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(body), 0o644))
}

func TestRun_Passes(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	for i := range 3 {
		writeChunk(t, dir, start.Add(time.Duration(i)*15*time.Minute), 15*time.Minute, geoBody)
	}

	var out bytes.Buffer
	code := run(&out, dir, domain.FormatGeoJSONV3, filestore.DefaultTemplate, 15*time.Minute)

	assert.Equal(t, 0, code, out.String())
	assert.Contains(t, out.String(), "Files: 3, chunks: 3, strikes: 3")
	assert.Contains(t, out.String(), "All validations passed.")
}

func TestRun_DetectsGapAndBadPayload(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	writeChunk(t, dir, start, 15*time.Minute, geoBody)
	writeChunk(t, dir, start.Add(30*time.Minute), 15*time.Minute, `{"type":"FeatureCollection"}`)

	var out bytes.Buffer
	code := run(&out, dir, domain.FormatGeoJSONV3, filestore.DefaultTemplate, 15*time.Minute)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "gap between")
	assert.Contains(t, out.String(), "Validation FAILED.")
}

func TestValidateContinuity_Overlap(t *testing.T) {
	start := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	p := validateContinuity([]filestore.Entry{
		{Name: "b", Start: start.Add(10 * time.Minute), End: start.Add(25 * time.Minute)},
		{Name: "a", Start: start, End: start.Add(15 * time.Minute)},
	}, 15*time.Minute)

	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "b overlaps a")
}

func TestValidateNames_Unmatched(t *testing.T) {
	p := validateNames([]string{"README.md"}, nil, domain.FormatGeoJSONV3)
	require.Len(t, p.errors, 1)
	assert.Contains(t, p.errors[0], "README.md")
}

func TestRun_DetectsBadRecords(t *testing.T) {
	dir := t.TempDir()
	start := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	late := `{"type":"FeatureCollection","features":[` +
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[174.7,-41.2]},"properties":{"dateTime":"2020-02-01T00:20:00.000Z"}},` +
		`{"type":"Feature","geometry":{"type":"Point","coordinates":[174.7,-141.2]},"properties":{"dateTime":"2020-02-01T00:01:00.000Z"}}]}`
	writeChunk(t, dir, start, 15*time.Minute, late)

	var out bytes.Buffer
	code := run(&out, dir, domain.FormatGeoJSONV3, filestore.DefaultTemplate, 15*time.Minute)

	assert.Equal(t, 1, code)
	assert.Contains(t, out.String(), "record 0 at 2020-02-01T00:20:00.000Z is outside the chunk")
	assert.Contains(t, out.String(), "record 1 latitude -141.2 out of range")
}

func TestValidateRecords(t *testing.T) {
	start := time.Date(2020, 2, 1, 0, 0, 0, 0, time.UTC)
	entry := filestore.Entry{Name: "chunk", Start: start, End: start.Add(15 * time.Minute)}
	inChunk := strconv.FormatInt(start.Add(time.Minute).UnixMilli(), 10)

	tests := []struct {
		name   string
		format domain.Format
		body   string
		errs   []string
	}{
		{
			name:   "blitzen in chunk",
			format: domain.FormatBlitzenV1,
			body:   `[{"latitude":-41.2,"longitude":174.7,"timeMillis":` + inChunk + `}]`,
		},
		{
			name:   "blitzen out of chunk",
			format: domain.FormatBlitzenV1,
			body:   `[{"latitude":-41.2,"longitude":174.7,"timeMillis":1}]`,
			errs:   []string{"outside the chunk"},
		},
		{
			name:   "csv without latitude column",
			format: domain.FormatCSV,
			body:   "longitude,date_time\n174.7,2020-02-01T00:01:00.000Z\n",
			errs:   []string{`header lacks "latitude"`},
		},
		{
			name:   "kml placemark without coordinates",
			format: domain.FormatKML,
			body: `<?xml version="1.0" encoding="UTF-8"?><kml xmlns="http://www.opengis.net/kml/2.2"><Document>` +
				`<Placemark><name>Lightning Strike</name></Placemark></Document></kml>`,
			errs: []string{"placemark 0 has no coordinates"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := collection.Parse(tt.format, []byte(tt.body))
			require.NoError(t, c.Err())

			p := validateRecords([]parsedChunk{{entry: entry, coll: c}})

			require.Len(t, p.errors, len(tt.errs))
			for i, want := range tt.errs {
				assert.Contains(t, p.errors[i], want)
			}
		})
	}
}
