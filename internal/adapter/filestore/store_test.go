package filestore

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func at(hh, mm int) time.Time {
	return time.Date(2020, 2, 1, hh, mm, 0, 0, time.UTC)
}

func newStore(dir, template string) *Store {
	return New(dir, template, domain.BBox{0, 0, -50, -45.5}, 15*time.Minute, discardLogger())
}

func touch(t *testing.T, dir string, names ...string) {
	t.Helper()
	for _, n := range names {
		require.NoError(t, os.WriteFile(filepath.Join(dir, n), []byte("[]"), 0o644))
	}
}

func TestStamp(t *testing.T) {
	ts := time.Date(2020, 2, 1, 0, 49, 24, 42*int(time.Millisecond), time.FixedZone("X", 3600))
	s := FormatStamp(ts)
	assert.Equal(t, "2020_01_31T23_49_24_042Z", s)

	back, err := ParseStamp(s)
	require.NoError(t, err)
	assert.True(t, ts.Equal(back))

	_, err = ParseStamp("2020-01-31")
	assert.Error(t, err)
}

func TestStore_FileName(t *testing.T) {
	iv := domain.NewInterval(at(0, 30), at(0, 45))

	tests := []struct {
		name     string
		template string
		format   domain.Format
		want     string
	}{
		{
			name:   "default",
			format: domain.FormatGeoJSONV3,
			want:   "2020_02_01T00_30_00_000Z--2020_02_01T00_45_00_000Z.geojson",
		},
		{
			name:     "all tokens",
			template: "strikes_{BBOX}_{DURATION}_{START_DATE}",
			format:   domain.FormatCSV,
			want:     "strikes_0_0_-50_-45.5_PT15M_2020_02_01T00_30_00_000Z.csv",
		},
		{
			name:     "blitzen",
			template: "{END_DATE}",
			format:   domain.FormatBlitzenV1,
			want:     "2020_02_01T00_45_00_000Z.json",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, newStore(t.TempDir(), tt.template).FileName(tt.format, iv))
		})
	}
}

func TestStore_WriteCreatesDirectoryAndOverwrites(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "out")
	s := newStore(dir, "")

	require.NoError(t, s.Write(context.Background(), dir, "a.json", []byte("first")))
	require.NoError(t, s.Write(context.Background(), dir, "a.json", []byte("second")))

	got, err := os.ReadFile(filepath.Join(dir, "a.json"))
	require.NoError(t, err)
	assert.Equal(t, "second", string(got))
}

func TestStore_WriteCancelled(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := newStore(dir, "").Write(ctx, dir, "a.json", []byte("x"))
	assert.ErrorIs(t, err, context.Canceled)
}

func TestStore_Deliver(t *testing.T) {
	dir := t.TempDir()
	s := newStore(dir, "")
	r := pipeline.ChunkResult{
		Collection: collection.Parse(domain.FormatCSV, []byte("lon,lat\n1,2\n")),
		Start:      at(0, 0),
		End:        at(0, 15),
	}

	require.NoError(t, s.Deliver(context.Background(), r))

	got, err := os.ReadFile(filepath.Join(dir, "2020_02_01T00_00_00_000Z--2020_02_01T00_15_00_000Z.csv"))
	require.NoError(t, err)
	assert.Equal(t, "lon,lat\n1,2\n", string(got))
}

func TestStore_LatestEnd(t *testing.T) {
	t.Run("newest end date", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir,
			"2020_02_01T00_00_00_000Z--2020_02_01T00_15_00_000Z.geojson",
			"2020_02_01T00_30_00_000Z--2020_02_01T00_45_00_000Z.geojson",
			"2020_02_01T00_15_00_000Z--2020_02_01T00_30_00_000Z.geojson",
			"notes.txt",
		)

		end, ok, err := newStore(dir, "").LatestEnd()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, at(0, 45), end)
	})

	t.Run("start date only adds a chunk", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "strikes_2020_02_01T00_30_00_000Z.kml", "strikes_2020_02_01T00_15_00_000Z.kml")

		end, ok, err := newStore(dir, "strikes_{START_DATE}").LatestEnd()
		require.NoError(t, err)
		assert.True(t, ok)
		assert.Equal(t, at(0, 45), end)
	})

	t.Run("missing directory", func(t *testing.T) {
		_, ok, err := newStore(filepath.Join(t.TempDir(), "absent"), "").LatestEnd()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("empty directory", func(t *testing.T) {
		_, ok, err := newStore(t.TempDir(), "").LatestEnd()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("no date token", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "latest.json")
		_, ok, err := newStore(dir, "latest").LatestEnd()
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("unparseable names", func(t *testing.T) {
		dir := t.TempDir()
		touch(t, dir, "2020-02-01--2020-02-02.json")
		_, _, err := newStore(dir, "").LatestEnd()
		assert.ErrorContains(t, err, "none match")
	})
}

func TestStore_Scan(t *testing.T) {
	dir := t.TempDir()
	touch(t, dir,
		"0_0_-50_-45.5_PT15M_2020_02_01T00_00_00_000Z--2020_02_01T00_15_00_000Z.csv",
		"0_0_-50_-45.5_PT15M_2020_02_01T00_15_00_000Z--2020_02_01T00_30_00_000Z.csv",
	)
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub"), 0o755))

	entries, err := newStore(dir, "{BBOX}_{DURATION}_{START_DATE}--{END_DATE}").Scan()
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, at(0, 0), entries[0].Start)
	assert.Equal(t, at(0, 15), entries[0].End)
	assert.Equal(t, at(0, 30), entries[1].End)
}
