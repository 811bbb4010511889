package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	toml "github.com/pelletier/go-toml/v2"
	"github.com/sosodev/duration"
)

// QuerySettings describe what to fetch: area, window, format, and chunking.
// Credentials come from Config.
type QuerySettings struct {
	Format          domain.Format
	BBox            domain.BBox
	From            time.Time
	To              time.Time // zero for open-ended
	Limit           int
	Providers       []domain.Provider
	Directions      []domain.Direction
	ParallelQueries int
	ChunkDuration   time.Duration
}

// queryFile is the on-disk TOML layout.
type queryFile struct {
	From            string    `toml:"from,omitempty"`
	To              string    `toml:"to,omitempty"`
	Format          string    `toml:"format,omitempty"`
	BBox            []float64 `toml:"bbox,omitempty"`
	Providers       []string  `toml:"providers,omitempty"`
	Directions      []string  `toml:"directions,omitempty"`
	Limit           int       `toml:"limit,omitempty"`
	ParallelQueries int       `toml:"parallel_queries,omitempty"`
	ChunkDuration   string    `toml:"chunk_duration,omitempty"`
}

// DefaultQuerySettings start at the top of the current hour and cover the
// whole world in GeoJSON v3.
func DefaultQuerySettings(now time.Time) QuerySettings {
	return QuerySettings{
		Format:          domain.FormatGeoJSONV3,
		BBox:            domain.WorldBBox,
		From:            now.UTC().Truncate(time.Hour),
		Limit:           domain.MaxPageLimit,
		Providers:       []domain.Provider{domain.ProviderTOA},
		Directions:      []domain.Direction{domain.DirectionCloud, domain.DirectionGround},
		ParallelQueries: domain.MaxParallelQueries,
		ChunkDuration:   15 * time.Minute,
	}
}

// LoadQuerySettings reads a TOML query file over the defaults. An empty or
// missing path yields the defaults.
func LoadQuerySettings(path string, now time.Time) (QuerySettings, error) {
	qs := DefaultQuerySettings(now)
	if strings.TrimSpace(path) == "" {
		return qs, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return qs, nil
		}
		return QuerySettings{}, fmt.Errorf("read query file: %w", err)
	}

	var raw queryFile
	if err := toml.Unmarshal(data, &raw); err != nil {
		return QuerySettings{}, fmt.Errorf("parse query file: %w", err)
	}
	if err := raw.apply(&qs); err != nil {
		return QuerySettings{}, fmt.Errorf("query file %s: %w", path, err)
	}
	return qs, nil
}

func (raw queryFile) apply(qs *QuerySettings) error {
	var err error
	if raw.From != "" {
		if qs.From, err = time.Parse(time.RFC3339Nano, raw.From); err != nil {
			return fmt.Errorf("from: %w", err)
		}
	}
	if raw.To != "" {
		if qs.To, err = time.Parse(time.RFC3339Nano, raw.To); err != nil {
			return fmt.Errorf("to: %w", err)
		}
	}
	if raw.Format != "" {
		if qs.Format, err = domain.ParseFormat(raw.Format); err != nil {
			return err
		}
	}
	if raw.BBox != nil {
		if len(raw.BBox) != 4 {
			return fmt.Errorf("bbox: want 4 numbers, got %d", len(raw.BBox))
		}
		copy(qs.BBox[:], raw.BBox)
		if err := qs.BBox.Validate(); err != nil {
			return err
		}
	}
	if raw.Providers != nil {
		qs.Providers = qs.Providers[:0:0]
		for _, p := range raw.Providers {
			qs.Providers = append(qs.Providers, domain.Provider(p))
		}
	}
	if raw.Directions != nil {
		qs.Directions = qs.Directions[:0:0]
		for _, d := range raw.Directions {
			qs.Directions = append(qs.Directions, domain.Direction(strings.ToUpper(d)))
		}
	}
	if raw.Limit != 0 {
		if raw.Limit < 0 || raw.Limit > domain.MaxPageLimit {
			return fmt.Errorf("limit %d outside [1, %d]", raw.Limit, domain.MaxPageLimit)
		}
		qs.Limit = raw.Limit
	}
	if raw.ParallelQueries != 0 {
		if raw.ParallelQueries < 0 || raw.ParallelQueries > domain.MaxParallelQueries {
			return fmt.Errorf("parallel_queries %d outside [1, %d]", raw.ParallelQueries, domain.MaxParallelQueries)
		}
		qs.ParallelQueries = raw.ParallelQueries
	}
	if raw.ChunkDuration != "" {
		if qs.ChunkDuration, err = ParseISODuration(raw.ChunkDuration); err != nil {
			return fmt.Errorf("chunk_duration: %w", err)
		}
	}
	return nil
}

// SaveQuerySettings writes qs as TOML, creating directories as needed.
func SaveQuerySettings(path string, qs QuerySettings) error {
	raw := queryFile{
		From:            domain.FormatInstant(qs.From),
		Format:          string(qs.Format),
		BBox:            qs.BBox[:],
		Limit:           qs.Limit,
		ParallelQueries: qs.ParallelQueries,
		ChunkDuration:   duration.Format(qs.ChunkDuration),
	}
	if !qs.To.IsZero() {
		raw.To = domain.FormatInstant(qs.To)
	}
	for _, p := range qs.Providers {
		raw.Providers = append(raw.Providers, string(p))
	}
	for _, d := range qs.Directions {
		raw.Directions = append(raw.Directions, string(d))
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create query dir: %w", err)
	}
	data, err := toml.Marshal(raw)
	if err != nil {
		return fmt.Errorf("marshal query: %w", err)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("write query: %w", err)
	}
	return nil
}

// Query builds a domain query from the settings and credentials.
func (qs QuerySettings) Query(creds domain.Credentials) domain.Query {
	return domain.Query{
		Credentials: creds,
		BBox:        qs.BBox,
		Time:        domain.NewInterval(qs.From, qs.To),
		Limit:       qs.Limit,
		Providers:   qs.Providers,
		Directions:  qs.Directions,
	}
}

// ParseISODuration parses an ISO-8601 duration such as PT15M.
func ParseISODuration(s string) (time.Duration, error) {
	d, err := duration.Parse(s)
	if err != nil {
		return 0, err
	}
	td := d.ToTimeDuration()
	if td <= 0 {
		return 0, fmt.Errorf("duration %q must be positive", s)
	}
	return td, nil
}
