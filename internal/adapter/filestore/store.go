// Package filestore persists chunk collections as one file per chunk and
// recovers the resume point from the files already written.
package filestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	"github.com/sosodev/duration"
)

// Name template tokens.
const (
	TokenStartDate = "{START_DATE}"
	TokenEndDate   = "{END_DATE}"
	TokenDuration  = "{DURATION}"
	TokenBBox      = "{BBOX}"
)

// DefaultTemplate names files after their chunk bounds.
const DefaultTemplate = TokenStartDate + "--" + TokenEndDate

// Store writes chunk collections into a directory using a name template.
// It implements pipeline.ChunkSink and pipeline.ResumeSource.
type Store struct {
	dir      string
	template string
	bbox     domain.BBox
	chunk    time.Duration
	logger   *slog.Logger
}

// New creates a Store. An empty template selects DefaultTemplate.
func New(dir, template string, bbox domain.BBox, chunk time.Duration, logger *slog.Logger) *Store {
	if template == "" {
		template = DefaultTemplate
	}
	return &Store{dir: dir, template: template, bbox: bbox, chunk: chunk, logger: logger}
}

// Dir returns the output directory.
func (s *Store) Dir() string { return s.dir }

// Write creates dir if needed and writes body to dir/name, replacing any
// existing file.
func (s *Store) Write(ctx context.Context, dir, name string, body []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create output directory: %w", err)
	}
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, body, 0o644); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	s.logger.Debug("wrote strike file", "path", path, "bytes", len(body))
	return nil
}

// FileName renders the template for a chunk and appends the format's
// extension.
func (s *Store) FileName(format domain.Format, iv domain.Interval) string {
	r := strings.NewReplacer(
		TokenStartDate, FormatStamp(iv.Start),
		TokenEndDate, FormatStamp(iv.End),
		TokenDuration, duration.Format(s.chunk),
		TokenBBox, s.bbox.Join("_"),
	)
	return r.Replace(s.template) + "." + format.Extension()
}

// Name implements pipeline.ChunkSink.
func (s *Store) Name() string { return "filestore" }

// Deliver implements pipeline.ChunkSink.
func (s *Store) Deliver(ctx context.Context, r pipeline.ChunkResult) error {
	body, err := r.Collection.Bytes()
	if err != nil {
		return fmt.Errorf("serialize chunk %s: %w", r.Interval(), err)
	}
	return s.Write(ctx, s.dir, s.FileName(r.Collection.Format(), r.Interval()), body)
}

// Entry is a persisted file whose name matched the template.
type Entry struct {
	Name  string
	Start time.Time
	End   time.Time
}

// HasStart reports whether the template carried the start date.
func (e Entry) HasStart() bool { return !e.Start.IsZero() }

// HasEnd reports whether the template carried the end date.
func (e Entry) HasEnd() bool { return !e.End.IsZero() }

// Scan lists the files in the output directory whose names match the
// template, sorted by name. A missing directory yields no entries. It is an
// error when files are present but none match.
func (s *Store) Scan() ([]Entry, error) {
	dirEntries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read output directory: %w", err)
	}

	pattern := s.namePattern()
	startIdx, endIdx := pattern.SubexpIndex("start"), pattern.SubexpIndex("end")

	var (
		entries []Entry
		files   int
	)
	for _, de := range dirEntries {
		if de.IsDir() {
			continue
		}
		files++
		m := pattern.FindStringSubmatch(de.Name())
		if m == nil {
			continue
		}
		e := Entry{Name: de.Name()}
		if startIdx >= 0 {
			if e.Start, err = ParseStamp(m[startIdx]); err != nil {
				continue
			}
		}
		if endIdx >= 0 {
			if e.End, err = ParseStamp(m[endIdx]); err != nil {
				continue
			}
		}
		entries = append(entries, e)
	}
	if files > 0 && len(entries) == 0 {
		return nil, fmt.Errorf("%d files in %s but none match name template %q", files, s.dir, s.template)
	}
	return entries, nil
}

// LatestEnd implements pipeline.ResumeSource. It prefers the newest end
// date; with only start dates in the template it returns the newest start
// plus one chunk.
func (s *Store) LatestEnd() (time.Time, bool, error) {
	if !strings.Contains(s.template, TokenStartDate) && !strings.Contains(s.template, TokenEndDate) {
		s.logger.Warn("no date in output name template, cannot resume from files", "template", s.template)
		return time.Time{}, false, nil
	}

	entries, err := s.Scan()
	if err != nil {
		return time.Time{}, false, err
	}

	var latest time.Time
	for _, e := range entries {
		candidate := e.End
		if !e.HasEnd() {
			candidate = e.Start.Add(s.chunk)
		}
		if candidate.After(latest) {
			latest = candidate
		}
	}
	return latest, !latest.IsZero(), nil
}

const (
	stampPattern = `\d{4}_\d{2}_\d{2}T\d{2}_\d{2}_\d{2}_\d{3}Z`
	stampLayout  = "2006-01-02T15:04:05.000Z"
)

// namePattern turns the template into an anchored regexp. The first start
// and end date tokens become the "start" and "end" groups.
func (s *Store) namePattern() *regexp.Regexp {
	tokens := regexp.MustCompile(`\{(START_DATE|END_DATE|DURATION|BBOX)\}`)
	var b strings.Builder
	b.WriteString("^")
	named := map[string]bool{}
	last := 0
	for _, loc := range tokens.FindAllStringIndex(s.template, -1) {
		b.WriteString(regexp.QuoteMeta(s.template[last:loc[0]]))
		switch tok := s.template[loc[0]:loc[1]]; tok {
		case TokenStartDate, TokenEndDate:
			group := "start"
			if tok == TokenEndDate {
				group = "end"
			}
			if named[group] {
				b.WriteString(stampPattern)
			} else {
				named[group] = true
				b.WriteString("(?P<" + group + ">" + stampPattern + ")")
			}
		case TokenDuration:
			b.WriteString(`P[0-9A-Z.]*`)
		case TokenBBox:
			b.WriteString(`[-0-9._]+`)
		}
		last = loc[1]
	}
	b.WriteString(regexp.QuoteMeta(s.template[last:]))
	b.WriteString(`\.[a-z]+$`)
	return regexp.MustCompile(b.String())
}

// FormatStamp renders t as 2006_01_02T15_04_05_000Z in UTC.
func FormatStamp(t time.Time) string {
	b := []byte(t.UTC().Format(stampLayout))
	for _, i := range []int{4, 7, 13, 16, 19} {
		b[i] = '_'
	}
	return string(b)
}

// ParseStamp parses a FormatStamp timestamp.
func ParseStamp(s string) (time.Time, error) {
	if len(s) != len(stampLayout) {
		return time.Time{}, fmt.Errorf("timestamp %q: unexpected length", s)
	}
	b := []byte(s)
	b[4], b[7], b[13], b[16], b[19] = '-', '-', ':', ':', '.'
	t, err := time.Parse(stampLayout, string(b))
	if err != nil {
		return time.Time{}, fmt.Errorf("timestamp %q: %w", s, err)
	}
	return t.UTC(), nil
}
