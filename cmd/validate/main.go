// Command validate checks a directory of persisted strike chunk files: every
// file name must match the output template, every payload must parse in the
// expected format with well-formed records, and the chunk intervals must tile
// time without gaps or overlaps.
//
// Usage:
//
//	go run ./cmd/validate \
//	  -dir data/strikes \
//	  -format geojson-v3 \
//	  -template '{START_DATE}--{END_DATE}'
package main

import (
	"bytes"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/adapter/filestore"
	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/config"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// phase tracks pass/fail for a validation phase.
type phase struct {
	name   string
	errors []string
}

func (p *phase) errorf(format string, args ...any) {
	p.errors = append(p.errors, fmt.Sprintf(format, args...))
}

func (p *phase) passed() bool { return len(p.errors) == 0 }

func main() {
	dir := flag.String("dir", "", "directory of persisted chunk files")
	formatName := flag.String("format", "geojson-v3", "expected strike format (MIME type or short name)")
	template := flag.String("template", filestore.DefaultTemplate, "output file name template")
	chunkISO := flag.String("chunk", "PT15M", "expected chunk duration (ISO-8601)")
	flag.Parse()

	if *dir == "" {
		flag.Usage()
		os.Exit(1)
	}

	format, err := domain.ParseFormat(*formatName)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}
	chunk, err := config.ParseISODuration(*chunkISO)
	if err != nil {
		fmt.Fprintf(os.Stderr, "FATAL: %v\n", err)
		os.Exit(1)
	}

	if code := run(os.Stdout, *dir, format, *template, chunk); code != 0 {
		os.Exit(code)
	}
}

func run(out io.Writer, dir string, format domain.Format, template string, chunk time.Duration) int {
	fmt.Fprintln(out, "=== Strike Chunk Validation ===")
	fmt.Fprintln(out)

	store := filestore.New(dir, template, domain.WorldBBox, chunk, slog.New(slog.NewTextHandler(io.Discard, nil)))
	entries, err := store.Scan()
	if err != nil {
		fmt.Fprintf(out, "FATAL: scan %s: %v\n", dir, err)
		return 1
	}
	files, err := listFiles(dir)
	if err != nil {
		fmt.Fprintf(out, "FATAL: list %s: %v\n", dir, err)
		return 1
	}

	phases := []*phase{
		validateNames(files, entries, format),
	}
	parsing, chunks := validatePayloads(dir, entries, format)
	phases = append(phases, parsing, validateRecords(chunks), validateContinuity(entries, chunk))

	strikes := 0
	for _, c := range chunks {
		strikes += c.coll.Len()
	}

	fmt.Fprintln(out)
	allPassed := true
	for _, p := range phases {
		status := "\033[32mPASS\033[0m"
		if !p.passed() {
			status = fmt.Sprintf("\033[31mFAIL (%d errors)\033[0m", len(p.errors))
			allPassed = false
		}
		fmt.Fprintf(out, "  %-42s %s\n", p.name, status)
	}

	fmt.Fprintln(out)
	fmt.Fprintf(out, "Files: %d, chunks: %d, strikes: %d\n", len(files), len(entries), strikes)

	for _, p := range phases {
		if p.passed() {
			continue
		}
		fmt.Fprintf(out, "\n--- %s ---\n", p.name)
		for i, e := range p.errors {
			fmt.Fprintf(out, "  [%d] %s\n", i+1, e)
		}
	}

	if allPassed {
		fmt.Fprintln(out, "\nAll validations passed.")
		return 0
	}
	fmt.Fprintln(out, "\nValidation FAILED.")
	return 1
}

func listFiles(dir string) ([]string, error) {
	des, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	var names []string
	for _, de := range des {
		if !de.IsDir() {
			names = append(names, de.Name())
		}
	}
	return names, nil
}

// ── Phases ──

func validateNames(files []string, entries []filestore.Entry, format domain.Format) *phase {
	p := &phase{name: "File names match template"}
	matched := make(map[string]bool, len(entries))
	for _, e := range entries {
		matched[e.Name] = true
		if !e.HasStart() || !e.HasEnd() {
			p.errorf("%s: template must carry both {START_DATE} and {END_DATE}", e.Name)
		}
		if ext := filepath.Ext(e.Name); ext != "."+format.Extension() {
			p.errorf("%s: extension %q, want %q", e.Name, ext, "."+format.Extension())
		}
	}
	for _, f := range files {
		if !matched[f] {
			p.errorf("%s: does not match the name template", f)
		}
	}
	return p
}

// parsedChunk is a persisted file that parsed cleanly.
type parsedChunk struct {
	entry filestore.Entry
	coll  *collection.Collection
}

func validatePayloads(dir string, entries []filestore.Entry, format domain.Format) (*phase, []parsedChunk) {
	p := &phase{name: "Payloads parse as " + format.Shape().String()}
	var parsed []parsedChunk
	for _, e := range entries {
		body, err := os.ReadFile(filepath.Join(dir, e.Name))
		if err != nil {
			p.errorf("%s: %v", e.Name, err)
			continue
		}
		c := collection.Parse(format, body)
		if err := c.Err(); err != nil {
			p.errorf("%s: %v", e.Name, err)
			continue
		}
		parsed = append(parsed, parsedChunk{entry: e, coll: c})

		// Round-trip stability: serializing and re-parsing must not change the record count.
		again, err := c.Bytes()
		if err != nil {
			p.errorf("%s: serialize: %v", e.Name, err)
			continue
		}
		if n := collection.Parse(format, again).Len(); n != c.Len() {
			p.errorf("%s: %d records after round trip, want %d", e.Name, n, c.Len())
		}
	}
	return p, parsed
}

func validateRecords(chunks []parsedChunk) *phase {
	p := &phase{name: "Records carry a location and time"}
	for _, c := range chunks {
		v, err := c.coll.Value()
		if err != nil {
			continue
		}
		switch tv := v.(type) {
		case *collection.KMLDocument:
			for i, pm := range tv.Placemarks() {
				if !bytes.Contains(pm, []byte("<coordinates>")) {
					p.errorf("%s: placemark %d has no coordinates", c.entry.Name, i)
				}
			}
		case *collection.CSVTable:
			cols, err := tv.Columns()
			if err != nil {
				p.errorf("%s: header: %v", c.entry.Name, err)
				continue
			}
			for _, want := range []string{"longitude", "latitude"} {
				if tv.Len() > 0 && !slices.Contains(cols, want) {
					p.errorf("%s: header lacks %q", c.entry.Name, want)
				}
			}
		case *collection.GeoJSONCollection:
			features, err := collection.DecodeRecords[collection.StrikeFeature](c.coll)
			if err != nil {
				p.errorf("%s: %v", c.entry.Name, err)
				continue
			}
			for i, f := range features {
				if len(f.Geometry.Coordinates) < 2 {
					p.errorf("%s: feature %d has no point coordinates", c.entry.Name, i)
					continue
				}
				checkStrike(p, c.entry, i, f.Geometry.Coordinates[1], parseInstant(f.Properties.DateTime))
			}
		case collection.BlitzenArray:
			strikes, err := collection.DecodeRecords[collection.BlitzenStrikeV1](c.coll)
			if err != nil {
				p.errorf("%s: %v", c.entry.Name, err)
				continue
			}
			for i, s := range strikes {
				var at time.Time
				if s.TimeMillis != 0 {
					at = time.UnixMilli(s.TimeMillis).UTC()
				}
				checkStrike(p, c.entry, i, s.Latitude, at)
			}
		}
	}
	return p
}

// checkStrike reports a latitude outside [-90, 90] or a strike time outside
// the chunk named by the file. A zero time is not checked.
func checkStrike(p *phase, e filestore.Entry, i int, lat float64, at time.Time) {
	if lat < -90 || lat > 90 {
		p.errorf("%s: record %d latitude %g out of range", e.Name, i, lat)
	}
	if at.IsZero() || !e.HasStart() || !e.HasEnd() {
		return
	}
	if at.Before(e.Start) || !at.Before(e.End) {
		p.errorf("%s: record %d at %s is outside the chunk", e.Name, i, domain.FormatInstant(at))
	}
}

func parseInstant(s string) time.Time {
	if strings.TrimSpace(s) == "" {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func validateContinuity(entries []filestore.Entry, chunk time.Duration) *phase {
	p := &phase{name: "Chunks are contiguous"}
	sorted := slices.Clone(entries)
	slices.SortFunc(sorted, func(a, b filestore.Entry) int { return a.Start.Compare(b.Start) })

	for i, e := range sorted {
		if !e.HasStart() || !e.HasEnd() {
			continue
		}
		if !e.Start.Before(e.End) {
			p.errorf("%s: empty or inverted interval", e.Name)
		}
		if e.End.Sub(e.Start) > chunk {
			p.errorf("%s: spans %s, longer than chunk %s", e.Name, e.End.Sub(e.Start), chunk)
		}
		if i == 0 {
			continue
		}
		prev := sorted[i-1]
		switch {
		case e.Start.Before(prev.End):
			p.errorf("%s overlaps %s", e.Name, prev.Name)
		case e.Start.After(prev.End):
			p.errorf("gap between %s and %s (%s missing)", prev.Name, e.Name, e.Start.Sub(prev.End))
		}
	}
	return p
}
