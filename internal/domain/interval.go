package domain

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

const (
	// FinalisedGracePeriod is how far behind now a window must end before
	// its strikes are considered complete.
	FinalisedGracePeriod = 10 * time.Minute

	// MaxParallelQueries caps concurrent chunk fetches.
	MaxParallelQueries = 20

	// DefaultParallelQueries is used when no parallelism is requested.
	DefaultParallelQueries = 10
)

// InstantLayout renders instants the way the API expects them.
const InstantLayout = "2006-01-02T15:04:05.000Z07:00"

// FormatInstant renders t in UTC with millisecond precision.
func FormatInstant(t time.Time) string {
	return t.UTC().Format(InstantLayout)
}

// Horizon returns the latest finalised instant relative to now.
func Horizon(now time.Time) time.Time {
	return now.Add(-FinalisedGracePeriod)
}

// Interval is a half-open time window [Start, End). A zero End marks an
// open-ended window.
type Interval struct {
	Start time.Time
	End   time.Time
}

// NewInterval builds an interval normalised to UTC.
func NewInterval(start, end time.Time) Interval {
	iv := Interval{Start: start.UTC()}
	if !end.IsZero() {
		iv.End = end.UTC()
	}
	return iv
}

// IsOpen reports whether the interval has no end.
func (iv Interval) IsOpen() bool { return iv.End.IsZero() }

// Duration is the length of a closed interval.
func (iv Interval) Duration() time.Duration { return iv.End.Sub(iv.Start) }

// Validate requires a closed interval with Start <= End.
func (iv Interval) Validate() error {
	if iv.Start.IsZero() || iv.End.IsZero() {
		return errors.New("interval requires start and end")
	}
	if iv.End.Before(iv.Start) {
		return fmt.Errorf("interval end %s before start %s", FormatInstant(iv.End), FormatInstant(iv.Start))
	}
	return nil
}

// String renders the interval in the API's time parameter form.
func (iv Interval) String() string {
	return FormatInstant(iv.Start) + "--" + FormatInstant(iv.End)
}

// ParseInterval parses "start--end" with RFC 3339 instants.
func ParseInterval(s string) (Interval, error) {
	a, b, ok := strings.Cut(s, "--")
	if !ok {
		return Interval{}, fmt.Errorf("interval %q: missing \"--\" separator", s)
	}
	start, err := time.Parse(time.RFC3339Nano, a)
	if err != nil {
		return Interval{}, fmt.Errorf("interval start: %w", err)
	}
	end, err := time.Parse(time.RFC3339Nano, b)
	if err != nil {
		return Interval{}, fmt.Errorf("interval end: %w", err)
	}
	iv := NewInterval(start, end)
	return iv, iv.Validate()
}

// Split divides the interval into consecutive chunks of length d starting
// at Start. The last chunk is truncated to End. An empty interval yields no
// chunks.
func (iv Interval) Split(d time.Duration) []Interval {
	if d <= 0 || !iv.Start.Before(iv.End) {
		return nil
	}
	chunks := make([]Interval, 0, int(iv.Duration()/d)+1)
	for s := iv.Start; s.Before(iv.End); s = s.Add(d) {
		e := s.Add(d)
		if e.After(iv.End) {
			e = iv.End
		}
		chunks = append(chunks, Interval{Start: s, End: e})
	}
	return chunks
}
