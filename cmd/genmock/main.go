// Command genmock writes deterministic mock strike chunk files in any of the
// supported formats. The output has the same layout the strikes command
// persists, so it can feed cmd/validate or stand in for API data offline.
//
// Usage:
//
//	go run ./cmd/genmock \
//	  -out data/mock \
//	  -format csv \
//	  -window 2020-02-01T00:00:00Z--2020-02-01T02:00:00Z \
//	  -per-chunk 25
package main

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"log/slog"
	"math"
	"math/rand/v2"
	"strconv"
	"time"

	"github.com/couchcryptid/lightning-strike-client/internal/adapter/filestore"
	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/config"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
)

// strike is a synthetic detection rendered into every wire shape.
type strike struct {
	at        time.Time
	lat, lon  float64
	kA        float64
	direction domain.Direction
	bearing   float64
	major     float64
	minor     float64
}

func main() {
	if err := run(); err != nil {
		log.Fatal(err)
	}
}

func run() error {
	out := flag.String("out", "", "output directory")
	formatName := flag.String("format", "geojson-v3", "strike format (MIME type or short name)")
	window := flag.String("window", "2020-02-01T00:00:00Z--2020-02-01T02:00:00Z", "time window start--end")
	bboxFlag := flag.String("bbox", "165,-48,179,-34", "bounding box lon,lat,lon,lat")
	chunkISO := flag.String("chunk", "PT15M", "chunk duration (ISO-8601)")
	perChunk := flag.Int("per-chunk", 25, "strikes per chunk")
	seed := flag.Uint64("seed", 20200201, "random seed")
	template := flag.String("template", filestore.DefaultTemplate, "output file name template")
	flag.Parse()

	if *out == "" {
		flag.Usage()
		return fmt.Errorf("missing required flag: -out")
	}

	format, err := domain.ParseFormat(*formatName)
	if err != nil {
		return err
	}
	iv, err := domain.ParseInterval(*window)
	if err != nil {
		return err
	}
	bbox, err := domain.ParseBBox(*bboxFlag)
	if err != nil {
		return err
	}
	chunk, err := config.ParseISODuration(*chunkISO)
	if err != nil {
		return err
	}

	rng := rand.New(rand.NewPCG(*seed, *seed>>1))
	store := filestore.New(*out, *template, bbox, chunk, slog.Default())

	total := 0
	for _, c := range iv.Split(chunk) {
		strikes := generate(rng, c, bbox, *perChunk)
		body, err := render(format, bbox, strikes)
		if err != nil {
			return fmt.Errorf("render %s: %w", c, err)
		}
		coll := collection.Parse(format, body)
		if err := coll.Err(); err != nil {
			return fmt.Errorf("generated %s payload does not parse: %w", format.Shape(), err)
		}
		if err := store.Deliver(context.Background(), pipeline.ChunkResult{Collection: coll, Start: c.Start, End: c.End}); err != nil {
			return err
		}
		total += coll.Len()
	}

	log.Printf("wrote %d strikes in %d chunks to %s", total, len(iv.Split(chunk)), *out)
	return nil
}

func generate(rng *rand.Rand, iv domain.Interval, bbox domain.BBox, n int) []strike {
	out := make([]strike, n)
	span := iv.Duration()
	for i := range out {
		dir := domain.DirectionCloud
		if rng.IntN(3) == 0 {
			dir = domain.DirectionGround
		}
		out[i] = strike{
			at:        iv.Start.Add(time.Duration(rng.Int64N(int64(span)))).Truncate(time.Millisecond),
			lat:       round(bbox[1]+rng.Float64()*(bbox[3]-bbox[1]), 6),
			lon:       round(bbox[0]+rng.Float64()*(bbox[2]-bbox[0]), 6),
			kA:        round(rng.NormFloat64()*15, 1),
			direction: dir,
			bearing:   round(rng.Float64()*180-90, 0),
			major:     round(0.1+rng.Float64()*2, 2),
			minor:     round(0.1+rng.Float64()*0.5, 2),
		}
	}
	return out
}

func round(v float64, places int) float64 {
	p := math.Pow10(places)
	return math.Round(v*p) / p
}

func render(format domain.Format, bbox domain.BBox, strikes []strike) ([]byte, error) {
	switch format.Shape() {
	case domain.ShapeKML:
		return renderKML(strikes), nil
	case domain.ShapeCSV:
		return renderCSV(strikes)
	case domain.ShapeGeoJSON:
		return renderGeoJSON(bbox, strikes)
	case domain.ShapeBlitzen:
		return renderBlitzen(format, strikes)
	default:
		return nil, &domain.UnsupportedFormatError{Format: string(format)}
	}
}

func renderBlitzen(format domain.Format, strikes []strike) ([]byte, error) {
	records := make([]any, len(strikes))
	for i, s := range strikes {
		v2 := collection.BlitzenStrikeV2{
			Amplitude:  s.kA,
			Direction:  string(s.direction),
			Latitude:   s.lat,
			Longitude:  s.lon,
			TimeMillis: s.at.UnixMilli(),
			DateTime:   domain.FormatInstant(s.at),
			Ellipse:    collection.Ellipse{Bearing: s.bearing, Major: s.major, Minor: s.minor},
		}
		switch format {
		case domain.FormatBlitzenV1:
			records[i] = collection.BlitzenStrikeV1{
				Current:    s.kA,
				Direction:  string(s.direction),
				Latitude:   s.lat,
				Longitude:  s.lon,
				TimeMillis: s.at.UnixMilli(),
			}
		case domain.FormatBlitzenV2:
			records[i] = v2
		default:
			records[i] = collection.BlitzenStrikeV3{
				BlitzenStrikeV2: v2,
				SensorDetails:   collection.SensorDetails{ReportingSensors: 4, DegreesFreedom: 2, SensorInformation: "mock"},
			}
		}
	}
	return json.Marshal(records)
}

func renderGeoJSON(bbox domain.BBox, strikes []strike) ([]byte, error) {
	features := make([]collection.StrikeFeature, len(strikes))
	for i, s := range strikes {
		kA := s.kA
		features[i] = collection.StrikeFeature{
			Type: "Feature",
			ID:   strconv.FormatInt(s.at.UnixMilli(), 36) + strconv.Itoa(i),
			Geometry: collection.PointGeometry{
				Type:        "Point",
				Coordinates: []float64{s.lon, s.lat},
			},
			Properties: collection.StrikeProperties{
				DateTime:   domain.FormatInstant(s.at),
				Source:     string(domain.ProviderMock),
				StrikeType: string(s.direction),
				KA:         &kA,
			},
		}
	}
	return json.Marshal(map[string]any{
		"type":     "FeatureCollection",
		"features": features,
		"bbox":     bbox,
	})
}

func renderCSV(strikes []strike) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	rows := [][]string{{"longitude", "latitude", "date_time", "kA", "strike_type", "source"}}
	for _, s := range strikes {
		rows = append(rows, []string{
			strconv.FormatFloat(s.lon, 'f', -1, 64),
			strconv.FormatFloat(s.lat, 'f', -1, 64),
			domain.FormatInstant(s.at),
			strconv.FormatFloat(s.kA, 'f', -1, 64),
			string(s.direction),
			string(domain.ProviderMock),
		})
	}
	if err := w.WriteAll(rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func renderKML(strikes []strike) []byte {
	var buf bytes.Buffer
	buf.WriteString(`<?xml version="1.0" encoding="UTF-8"?><kml xmlns="http://www.opengis.net/kml/2.2"><Document>`)
	for _, s := range strikes {
		at := domain.FormatInstant(s.at)
		kA := strconv.FormatFloat(s.kA, 'f', -1, 64)
		fmt.Fprintf(&buf,
			`<Placemark><name>Lightning Strike</name><description>Time:%s, Current:%skA, Type:%s</description>`+
				`<ExtendedData><Data name="date_time"><value>%s</value></Data><Data name="kA"><value>%s</value></Data>`+
				`<Data name="strike_type"><value>%s</value></Data><Data name="source"><value>%s</value></Data></ExtendedData>`+
				`<Point><coordinates>%s,%s</coordinates></Point></Placemark>`,
			at, kA, s.direction, at, kA, s.direction, domain.ProviderMock,
			strconv.FormatFloat(s.lon, 'f', -1, 64), strconv.FormatFloat(s.lat, 'f', -1, 64))
	}
	buf.WriteString(`</Document></kml>`)
	return buf.Bytes()
}
