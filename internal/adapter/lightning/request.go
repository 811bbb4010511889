package lightning

import (
	"net/url"
	"strconv"
	"strings"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
)

// encodeParams renders the query string in the order the API documents:
// time, bbox, limit, offset, then the optional provider and direction
// filters. url.Values is not used because it sorts keys.
func encodeParams(q domain.Query, offset int) string {
	var b strings.Builder
	b.WriteString("time=")
	b.WriteString(q.Time.String())
	b.WriteString("&bbox=")
	b.WriteString(q.BBox.String())
	b.WriteString("&limit=")
	b.WriteString(strconv.Itoa(q.Limit))
	b.WriteString("&offset=")
	b.WriteString(strconv.Itoa(offset))

	if len(q.Providers) > 0 {
		b.WriteString("&provider=")
		b.WriteString(joinEscaped(q.Providers))
	}
	if len(q.Directions) > 0 {
		b.WriteString("&direction=")
		b.WriteString(joinEscaped(q.Directions))
	}
	return b.String()
}

func joinEscaped[T ~string](vals []T) string {
	parts := make([]string, len(vals))
	for i, v := range vals {
		parts[i] = url.QueryEscape(string(v))
	}
	return strings.Join(parts, ",")
}
