package kafka

import (
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/couchcryptid/lightning-strike-client/internal/collection"
	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func chunk(body string) pipeline.ChunkResult {
	start := time.Date(2020, 2, 1, 0, 30, 0, 0, time.UTC)
	return pipeline.ChunkResult{
		Collection: collection.Parse(domain.FormatBlitzenV3, []byte(body)),
		Start:      start,
		End:        start.Add(15 * time.Minute),
	}
}

func TestSerializeToMessage(t *testing.T) {
	r := chunk(`[ {"latitude": -41.2, "longitude": 174.7}, {"latitude": -36.8, "longitude": 174.7} ]`)

	msg, err := serializeToMessage(r)
	require.NoError(t, err)

	wantKey := strconv.FormatUint(xxhash.Sum64String(string(domain.FormatBlitzenV3)+"|2020-02-01T00:30:00.000Z"), 16)
	assert.Equal(t, []byte(wantKey), msg.Key)
	assert.JSONEq(t, `[{"latitude":-41.2,"longitude":174.7},{"latitude":-36.8,"longitude":174.7}]`, string(msg.Value))

	require.Len(t, msg.Headers, 4)
	headers := map[string]string{}
	for _, h := range msg.Headers {
		headers[h.Key] = string(h.Value)
	}
	assert.Equal(t, string(domain.FormatBlitzenV3), headers["content_type"])
	assert.Equal(t, "2020-02-01T00:30:00.000Z", headers["chunk_start"])
	assert.Equal(t, "2020-02-01T00:45:00.000Z", headers["chunk_end"])
	assert.Equal(t, "2", headers["strikes"])
}

func TestSerializeToMessage_StableKey(t *testing.T) {
	a, err := serializeToMessage(chunk(`[]`))
	require.NoError(t, err)
	b, err := serializeToMessage(chunk(`[{"latitude":1}]`))
	require.NoError(t, err)
	assert.Equal(t, a.Key, b.Key)
}

func TestSerializeToMessage_FailedCollection(t *testing.T) {
	r := chunk(`[]`)
	r.Collection = collection.Failed(domain.FormatBlitzenV3, errors.New("upstream failure"))

	_, err := serializeToMessage(r)
	assert.ErrorContains(t, err, "upstream failure")
}
