package pipeline_test

import (
	"context"
	"errors"
	"testing"

	"github.com/couchcryptid/lightning-strike-client/internal/domain"
	"github.com/couchcryptid/lightning-strike-client/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExhaustive_FollowsPagination(t *testing.T) {
	pages := &fakePages{more: []bool{true, true, true, false}}
	e := pipeline.NewExhaustive(pages, 0, discardLogger(), newTestMetrics())

	coll, err := e.FetchAll(context.Background(), domain.FormatBlitzenV3, testQuery(at(0, 0), at(0, 15)))
	require.NoError(t, err)

	assert.Equal(t, []int{0, 10, 20, 30}, pages.offsets)
	assert.Equal(t, 4, coll.Len())

	body, err := coll.Serialize()
	require.NoError(t, err)
	assert.Equal(t, `[{"page":0},{"page":1},{"page":2},{"page":3}]`, body)
}

func TestExhaustive_SinglePage(t *testing.T) {
	pages := &fakePages{more: []bool{false}}
	e := pipeline.NewExhaustive(pages, 0, discardLogger(), newTestMetrics())

	coll, err := e.FetchAll(context.Background(), domain.FormatBlitzenV3, testQuery(at(0, 0), at(0, 15)))
	require.NoError(t, err)
	assert.Equal(t, []int{0}, pages.offsets)
	assert.Equal(t, 1, coll.Len())
}

func TestExhaustive_PageLimit(t *testing.T) {
	pages := &fakePages{}
	e := pipeline.NewExhaustive(pages, 3, discardLogger(), newTestMetrics())

	_, err := e.FetchAll(context.Background(), domain.FormatBlitzenV3, testQuery(at(0, 0), at(0, 15)))
	require.ErrorIs(t, err, domain.ErrPageLimitExceeded)
	assert.Len(t, pages.offsets, 3)
}

func TestExhaustive_PageError(t *testing.T) {
	boom := &domain.HTTPError{Status: 500}
	pages := &fakePages{err: boom, errAt: 1}
	e := pipeline.NewExhaustive(pages, 0, discardLogger(), newTestMetrics())

	_, err := e.FetchAll(context.Background(), domain.FormatBlitzenV3, testQuery(at(0, 0), at(0, 15)))

	var he *domain.HTTPError
	require.True(t, errors.As(err, &he))
	assert.Same(t, boom, he)
	assert.Len(t, pages.offsets, 2)
}
