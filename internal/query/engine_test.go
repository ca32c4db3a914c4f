package query

import (
	"context"
	"errors"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kalambet/flowmart/internal/catalog"
)

func newSeedEngine(t *testing.T) *Engine {
	t.Helper()
	store, err := catalog.Load(context.Background(), catalog.SeedSource{})
	require.NoError(t, err)
	return NewEngine(store, 0)
}

func ids(records []catalog.WorkflowRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func TestQuery_Defaults(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Page)
	assert.Equal(t, 10, res.Limit)
	assert.Equal(t, 6, res.TotalItems)
	assert.Equal(t, 1, res.TotalPages)
	assert.Equal(t, []string{"1", "2", "3", "4", "5", "6"}, ids(res.Items))
	assert.False(t, res.HasPrevPage)
	assert.False(t, res.HasNextPage)
	assert.Nil(t, res.PrevPage)
	assert.Nil(t, res.NextPage)
}

func TestQuery_TagMarketing(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{Tag: "Marketing"})
	require.NoError(t, err)

	require.Equal(t, 1, res.TotalItems)
	assert.Equal(t, "Lead Enrichment with Clearbit", res.Items[0].Title)

	lower, err := e.Query(context.Background(), Params{Tag: "marketing"})
	require.NoError(t, err)
	assert.Equal(t, res, lower)
}

func TestQuery_SyncSecondPage(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{SearchText: "sync", Limit: 1, Page: 2})
	require.NoError(t, err)

	require.Len(t, res.Items, 1)
	assert.Equal(t, "Notion to Jira Sync", res.Items[0].Title)
	assert.Equal(t, 2, res.TotalItems)
	assert.Equal(t, 2, res.TotalPages)
	assert.True(t, res.HasPrevPage)
	assert.False(t, res.HasNextPage)
	require.NotNil(t, res.PrevPage)
	assert.Equal(t, 1, *res.PrevPage)
	assert.Equal(t, 2, res.PagingCounter)
}

func TestQuery_SearchAndTagCompose(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{SearchText: "report", Tag: "email"})
	require.NoError(t, err)
	assert.Equal(t, []string{"3"}, ids(res.Items))
}

func TestQuery_SearchMatchesTags(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{SearchText: "AGILE"})
	require.NoError(t, err)
	assert.Equal(t, []string{"6"}, ids(res.Items))
}

func TestQuery_PageBeyondEnd(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{Page: 9, Limit: 4})
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.NotNil(t, res.Items)
	assert.Equal(t, 6, res.TotalItems)
	assert.Equal(t, 2, res.TotalPages)
	assert.False(t, res.HasNextPage)
	assert.True(t, res.HasPrevPage)
	assert.Equal(t, 0, res.PagingCounter)
}

func TestQuery_HugePageDoesNotOverflow(t *testing.T) {
	e := newSeedEngine(t)
	for _, page := range []int{math.MaxInt/100 + 2, math.MaxInt/50 + 2, math.MaxInt} {
		var res PageResult[catalog.WorkflowRecord]
		require.NotPanics(t, func() {
			var err error
			res, err = e.Query(context.Background(), Params{Page: page, Limit: MaxLimit})
			require.NoError(t, err)
		}, "page=%d", page)

		assert.Empty(t, res.Items)
		assert.Equal(t, 6, res.TotalItems)
		assert.Equal(t, 1, res.TotalPages)
		assert.Equal(t, page, res.Page)
		assert.Equal(t, 0, res.PagingCounter)
		assert.False(t, res.HasNextPage)
		require.NotNil(t, res.PrevPage)
		assert.Equal(t, page-1, *res.PrevPage)
	}
}

func TestQuery_NoMatches(t *testing.T) {
	e := newSeedEngine(t)
	res, err := e.Query(context.Background(), Params{SearchText: "kubernetes", Page: 3})
	require.NoError(t, err)

	assert.Empty(t, res.Items)
	assert.Equal(t, 0, res.TotalItems)
	assert.Equal(t, 0, res.TotalPages)
	assert.Equal(t, 0, res.PagingCounter)
	assert.False(t, res.HasPrevPage)
	assert.False(t, res.HasNextPage)
}

func TestQuery_PaginationInvariants(t *testing.T) {
	e := newSeedEngine(t)
	for limit := 1; limit <= 7; limit++ {
		for page := 1; page <= 8; page++ {
			res, err := e.Query(context.Background(), Params{Page: page, Limit: limit})
			require.NoError(t, err)

			want := res.TotalItems - (page-1)*limit
			if want > limit {
				want = limit
			}
			if want < 0 {
				want = 0
			}
			assert.Len(t, res.Items, want, "page=%d limit=%d", page, limit)
			assert.Equal(t, (res.TotalItems+limit-1)/limit, res.TotalPages)
			assert.Equal(t, page > 1, res.HasPrevPage)
			assert.Equal(t, page < res.TotalPages, res.HasNextPage)
		}
	}
}

func TestQuery_FilteredSubset(t *testing.T) {
	e := newSeedEngine(t)
	for _, text := range []string{"sync", "BOT", "e", "sheet", "finance", "zzz"} {
		res, err := e.Query(context.Background(), Params{SearchText: text, Limit: MaxLimit})
		require.NoError(t, err)
		for _, r := range res.Items {
			_, ok := e.store.Get(r.ID)
			assert.True(t, ok)

			hit := strings.Contains(strings.ToLower(r.Title), strings.ToLower(text)) ||
				strings.Contains(strings.ToLower(r.Description), strings.ToLower(text))
			for _, tag := range r.Tags {
				hit = hit || strings.Contains(strings.ToLower(tag), strings.ToLower(text))
			}
			assert.True(t, hit, "record %s does not contain %q", r.ID, text)
		}
	}
}

func TestQuery_Idempotent(t *testing.T) {
	e := newSeedEngine(t)
	p := Params{SearchText: "o", Limit: 2, Page: 2}
	a, err := e.Query(context.Background(), p)
	require.NoError(t, err)
	b, err := e.Query(context.Background(), p)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestQuery_InvalidParameters(t *testing.T) {
	e := newSeedEngine(t)
	for _, p := range []Params{{Page: -1}, {Limit: -5}, {Limit: MaxLimit + 1}} {
		_, err := e.Query(context.Background(), p)
		assert.True(t, errors.Is(err, ErrInvalidParameter), "params %+v: err = %v", p, err)
	}
}

func TestQuery_LatencyHonoursCancellation(t *testing.T) {
	store, err := catalog.Load(context.Background(), catalog.SeedSource{})
	require.NoError(t, err)
	e := NewEngine(store, 5*time.Second)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err = e.Query(ctx, Params{})
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
}

func TestGet(t *testing.T) {
	e := newSeedEngine(t)
	w, err := e.Get(context.Background(), "2")
	require.NoError(t, err)
	assert.Equal(t, "lead-enrichment-clearbit", w.Slug)

	_, err = e.Get(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRelated(t *testing.T) {
	e := newSeedEngine(t)

	rel, err := e.Related(context.Background(), "2", 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"1", "3", "4"}, ids(rel))

	rel, err = e.Related(context.Background(), "1", 10)
	require.NoError(t, err)
	assert.Equal(t, []string{"2", "3", "4", "5", "6"}, ids(rel))

	_, err = e.Related(context.Background(), "nope", 3)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestPaginate_Generic(t *testing.T) {
	p := Paginate([]int{1, 2, 3, 4, 5}, 2, 2)
	assert.Equal(t, []int{3, 4}, p.Items)
	assert.Equal(t, 3, p.TotalPages)
	require.NotNil(t, p.NextPage)
	assert.Equal(t, 3, *p.NextPage)

	empty := Paginate([]int(nil), 1, 10)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.TotalPages)
	assert.Equal(t, 0, empty.PagingCounter)

	last := Paginate([]int{1, 2, 3, 4, 5}, 3, 2)
	assert.Equal(t, []int{5}, last.Items)
	assert.Equal(t, 5, last.PagingCounter)

	huge := Paginate([]int{1, 2, 3}, math.MaxInt, math.MaxInt)
	assert.Empty(t, huge.Items)
	assert.Equal(t, 1, huge.TotalPages)
	assert.Equal(t, 0, huge.PagingCounter)
}
