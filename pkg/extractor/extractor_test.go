package extractor

import (
	"context"
	"testing"

	"golang.org/x/time/rate"

	"boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
	"boorudl/pkg/sites"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeAdapter serves pre-built pages and records how many were requested.
type fakeAdapter struct {
	tags     []string
	maxTags  int
	pages    [][]post.Post
	count    *uint64
	fetched  []int
	fetchErr error
}

func (f *fakeAdapter) Source() sites.Imageboard { return sites.Danbooru }
func (f *fakeAdapter) Tags() []string           { return f.tags }
func (f *fakeAdapter) MaxTags() int             { return f.maxTags }

func (f *fakeAdapter) FetchPage(ctx context.Context, page int) ([]post.Post, error) {
	f.fetched = append(f.fetched, page)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	if page-1 >= len(f.pages) {
		return nil, nil
	}
	return f.pages[page-1], nil
}

// countingAdapter adds the count pre-flight on top of fakeAdapter.
type countingAdapter struct {
	fakeAdapter
}

func (c *countingAdapter) EstimateCount(ctx context.Context) (uint64, error) {
	return *c.count, nil
}

func makePosts(ids ...uint64) []post.Post {
	posts := make([]post.Post, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, post.Post{
			ID:        id,
			URL:       "https://example.com/file.png",
			MD5:       "abc",
			Extension: "png",
			Rating:    post.RatingSafe,
		})
	}
	return posts
}

// newTestExtractor builds an extractor with the inter-page delay removed.
func newTestExtractor(adapter sites.Adapter, opts Options) *Extractor {
	e := New(adapter, opts, logger.NewTestLogger())
	e.limiter = rate.NewLimiter(rate.Inf, 1)
	return e
}

func TestExtract(t *testing.T) {
	t.Run("collects all pages sorted descending", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:  []string{"cat"},
			pages: [][]post.Post{makePosts(30, 20), makePosts(10, 5)},
		}
		e := newTestExtractor(adapter, Options{})

		queue, err := e.Extract(context.Background())
		require.NoError(t, err)
		require.Len(t, queue.Posts, 4)

		for i := 1; i < len(queue.Posts); i++ {
			assert.Greater(t, queue.Posts[i-1].ID, queue.Posts[i].ID)
		}
		// Empty page 3 terminated the loop.
		assert.Equal(t, []int{1, 2, 3}, adapter.fetched)
	})

	t.Run("too many tags", func(t *testing.T) {
		adapter := &fakeAdapter{tags: []string{"a", "b", "c"}, maxTags: 2}
		e := newTestExtractor(adapter, Options{})

		_, err := e.Extract(context.Background())
		require.Error(t, err)
		assert.Equal(t, errors.KindTooManyTags, errors.KindOf(err))
		assert.Empty(t, adapter.fetched)
	})

	t.Run("zero count pre-flight", func(t *testing.T) {
		var zero uint64
		adapter := &countingAdapter{fakeAdapter{tags: []string{"cat"}, count: &zero}}
		e := newTestExtractor(adapter, Options{})

		_, err := e.Extract(context.Background())
		assert.ErrorIs(t, err, errors.ErrZeroPosts)
		assert.Empty(t, adapter.fetched)
	})

	t.Run("empty first page", func(t *testing.T) {
		adapter := &fakeAdapter{tags: []string{"cat"}}
		e := newTestExtractor(adapter, Options{})

		_, err := e.Extract(context.Background())
		assert.ErrorIs(t, err, errors.ErrZeroPosts)
	})

	t.Run("limit stops the loop", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:  []string{"cat"},
			pages: [][]post.Post{makePosts(5, 4), makePosts(3, 2), makePosts(1)},
		}
		e := newTestExtractor(adapter, Options{Limit: 3})

		queue, err := e.Extract(context.Background())
		require.NoError(t, err)
		assert.Len(t, queue.Posts, 3)
		// Page 3 was never requested.
		assert.Equal(t, []int{1, 2}, adapter.fetched)
	})

	t.Run("start page offset", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:  []string{"cat"},
			pages: [][]post.Post{makePosts(9), makePosts(8), makePosts(7)},
		}
		e := newTestExtractor(adapter, Options{StartPage: 2})

		queue, err := e.Extract(context.Background())
		require.NoError(t, err)
		require.Len(t, queue.Posts, 2)
		assert.Equal(t, uint64(8), queue.Posts[0].ID)
		assert.Equal(t, []int{2, 3, 4}, adapter.fetched)
	})

	t.Run("fetch error is terminal", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:     []string{"cat"},
			fetchErr: errors.Connection(context.DeadlineExceeded),
		}
		e := newTestExtractor(adapter, Options{})

		_, err := e.Extract(context.Background())
		assert.Equal(t, errors.KindConnection, errors.KindOf(err))
	})
}

// dropFilter removes posts whose ID is in the drop set.
type dropFilter struct {
	drop map[uint64]bool
}

func (d *dropFilter) Filter(posts []post.Post) (uint64, []post.Post) {
	var removed uint64
	kept := make([]post.Post, 0, len(posts))
	for _, p := range posts {
		if d.drop[p.ID] {
			removed++
			continue
		}
		kept = append(kept, p)
	}
	return removed, kept
}

func TestExtractWithFilter(t *testing.T) {
	adapter := &fakeAdapter{
		tags:  []string{"cat"},
		pages: [][]post.Post{makePosts(10, 7, 5)},
	}
	e := newTestExtractor(adapter, Options{
		Filter: &dropFilter{drop: map[uint64]bool{7: true}},
	})

	queue, err := e.Extract(context.Background())
	require.NoError(t, err)
	require.Len(t, queue.Posts, 2)
	assert.Equal(t, uint64(10), queue.Posts[0].ID)
	assert.Equal(t, uint64(5), queue.Posts[1].ID)
	assert.Equal(t, uint64(1), e.Removed())
}

func TestRemovedResetsBetweenRuns(t *testing.T) {
	adapter := &fakeAdapter{
		tags:  []string{"cat"},
		pages: [][]post.Post{makePosts(10, 7, 5)},
	}
	e := newTestExtractor(adapter, Options{
		Filter: &dropFilter{drop: map[uint64]bool{7: true}},
	})

	_, err := e.Extract(context.Background())
	require.NoError(t, err)
	_, err = e.Extract(context.Background())
	require.NoError(t, err)

	assert.Equal(t, uint64(1), e.Removed())
}

func TestStream(t *testing.T) {
	t.Run("delivers every post", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:  []string{"cat"},
			pages: [][]post.Post{makePosts(3, 2), makePosts(1)},
		}
		e := newTestExtractor(adapter, Options{})

		out, g := e.Stream(context.Background())
		var got []uint64
		for p := range out {
			got = append(got, p.ID)
		}
		require.NoError(t, g.Wait())
		assert.Equal(t, []uint64{3, 2, 1}, got)
	})

	t.Run("producer aborts when consumer is gone", func(t *testing.T) {
		adapter := &fakeAdapter{
			tags:  []string{"cat"},
			pages: [][]post.Post{makePosts(3, 2), makePosts(1)},
		}
		e := newTestExtractor(adapter, Options{})

		ctx, cancel := context.WithCancel(context.Background())
		out, g := e.Stream(ctx)

		// Take one post, then walk away without draining the rest.
		<-out
		cancel()

		assert.ErrorIs(t, g.Wait(), context.Canceled)
	})

	t.Run("empty result is zero posts", func(t *testing.T) {
		adapter := &fakeAdapter{tags: []string{"cat"}}
		e := newTestExtractor(adapter, Options{})

		out, g := e.Stream(context.Background())
		for range out {
		}
		assert.ErrorIs(t, g.Wait(), errors.ErrZeroPosts)
	})
}
