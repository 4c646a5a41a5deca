package checkpoint

import (
	"os"
	"testing"

	"boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTracker(t *testing.T) *Tracker {
	t.Helper()
	return New(t.TempDir(), "danbooru", "cat girl", logger.NewTestLogger())
}

func TestSaveLoad(t *testing.T) {
	tracker := newTracker(t)

	newest := &post.Post{
		ID:        123,
		URL:       "https://cdn.donmai.us/abc.png",
		MD5:       "abc",
		Extension: "png",
		Rating:    post.RatingSafe,
		Tags:      post.TagSet([]string{"cat", "girl"}),
	}
	require.NoError(t, tracker.Save(newest))

	loaded := tracker.Load()
	require.NotNil(t, loaded)
	assert.Equal(t, newest, loaded)
}

func TestLoadMissing(t *testing.T) {
	tracker := newTracker(t)
	assert.Nil(t, tracker.Load())
}

func TestLoadCorrupt(t *testing.T) {
	tracker := newTracker(t)
	require.NoError(t, os.MkdirAll(tracker.Dir(), 0755))
	require.NoError(t, os.WriteFile(tracker.Path(), []byte("garbage"), 0644))

	assert.Nil(t, tracker.Load())

	// The stale marker is gone so the next run starts clean.
	_, err := os.Stat(tracker.Path())
	assert.True(t, os.IsNotExist(err))
}

func TestApply(t *testing.T) {
	makeQueue := func(ids ...uint64) *post.Queue {
		q := &post.Queue{Tags: []string{"cat"}}
		for _, id := range ids {
			q.Posts = append(q.Posts, post.Post{ID: id, MD5: "m", Extension: "png"})
		}
		return q
	}

	t.Run("no marker leaves the queue alone", func(t *testing.T) {
		tracker := newTracker(t)
		q := makeQueue(10, 7, 5)

		require.NoError(t, tracker.Apply(q))
		assert.Len(t, q.Posts, 3)
	})

	t.Run("keeps only posts newer than the marker", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.Save(&post.Post{ID: 7}))

		q := makeQueue(10, 8, 7, 5)
		require.NoError(t, tracker.Apply(q))

		require.Len(t, q.Posts, 2)
		assert.Equal(t, uint64(10), q.Posts[0].ID)
		assert.Equal(t, uint64(8), q.Posts[1].ID)
	})

	t.Run("nothing newer is a zero-work run", func(t *testing.T) {
		tracker := newTracker(t)
		require.NoError(t, tracker.Save(&post.Post{ID: 100}))

		q := makeQueue(10, 7, 5)
		err := tracker.Apply(q)
		assert.ErrorIs(t, err, errors.ErrNoPostsInQueue)
		assert.Empty(t, q.Posts)
	})
}

func TestSaveNilIsNoop(t *testing.T) {
	tracker := newTracker(t)
	require.NoError(t, tracker.Save(nil))
	assert.Nil(t, tracker.Load())
}
