package sites

import (
	"context"
	"net/http"
	"testing"
	"time"

	"boorudl/pkg/logger"
	"boorudl/pkg/post"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    Imageboard
		wantErr bool
	}{
		{name: "danbooru", input: "danbooru", want: Danbooru},
		{name: "uppercase", input: "E621", want: E621},
		{name: "rule34", input: "rule34", want: Rule34},
		{name: "unknown", input: "4chan", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Parse(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
		})
	}
}

func TestMaxPostLimit(t *testing.T) {
	assert.Equal(t, 200, Danbooru.MaxPostLimit())
	assert.Equal(t, 320, E621.MaxPostLimit())
	assert.Equal(t, 1000, Gelbooru.MaxPostLimit())
	assert.Equal(t, 1000, Rule34.MaxPostLimit())
	assert.Equal(t, 100, Konachan.MaxPostLimit())
}

func TestHasAuth(t *testing.T) {
	assert.True(t, Danbooru.HasAuth())
	assert.True(t, E621.HasAuth())
	assert.False(t, Gelbooru.HasAuth())
	assert.False(t, Konachan.HasAuth())
}

func TestDanbooruFetchPage(t *testing.T) {
	client := newTestClient(Danbooru, map[string]interface{}{
		"/posts.json": []map[string]interface{}{
			{
				"id": 42, "md5": "aaa", "file_url": "https://cdn.donmai.us/aaa.png",
				"file_ext": "png", "tag_string": "cat girl", "rating": "g",
			},
			{
				// Hidden post: no file URL, silently dropped.
				"id": 41, "md5": "", "file_url": "",
				"file_ext": "jpg", "tag_string": "banned_artist", "rating": "e",
			},
		},
	})

	adapter := NewDanbooru(client, []string{"cat", "girl"}, logger.NewTestLogger())
	posts, err := adapter.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, uint64(42), posts[0].ID)
	assert.Equal(t, "aaa", posts[0].MD5)
	assert.Equal(t, "png", posts[0].Extension)
	assert.Equal(t, post.RatingSafe, posts[0].Rating)
	assert.True(t, posts[0].Tags.Contains("cat"))
	assert.True(t, posts[0].Tags.Contains("girl"))
}

func TestDanbooruSensitiveRating(t *testing.T) {
	adapter := NewDanbooru(nil, []string{"x"}, logger.NewTestLogger())

	p, ok := adapter.mapItem(danbooruPost{
		ID: 1, MD5: "m", FileURL: "https://cdn.donmai.us/m.jpg",
		FileExt: "jpg", Rating: "s",
	})
	require.True(t, ok)
	assert.Equal(t, post.RatingQuestionable, p.Rating)
}

func TestDanbooruEstimateCount(t *testing.T) {
	t.Run("count present", func(t *testing.T) {
		client := newTestClient(Danbooru, map[string]interface{}{
			"/counts/posts.json": map[string]interface{}{
				"counts": map[string]interface{}{"posts": 1234},
			},
		})
		adapter := NewDanbooru(client, []string{"cat"}, logger.NewTestLogger())

		count, err := adapter.EstimateCount(context.Background())
		require.NoError(t, err)
		assert.Equal(t, uint64(1234), count)
	})

	t.Run("null count is a server error", func(t *testing.T) {
		client := newTestClient(Danbooru, map[string]interface{}{
			"/counts/posts.json": map[string]interface{}{
				"counts": map[string]interface{}{"posts": nil},
			},
		})
		adapter := NewDanbooru(client, []string{"cat"}, logger.NewTestLogger())

		_, err := adapter.EstimateCount(context.Background())
		assert.Error(t, err)
	})
}

func TestE621FetchPage(t *testing.T) {
	client := newTestClient(E621, map[string]interface{}{
		"/posts.json": map[string]interface{}{
			"posts": []map[string]interface{}{
				{
					"id":     9000,
					"file":   map[string]interface{}{"url": "https://static1.e621.net/a.webm", "md5": "bbb", "ext": "webm"},
					"tags":   map[string]interface{}{"general": []string{"wolf"}, "artist": []string{"somebody"}},
					"rating": "e",
				},
				{
					"id":     8999,
					"file":   map[string]interface{}{"url": nil, "md5": "ccc", "ext": "png"},
					"tags":   map[string]interface{}{},
					"rating": "s",
				},
			},
		},
	})

	adapter := NewE621(client, []string{"wolf"}, logger.NewTestLogger())
	posts, err := adapter.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, uint64(9000), posts[0].ID)
	assert.Equal(t, post.RatingExplicit, posts[0].Rating)
	assert.True(t, posts[0].Tags.Contains("wolf"))
	assert.True(t, posts[0].Tags.Contains("somebody"))
}

func TestE621PoolMode(t *testing.T) {
	client := newTestClient(E621, map[string]interface{}{
		"/pools/77.json": map[string]interface{}{
			"id":       77,
			"post_ids": []uint64{500, 300, 400},
		},
	})

	adapter := NewE621(client, nil, logger.NewTestLogger())
	require.NoError(t, adapter.SetPool(context.Background(), 77))
	assert.Equal(t, []string{"pool:77"}, adapter.Tags())

	// IDs become pool positions so pages sort into reading order.
	p, ok := adapter.mapItem(e621Post{
		ID: 300,
		File: struct {
			URL string `json:"url"`
			MD5 string `json:"md5"`
			Ext string `json:"ext"`
		}{URL: "https://static1.e621.net/x.png", MD5: "x", Ext: "png"},
	})
	require.True(t, ok)
	assert.Equal(t, uint64(2), p.ID)

	// Posts outside the pool are dropped.
	_, ok = adapter.mapItem(e621Post{
		ID: 999,
		File: struct {
			URL string `json:"url"`
			MD5 string `json:"md5"`
			Ext string `json:"ext"`
		}{URL: "https://static1.e621.net/y.png", MD5: "y", Ext: "png"},
	})
	assert.False(t, ok)
}

func TestE621EmptyPool(t *testing.T) {
	client := newTestClient(E621, map[string]interface{}{
		"/pools/1.json": map[string]interface{}{"id": 1, "post_ids": []uint64{}},
	})

	adapter := NewE621(client, nil, logger.NewTestLogger())
	assert.Error(t, adapter.SetPool(context.Background(), 1))
}

func TestGelbooruFetchPage(t *testing.T) {
	t.Run("bare array response", func(t *testing.T) {
		client := newTestClient(Rule34, map[string]interface{}{
			"/index.php": []map[string]interface{}{
				{
					"id": 100, "hash": "ddd",
					"file_url": "https://rule34.xxx/images/1/ddd.jpeg",
					"tags":     "blue_sky cloud", "rating": "q",
				},
			},
		})

		adapter := NewGelbooru(Rule34, client, []string{"blue_sky"}, logger.NewTestLogger())
		posts, err := adapter.FetchPage(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, "ddd", posts[0].MD5)
		assert.Equal(t, "jpeg", posts[0].Extension)
		assert.Equal(t, post.RatingQuestionable, posts[0].Rating)
	})

	t.Run("wrapped response", func(t *testing.T) {
		client := newTestClient(Gelbooru, map[string]interface{}{
			"/index.php": map[string]interface{}{
				"post": []map[string]interface{}{
					{
						"id": 200, "md5": "eee",
						"file_url": "https://img3.gelbooru.com/images/e/eee.png",
						"tags":     "solo", "rating": "general",
					},
				},
			},
		})

		adapter := NewGelbooru(Gelbooru, client, []string{"solo"}, logger.NewTestLogger())
		posts, err := adapter.FetchPage(context.Background(), 1)
		require.NoError(t, err)
		require.Len(t, posts, 1)
		assert.Equal(t, uint64(200), posts[0].ID)
	})
}

func TestGelbooruZeroBasedPaging(t *testing.T) {
	var gotPid string
	client := NewClient(Gelbooru, 30*time.Second, 1, logger.NewTestLogger())
	client.SetHTTPClient(newMockHTTPClient(func(req *http.Request) (*http.Response, error) {
		gotPid = req.URL.Query().Get("pid")
		return newResponse(http.StatusOK, "[]"), nil
	}))

	adapter := NewGelbooru(Gelbooru, client, []string{"x"}, logger.NewTestLogger())
	_, err := adapter.FetchPage(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, "2", gotPid)
}

func TestRealbooruDerivedURL(t *testing.T) {
	adapter := NewGelbooru(Realbooru, nil, []string{"x"}, logger.NewTestLogger())

	p, ok := adapter.mapItem(gelbooruPost{
		ID:        300,
		Hash:      "fff",
		Image:     "fff.jpg",
		Directory: "ab/cd",
	})
	require.True(t, ok)
	assert.Equal(t, "https://realbooru.com/images/ab/cd/fff.jpg", p.URL)
	assert.Equal(t, "fff", p.MD5)
	assert.Equal(t, "jpg", p.Extension)
}

func TestMoebooruFetchPage(t *testing.T) {
	client := newTestClient(Konachan, map[string]interface{}{
		"/post.json": []map[string]interface{}{
			{
				"id": 55, "md5": "ggg",
				"file_url": "https://konachan.com/image/ggg/Konachan.com%20-%2055.png",
				"tags":     "landscape scenic", "rating": "s",
			},
			{
				// Missing file URL, dropped.
				"id": 54, "md5": "hhh", "tags": "x", "rating": "s",
			},
		},
	})

	adapter := NewMoebooru(client, []string{"landscape"}, logger.NewTestLogger())
	posts, err := adapter.FetchPage(context.Background(), 1)
	require.NoError(t, err)
	require.Len(t, posts, 1)

	assert.Equal(t, uint64(55), posts[0].ID)
	assert.Equal(t, "png", posts[0].Extension)
	assert.Equal(t, post.RatingSafe, posts[0].Rating)
}
