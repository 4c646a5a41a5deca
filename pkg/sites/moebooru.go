package sites

import (
	"context"
	"net/url"
	"strconv"

	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// moebooruPost is the raw schema of one item in the moebooru post list.
// Moebooru omits the file extension field, so it gets extracted from the
// file URL.
type moebooruPost struct {
	ID      *uint64 `json:"id"`
	MD5     *string `json:"md5"`
	FileURL *string `json:"file_url"`
	Tags    string  `json:"tags"`
	Rating  string  `json:"rating"`
}

// MoebooruAdapter extracts posts from moebooru-engine sites (konachan). No
// authentication, no tag-count limit, no count pre-flight.
type MoebooruAdapter struct {
	client    *Client
	tags      []string
	tagString string
	logger    logger.Logger
}

// NewMoebooru creates the konachan adapter for one tag query.
func NewMoebooru(client *Client, tags []string, log logger.Logger) *MoebooruAdapter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &MoebooruAdapter{
		client:    client,
		tags:      tags,
		tagString: joinTags(tags),
		logger:    log,
	}
}

func (m *MoebooruAdapter) Source() Imageboard {
	return Konachan
}

func (m *MoebooruAdapter) Tags() []string {
	return m.tags
}

// MaxTags is unlimited on the moebooru engine.
func (m *MoebooruAdapter) MaxTags() int {
	return 0
}

// FetchPage requests one result page and maps it into normalized posts.
func (m *MoebooruAdapter) FetchPage(ctx context.Context, page int) ([]post.Post, error) {
	query := url.Values{}
	query.Set("tags", m.tagString)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(Konachan.MaxPostLimit()))

	var raw []moebooruPost
	if err := m.client.GetJSON(ctx, Konachan.PostURL(), query, &raw); err != nil {
		return nil, err
	}

	posts := make([]post.Post, 0, len(raw))
	for _, item := range raw {
		if p, ok := m.mapItem(item); ok {
			posts = append(posts, p)
		}
	}

	logger.LogPage(Konachan.String(), page, len(posts))
	return posts, nil
}

// mapItem normalizes one raw item; items missing any identifying field are
// dropped.
func (m *MoebooruAdapter) mapItem(item moebooruPost) (post.Post, bool) {
	if item.ID == nil || item.MD5 == nil || item.FileURL == nil {
		return post.Post{}, false
	}

	ext := post.ExtensionFromURL(*item.FileURL)
	if ext == "" {
		return post.Post{}, false
	}

	return post.Post{
		ID:        *item.ID,
		URL:       *item.FileURL,
		MD5:       *item.MD5,
		Extension: ext,
		Rating:    post.ParseRating(item.Rating),
		Tags:      post.SplitTagString(item.Tags),
	}, true
}
