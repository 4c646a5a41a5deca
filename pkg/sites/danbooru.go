package sites

import (
	"context"
	"net/url"
	"strconv"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// danbooruPost is the raw schema of one item in the danbooru post list.
type danbooruPost struct {
	ID        uint64 `json:"id"`
	MD5       string `json:"md5"`
	FileURL   string `json:"file_url"`
	FileExt   string `json:"file_ext"`
	TagString string `json:"tag_string"`
	Rating    string `json:"rating"`
}

// danbooruCount is the schema of the post count pre-flight endpoint.
type danbooruCount struct {
	Counts struct {
		Posts *uint64 `json:"posts"`
	} `json:"counts"`
}

// DanbooruAdapter extracts posts from https://danbooru.donmai.us.
//
// Danbooru limits anonymous searches to 2 tags and supports basic auth with
// a per-user blacklist.
type DanbooruAdapter struct {
	client    *Client
	tags      []string
	tagString string
	logger    logger.Logger
}

// NewDanbooru creates the danbooru adapter for one tag query.
func NewDanbooru(client *Client, tags []string, log logger.Logger) *DanbooruAdapter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &DanbooruAdapter{
		client:    client,
		tags:      tags,
		tagString: joinTags(tags),
		logger:    log,
	}
}

func (d *DanbooruAdapter) Source() Imageboard {
	return Danbooru
}

func (d *DanbooruAdapter) Tags() []string {
	return d.tags
}

// MaxTags is danbooru's free-tier search limit.
func (d *DanbooruAdapter) MaxTags() int {
	return 2
}

// SetAuth attaches basic auth credentials for subsequent requests.
func (d *DanbooruAdapter) SetAuth(username, apiKey string) {
	d.client.SetBasicAuth(username, apiKey)
}

// EstimateCount pre-flights the total post count for the tag query.
func (d *DanbooruAdapter) EstimateCount(ctx context.Context) (uint64, error) {
	query := url.Values{}
	query.Set("tags", d.tagString)

	var count danbooruCount
	if err := d.client.GetJSON(ctx, Danbooru.CountURL(), query, &count); err != nil {
		return 0, err
	}

	if count.Counts.Posts == nil {
		return 0, errs.ErrInvalidResponse
	}

	d.logger.DebugWithFields("post count estimated", map[string]interface{}{
		"source": Danbooru.String(),
		"tags":   d.tagString,
		"count":  *count.Counts.Posts,
	})

	return *count.Counts.Posts, nil
}

// FetchPage requests one result page and maps it into normalized posts.
func (d *DanbooruAdapter) FetchPage(ctx context.Context, page int) ([]post.Post, error) {
	query := url.Values{}
	query.Set("tags", d.tagString)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(Danbooru.MaxPostLimit()))

	var raw []danbooruPost
	if err := d.client.GetJSON(ctx, Danbooru.PostURL(), query, &raw); err != nil {
		return nil, err
	}

	posts := make([]post.Post, 0, len(raw))
	for _, item := range raw {
		if p, ok := d.mapItem(item); ok {
			posts = append(posts, p)
		}
	}

	logger.LogPage(Danbooru.String(), page, len(posts))
	return posts, nil
}

// mapItem normalizes one raw item. Items without a direct file URL (hidden
// or takedown posts) are dropped, not errors.
func (d *DanbooruAdapter) mapItem(item danbooruPost) (post.Post, bool) {
	if item.FileURL == "" || item.MD5 == "" {
		return post.Post{}, false
	}

	// Danbooru's "s" means sensitive, not safe.
	rating := post.ParseRating(item.Rating)
	if item.Rating == "s" {
		rating = post.RatingQuestionable
	}

	return post.Post{
		ID:        item.ID,
		URL:       item.FileURL,
		MD5:       item.MD5,
		Extension: item.FileExt,
		Rating:    rating,
		Tags:      post.SplitTagString(item.TagString),
	}, true
}
