package sites

import (
	"context"
	"fmt"
	"net/url"
	"strconv"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// e621List is the wrapper e621 puts around its post list.
type e621List struct {
	Posts []e621Post `json:"posts"`
}

// e621Post is the raw schema of one e621 post.
type e621Post struct {
	ID   uint64 `json:"id"`
	File struct {
		URL string `json:"url"`
		MD5 string `json:"md5"`
		Ext string `json:"ext"`
	} `json:"file"`
	Tags struct {
		General   []string `json:"general"`
		Species   []string `json:"species"`
		Character []string `json:"character"`
		Copyright []string `json:"copyright"`
		Artist    []string `json:"artist"`
		Lore      []string `json:"lore"`
		Meta      []string `json:"meta"`
	} `json:"tags"`
	Rating string `json:"rating"`
}

// e621Pool is the raw schema of one e621 pool.
type e621Pool struct {
	ID      uint64   `json:"id"`
	PostIDs []uint64 `json:"post_ids"`
}

// E621Adapter extracts posts from https://e621.net.
//
// e621 supports basic auth with a per-user blacklist, and pool downloads
// where posts are renumbered by their position in the pool.
type E621Adapter struct {
	client    *Client
	tags      []string
	tagString string
	poolIdx   map[uint64]uint64
	logger    logger.Logger
}

// NewE621 creates the e621 adapter for one tag query.
func NewE621(client *Client, tags []string, log logger.Logger) *E621Adapter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &E621Adapter{
		client:    client,
		tags:      tags,
		tagString: joinTags(tags),
		logger:    log,
	}
}

func (e *E621Adapter) Source() Imageboard {
	return E621
}

func (e *E621Adapter) Tags() []string {
	return e.tags
}

// MaxTags is e621's search limit.
func (e *E621Adapter) MaxTags() int {
	return 40
}

// SetAuth attaches basic auth credentials for subsequent requests.
func (e *E621Adapter) SetAuth(username, apiKey string) {
	e.client.SetBasicAuth(username, apiKey)
}

// SetPool switches the adapter into pool mode: the tag query becomes
// "pool:<id>" and every fetched post's ID is replaced by its position in the
// pool, so pages sort into reading order. Incompatible with resume-by-ID.
func (e *E621Adapter) SetPool(ctx context.Context, poolID uint64) error {
	var pool e621Pool
	endpoint := fmt.Sprintf("https://e621.net/pools/%d.json", poolID)
	if err := e.client.GetJSON(ctx, endpoint, nil, &pool); err != nil {
		return err
	}

	if len(pool.PostIDs) == 0 {
		return errs.ErrZeroPosts
	}

	e.poolIdx = make(map[uint64]uint64, len(pool.PostIDs))
	for idx, id := range pool.PostIDs {
		e.poolIdx[id] = uint64(idx + 1)
	}

	e.tagString = fmt.Sprintf("pool:%d", poolID)
	e.tags = []string{e.tagString}

	e.logger.DebugWithFields("pool index fetched", map[string]interface{}{
		"pool_id": poolID,
		"posts":   len(pool.PostIDs),
	})

	return nil
}

// FetchPage requests one result page and maps it into normalized posts.
func (e *E621Adapter) FetchPage(ctx context.Context, page int) ([]post.Post, error) {
	query := url.Values{}
	query.Set("tags", e.tagString)
	query.Set("page", strconv.Itoa(page))
	query.Set("limit", strconv.Itoa(E621.MaxPostLimit()))

	var raw e621List
	if err := e.client.GetJSON(ctx, E621.PostURL(), query, &raw); err != nil {
		return nil, err
	}

	posts := make([]post.Post, 0, len(raw.Posts))
	for _, item := range raw.Posts {
		if p, ok := e.mapItem(item); ok {
			posts = append(posts, p)
		}
	}

	logger.LogPage(E621.String(), page, len(posts))
	return posts, nil
}

// mapItem normalizes one raw item. Posts hidden from anonymous users carry a
// null file URL and are dropped. In pool mode the post ID becomes the pool
// position.
func (e *E621Adapter) mapItem(item e621Post) (post.Post, bool) {
	if item.File.URL == "" || item.File.MD5 == "" {
		return post.Post{}, false
	}

	tags := make(post.Tags)
	for _, group := range [][]string{
		item.Tags.General, item.Tags.Species, item.Tags.Character,
		item.Tags.Copyright, item.Tags.Artist, item.Tags.Lore, item.Tags.Meta,
	} {
		for _, t := range group {
			tags[t] = struct{}{}
		}
	}

	id := item.ID
	if e.poolIdx != nil {
		pos, ok := e.poolIdx[item.ID]
		if !ok {
			return post.Post{}, false
		}
		id = pos
	}

	return post.Post{
		ID:        id,
		URL:       item.File.URL,
		MD5:       item.File.MD5,
		Extension: item.File.Ext,
		Rating:    post.ParseRating(item.Rating),
		Tags:      tags,
	}, true
}
