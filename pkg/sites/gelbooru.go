package sites

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// gelbooruPost is the raw schema shared by the gelbooru 0.2 API family. Some
// deployments call the digest "md5", others "hash"; some expose a direct
// "file_url", others only "image" + "directory".
type gelbooruPost struct {
	ID        uint64 `json:"id"`
	MD5       string `json:"md5"`
	Hash      string `json:"hash"`
	FileURL   string `json:"file_url"`
	Image     string `json:"image"`
	Directory string `json:"directory"`
	Tags      string `json:"tags"`
	Rating    string `json:"rating"`
}

// GelbooruAdapter extracts posts from gelbooru-engine sites: gelbooru
// itself, rule34 and realbooru. These sites use 0-based "pid" pagination, no
// authentication and no tag-count limit.
type GelbooruAdapter struct {
	board     Imageboard
	client    *Client
	tags      []string
	tagString string
	logger    logger.Logger
}

// NewGelbooru creates the adapter for one of the gelbooru-family sites.
func NewGelbooru(board Imageboard, client *Client, tags []string, log logger.Logger) *GelbooruAdapter {
	if log == nil {
		log = logger.GetLogger()
	}
	return &GelbooruAdapter{
		board:     board,
		client:    client,
		tags:      tags,
		tagString: joinTags(tags),
		logger:    log,
	}
}

func (g *GelbooruAdapter) Source() Imageboard {
	return g.board
}

func (g *GelbooruAdapter) Tags() []string {
	return g.tags
}

// MaxTags is unlimited on the gelbooru engine.
func (g *GelbooruAdapter) MaxTags() int {
	return 0
}

// FetchPage requests one result page and maps it into normalized posts. The
// engine serves either a bare post array or a {"post": [...]} wrapper
// depending on the deployment; both are accepted.
func (g *GelbooruAdapter) FetchPage(ctx context.Context, page int) ([]post.Post, error) {
	query := url.Values{}
	query.Set("tags", g.tagString)
	query.Set("pid", strconv.Itoa(page-1))
	query.Set("limit", strconv.Itoa(g.board.MaxPostLimit()))

	var body json.RawMessage
	if err := g.client.GetJSON(ctx, g.board.PostURL(), query, &body); err != nil {
		return nil, err
	}

	raw, err := decodeGelbooruList(body)
	if err != nil {
		return nil, err
	}

	posts := make([]post.Post, 0, len(raw))
	for _, item := range raw {
		if p, ok := g.mapItem(item); ok {
			posts = append(posts, p)
		}
	}

	logger.LogPage(g.board.String(), page, len(posts))
	return posts, nil
}

// decodeGelbooruList handles the two response shapes of the engine. An empty
// page sometimes arrives as an empty object instead of an empty array.
func decodeGelbooruList(body json.RawMessage) ([]gelbooruPost, error) {
	var bare []gelbooruPost
	if err := json.Unmarshal(body, &bare); err == nil {
		return bare, nil
	}

	var wrapped struct {
		Post []gelbooruPost `json:"post"`
	}
	if err := json.Unmarshal(body, &wrapped); err == nil {
		return wrapped.Post, nil
	}

	return nil, errs.ErrInvalidResponse
}

// mapItem normalizes one raw item, recovering the digest and extension from
// whichever fields the deployment fills in.
func (g *GelbooruAdapter) mapItem(item gelbooruPost) (post.Post, bool) {
	md5 := item.MD5
	if md5 == "" {
		md5 = item.Hash
	}

	fileURL := item.FileURL
	ext := post.ExtensionFromURL(item.Image)
	if ext == "" {
		ext = post.ExtensionFromURL(fileURL)
	}

	// Realbooru omits file_url; the direct location derives from the
	// directory and digest.
	if fileURL == "" && g.board == Realbooru && item.Directory != "" && md5 != "" && ext != "" {
		fileURL = "https://realbooru.com/images/" + item.Directory + "/" + md5 + "." + ext
	}

	if fileURL == "" || md5 == "" || ext == "" {
		return post.Post{}, false
	}

	return post.Post{
		ID:        item.ID,
		URL:       fileURL,
		MD5:       md5,
		Extension: ext,
		Rating:    post.ParseRating(item.Rating),
		Tags:      post.SplitTagString(item.Tags),
	}, true
}
