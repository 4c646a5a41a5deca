// Package sites implements the per-imageboard adapters: endpoint tables, raw
// API schemas, and the mapping of raw items onto normalized posts.
//
// Each supported website gets one adapter implementing Adapter; extraction
// logic that is common to all of them (pagination, termination, filtering)
// lives in pkg/extractor.
package sites

import (
	"context"
	"fmt"
	"strings"

	"boorudl/pkg/post"
)

// Imageboard identifies one of the supported websites.
type Imageboard string

const (
	// Danbooru is https://danbooru.donmai.us.
	Danbooru Imageboard = "danbooru"
	// E621 is https://e621.net.
	E621 Imageboard = "e621"
	// Gelbooru is https://gelbooru.com.
	Gelbooru Imageboard = "gelbooru"
	// Rule34 is https://rule34.xxx, served by the gelbooru adapter.
	Rule34 Imageboard = "rule34"
	// Realbooru is https://realbooru.com, served by the gelbooru adapter.
	Realbooru Imageboard = "realbooru"
	// Konachan is https://konachan.com, served by the moebooru adapter.
	Konachan Imageboard = "konachan"
)

// All lists every supported imageboard.
func All() []Imageboard {
	return []Imageboard{Danbooru, E621, Gelbooru, Rule34, Realbooru, Konachan}
}

// Parse resolves a user-supplied source name.
func Parse(name string) (Imageboard, error) {
	switch Imageboard(strings.ToLower(name)) {
	case Danbooru:
		return Danbooru, nil
	case E621:
		return E621, nil
	case Gelbooru:
		return Gelbooru, nil
	case Rule34:
		return Rule34, nil
	case Realbooru:
		return Realbooru, nil
	case Konachan:
		return Konachan, nil
	default:
		return "", fmt.Errorf("unknown imageboard: %s", name)
	}
}

func (b Imageboard) String() string {
	return string(b)
}

// PostURL returns the post list endpoint.
func (b Imageboard) PostURL() string {
	switch b {
	case Danbooru:
		return "https://danbooru.donmai.us/posts.json"
	case E621:
		return "https://e621.net/posts.json"
	case Gelbooru:
		return "https://gelbooru.com/index.php?page=dapi&s=post&q=index&json=1"
	case Rule34:
		return "https://api.rule34.xxx/index.php?page=dapi&s=post&q=index&json=1"
	case Realbooru:
		return "https://realbooru.com/index.php?page=dapi&s=post&q=index&json=1"
	case Konachan:
		return "https://konachan.com/post.json"
	}
	return ""
}

// CountURL returns the endpoint for the total post count of a tag query, or
// "" when the site has none.
func (b Imageboard) CountURL() string {
	if b == Danbooru {
		return "https://danbooru.donmai.us/counts/posts.json"
	}
	return ""
}

// AuthURL returns the endpoint used to validate credentials and fetch the
// user profile, or "" when the site has no authentication.
func (b Imageboard) AuthURL() string {
	switch b {
	case Danbooru:
		return "https://danbooru.donmai.us/profile.json"
	case E621:
		return "https://e621.net/users/"
	}
	return ""
}

// HasAuth reports whether the site supports authentication and a per-user
// blacklist.
func (b Imageboard) HasAuth() bool {
	return b == Danbooru || b == E621
}

// MaxPostLimit returns the largest page size the site accepts.
func (b Imageboard) MaxPostLimit() int {
	switch b {
	case Danbooru:
		return 200
	case E621:
		return 320
	case Gelbooru, Rule34, Realbooru:
		return 1000
	case Konachan:
		return 100
	}
	return 100
}

// UserAgent returns the user agent announced to the site.
func (b Imageboard) UserAgent() string {
	const app = "boorudl/" + Version
	switch b {
	case Danbooru, E621:
		return app + " (by tag-archive project)"
	default:
		return app
	}
}

// Version is the client version announced in user agents.
const Version = "1.0.0"

// Adapter is the contract one imageboard adapter exposes to the extractor.
// The tag query is fixed at construction.
type Adapter interface {
	// Source identifies the imageboard served by this adapter.
	Source() Imageboard

	// Tags returns the tag query the adapter was built with.
	Tags() []string

	// MaxTags returns the site's tag-count limit for searches, 0 for
	// unlimited.
	MaxTags() int

	// FetchPage requests one result page (1-based) and maps it into
	// normalized posts. Raw items without a resolvable file URL are
	// silently dropped.
	FetchPage(ctx context.Context, page int) ([]post.Post, error)
}

// CountEstimator is implemented by adapters whose site can pre-flight the
// total post count of a tag query.
type CountEstimator interface {
	EstimateCount(ctx context.Context) (uint64, error)
}

// Authenticable is implemented by adapters whose site accepts basic auth.
type Authenticable interface {
	SetAuth(username, apiKey string)
}

// PoolFetcher is implemented by adapters that can download a pool (an
// ordered, curated post list) instead of a tag search. Pool mode overwrites
// post IDs with the pool position so archive pages come out in reading
// order; that makes it incompatible with resume-by-ID tracking, which
// callers must refuse up front.
type PoolFetcher interface {
	SetPool(ctx context.Context, poolID uint64) error
}

// joinTags renders a tag list as the space-separated query string shared by
// all supported sites. url.Values takes care of the + encoding.
func joinTags(tags []string) string {
	return strings.Join(tags, " ")
}
