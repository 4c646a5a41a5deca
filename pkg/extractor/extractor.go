// Package extractor drives the page-by-page collection of posts from a site
// adapter and turns them into a download queue.
//
// The extractor owns the parts of a run that behave identically on every
// site: tag-count validation, the optional post-count pre-flight, pagination
// with its termination rules, the fixed inter-page delay, and per-page
// blacklist filtering. Everything site-specific stays behind sites.Adapter.
package extractor

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
	"boorudl/pkg/sites"
)

// maxPages caps the page loop. Result sets deep enough to hit it are beyond
// what the site APIs paginate reliably anyway.
const maxPages = 100

// pageInterval is the minimum spacing between page requests.
const pageInterval = 500 * time.Millisecond

// Filter removes unwanted posts from a page. It must preserve order and
// report how many posts it dropped.
type Filter interface {
	Filter(posts []post.Post) (removed uint64, kept []post.Post)
}

// Options tune one extraction run.
type Options struct {
	// Limit caps the number of retained posts, 0 for no cap.
	Limit int

	// StartPage is the first page to fetch (1-based). Zero means page 1.
	StartPage int

	// Filter is applied to every fetched page. Nil keeps everything.
	Filter Filter
}

// Extractor runs the pagination loop for one adapter and one tag query.
type Extractor struct {
	adapter sites.Adapter
	opts    Options
	limiter *rate.Limiter
	logger  logger.Logger

	removed uint64
}

// New creates an extractor around an adapter.
func New(adapter sites.Adapter, opts Options, log logger.Logger) *Extractor {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Extractor{
		adapter: adapter,
		opts:    opts,
		limiter: rate.NewLimiter(rate.Every(pageInterval), 1),
		logger:  log,
	}
}

// Removed returns how many posts the filter dropped during the last run.
func (e *Extractor) Removed() uint64 {
	return e.removed
}

// validate rejects runs that cannot succeed before any page is fetched: tag
// queries over the site's search limit, and tag queries the site reports as
// matching nothing.
func (e *Extractor) validate(ctx context.Context) error {
	if max := e.adapter.MaxTags(); max > 0 && len(e.adapter.Tags()) > max {
		return errs.TooManyTags(len(e.adapter.Tags()), max)
	}

	if ce, ok := e.adapter.(sites.CountEstimator); ok {
		count, err := ce.EstimateCount(ctx)
		if err != nil {
			return err
		}
		if count == 0 {
			return errs.ErrZeroPosts
		}
		e.logger.InfoWithFields("posts matching query", map[string]interface{}{
			"source": e.adapter.Source().String(),
			"count":  count,
		})
	}

	return nil
}

// Extract collects all pages into a queue sorted descending by ID.
//
// The loop stops on the first empty page, when the configured limit is
// reached, or at the page cap. A run that retains nothing at all is
// ZeroPosts.
func (e *Extractor) Extract(ctx context.Context) (*post.Queue, error) {
	queue := &post.Queue{Tags: e.adapter.Tags()}

	err := e.paginate(ctx, func(p post.Post) error {
		queue.Posts = append(queue.Posts, p)
		return nil
	})
	if err != nil {
		return nil, err
	}

	queue.Sort()
	queue.Limit(e.opts.Limit)
	return queue, nil
}

// paginate runs the page loop, passing every retained post to emit. Shared
// by the batch and streaming modes so both retain the same set.
func (e *Extractor) paginate(ctx context.Context, emit func(post.Post) error) error {
	e.removed = 0
	if err := e.validate(ctx); err != nil {
		return err
	}

	page := e.opts.StartPage
	if page < 1 {
		page = 1
	}

	retained := 0
	for fetched := 0; fetched < maxPages; fetched++ {
		if err := e.limiter.Wait(ctx); err != nil {
			return err
		}

		posts, err := e.adapter.FetchPage(ctx, page)
		if err != nil {
			return err
		}
		if len(posts) == 0 {
			break
		}

		if e.opts.Filter != nil {
			var removed uint64
			removed, posts = e.opts.Filter.Filter(posts)
			e.removed += removed
		}

		for _, p := range posts {
			if e.opts.Limit > 0 && retained >= e.opts.Limit {
				return nil
			}
			if err := emit(p); err != nil {
				return err
			}
			retained++
		}

		page++
	}

	if retained == 0 {
		return errs.ErrZeroPosts
	}
	return nil
}
