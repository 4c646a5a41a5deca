package extractor

import (
	"context"

	"golang.org/x/sync/errgroup"

	"boorudl/pkg/post"
)

// Stream runs the extraction concurrently with its consumer: each retained
// post is sent on the returned channel while later pages are still being
// fetched. The channel closes when the producer stops; the caller must drain
// it and then call Wait on the group to observe the extraction result.
//
// If the consumer stops reading, the group context is cancelled and the
// producer aborts instead of blocking forever.
func (e *Extractor) Stream(ctx context.Context) (<-chan post.Post, *errgroup.Group) {
	g, ctx := errgroup.WithContext(ctx)
	out := make(chan post.Post)

	g.Go(func() error {
		defer close(out)
		return e.paginate(ctx, func(p post.Post) error {
			select {
			case out <- p:
				return nil
			case <-ctx.Done():
				return ctx.Err()
			}
		})
	})

	return out, g
}
