// Package checkpoint makes runs incremental: after a successful run the
// newest downloaded post is persisted next to the output, and the next run
// over the same source and tag query skips everything at or below it.
package checkpoint

import (
	"compress/gzip"
	"encoding/gob"
	"os"
	"path/filepath"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// markerFile is the hidden marker name inside the run's output directory.
const markerFile = ".download_summary.bin"

// Tracker persists and applies the resume marker of one source and tag
// query combination.
type Tracker struct {
	dir    string
	logger logger.Logger
}

// New creates a tracker rooted at the run's output directory, the same
// directory loose files land in.
func New(outputDir, source, tagQuery string, log logger.Logger) *Tracker {
	if log == nil {
		log = logger.GetLogger()
	}
	return &Tracker{
		dir:    filepath.Join(outputDir, source, tagQuery),
		logger: log,
	}
}

// Dir returns the output directory the tracker is rooted at.
func (t *Tracker) Dir() string {
	return t.dir
}

// Path returns the marker file location.
func (t *Tracker) Path() string {
	return filepath.Join(t.dir, markerFile)
}

// Load reads the marker of the previous run. Any failure reports absence; a
// marker that no longer decodes is deleted so the next run starts clean.
func (t *Tracker) Load() *post.Post {
	f, err := os.Open(t.Path())
	if err != nil {
		return nil
	}
	defer f.Close()

	zr, err := gzip.NewReader(f)
	if err != nil {
		os.Remove(t.Path())
		t.logger.Warn("deleted corrupt resume marker")
		return nil
	}
	defer zr.Close()

	var p post.Post
	if err := gob.NewDecoder(zr).Decode(&p); err != nil {
		os.Remove(t.Path())
		t.logger.Warn("deleted corrupt resume marker")
		return nil
	}

	return &p
}

// Save writes the marker after a completed run. The newest post of the queue
// is enough; posts are compared by ID alone.
func (t *Tracker) Save(newest *post.Post) error {
	if newest == nil {
		return nil
	}

	if err := os.MkdirAll(t.dir, 0755); err != nil {
		return errs.IO("failed to create output directory", err)
	}

	f, err := os.OpenFile(t.Path(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
	if err != nil {
		return errs.IO("failed to create resume marker", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(newest); err != nil {
		return errs.IO("failed to encode resume marker", err)
	}
	if err := zw.Close(); err != nil {
		return errs.IO("failed to write resume marker", err)
	}

	t.logger.DebugWithFields("resume marker saved", map[string]interface{}{
		"post_id": newest.ID,
		"path":    t.Path(),
	})
	return nil
}

// Apply drops every queued post already covered by the previous run's
// marker. Without a marker the queue is untouched. A queue emptied by the
// marker is NoPostsInQueue: the run succeeded, there is just nothing new.
func (t *Tracker) Apply(queue *post.Queue) error {
	marker := t.Load()
	if marker == nil {
		return nil
	}

	kept := queue.Posts[:0]
	for _, p := range queue.Posts {
		if p.ID > marker.ID {
			kept = append(kept, p)
		}
	}
	queue.Posts = kept

	t.logger.InfoWithFields("resuming previous run", map[string]interface{}{
		"marker_id": marker.ID,
		"remaining": len(kept),
	})

	if len(queue.Posts) == 0 {
		return errs.ErrNoPostsInQueue
	}
	return nil
}
