package storage

import (
	"archive/zip"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// archiveEntry is one media file on its way into the zip.
type archiveEntry struct {
	name string
	data []byte
}

// Archive writes a whole run into a single .cbz file. One goroutine owns the
// zip handle; download workers hand entries over a channel instead of
// sharing a lock.
type Archive struct {
	path    string
	file    *os.File
	zw      *zip.Writer
	entries chan archiveEntry
	done    chan error
	logger  logger.Logger
}

// NewArchive creates `<output>/<source>/<tag query>.cbz`, lays out the
// rating directories, writes the manifest of the full queue as the first
// entry, and starts the writer goroutine.
func NewArchive(outputDir string, queue *post.Queue, source string, log logger.Logger) (*Archive, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	dir := filepath.Join(outputDir, source)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.IO("failed to create output directory", err)
	}

	path := filepath.Join(dir, queue.TagString()+".cbz")
	f, err := os.Create(path)
	if err != nil {
		return nil, errs.Archive("failed to create archive", err)
	}

	a := &Archive{
		path:    path,
		file:    f,
		zw:      zip.NewWriter(f),
		entries: make(chan archiveEntry, 16),
		done:    make(chan error, 1),
		logger:  log,
	}

	if err := a.writePreamble(queue); err != nil {
		a.zw.Close()
		f.Close()
		os.Remove(path)
		return nil, err
	}

	go a.run()
	return a, nil
}

// Path returns the archive file location.
func (a *Archive) Path() string {
	return a.path
}

// writePreamble adds the per-rating directories and the manifest before any
// media entry.
func (a *Archive) writePreamble(queue *post.Queue) error {
	for _, r := range post.Ratings() {
		if _, err := a.zw.Create(r.String() + "/"); err != nil {
			return errs.Archive("failed to create rating directory", err)
		}
	}

	manifest, err := json.MarshalIndent(queue.Posts, "", "  ")
	if err != nil {
		return errs.Archive("failed to serialize manifest", err)
	}

	w, err := a.zw.Create("00_summary.json")
	if err != nil {
		return errs.Archive("failed to create manifest entry", err)
	}
	if _, err := w.Write(manifest); err != nil {
		return errs.Archive("failed to write manifest", err)
	}
	return nil
}

// run is the writer goroutine. It drains the entry channel until Close and
// reports the first write failure.
func (a *Archive) run() {
	var firstErr error
	for e := range a.entries {
		if firstErr != nil {
			continue
		}
		w, err := a.zw.Create(e.name)
		if err == nil {
			_, err = w.Write(e.data)
		}
		if err != nil {
			firstErr = errs.Archive("failed to write archive entry", err)
		}
	}
	a.done <- firstErr
}

// Add queues one post's media for the archive as `<rating>/<name>`.
func (a *Archive) Add(p *post.Post, saveID bool, data []byte) {
	a.entries <- archiveEntry{
		name: p.Rating.String() + "/" + p.Filename(saveID),
		data: data,
	}
}

// Close stops the writer, stamps the archive comment and finishes the zip.
// Must be called after every Add has returned.
func (a *Archive) Close(source, tagQuery string, count int) error {
	close(a.entries)
	writeErr := <-a.done

	comment := fmt.Sprintf("boorudl\n\nWebsite: %s\n\nTags: %s\n\nPosts: %d", source, tagQuery, count)
	if err := a.zw.SetComment(comment); err != nil && writeErr == nil {
		writeErr = errs.Archive("failed to set archive comment", err)
	}

	if err := a.zw.Close(); err != nil && writeErr == nil {
		writeErr = errs.Archive("failed to finish archive", err)
	}
	if err := a.file.Close(); err != nil && writeErr == nil {
		writeErr = errs.Archive("failed to close archive file", err)
	}

	if writeErr == nil {
		a.logger.InfoWithFields("archive finished", map[string]interface{}{
			"path":  a.path,
			"posts": count,
		})
	}
	return writeErr
}
