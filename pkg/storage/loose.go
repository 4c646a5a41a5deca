// Package storage manages the two output destinations of a run: loose files
// in a per-query directory, and the single zip archive.
package storage

import (
	"crypto/md5"
	"encoding/hex"
	"io"
	"os"
	"path/filepath"

	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
	"boorudl/pkg/post"
)

// Loose stores each post as its own file under the run's output directory.
type Loose struct {
	dir    string
	saveID bool
	logger logger.Logger
}

// NewLoose creates the loose-file store, creating the output directory if
// needed. With saveID files are named by post number instead of digest.
func NewLoose(dir string, saveID bool, log logger.Logger) (*Loose, error) {
	if log == nil {
		log = logger.GetLogger()
	}

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errs.IO("failed to create output directory", err)
	}

	return &Loose{
		dir:    dir,
		saveID: saveID,
		logger: log,
	}, nil
}

// Dir returns the directory files are written to.
func (l *Loose) Dir() string {
	return l.dir
}

// Path returns the destination of one post.
func (l *Loose) Path(p *post.Post) string {
	return filepath.Join(l.dir, p.Filename(l.saveID))
}

// HasFile reports whether the post is already on disk with the expected
// content. A file whose digest no longer matches the API's is deleted so the
// caller refetches it.
func (l *Loose) HasFile(p *post.Post) (bool, error) {
	path := l.Path(p)

	f, err := os.Open(path)
	if os.IsNotExist(err) {
		return false, nil
	}
	if err != nil {
		return false, errs.IO("failed to open existing file", err)
	}

	h := md5.New()
	_, err = io.Copy(h, f)
	f.Close()
	if err != nil {
		return false, errs.IO("failed to hash existing file", err)
	}

	if hex.EncodeToString(h.Sum(nil)) == p.MD5 {
		return true, nil
	}

	l.logger.WarnWithFields("digest mismatch, refetching", map[string]interface{}{
		"file":    path,
		"post_id": p.ID,
	})
	if err := os.Remove(path); err != nil {
		return false, errs.IO("failed to delete stale file", err)
	}
	return false, nil
}

// Save streams the body into the post's destination file.
func (l *Loose) Save(p *post.Post, body io.Reader) error {
	f, err := os.OpenFile(l.Path(p), os.O_WRONLY|os.O_CREATE|os.O_APPEND, 0644)
	if err != nil {
		return errs.IO("failed to create file", err)
	}

	_, err = io.Copy(f, body)
	closeErr := f.Close()

	if err != nil {
		return errs.IO("failed to write file", err)
	}
	if closeErr != nil {
		return errs.IO("failed to close file", closeErr)
	}
	return nil
}
