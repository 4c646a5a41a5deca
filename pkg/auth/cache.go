package auth

import (
	"compress/gzip"
	"encoding/gob"
	"os"
	"path/filepath"

	"boorudl/pkg/config"
	errs "boorudl/pkg/errors"
	"boorudl/pkg/logger"
)

// cachePath returns the credential cache location for one source, one file
// per imageboard under the application config directory.
func cachePath(source string) (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, source), nil
}

// SaveCache writes the credentials for later runs, gob-encoded and
// gzip-compressed.
func SaveCache(creds *Credentials) error {
	path, err := cachePath(creds.Imageboard)
	if err != nil {
		return errs.IO("failed to locate config directory", err)
	}

	f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0600)
	if err != nil {
		return errs.IO("failed to create credential cache", err)
	}
	defer f.Close()

	zw := gzip.NewWriter(f)
	if err := gob.NewEncoder(zw).Encode(creds); err != nil {
		return errs.IO("failed to encode credential cache", err)
	}
	if err := zw.Close(); err != nil {
		return errs.IO("failed to write credential cache", err)
	}
	return nil
}

// LoadCache reads the cached credentials for a source. Every failure is a
// cache miss, never an error; a cache file that no longer decompresses is
// deleted so the next authenticated run can re-cache cleanly.
func LoadCache(source string, log logger.Logger) *Credentials {
	if log == nil {
		log = logger.GetLogger()
	}

	path, err := cachePath(source)
	if err != nil {
		return nil
	}

	f, err := os.Open(path)
	if err != nil {
		return nil
	}

	zr, err := gzip.NewReader(f)
	if err != nil {
		f.Close()
		if rmErr := os.Remove(path); rmErr == nil {
			log.WithField("source", source).Warn("deleted corrupt credential cache")
		}
		return nil
	}
	defer f.Close()
	defer zr.Close()

	var creds Credentials
	if err := gob.NewDecoder(zr).Decode(&creds); err != nil {
		log.WithField("source", source).Debug("credential cache unreadable")
		return nil
	}

	return &creds
}

// DeleteCache removes the cached credentials for a source. Used by logout; a
// missing file is fine.
func DeleteCache(source string) error {
	path, err := cachePath(source)
	if err != nil {
		return errs.IO("failed to locate config directory", err)
	}
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return errs.IO("failed to delete credential cache", err)
	}
	return nil
}
