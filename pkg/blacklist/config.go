package blacklist

import (
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"boorudl/pkg/config"
	errs "boorudl/pkg/errors"
)

// File is the on-disk blacklist config: one global tag list and one list per
// source.
type File struct {
	Global  []string            `yaml:"global"`
	Sources map[string][]string `yaml:"sources"`
}

const fileName = "blacklist.yaml"

const template = `# Tags listed under global are excluded from every download.
# Tags listed under a source name are excluded from that source only.
global: []
sources:
  danbooru: []
  e621: []
  gelbooru: []
  rule34: []
  realbooru: []
  konachan: []
`

// DefaultPath returns the blacklist config location under the application
// config directory.
func DefaultPath() (string, error) {
	dir, err := config.ConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// LoadFile reads the blacklist config at path. A missing file is created
// with an empty template first, so users find something to edit.
func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		if werr := os.WriteFile(path, []byte(template), 0644); werr != nil {
			return nil, errs.IO("failed to create blacklist template", werr)
		}
		data = []byte(template)
	} else if err != nil {
		return nil, errs.IO("failed to read blacklist config", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errs.IO("failed to parse blacklist config", err)
	}
	return &f, nil
}
