// Package resultfile writes full run results as JSON documents.
package resultfile

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

const DefaultDir = "./results"

// Store writes one JSON file per run into a directory.
type Store struct {
	dir string
}

// NewStore creates dir when needed.
func NewStore(dir string) (*Store, error) {
	if dir == "" {
		dir = DefaultDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errors.Wrap(err, "create results dir")
	}

	return &Store{dir: dir}, nil
}

// Path returns the file a run named name is written to.
func (s *Store) Path(name string) string {
	file := sanitizeName(name)
	if file == "" {
		file = "run"
	}
	return filepath.Join(s.dir, file+".json")
}

// Save writes v atomically via a temp file and returns the final path.
func (s *Store) Save(name string, v any) (string, error) {
	payload, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", errors.Wrap(err, "encode run result")
	}

	path := s.Path(name)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, payload, 0o644); err != nil {
		return "", errors.Wrap(err, "write run result temp file")
	}
	if err := os.Rename(tmp, path); err != nil {
		return "", errors.Wrap(err, "persist run result")
	}

	return path, nil
}

// Load decodes a previously saved result into v.
func (s *Store) Load(name string, v any) error {
	payload, err := os.ReadFile(s.Path(name))
	if err != nil {
		return errors.Wrap(err, "read run result")
	}

	return errors.Wrap(json.Unmarshal(payload, v), "decode run result")
}

// sanitizeName lowercases value and collapses anything but [a-z0-9] into one underscore.
func sanitizeName(value string) string {
	value = strings.TrimSpace(strings.ToLower(value))

	var b strings.Builder
	prevUnderscore := false
	for _, r := range value {
		if (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
			prevUnderscore = false
			continue
		}
		if !prevUnderscore {
			b.WriteByte('_')
			prevUnderscore = true
		}
	}

	return strings.Trim(b.String(), "_")
}
