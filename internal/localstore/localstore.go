// Package localstore keeps the command line client's token, user and theme
// in a YAML file between runs.
package localstore

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/mdobak/go-xerrors"
	"gopkg.in/yaml.v3"
)

const (
	KeyToken = "token"
	KeyUser  = "user"
	KeyTheme = "theme"
)

// Store is a string key/value file. Changes are kept in memory until Save.
type Store struct {
	path   string
	mu     sync.RWMutex
	values map[string]string
}

// DefaultPath is $XDG_CONFIG_HOME/portfolio/store.yaml or its OS equivalent.
func DefaultPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", xerrors.New(err)
	}
	return filepath.Join(dir, "portfolio", "store.yaml"), nil
}

// Open loads path; a missing file yields an empty store.
func Open(path string) (*Store, error) {
	s := &Store{path: path, values: make(map[string]string)}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, xerrors.New(err)
	}
	if err := yaml.Unmarshal(data, &s.values); err != nil {
		return nil, xerrors.Newf("localstore: parsing %s: %w", path, err)
	}
	if s.values == nil {
		s.values = make(map[string]string)
	}
	return s, nil
}

func (s *Store) Get(key string) string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.values[key]
}

func (s *Store) Set(key, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.values[key] = value
}

func (s *Store) Remove(key string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.values, key)
}

// Token lets the store act as a client token source.
func (s *Store) Token() string {
	return s.Get(KeyToken)
}

// Save writes the store with owner-only permissions.
func (s *Store) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(s.values)
	s.mu.RUnlock()
	if err != nil {
		return xerrors.New(err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return xerrors.New(err)
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return xerrors.New(err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return xerrors.New(err)
	}
	return nil
}
