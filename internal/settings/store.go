// Package settings persists the user preferences shared by every command channel.
package settings

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"pkt.systems/pslog"
	"pkt.systems/tabtidy/schema"
)

// FileName is the settings file inside the state directory.
const FileName = "settings.json"

// Store persists settings to disk. Every read goes to the file so a value
// written by another process is seen on the next call.
type Store struct {
	path string
	log  pslog.Logger

	mu sync.Mutex
}

// NewStore constructs a settings store in the given state directory.
func NewStore(dir string) (*Store, error) {
	return NewStoreWithLogger(dir, nil)
}

// NewStoreWithLogger constructs a settings store with logging.
func NewStoreWithLogger(dir string, logger pslog.Logger) (*Store, error) {
	if strings.TrimSpace(dir) == "" {
		return nil, errors.New("state directory is required")
	}
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return nil, err
	}
	if logger != nil {
		logger = logger.With("state_dir", dir)
	}
	return &Store{path: filepath.Join(dir, FileName), log: logger}, nil
}

// Get returns the stored settings, or defaults when none were saved.
func (s *Store) Get() (schema.Settings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadLocked()
}

// PreservePinned reports the stored "preserve pinned tabs during sort" flag.
func (s *Store) PreservePinned() (bool, error) {
	settings, err := s.Get()
	if err != nil {
		return false, err
	}
	return settings.PreservePinned, nil
}

// SetPreservePinned stores the "preserve pinned tabs during sort" flag.
func (s *Store) SetPreservePinned(value bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	settings, err := s.loadLocked()
	if err != nil {
		return err
	}
	settings.PreservePinned = value
	return s.saveLocked(settings)
}

// Save replaces the stored settings.
func (s *Store) Save(settings schema.Settings) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked(settings)
}

func (s *Store) loadLocked() (schema.Settings, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			if s.log != nil {
				s.log.Debug("settings load miss")
			}
			return schema.Settings{}, nil
		}
		if s.log != nil {
			s.log.Warn("settings load failed", "err", err)
		}
		return schema.Settings{}, err
	}
	var settings schema.Settings
	if err := json.Unmarshal(data, &settings); err != nil {
		if s.log != nil {
			s.log.Warn("settings load failed", "err", err)
		}
		return schema.Settings{}, err
	}
	if s.log != nil {
		s.log.Debug("settings load ok", "preserve_pinned", settings.PreservePinned)
	}
	return settings, nil
}

func (s *Store) saveLocked(settings schema.Settings) error {
	if err := s.write(settings); err != nil {
		if s.log != nil {
			s.log.Warn("settings save failed", "err", err)
		}
		return err
	}
	if s.log != nil {
		s.log.Info("settings save ok", "preserve_pinned", settings.PreservePinned)
	}
	return nil
}

func (s *Store) write(settings schema.Settings) error {
	dir := filepath.Dir(s.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return err
	}
	data, err := json.MarshalIndent(settings, "", "  ")
	if err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, "settings-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Chmod(tmp.Name(), 0o600); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), s.path)
}
