package sshserver

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"
)

// AuthorizedKeys checks client keys against an OpenSSH authorized_keys file.
// The file is re-read when its modification time changes.
type AuthorizedKeys struct {
	path string

	mu      sync.Mutex
	modTime time.Time
	keys    map[string]string
}

// LoadAuthorizedKeys parses the authorized_keys file at path.
func LoadAuthorizedKeys(path string) (*AuthorizedKeys, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("authorized keys path is required")
	}
	a := &AuthorizedKeys{path: path}
	if err := a.reload(); err != nil {
		return nil, err
	}
	return a, nil
}

// Len returns the number of loaded keys.
func (a *AuthorizedKeys) Len() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return len(a.keys)
}

// Allowed reports whether key is listed. The returned comment identifies the key owner.
func (a *AuthorizedKeys) Allowed(key ssh.PublicKey) (string, bool, error) {
	if a == nil || key == nil {
		return "", false, nil
	}
	if err := a.reload(); err != nil {
		return "", false, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	comment, ok := a.keys[string(key.Marshal())]
	return comment, ok, nil
}

func (a *AuthorizedKeys) reload() error {
	info, err := os.Stat(a.path)
	if err != nil {
		return fmt.Errorf("stat authorized keys: %w", err)
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.keys != nil && info.ModTime().Equal(a.modTime) {
		return nil
	}
	data, err := os.ReadFile(a.path)
	if err != nil {
		return fmt.Errorf("read authorized keys: %w", err)
	}
	keys, err := parseAuthorizedKeys(data)
	if err != nil {
		return err
	}
	a.keys = keys
	a.modTime = info.ModTime()
	return nil
}

func parseAuthorizedKeys(data []byte) (map[string]string, error) {
	keys := make(map[string]string)
	for i, raw := range bytes.Split(data, []byte("\n")) {
		line := bytes.TrimSpace(raw)
		if len(line) == 0 || line[0] == '#' {
			continue
		}
		key, comment, _, _, err := ssh.ParseAuthorizedKey(line)
		if err != nil {
			return nil, fmt.Errorf("parse authorized keys line %d: %w", i+1, err)
		}
		keys[string(key.Marshal())] = comment
	}
	return keys, nil
}
