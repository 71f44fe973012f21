// Package session keeps the bearer token and signed-in user between runs.
package session

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/pbaille/learnlog/internal/domain"
	"gopkg.in/yaml.v3"
)

type fileFormat struct {
	Token string       `yaml:"token"`
	User  *domain.User `yaml:"user,omitempty"`
}

// Session is a file-backed token and user
type Session struct {
	mu    sync.RWMutex
	path  string
	token string
	user  *domain.User
}

// Load reads the session at path; a missing file yields an empty session
func Load(path string) (*Session, error) {
	s := &Session{path: path}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return s, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read session: %w", err)
	}

	var f fileFormat
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse session: %w", err)
	}
	s.token = f.Token
	s.user = f.User
	return s, nil
}

// Token returns the bearer token, or "" when signed out
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// User returns the signed-in user, or nil
func (s *Session) User() *domain.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.user
}

// LoggedIn reports whether a token is held
func (s *Session) LoggedIn() bool {
	return s.Token() != ""
}

// Set replaces the token and user in memory
func (s *Session) Set(token string, user *domain.User) {
	s.mu.Lock()
	s.token = token
	s.user = user
	s.mu.Unlock()
}

// Save writes the session to disk with owner-only permissions
func (s *Session) Save() error {
	s.mu.RLock()
	data, err := yaml.Marshal(fileFormat{Token: s.token, User: s.user})
	s.mu.RUnlock()
	if err != nil {
		return fmt.Errorf("encode session: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.path), 0700); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	if err := os.WriteFile(s.path, data, 0600); err != nil {
		return fmt.Errorf("write session: %w", err)
	}
	return nil
}

// Clear forgets the token and user and removes the file
func (s *Session) Clear() error {
	s.Set("", nil)
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("remove session: %w", err)
	}
	return nil
}
