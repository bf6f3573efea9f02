package client

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"
)

// TokenFile persists the session token between CLI invocations.
type TokenFile struct {
	path string
}

type tokenFileContents struct {
	Token   string    `json:"token"`
	SavedAt time.Time `json:"savedAt"`
}

// NewTokenFile returns a token store at path. An empty path keeps the token
// in memory only.
func NewTokenFile(path string) *TokenFile {
	return &TokenFile{path: path}
}

// Load returns the saved token, or "" if none is saved.
func (f *TokenFile) Load() (string, error) {
	if f == nil || f.path == "" {
		return "", nil
	}
	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read session file: %w", err)
	}

	var contents tokenFileContents
	if err := json.Unmarshal(data, &contents); err != nil {
		return "", fmt.Errorf("failed to parse session file %s: %w", f.path, err)
	}
	return contents.Token, nil
}

// Save writes token readable by the current user only.
func (f *TokenFile) Save(token string) error {
	if f == nil || f.path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(f.path), 0o700); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.Marshal(tokenFileContents{Token: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("failed to encode session: %w", err)
	}
	if err := os.WriteFile(f.path, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	return nil
}

// Clear removes the saved token.
func (f *TokenFile) Clear() error {
	if f == nil || f.path == "" {
		return nil
	}
	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}
