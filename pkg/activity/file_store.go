package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"
)

// SessionEnv names the variable that pins the session id. Without it the
// session is the invoking shell (the parent process).
const SessionEnv = "TEMPO_SWAP_SESSION"

// SessionID identifies the current CLI session
func SessionID() string {
	if id := os.Getenv(SessionEnv); id != "" {
		return id
	}
	return strconv.Itoa(os.Getppid())
}

// DefaultFilePath is the session file under the system temp dir, so it does
// not outlive the machine's uptime
func DefaultFilePath() string {
	return filepath.Join(os.TempDir(), "tempo-swap", fmt.Sprintf("session-%s.json", SessionID()))
}

// FileStore persists ledger blobs in a single JSON file for the current session.
// The file is deleted by Destroy when the session ends.
type FileStore struct {
	filePath string
	mu       sync.RWMutex
	values   map[string]json.RawMessage
}

// sessionFile represents the JSON structure on disk
type sessionFile struct {
	Values map[string]json.RawMessage `json:"values"`
}

// NewFileStore creates a file-backed store, loading an existing session file if present
func NewFileStore(filePath string) (*FileStore, error) {
	if filePath == "" {
		filePath = DefaultFilePath()
	}

	store := &FileStore{
		filePath: filePath,
		values:   make(map[string]json.RawMessage),
	}

	if err := store.load(); err != nil {
		// A missing file just means a fresh session
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to load session file: %w", err)
		}
	}

	return store, nil
}

func (s *FileStore) load() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.filePath)
	if err != nil {
		return err
	}

	var f sessionFile
	if err := json.Unmarshal(data, &f); err != nil {
		return fmt.Errorf("failed to unmarshal session file: %w", err)
	}

	s.values = f.Values
	if s.values == nil {
		s.values = make(map[string]json.RawMessage)
	}

	return nil
}

// save writes the whole map; callers must hold the write lock
func (s *FileStore) save() error {
	data, err := json.MarshalIndent(sessionFile{Values: s.values}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal session file: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(s.filePath), 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	// Write to temporary file first, then rename for atomic write
	tempFile := s.filePath + ".tmp"
	if err := os.WriteFile(tempFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}

	if err := os.Rename(tempFile, s.filePath); err != nil {
		return fmt.Errorf("failed to rename temp file: %w", err)
	}

	return nil
}

func (s *FileStore) Get(_ context.Context, key string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.values[key]
	if !ok {
		return nil, ErrNotFound
	}
	return append([]byte(nil), v...), nil
}

func (s *FileStore) Set(_ context.Context, key string, value []byte) error {
	if !json.Valid(value) {
		return fmt.Errorf("value for %q is not valid JSON", key)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	prev, had := s.values[key]
	s.values[key] = append(json.RawMessage(nil), value...)
	if err := s.save(); err != nil {
		if had {
			s.values[key] = prev
		} else {
			delete(s.values, key)
		}
		return err
	}
	return nil
}

func (s *FileStore) Remove(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.values[key]; !ok {
		return nil
	}
	delete(s.values, key)
	return s.save()
}

// Destroy deletes the session file, ending the session
func (s *FileStore) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.values = make(map[string]json.RawMessage)
	if err := os.Remove(s.filePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove session file: %w", err)
	}
	return nil
}

// FilePath returns the session file path
func (s *FileStore) FilePath() string {
	return s.filePath
}
