package store

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
)

// FSStore implements the Store interface using filesystem-based
// persistence. Sessions live under <baseDir>/sessions/<id>/.
//
// Thread-safety: atomic file operations (rename) only, no locks.
// Multiple goroutines can safely call methods concurrently.
type FSStore struct {
	baseDir string
}

// NewFSStore creates a filesystem-based store. The base directory is
// created if it doesn't exist.
func NewFSStore(baseDir string) (*FSStore, error) {
	if err := os.MkdirAll(baseDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base directory: %w", err)
	}
	return &FSStore{baseDir: baseDir}, nil
}

// BaseDir returns the store's root directory.
func (fs *FSStore) BaseDir() string {
	return fs.baseDir
}

func (fs *FSStore) sessionDir(id string) string {
	return filepath.Join(fs.baseDir, "sessions", id)
}

func (fs *FSStore) sessionPath(id string) string {
	return filepath.Join(fs.sessionDir(id), "session.json")
}

// SaveSession atomically saves a session using the temp file + rename
// pattern.
func (fs *FSStore) SaveSession(id string, session *Session) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}
	if session == nil {
		return fmt.Errorf("session cannot be nil")
	}
	if err := session.Validate(); err != nil {
		return fmt.Errorf("invalid session: %w", err)
	}

	dir := fs.sessionDir(id)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create session directory: %w", err)
	}

	data, err := json.MarshalIndent(session, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to serialize session: %w", err)
	}

	tempPath := fs.sessionPath(id) + ".tmp"
	if err := os.WriteFile(tempPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write temp session file: %w", err)
	}

	finalPath := fs.sessionPath(id)
	if err := os.Rename(tempPath, finalPath); err != nil {
		os.Remove(tempPath)
		return fmt.Errorf("failed to rename session file: %w", err)
	}

	slog.Debug("session saved", "id", id, "path", finalPath)
	return nil
}

// LoadSession retrieves the session for the given ID.
func (fs *FSStore) LoadSession(id string) (*Session, error) {
	if id == "" {
		return nil, fmt.Errorf("session id cannot be empty")
	}

	path := fs.sessionPath(id)
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, &NotFoundError{ID: id}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat session file: %w", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}

	var session Session
	if err := json.Unmarshal(data, &session); err != nil {
		return nil, fmt.Errorf("failed to deserialize session: %w", err)
	}

	slog.Debug("session loaded", "id", id, "path", path)
	return &session, nil
}

// ListSessions returns metadata for all available sessions, skipping
// directories without a readable session.json.
func (fs *FSStore) ListSessions() ([]SessionInfo, error) {
	sessionsDir := filepath.Join(fs.baseDir, "sessions")
	if _, err := os.Stat(sessionsDir); os.IsNotExist(err) {
		return []SessionInfo{}, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat sessions directory: %w", err)
	}

	entries, err := os.ReadDir(sessionsDir)
	if err != nil {
		return nil, fmt.Errorf("failed to read sessions directory: %w", err)
	}

	var infos []SessionInfo
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		id := entry.Name()
		if _, err := os.Stat(fs.sessionPath(id)); os.IsNotExist(err) {
			continue
		}

		session, err := fs.LoadSession(id)
		if err != nil {
			slog.Warn("failed to load session for listing", "id", id, "error", err)
			continue
		}

		info := session.ToInfo()
		if _, err := os.Stat(ArchivedTracePath(fs.baseDir, id)); err == nil {
			info.Archived = true
		}
		infos = append(infos, info)
	}

	slog.Debug("listed sessions", "count", len(infos))
	return infos, nil
}

// DeleteSession removes the session directory and everything in it.
func (fs *FSStore) DeleteSession(id string) error {
	if id == "" {
		return fmt.Errorf("session id cannot be empty")
	}

	dir := fs.sessionDir(id)
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return &NotFoundError{ID: id}
	} else if err != nil {
		return fmt.Errorf("failed to stat session directory: %w", err)
	}

	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove session directory: %w", err)
	}

	slog.Debug("session deleted", "id", id, "path", dir)
	return nil
}
