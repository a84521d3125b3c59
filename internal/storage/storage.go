package storage

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"

	"github.com/smartmarks/smartmarks/internal/config"
	"github.com/smartmarks/smartmarks/internal/logger"
	"github.com/smartmarks/smartmarks/internal/model"
)

// Storage defines the interface for persisting the bookmark collection and
// the current-user record. The bookmark collection is a single shared list
// commingling all users; callers filter by owner. Writes are keyed by
// bookmark id and deletion is a separate explicit operation, so a writer
// holding a stale snapshot can never erase records it did not know about.
type Storage interface {
	// LoadBookmarks reads the full persisted collection. Missing or
	// malformed data yields an empty collection, never an error surfaced
	// to the caller.
	LoadBookmarks() ([]model.Bookmark, error)
	// SaveBookmarks upserts every given record by id. Persisted records
	// absent from the slice are left in place; use DeleteBookmark to
	// remove one.
	SaveBookmarks(bookmarks []model.Bookmark) error
	// DeleteBookmark removes one record by id. A missing id is a no-op.
	DeleteBookmark(id string) error

	// LoadUser reads the current-user record, nil when absent.
	LoadUser() (*model.User, error)
	// SaveUser writes the current-user record; nil clears it.
	SaveUser(user *model.User) error
}

// JSONStorage implements Storage using JSON files in a directory.
type JSONStorage struct {
	dir string
}

const (
	bookmarksFile = "bookmarks.json"
	userFile      = "user.json"
)

// NewJSONStorage creates a new JSONStorage rooted at the given directory.
func NewJSONStorage(dir string) *JSONStorage {
	return &JSONStorage{dir: dir}
}

// Dir returns the storage directory.
func (s *JSONStorage) Dir() string {
	return s.dir
}

// LoadBookmarks reads the collection from bookmarks.json.
// Missing file or unparsable content yields an empty collection.
func (s *JSONStorage) LoadBookmarks() ([]model.Bookmark, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, bookmarksFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []model.Bookmark{}, nil
		}
		return nil, err
	}

	var bookmarks []model.Bookmark
	if err := json.Unmarshal(data, &bookmarks); err != nil {
		// Corrupt store reads as empty rather than crashing the caller.
		return []model.Bookmark{}, nil
	}
	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}
	return bookmarks, nil
}

// SaveBookmarks merges the given records into bookmarks.json by id:
// existing entries are updated in place, new ones appended. Records already
// in the file but absent from the slice are kept.
func (s *JSONStorage) SaveBookmarks(bookmarks []model.Bookmark) error {
	existing, err := s.LoadBookmarks()
	if err != nil {
		return err
	}

	updates := make(map[string]model.Bookmark, len(bookmarks))
	for _, b := range bookmarks {
		updates[b.ID] = b
	}

	merged := make([]model.Bookmark, 0, len(existing)+len(bookmarks))
	for _, b := range existing {
		if u, ok := updates[b.ID]; ok {
			b = u
			delete(updates, b.ID)
		}
		merged = append(merged, b)
	}
	for _, b := range bookmarks {
		if _, ok := updates[b.ID]; ok {
			merged = append(merged, b)
			delete(updates, b.ID)
		}
	}

	return s.writeBookmarks(merged)
}

// DeleteBookmark removes one record from bookmarks.json.
func (s *JSONStorage) DeleteBookmark(id string) error {
	existing, err := s.LoadBookmarks()
	if err != nil {
		return err
	}

	remaining := model.Remove(existing, id)
	if len(remaining) == len(existing) {
		return nil
	}
	return s.writeBookmarks(remaining)
}

func (s *JSONStorage) writeBookmarks(bookmarks []model.Bookmark) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}

	if bookmarks == nil {
		bookmarks = []model.Bookmark{}
	}
	data, err := json.MarshalIndent(bookmarks, "", "  ")
	if err != nil {
		return err
	}

	return os.WriteFile(filepath.Join(s.dir, bookmarksFile), data, 0644)
}

// LoadUser reads the current-user record from user.json.
func (s *JSONStorage) LoadUser() (*model.User, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, userFile))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var user model.User
	if err := json.Unmarshal(data, &user); err != nil {
		return nil, nil
	}
	return &user, nil
}

// SaveUser writes the current-user record; nil removes it.
func (s *JSONStorage) SaveUser(user *model.User) error {
	path := filepath.Join(s.dir, userFile)
	if user == nil {
		err := os.Remove(path)
		if errors.Is(err, os.ErrNotExist) {
			return nil
		}
		return err
	}

	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(user, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Open opens the storage backend selected by the config.
// Prefers SQLite when configured or when a database file already exists,
// otherwise falls back to JSON files.
func Open(cfg *config.Config, log logger.Logger) (Storage, error) {
	dir, err := config.DefaultDir()
	if err != nil {
		return nil, err
	}

	sqlitePath := filepath.Join(dir, "bookmarks.db")
	if cfg.Storage.Backend == "sqlite" {
		return NewSQLiteStorage(sqlitePath, log)
	}
	if _, err := os.Stat(sqlitePath); err == nil {
		return NewSQLiteStorage(sqlitePath, log)
	}

	return NewJSONStorage(dir), nil
}
