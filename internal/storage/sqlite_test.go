package storage_test

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartmarks/smartmarks/internal/model"
	"github.com/smartmarks/smartmarks/internal/storage"
)

func newTestSQLite(t *testing.T) *storage.SQLiteStorage {
	t.Helper()
	s, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "bookmarks.db"), nil)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func TestSQLiteStorage_SaveAndLoad(t *testing.T) {
	s := newTestSQLite(t)

	bookmarks := []model.Bookmark{
		{
			ID:          "b1",
			URL:         "https://example.com",
			Title:       "Example",
			Description: "An example site.",
			Tags:        []string{"tech", "demo"},
			CreatedAt:   time.Date(2025, 1, 15, 10, 30, 0, 0, time.UTC),
			UserID:      "u1",
		},
		{
			ID:        "b2",
			URL:       "https://go.dev",
			Title:     "Go",
			Tags:      []string{},
			CreatedAt: time.Date(2025, 1, 16, 9, 0, 0, 0, time.UTC),
			UserID:    "u2",
		},
	}

	if err := s.SaveBookmarks(bookmarks); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}

	if len(loaded) != 2 {
		t.Fatalf("expected 2 bookmarks, got %d", len(loaded))
	}
	if loaded[0].Description != "An example site." {
		t.Errorf("description mismatch: %q", loaded[0].Description)
	}
	if len(loaded[0].Tags) != 2 || loaded[0].Tags[0] != "tech" {
		t.Errorf("tags mismatch: %v", loaded[0].Tags)
	}
	if !loaded[0].CreatedAt.Equal(bookmarks[0].CreatedAt) {
		t.Errorf("createdAt mismatch: got %v", loaded[0].CreatedAt)
	}
}

func TestSQLiteStorage_StaleWriterKeepsConcurrentAdd(t *testing.T) {
	s := newTestSQLite(t)

	base := []model.Bookmark{
		{ID: "b1", URL: "https://a.example", Title: "A", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
	}
	if err := s.SaveBookmarks(base); err != nil {
		t.Fatalf("failed to save base: %v", err)
	}

	// Two writers both hold the base snapshot. A saves first; B then saves
	// its own snapshot plus a different addition, never having seen b2. B's
	// write must not erase b2.
	writerA := append(append([]model.Bookmark{}, base...),
		model.Bookmark{ID: "b2", URL: "https://b.example", Title: "B", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"})
	if err := s.SaveBookmarks(writerA); err != nil {
		t.Fatalf("writer A save failed: %v", err)
	}

	writerB := append(append([]model.Bookmark{}, base...),
		model.Bookmark{ID: "b3", URL: "https://c.example", Title: "C", Tags: []string{}, CreatedAt: time.Now(), UserID: "u2"})
	if err := s.SaveBookmarks(writerB); err != nil {
		t.Fatalf("writer B save failed: %v", err)
	}

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	ids := make(map[string]bool, len(loaded))
	for _, b := range loaded {
		ids[b.ID] = true
	}
	for _, want := range []string{"b1", "b2", "b3"} {
		if !ids[want] {
			t.Errorf("bookmark %s missing after concurrent writes: %v", want, ids)
		}
	}
}

func TestSQLiteStorage_SaveUpdatesExistingRow(t *testing.T) {
	s := newTestSQLite(t)

	b := model.Bookmark{ID: "b1", URL: "https://a.example", Title: "A", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"}
	if err := s.SaveBookmarks([]model.Bookmark{b}); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	b.Title = "A, revised"
	b.Tags = []string{"updated"}
	if err := s.SaveBookmarks([]model.Bookmark{b}); err != nil {
		t.Fatalf("failed to update: %v", err)
	}

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 1 {
		t.Fatalf("expected 1 bookmark, got %d", len(loaded))
	}
	if loaded[0].Title != "A, revised" || len(loaded[0].Tags) != 1 {
		t.Errorf("row not updated in place: %+v", loaded[0])
	}
}

func TestSQLiteStorage_DeleteBookmark(t *testing.T) {
	s := newTestSQLite(t)

	bookmarks := []model.Bookmark{
		{ID: "b1", URL: "https://a.example", Title: "A", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
		{ID: "b2", URL: "https://b.example", Title: "B", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
	}
	if err := s.SaveBookmarks(bookmarks); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	if err := s.DeleteBookmark("b1"); err != nil {
		t.Fatalf("failed to delete: %v", err)
	}
	if err := s.DeleteBookmark("nope"); err != nil {
		t.Fatalf("deleting a missing id should be a no-op, got: %v", err)
	}

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "b2" {
		t.Errorf("expected only b2 to remain, got %+v", loaded)
	}
}

func TestSQLiteStorage_SaveEmptyIsNoOp(t *testing.T) {
	s := newTestSQLite(t)

	if err := s.SaveBookmarks([]model.Bookmark{
		{ID: "b1", URL: "https://a.example", Title: "A", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
	}); err != nil {
		t.Fatalf("failed to save: %v", err)
	}

	if err := s.SaveBookmarks(nil); err != nil {
		t.Fatalf("failed to save empty: %v", err)
	}

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 1 {
		t.Errorf("saving an empty slice must not remove rows, got %d entries", len(loaded))
	}
}

func TestSQLiteStorage_CorruptTimestampRowSkipped(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bookmarks.db")

	s, err := storage.NewSQLiteStorage(path, nil)
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := s.SaveBookmarks([]model.Bookmark{
		{ID: "b1", URL: "https://a.example", Title: "A", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
		{ID: "b2", URL: "https://b.example", Title: "B", Tags: []string{}, CreatedAt: time.Now(), UserID: "u1"},
	}); err != nil {
		t.Fatalf("failed to save: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("failed to close: %v", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		t.Fatalf("failed to reopen db: %v", err)
	}
	if _, err := db.Exec("UPDATE bookmarks SET created_at = 'garbage' WHERE id = 'b1'"); err != nil {
		t.Fatalf("failed to corrupt row: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("failed to close raw db: %v", err)
	}

	s, err = storage.NewSQLiteStorage(path, nil)
	if err != nil {
		t.Fatalf("failed to reopen sqlite: %v", err)
	}
	t.Cleanup(func() { s.Close() })

	loaded, err := s.LoadBookmarks()
	if err != nil {
		t.Fatalf("failed to load: %v", err)
	}
	if len(loaded) != 1 || loaded[0].ID != "b2" {
		t.Errorf("expected the corrupt row skipped and b2 kept, got %+v", loaded)
	}
}

func TestSQLiteStorage_UserRoundTrip(t *testing.T) {
	s := newTestSQLite(t)

	u, err := s.LoadUser()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if u != nil {
		t.Fatal("expected nil user in fresh database")
	}

	if err := s.SaveUser(&model.User{ID: "u1", Name: "Ada", Email: "ada@example.com", Avatar: ""}); err != nil {
		t.Fatalf("failed to save user: %v", err)
	}

	u, err = s.LoadUser()
	if err != nil {
		t.Fatalf("failed to load user: %v", err)
	}
	if u == nil || u.Name != "Ada" {
		t.Errorf("user mismatch: %+v", u)
	}

	if err := s.SaveUser(nil); err != nil {
		t.Fatalf("failed to clear user: %v", err)
	}
	u, _ = s.LoadUser()
	if u != nil {
		t.Error("expected user cleared")
	}
}
