package storage

import (
	"database/sql"
	"encoding/json"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"github.com/smartmarks/smartmarks/internal/logger"
	"github.com/smartmarks/smartmarks/internal/model"
)

const currentSchemaVersion = 1

// SQLiteStorage implements Storage using a SQLite database. Records are
// keyed by bookmark id and writes never touch rows outside the given
// records, so two instances that each add a bookmark merge instead of
// clobbering each other's rows.
type SQLiteStorage struct {
	db   *sql.DB
	path string
	log  logger.Logger
}

// NewSQLiteStorage creates a new SQLiteStorage with the given database path.
// A nil logger discards diagnostics.
func NewSQLiteStorage(path string, log logger.Logger) (*SQLiteStorage, error) {
	if log == nil {
		log = logger.NewNop()
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}

	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, err
		}
	}

	s := &SQLiteStorage{db: db, path: path, log: log}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}

	return s, nil
}

// Path returns the database file path.
func (s *SQLiteStorage) Path() string {
	return s.path
}

// Close closes the database connection.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// migrate runs database migrations.
func (s *SQLiteStorage) migrate() error {
	var version int
	err := s.db.QueryRow("SELECT version FROM schema_version LIMIT 1").Scan(&version)
	if err != nil {
		// Table doesn't exist or is empty, start fresh
		version = 0
	}

	if version < 1 {
		if err := s.migrateV1(); err != nil {
			return err
		}
	}

	return nil
}

// migrateV1 creates the initial schema.
func (s *SQLiteStorage) migrateV1() error {
	schema := `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY
		);

		CREATE TABLE IF NOT EXISTS bookmarks (
			id TEXT PRIMARY KEY NOT NULL,
			url TEXT NOT NULL,
			title TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			tags TEXT NOT NULL DEFAULT '[]',
			created_at TEXT NOT NULL,
			user_id TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_bookmarks_user_id ON bookmarks(user_id);
		CREATE INDEX IF NOT EXISTS idx_bookmarks_created_at ON bookmarks(created_at);

		CREATE TABLE IF NOT EXISTS current_user (
			slot INTEGER PRIMARY KEY CHECK (slot = 0),
			id TEXT NOT NULL,
			name TEXT NOT NULL,
			email TEXT NOT NULL,
			avatar TEXT NOT NULL
		);

		INSERT OR REPLACE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// LoadBookmarks reads the full collection ordered by insertion.
func (s *SQLiteStorage) LoadBookmarks() ([]model.Bookmark, error) {
	bookmarks := []model.Bookmark{}

	rows, err := s.db.Query(`
		SELECT id, url, title, description, tags, created_at, user_id
		FROM bookmarks
		ORDER BY rowid
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var b model.Bookmark
		var tagsJSON string
		var createdAtStr string

		if err := rows.Scan(
			&b.ID, &b.URL, &b.Title, &b.Description,
			&tagsJSON, &createdAtStr, &b.UserID,
		); err != nil {
			return nil, err
		}

		if err := json.Unmarshal([]byte(tagsJSON), &b.Tags); err != nil {
			b.Tags = []string{}
		}
		b.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
		if err != nil {
			s.log.Warn("skipping bookmark with corrupt timestamp",
				logger.String("id", b.ID), logger.Error(err))
			continue
		}

		bookmarks = append(bookmarks, b)
	}

	if err := rows.Err(); err != nil {
		return nil, err
	}

	return bookmarks, nil
}

// SaveBookmarks upserts every given record by id inside one transaction.
// Rows absent from the collection are left untouched, so a writer holding a
// stale snapshot cannot erase a concurrent writer's addition; removal goes
// through DeleteBookmark.
func (s *SQLiteStorage) SaveBookmarks(bookmarks []model.Bookmark) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO bookmarks (id, url, title, description, tags, created_at, user_id)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			url = excluded.url,
			title = excluded.title,
			description = excluded.description,
			tags = excluded.tags,
			created_at = excluded.created_at,
			user_id = excluded.user_id
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, b := range bookmarks {
		tagsJSON, _ := json.Marshal(b.Tags)
		if b.Tags == nil {
			tagsJSON = []byte("[]")
		}

		if _, err := stmt.Exec(
			b.ID, b.URL, b.Title, b.Description,
			string(tagsJSON), b.CreatedAt.Format(time.RFC3339Nano), b.UserID,
		); err != nil {
			return err
		}
	}

	return tx.Commit()
}

// DeleteBookmark removes one row by id.
func (s *SQLiteStorage) DeleteBookmark(id string) error {
	_, err := s.db.Exec("DELETE FROM bookmarks WHERE id = ?", id)
	return err
}

// LoadUser reads the current-user record.
func (s *SQLiteStorage) LoadUser() (*model.User, error) {
	var u model.User
	err := s.db.QueryRow(`
		SELECT id, name, email, avatar FROM current_user WHERE slot = 0
	`).Scan(&u.ID, &u.Name, &u.Email, &u.Avatar)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &u, nil
}

// SaveUser writes the current-user record; nil clears it.
func (s *SQLiteStorage) SaveUser(user *model.User) error {
	if user == nil {
		_, err := s.db.Exec("DELETE FROM current_user")
		return err
	}

	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO current_user (slot, id, name, email, avatar)
		VALUES (0, ?, ?, ?, ?)
	`, user.ID, user.Name, user.Email, user.Avatar)
	return err
}
