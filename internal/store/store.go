package store

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"
)

// ErrNotFound is returned when a lookup or mutation targets a video id
// that does not exist.
var ErrNotFound = errors.New("record not found")

// Store wraps the SQLite database holding the archive.
type Store struct {
	db *sql.DB
}

// Open opens (creating if necessary) the archive database at path and
// ensures the schema exists. The FTS index requires the driver to be
// built with the fts5 tag.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_busy_timeout=5000&_journal_mode=WAL")
	if err != nil {
		return nil, err
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, err
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// initSchema creates the videos table, its external-content FTS index,
// and the triggers that keep the two in sync. All statements are
// idempotent so Open can be called against an existing database.
//
// The original schema only synchronised the index on insert, which made
// transcripts arriving after creation invisible to search. The update
// and delete triggers below close that gap.
func (s *Store) initSchema() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS videos (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			title TEXT NOT NULL,
			person_name TEXT,
			category TEXT,
			type TEXT NOT NULL,
			path TEXT NOT NULL,
			transcript TEXT,
			thumbnail_path TEXT,
			colab_task_id TEXT,
			source_name TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE VIRTUAL TABLE IF NOT EXISTS videos_fts
			USING fts5(title, transcript, person_name, content='videos', content_rowid='id')`,
		`CREATE TRIGGER IF NOT EXISTS videos_ai AFTER INSERT ON videos BEGIN
			INSERT INTO videos_fts(rowid, title, transcript, person_name)
			VALUES (new.id, new.title, new.transcript, new.person_name);
		END`,
		`CREATE TRIGGER IF NOT EXISTS videos_au AFTER UPDATE ON videos BEGIN
			INSERT INTO videos_fts(videos_fts, rowid, title, transcript, person_name)
			VALUES ('delete', old.id, old.title, old.transcript, old.person_name);
			INSERT INTO videos_fts(rowid, title, transcript, person_name)
			VALUES (new.id, new.title, new.transcript, new.person_name);
		END`,
		`CREATE TRIGGER IF NOT EXISTS videos_ad AFTER DELETE ON videos BEGIN
			INSERT INTO videos_fts(videos_fts, rowid, title, transcript, person_name)
			VALUES ('delete', old.id, old.title, old.transcript, old.person_name);
		END`,
	}

	for _, stmt := range stmts {
		if _, err := s.db.Exec(stmt); err != nil {
			return err
		}
	}
	return nil
}
