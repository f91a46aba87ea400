// Package store provides the two SQLite surfaces of wxport: a
// read-only view over the external chat database and an app-owned
// cache database (transcripts, run history) under the cache dir.
package store

import (
	"database/sql"
	"fmt"

	_ "github.com/mattn/go-sqlite3"
)

// CacheDB wraps the SQLite connection for the app-owned wxport.db.
type CacheDB struct {
	*sql.DB
}

// Open creates the cache database connection with WAL mode and
// recommended pragmas.
func Open(path string) (*CacheDB, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on")
	if err != nil {
		return nil, fmt.Errorf("open cache db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping cache db: %w", err)
	}
	return &CacheDB{db}, nil
}

// ChatDB wraps a read-only connection to the external chat store. The
// chat store belongs to another program; nothing here ever writes to
// it.
type ChatDB struct {
	*sql.DB
}

// OpenChat opens the chat database read-only.
func OpenChat(path string) (*ChatDB, error) {
	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open chat db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping chat db: %w", err)
	}
	return &ChatDB{db}, nil
}
