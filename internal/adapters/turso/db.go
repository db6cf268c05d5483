package turso

import (
	"database/sql"
	"fmt"

	_ "github.com/tursodatabase/go-libsql"
)

// NewDB opens the libsql database at the given URL. Both local
// file: URLs and remote libsql: URLs are accepted.
func NewDB(url string) (*sql.DB, error) {
	if url == "" {
		return nil, fmt.Errorf("database URL is required")
	}

	db, err := sql.Open("libsql", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return db, nil
}
