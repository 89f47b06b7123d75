// Package datastore is a small keyed JSON store over a single sqlite file.
// Every table is (key TEXT PRIMARY KEY, data TEXT) with data holding a
// JSON-encoded document.
package datastore

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"
	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// ErrInvalidIdentifier is returned when a table or key name contains
// characters outside [A-Za-z0-9_-]. Table names are interpolated into SQL,
// so this check runs before any statement is built.
var ErrInvalidIdentifier = errors.New("datastore: invalid identifier")

// Store wraps a sqlite connection holding the ledger tables.
type Store struct {
	db *sqlx.DB
}

// Open opens (creating if needed) the sqlite database at path.
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("datastore: empty path")
	}
	return OpenDSN("file:" + path + "?_pragma=busy_timeout(5000)")
}

// OpenDSN opens a sqlite database from a raw DSN, e.g.
// "file:clerk?mode=memory&cache=shared" for tests.
func OpenDSN(dsn string) (*Store, error) {
	db, err := sqlx.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("datastore: open: %w", err)
	}
	// sqlite writes are serialized; a second conn would only block.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("datastore: ping: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database.
func (s *Store) Close() error { return s.db.Close() }

func safetyFirst(idents ...string) error {
	for _, ident := range idents {
		if ident == "" {
			return fmt.Errorf("%w: empty", ErrInvalidIdentifier)
		}
		for _, c := range ident {
			switch {
			case c >= 'a' && c <= 'z':
			case c >= 'A' && c <= 'Z':
			case c >= '0' && c <= '9':
			case c == '_' || c == '-':
			default:
				return fmt.Errorf("%w: %q", ErrInvalidIdentifier, ident)
			}
		}
	}
	return nil
}

// EnsureTable creates the named key/data table if it does not exist.
func (s *Store) EnsureTable(ctx context.Context, table string) error {
	if err := safetyFirst(table); err != nil {
		return err
	}
	q := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %q (key TEXT PRIMARY KEY, data TEXT)`, table)
	if _, err := s.db.ExecContext(ctx, q); err != nil {
		return fmt.Errorf("datastore: ensure %s: %w", table, err)
	}
	return nil
}

// Get reads the raw document for key. The second return reports presence:
// a missing key is (nil, false, nil), not an error.
func (s *Store) Get(ctx context.Context, table, key string) (json.RawMessage, bool, error) {
	if err := safetyFirst(table, key); err != nil {
		return nil, false, err
	}
	q := fmt.Sprintf(`SELECT data FROM %q WHERE key = ?`, table)
	var data string
	if err := s.db.GetContext(ctx, &data, q, key); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("datastore: get %s/%s: %w", table, key, err)
	}
	return json.RawMessage(data), true, nil
}

// Put upserts the document for key in a single statement.
func (s *Store) Put(ctx context.Context, table, key string, data []byte) error {
	if err := safetyFirst(table, key); err != nil {
		return err
	}
	q := fmt.Sprintf(`INSERT OR REPLACE INTO %q (key, data) VALUES (?, ?)`, table)
	if _, err := s.db.ExecContext(ctx, q, key, string(data)); err != nil {
		return fmt.Errorf("datastore: put %s/%s: %w", table, key, err)
	}
	return nil
}

// Delete removes key from table. Deleting an absent key is a no-op.
func (s *Store) Delete(ctx context.Context, table, key string) error {
	if err := safetyFirst(table, key); err != nil {
		return err
	}
	q := fmt.Sprintf(`DELETE FROM %q WHERE key = ?`, table)
	if _, err := s.db.ExecContext(ctx, q, key); err != nil {
		return fmt.Errorf("datastore: delete %s/%s: %w", table, key, err)
	}
	return nil
}

// Keys lists every key in table.
func (s *Store) Keys(ctx context.Context, table string) ([]string, error) {
	if err := safetyFirst(table); err != nil {
		return nil, err
	}
	q := fmt.Sprintf(`SELECT key FROM %q`, table)
	var keys []string
	if err := s.db.SelectContext(ctx, &keys, q); err != nil {
		return nil, fmt.Errorf("datastore: keys %s: %w", table, err)
	}
	return keys, nil
}

// Count returns the number of rows in table.
func (s *Store) Count(ctx context.Context, table string) (int, error) {
	if err := safetyFirst(table); err != nil {
		return 0, err
	}
	q := fmt.Sprintf(`SELECT COUNT(*) FROM %q`, table)
	var n int
	if err := s.db.GetContext(ctx, &n, q); err != nil {
		return 0, fmt.Errorf("datastore: count %s: %w", table, err)
	}
	return n, nil
}
