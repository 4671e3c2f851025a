package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strconv"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// connParams configures every connection through the go-sqlite3 DSN.
const connParams = "_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000&_foreign_keys=on"

// index_meta keys.
const (
	metaSchema  = "schema"
	metaEntries = "entries"
	metaNodes   = "nodes"
	metaBuiltAt = "built_at"
)

// Store is the identifier index of one diagram, kept in SQLite.
type Store struct {
	db *sql.DB
}

// Info describes the state of an index.
type Info struct {
	Schema  int       `json:"schema"`
	Entries int       `json:"entries"`
	Nodes   int       `json:"nodes"`
	BuiltAt time.Time `json:"built_at"`
}

// Open opens the index at path, creating it if needed, and upgrades it to
// the current schema. Use ":memory:" for a throwaway index.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?"+connParams)
	if err != nil {
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	// One connection: a single writer, and ":memory:" stays one database.
	db.SetMaxOpenConns(1)

	s := &Store{db: db}
	if err := s.upgrade(); err != nil {
		db.Close()
		return nil, fmt.Errorf("open index %s: %w", path, err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// migration upgrades the index by one schema version.
type migration struct {
	version int
	name    string
	stmts   []string
}

// migrations run in order on indexes whose user_version is below theirs.
var migrations = []migration{
	{
		version: 1,
		name:    "node reverse lookup",
		stmts: []string{
			`CREATE INDEX IF NOT EXISTS idx_identifier_nodes_node ON identifier_nodes(node_id)`,
		},
	},
	{
		version: 2,
		name:    "backfill index statistics",
		stmts: []string{
			`INSERT OR IGNORE INTO index_meta (key, value)
			 SELECT 'entries', COUNT(*) FROM identifier_nodes`,
			`INSERT OR IGNORE INTO index_meta (key, value)
			 SELECT 'nodes', COUNT(DISTINCT node_id) FROM identifier_nodes`,
		},
	},
}

// schemaVersion is the version a freshly opened index ends up at.
var schemaVersion = migrations[len(migrations)-1].version

// upgrade creates missing tables and applies pending migrations. Each
// migration commits together with its version bump.
func (s *Store) upgrade() error {
	if _, err := s.db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create tables: %w", err)
	}
	var version int
	if err := s.db.QueryRow(`PRAGMA user_version`).Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	for _, m := range migrations {
		if m.version <= version {
			continue
		}
		if err := s.apply(m); err != nil {
			return fmt.Errorf("migration %d (%s): %w", m.version, m.name, err)
		}
	}
	return nil
}

func (s *Store) apply(m migration) error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()
	for _, stmt := range m.stmts {
		if _, err := tx.Exec(stmt); err != nil {
			return err
		}
	}
	if _, err := tx.Exec(fmt.Sprintf(`PRAGMA user_version = %d`, m.version)); err != nil {
		return err
	}
	if err := setMeta(context.Background(), tx, metaSchema, strconv.Itoa(m.version)); err != nil {
		return err
	}
	return tx.Commit()
}

// Info reads the schema version and the statistics of the last rebuild.
// BuiltAt is zero for an index that was never built by BuildFromArena.
func (s *Store) Info(ctx context.Context) (Info, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, value FROM index_meta`)
	if err != nil {
		return Info{}, fmt.Errorf("read index meta: %w", err)
	}
	defer rows.Close()

	var info Info
	for rows.Next() {
		var key, value string
		if err := rows.Scan(&key, &value); err != nil {
			return Info{}, fmt.Errorf("read index meta: %w", err)
		}
		switch key {
		case metaSchema:
			info.Schema, err = strconv.Atoi(value)
		case metaEntries:
			info.Entries, err = strconv.Atoi(value)
		case metaNodes:
			info.Nodes, err = strconv.Atoi(value)
		case metaBuiltAt:
			info.BuiltAt, err = time.Parse(time.RFC3339, value)
		}
		if err != nil {
			return Info{}, fmt.Errorf("index meta %s=%q: %w", key, value, err)
		}
	}
	return info, rows.Err()
}

// execer is satisfied by *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func setMeta(ctx context.Context, ex execer, key, value string) error {
	_, err := ex.ExecContext(ctx,
		`INSERT INTO index_meta (key, value) VALUES (?, ?)
		 ON CONFLICT(key) DO UPDATE SET value = excluded.value`, key, value)
	if err != nil {
		return fmt.Errorf("write index meta %s: %w", key, err)
	}
	return nil
}
