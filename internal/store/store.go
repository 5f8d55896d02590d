// Package store persists encrypted secret records in an embedded sqlite
// database, one file per configuration directory. Records are immutable:
// created by Put, destroyed by Delete, never updated. The store does no
// cross-process locking of its own; sqlite's transaction isolation covers
// concurrent writers.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/plexhub/convault/internal/logging"
	"github.com/plexhub/convault/internal/permissions"
	"github.com/plexhub/convault/internal/provider"
)

// DBFileName is the store file inside the configuration directory.
const DBFileName = "secrets.db"

// ErrClosed is returned by every method called after Close.
var ErrClosed = errors.New("secret store is closed")

// Meta is the advisory binding hint recorded with a secret. It helps
// humans reading `secrets list`; it is never authoritative for security
// decisions.
type Meta struct {
	ConnectorID string
	KeyName     string
	Source      string
}

// Store is a handle on the secrets database. Construct it at the
// composition root and pass it down; there is no package-level instance.
type Store struct {
	mu        sync.Mutex
	db        *sql.DB
	providers *provider.Set
	logger    *logging.Logger
	closed    bool
}

// Open opens (or creates) the store under configDir.
func Open(configDir string, providers *provider.Set, logger *logging.Logger) (*Store, error) {
	if err := os.MkdirAll(configDir, 0o700); err != nil {
		return nil, fmt.Errorf("create config directory: %w", err)
	}

	dbPath := filepath.Join(configDir, DBFileName)
	created := false
	if _, err := os.Stat(dbPath); os.IsNotExist(err) {
		created = true
	}

	// modernc.org/sqlite applies pragmas via _pragma=name(value) pairs.
	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY
	// within the process, busy_timeout covers other processes
	db.SetMaxOpenConns(1)

	s := newStore(db, providers, logger)
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	if created {
		if err := permissions.Tighten(dbPath); err != nil {
			logger.Warn("could not restrict store permissions: %v", err)
		}
	} else if findings, err := permissions.CheckSecretFile(dbPath); err == nil {
		for _, f := range findings {
			logger.Warn("store file %s", f)
		}
	}

	return s, nil
}

func newStore(db *sql.DB, providers *provider.Set, logger *logging.Logger) *Store {
	return &Store{db: db, providers: providers, logger: logger}
}

// schema migrations, applied in order above the recorded version.
var migrations = []string{
	`CREATE TABLE IF NOT EXISTS secrets (
		id TEXT PRIMARY KEY,
		provider TEXT NOT NULL,
		ciphertext BLOB NOT NULL,
		created_at INTEGER NOT NULL,
		connector_id TEXT NOT NULL DEFAULT '',
		key_name TEXT NOT NULL DEFAULT '',
		source TEXT NOT NULL DEFAULT ''
	)`,
}

func (s *Store) migrate() error {
	if _, err := s.db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (version INTEGER NOT NULL)`); err != nil {
		return err
	}

	var version int
	err := s.db.QueryRow(`SELECT version FROM schema_version`).Scan(&version)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		if _, err := s.db.Exec(`INSERT INTO schema_version (version) VALUES (0)`); err != nil {
			return err
		}
	case err != nil:
		return err
	}

	for i := version; i < len(migrations); i++ {
		if _, err := s.db.Exec(migrations[i]); err != nil {
			return fmt.Errorf("apply migration %d: %w", i+1, err)
		}
		if _, err := s.db.Exec(`UPDATE schema_version SET version = ?`, i+1); err != nil {
			return err
		}
	}
	return nil
}

// Close releases the database handle. Every method called afterwards
// returns ErrClosed rather than touching a stale handle.
func (s *Store) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	return s.db.Close()
}

func (s *Store) checkOpen() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Put encrypts plaintext with the current best provider, persists a new
// record, and returns its id and formatted reference.
func (s *Store) Put(ctx context.Context, plaintext []byte, meta Meta) (id, ref string, err error) {
	if err := s.checkOpen(); err != nil {
		return "", "", err
	}

	p := s.providers.Best()
	ciphertext, err := p.Encrypt(ctx, plaintext)
	if err != nil {
		return "", "", fmt.Errorf("encrypt secret: %w", err)
	}

	id = uuid.NewString()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO secrets (id, provider, ciphertext, created_at, connector_id, key_name, source)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, string(p.Type()), ciphertext, time.Now().UnixNano(),
		meta.ConnectorID, meta.KeyName, meta.Source)
	if err != nil {
		return "", "", fmt.Errorf("insert secret: %w", err)
	}

	return id, FormatRef(p.Type(), id), nil
}

// Get decrypts and returns the plaintext for id. A missing record returns
// (nil, nil). A record whose provider is unavailable on this host fails
// with a provider.ErrUnavailable error; it never falls back to another
// provider's decrypt path. Callers must treat the returned plaintext as
// short-lived and never log or persist it verbatim.
func (s *Store) Get(ctx context.Context, id string) ([]byte, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	var tag string
	var ciphertext []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT provider, ciphertext FROM secrets WHERE id = ?`, id).
		Scan(&tag, &ciphertext)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("load secret %s: %w", id, err)
	}

	p, err := s.providers.Get(provider.Type(tag))
	if err != nil {
		return nil, fmt.Errorf("secret %s: %w", id, err)
	}
	if !p.Available() {
		return nil, fmt.Errorf("secret %s: %w",
			id, &provider.UnavailableError{Type: p.Type()})
	}

	plaintext, err := p.Decrypt(ctx, ciphertext)
	if err != nil {
		return nil, fmt.Errorf("decrypt secret %s: %w", id, err)
	}
	return plaintext, nil
}

// Exists reports whether a record with id is present.
func (s *Store) Exists(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	var one int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM secrets WHERE id = ?`, id).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// Delete removes a record, reporting whether one was actually removed.
func (s *Store) Delete(ctx context.Context, id string) (bool, error) {
	if err := s.checkOpen(); err != nil {
		return false, err
	}

	res, err := s.db.ExecContext(ctx, `DELETE FROM secrets WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete secret %s: %w", id, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// List returns all record ids, newest first.
func (s *Store) List(ctx context.Context) ([]string, error) {
	if err := s.checkOpen(); err != nil {
		return nil, err
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM secrets ORDER BY created_at DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("list secrets: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// GetMeta returns the advisory metadata for id, or false if absent.
func (s *Store) GetMeta(ctx context.Context, id string) (Meta, bool, error) {
	if err := s.checkOpen(); err != nil {
		return Meta{}, false, err
	}

	var m Meta
	err := s.db.QueryRowContext(ctx,
		`SELECT connector_id, key_name, source FROM secrets WHERE id = ?`, id).
		Scan(&m.ConnectorID, &m.KeyName, &m.Source)
	if errors.Is(err, sql.ErrNoRows) {
		return Meta{}, false, nil
	}
	if err != nil {
		return Meta{}, false, err
	}
	return m, true, nil
}

// Provider returns the provider tag a record was written under.
func (s *Store) Provider(ctx context.Context, id string) (provider.Type, bool, error) {
	if err := s.checkOpen(); err != nil {
		return "", false, err
	}

	var tag string
	err := s.db.QueryRowContext(ctx, `SELECT provider FROM secrets WHERE id = ?`, id).Scan(&tag)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}
	if err != nil {
		return "", false, err
	}
	return provider.Type(tag), true, nil
}

// CreatedAt returns a record's creation time, or false if absent.
func (s *Store) CreatedAt(ctx context.Context, id string) (time.Time, bool, error) {
	if err := s.checkOpen(); err != nil {
		return time.Time{}, false, err
	}

	var nanos int64
	err := s.db.QueryRowContext(ctx, `SELECT created_at FROM secrets WHERE id = ?`, id).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, err
	}
	return time.Unix(0, nanos), true, nil
}

// Count returns the number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	if err := s.checkOpen(); err != nil {
		return 0, err
	}

	var n int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM secrets`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count secrets: %w", err)
	}
	return n, nil
}

// Providers exposes the provider set this store encrypts with.
func (s *Store) Providers() *provider.Set {
	return s.providers
}
