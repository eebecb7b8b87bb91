// ABOUTME: SQLite implementation of the certificate Store using modernc.org/sqlite
// ABOUTME: Persists one pinned certificate per agent identifier with automatic schema creation

package certstore

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite certificate store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "certstore")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Each pooled connection to :memory: would see its own empty database,
	// so pin the pool to a single connection for in-memory stores.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("certificate store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS certificates (
			agent_id   TEXT PRIMARY KEY,
			cert_pem   TEXT NOT NULL,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL
		);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Register validates the certificate against the claimed identity and pins it.
// The PEM text is trimmed before validation and storage so that Lookup returns
// exactly what the validator will compare against.
func (s *SQLiteStore) Register(ctx context.Context, agentID, certPEM string) error {
	trimmed := strings.TrimSpace(certPEM)

	cn, err := ExtractCommonName(trimmed)
	if err != nil {
		return err
	}

	if cn != agentID {
		return fmt.Errorf("%w: certificate CN %q does not match agent id %q",
			ErrIdentityMismatch, cn, agentID)
	}

	now := time.Now().UTC().Format(time.RFC3339)
	query := `
		INSERT INTO certificates (agent_id, cert_pem, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(agent_id) DO UPDATE SET
			cert_pem   = excluded.cert_pem,
			updated_at = excluded.updated_at
	`

	if _, err := s.db.ExecContext(ctx, query, agentID, trimmed, now, now); err != nil {
		return fmt.Errorf("persisting certificate for %s: %w", agentID, err)
	}

	s.logger.Info("certificate pinned", "agent_id", agentID)
	return nil
}

// Lookup retrieves the currently pinned certificate for an agent identifier.
// Returns ErrNotFound if no certificate is pinned.
func (s *SQLiteStore) Lookup(ctx context.Context, agentID string) (string, error) {
	var certPEM string
	err := s.db.QueryRowContext(ctx,
		`SELECT cert_pem FROM certificates WHERE agent_id = ?`, agentID,
	).Scan(&certPEM)
	if err == sql.ErrNoRows {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("querying certificate for %s: %w", agentID, err)
	}

	return certPEM, nil
}

// List returns all pinned certificates ordered by agent identifier.
func (s *SQLiteStore) List(ctx context.Context) ([]*PinnedCertificate, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT agent_id, cert_pem, created_at, updated_at
		FROM certificates
		ORDER BY agent_id
	`)
	if err != nil {
		return nil, fmt.Errorf("querying certificates: %w", err)
	}
	defer rows.Close()

	var certs []*PinnedCertificate
	for rows.Next() {
		var c PinnedCertificate
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&c.AgentID, &c.CertPEM, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning certificate row: %w", err)
		}
		c.CreatedAt, _ = time.Parse(time.RFC3339, createdAtStr)
		c.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAtStr)
		certs = append(certs, &c)
	}

	return certs, rows.Err()
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing certificate store")
	return s.db.Close()
}
