package cooldown

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/nao1215/exitswitch/internal/model"
)

// DefaultSQLiteFile is the state file name created inside the state dir.
const DefaultSQLiteFile = "exitswitch.db"

// sqliteBusyTimeout bounds how long a worker waits for another worker's
// write lock before giving up.
const sqliteBusyTimeout = 5 * time.Second

// SQLiteStore keeps rotation state in a SQLite file shared by every worker
// process on the host. It also stores the paid session token so that all
// workers present the same identity.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// OpenSQLiteStore opens or creates the state database inside dir.
func OpenSQLiteStore(dir string) (*SQLiteStore, error) {
	if err := os.MkdirAll(dir, 0750); err != nil {
		return nil, fmt.Errorf("failed to create state directory: %w", err)
	}
	dbPath := filepath.Join(dir, DefaultSQLiteFile)

	// busy_timeout is applied per connection through the DSN so a recycled
	// connection keeps it.
	dsn := fmt.Sprintf("%s?mode=rwc&_pragma=busy_timeout(%d)", dbPath, sqliteBusyTimeout.Milliseconds())
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open state database: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	store := &SQLiteStore{db: db, dbPath: dbPath}
	if err := store.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}
	return store, nil
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.dbPath
}

func (s *SQLiteStore) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS rotation_state (
		tier TEXT PRIMARY KEY,
		last_rotation INTEGER NOT NULL DEFAULT 0,
		session_token TEXT NOT NULL DEFAULT '',
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);
	`
	_, err := s.db.ExecContext(context.Background(), schema)
	return err
}

// Reserve implements Store. The read and the write run inside one
// BEGIN IMMEDIATE transaction, which takes the database write lock up front
// so two workers cannot both observe an open window.
func (s *SQLiteStore) Reserve(ctx context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (remaining time.Duration, err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return 0, fmt.Errorf("failed to acquire connection: %w", err)
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	last, err := lastRotation(ctx, conn, tier)
	if err != nil {
		return 0, err
	}
	if remaining := remainingAt(last, now, cooldown); remaining > 0 {
		if _, err := conn.ExecContext(ctx, "COMMIT"); err != nil {
			return 0, fmt.Errorf("failed to commit transaction: %w", err)
		}
		return remaining, nil
	}

	_, err = conn.ExecContext(ctx, `
		INSERT INTO rotation_state (tier, last_rotation, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tier) DO UPDATE SET
			last_rotation = excluded.last_rotation,
			updated_at = CURRENT_TIMESTAMP
	`, tier.String(), now.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("failed to record rotation: %w", err)
	}
	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}
	return 0, nil
}

// Remaining implements Store.
func (s *SQLiteStore) Remaining(ctx context.Context, tier model.Tier, now time.Time, cooldown time.Duration) (time.Duration, error) {
	last, err := lastRotation(ctx, s.db, tier)
	if err != nil {
		return 0, err
	}
	return remainingAt(last, now, cooldown), nil
}

// PublishSession stores the paid session token for other workers.
func (s *SQLiteStore) PublishSession(ctx context.Context, token string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rotation_state (tier, session_token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tier) DO UPDATE SET
			session_token = excluded.session_token,
			updated_at = CURRENT_TIMESTAMP
	`, model.TierPaid.String(), token)
	if err != nil {
		return fmt.Errorf("failed to publish session token: %w", err)
	}
	return nil
}

// ClaimSession stores token only if no session token is stored yet, then
// returns whichever token is shared. The upsert is a single statement, so
// concurrent claims from several workers agree on one token.
func (s *SQLiteStore) ClaimSession(ctx context.Context, token string) (string, error) {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO rotation_state (tier, session_token, updated_at)
		VALUES (?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tier) DO UPDATE SET
			session_token = excluded.session_token,
			updated_at = CURRENT_TIMESTAMP
		WHERE rotation_state.session_token = ''
	`, model.TierPaid.String(), token)
	if err != nil {
		return "", fmt.Errorf("failed to claim session token: %w", err)
	}
	return s.LoadSession(ctx)
}

// LoadSession returns the shared paid session token, or "" if none was
// published yet.
func (s *SQLiteStore) LoadSession(ctx context.Context) (string, error) {
	var token string
	err := s.db.QueryRowContext(ctx,
		"SELECT session_token FROM rotation_state WHERE tier = ?", model.TierPaid.String(),
	).Scan(&token)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to load session token: %w", err)
	}
	return token, nil
}

// Shared implements Store.
func (s *SQLiteStore) Shared() bool {
	return true
}

// Close implements Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type queryRower interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func lastRotation(ctx context.Context, q queryRower, tier model.Tier) (time.Time, error) {
	var nanos int64
	err := q.QueryRowContext(ctx,
		"SELECT last_rotation FROM rotation_state WHERE tier = ?", tier.String(),
	).Scan(&nanos)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && nanos == 0) {
		return time.Time{}, nil
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to read last rotation: %w", err)
	}
	return time.Unix(0, nanos), nil
}
