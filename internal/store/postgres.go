package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/fizic37/delcampe-ebay/internal/account"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const defaultPoolSize = 4

// PostgresStore implements account.Backend using pgxpool. Every save
// replaces the stored registry in one transaction.
type PostgresStore struct {
	pool     *pgxpool.Pool
	location string
}

// NewPostgresStore creates a new PostgresStore with connection pooling.
func NewPostgresStore(ctx context.Context, connString string) (*PostgresStore, error) {
	cfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parsing connection string: %w", err)
	}

	cfg.MaxConns = defaultPoolSize

	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("creating connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	return &PostgresStore{pool: pool, location: describe(cfg.ConnConfig)}, nil
}

// describe renders the connection target without credentials.
func describe(c *pgx.ConnConfig) string {
	return fmt.Sprintf("postgres://%s:%d/%s", c.Host, c.Port, c.Database)
}

// Close gracefully shuts down the connection pool.
func (s *PostgresStore) Close() {
	s.pool.Close()
}

// Ping verifies the database connection is alive.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Migrate applies pending SQL schema migrations.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	return RunMigrations(ctx, s.pool)
}

// Location returns the database address.
func (s *PostgresStore) Location() string {
	return s.location
}

// Load reads every account and the active pointer. The registry counts as
// stored once its state row exists.
func (s *PostgresStore) Load(ctx context.Context) (account.Snapshot, bool, error) {
	snap := account.Snapshot{Accounts: make(map[string]domain.Account)}

	rows, err := s.pool.Query(ctx, querySelectAccounts)
	if err != nil {
		return account.Snapshot{}, false, fmt.Errorf("querying accounts: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			key    string
			a      domain.Account
			env    string
			expiry *time.Time
		)
		if err := rows.Scan(
			&key, &a.UserID, &a.Username, &env, &a.AccessToken,
			&a.RefreshToken, &expiry, &a.ConnectedAt, &a.LastUsedAt,
		); err != nil {
			return account.Snapshot{}, false, fmt.Errorf("scanning account: %w", err)
		}
		a.Environment = domain.Environment(env)
		if expiry != nil {
			a.TokenExpiry = expiry.UTC()
		}
		a.ConnectedAt = a.ConnectedAt.UTC()
		a.LastUsedAt = a.LastUsedAt.UTC()
		snap.Accounts[key] = a
	}
	if err := rows.Err(); err != nil {
		return account.Snapshot{}, false, fmt.Errorf("iterating accounts: %w", err)
	}

	err = s.pool.QueryRow(ctx, querySelectState).Scan(&snap.ActiveAccountKey, &snap.LastUpdated)
	if errors.Is(err, pgx.ErrNoRows) {
		return snap, false, nil
	}
	if err != nil {
		return account.Snapshot{}, false, fmt.Errorf("querying registry state: %w", err)
	}
	snap.LastUpdated = snap.LastUpdated.UTC()
	return snap, true, nil
}

// Save replaces the stored registry with snap.
func (s *PostgresStore) Save(ctx context.Context, snap account.Snapshot) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning registry transaction: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck // no-op after commit

	keys := make([]string, 0, len(snap.Accounts))
	for key := range snap.Accounts {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	batch := &pgx.Batch{}
	for _, key := range keys {
		batch.Queue(queryUpsertAccount, accountArgs(key, snap.Accounts[key]))
	}
	batch.Queue(queryDeleteMissingAccounts, keys)
	batch.Queue(queryUpsertState, snap.ActiveAccountKey, snap.LastUpdated)

	if err := tx.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("saving account registry: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("committing account registry: %w", err)
	}
	return nil
}

func accountArgs(key string, a domain.Account) pgx.NamedArgs {
	var expiry *time.Time
	if !a.TokenExpiry.IsZero() {
		t := a.TokenExpiry.UTC()
		expiry = &t
	}
	return pgx.NamedArgs{
		"account_key":   key,
		"user_id":       a.UserID,
		"username":      a.Username,
		"environment":   string(a.Environment),
		"access_token":  a.AccessToken,
		"refresh_token": a.RefreshToken,
		"token_expiry":  expiry,
		"connected_at":  a.ConnectedAt.UTC(),
		"last_used_at":  a.LastUsedAt.UTC(),
	}
}
