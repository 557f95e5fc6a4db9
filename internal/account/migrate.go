package account

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// BackupSuffix is appended to a legacy token file once it is migrated.
const BackupSuffix = ".backup"

// legacyTimeLayouts are the expiry formats seen in single-account files.
// Timestamps without an offset are taken as UTC.
var legacyTimeLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05.999999999",
	"2006-01-02 15:04:05.999999999",
}

// legacyFile is the single-account token file written by older releases.
type legacyFile struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenExpiry  string `json:"token_expiry"`
	Environment  string `json:"environment"`
}

// TokenRefresher returns valid tokens, refreshing them if needed.
type TokenRefresher interface {
	EnsureValid(ctx context.Context) (domain.TokenSet, error)
}

// IdentityLookup maps an access token to the seller behind it.
type IdentityLookup interface {
	Resolve(ctx context.Context, accessToken string) (domain.Identity, error)
}

// StoreFactory builds a throwaway token store holding t for env.
type StoreFactory func(env domain.Environment, t domain.TokenSet) TokenRefresher

// IdentityFactory returns the identity resolver for env.
type IdentityFactory func(env domain.Environment) IdentityLookup

// Migrator moves a legacy single-account token file into the registry.
type Migrator struct {
	registry    *Registry
	paths       []string
	newStore    StoreFactory
	newIdentity IdentityFactory
	defaultEnv  domain.Environment
	log         *slog.Logger
	nowFunc     func() time.Time
}

// MigratorOption configures the Migrator.
type MigratorOption func(*Migrator)

// WithMigratorLogger sets the logger.
func WithMigratorLogger(l *slog.Logger) MigratorOption {
	return func(m *Migrator) {
		m.log = l
	}
}

// WithDefaultEnvironment sets the environment assumed for legacy files
// that do not record one.
func WithDefaultEnvironment(env domain.Environment) MigratorOption {
	return func(m *Migrator) {
		m.defaultEnv = env
	}
}

// WithMigratorNowFunc overrides the time function for testing.
func WithMigratorNowFunc(f func() time.Time) MigratorOption {
	return func(m *Migrator) {
		m.nowFunc = f
	}
}

// NewMigrator creates a migrator checking legacyPaths in order.
func NewMigrator(
	reg *Registry,
	legacyPaths []string,
	newStore StoreFactory,
	newIdentity IdentityFactory,
	opts ...MigratorOption,
) *Migrator {
	m := &Migrator{
		registry:    reg,
		paths:       legacyPaths,
		newStore:    newStore,
		newIdentity: newIdentity,
		defaultEnv:  domain.EnvSandbox,
		log:         slog.Default(),
		nowFunc:     time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Migrate imports the first legacy token file found, provided the registry
// has never been stored. It returns the new account key, or "" when
// nothing was migrated. Failures are logged and never returned.
func (m *Migrator) Migrate(ctx context.Context) string {
	if m.registry.Persisted() {
		return ""
	}

	path := m.findLegacy()
	if path == "" {
		return ""
	}

	key, err := m.migrate(ctx, path)
	if err != nil {
		m.log.Error("legacy account migration failed", "path", path, "error", err)
		return ""
	}

	m.log.Info("migrated legacy account", "path", path, "account", key)
	return key
}

func (m *Migrator) findLegacy() string {
	for _, p := range m.paths {
		if p == "" {
			continue
		}
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p
		}
	}
	return ""
}

func (m *Migrator) migrate(ctx context.Context, path string) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("reading legacy token file: %w", err)
	}

	var lf legacyFile
	if err := json.Unmarshal(data, &lf); err != nil {
		return "", fmt.Errorf("parsing legacy token file: %w", err)
	}
	if lf.AccessToken == "" && lf.RefreshToken == "" {
		return "", errors.New("legacy token file holds no tokens")
	}

	env := m.defaultEnv
	if lf.Environment != "" {
		if env, err = domain.ParseEnvironment(strings.ToLower(lf.Environment)); err != nil {
			return "", err
		}
	}

	tokens := domain.TokenSet{
		AccessToken:  lf.AccessToken,
		RefreshToken: lf.RefreshToken,
		Expiry:       parseLegacyTime(lf.TokenExpiry),
	}

	if valid, err := m.newStore(env, tokens).EnsureValid(ctx); err != nil {
		m.log.Warn("refreshing legacy tokens failed, importing them as stored", "error", err)
	} else {
		tokens = valid
	}
	if tokens.AccessToken == "" {
		return "", errors.New("legacy token file has no usable access token")
	}

	id, err := m.newIdentity(env).Resolve(ctx, tokens.AccessToken)
	if err != nil {
		return "", fmt.Errorf("resolving legacy account identity: %w", err)
	}

	now := m.nowFunc().UTC()
	acct := domain.Account{
		UserID:      id.UserID,
		Username:    id.Username,
		Environment: env,
		ConnectedAt: now,
		LastUsedAt:  now,
	}
	acct.ApplyTokens(tokens)

	key, err := m.registry.Add(acct)
	if err != nil {
		return "", fmt.Errorf("adding legacy account: %w", err)
	}

	if err := os.Rename(path, path+BackupSuffix); err != nil {
		m.log.Error("renaming legacy token file", "path", path, "error", err)
	}
	return key, nil
}

// parseLegacyTime returns the zero time for values it cannot read, which
// makes the token look expired and forces a refresh.
func parseLegacyTime(s string) time.Time {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}
	}
	for _, layout := range legacyTimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t.UTC()
		}
	}
	return time.Time{}
}
