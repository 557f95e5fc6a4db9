package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/fizic37/delcampe-ebay/internal/account"
	"github.com/fizic37/delcampe-ebay/internal/config"
	"github.com/fizic37/delcampe-ebay/internal/engine"
	"github.com/fizic37/delcampe-ebay/internal/store"
	"github.com/fizic37/delcampe-ebay/pkg/logger"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

const migrationTimeout = 60 * time.Second

// app is the wired service shared by every command.
type app struct {
	cfg    *config.Config
	log    *slog.Logger
	engine *engine.Engine
	// registry describes where accounts are stored.
	registry string
	closers  []func()
	// migrated is the key of the account imported from a legacy token file
	// during startup, if any.
	migrated string
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load(configPath())
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	clients := make(map[domain.Environment]*engine.EnvClients)
	for _, env := range cfg.Ebay.Environments() {
		clients[env] = engine.NewEnvClients(env, &cfg.Ebay, log)
	}

	a := &app{cfg: cfg, log: log}
	reg, err := a.openRegistry(ctx)
	if err != nil {
		a.close()
		return nil, fmt.Errorf("opening account registry: %w", err)
	}
	a.registry = reg.Location()

	defaultEnv := cfg.Ebay.DefaultEnvironment()

	mctx, cancel := context.WithTimeout(ctx, migrationTimeout)
	defer cancel()
	migrated := account.NewMigrator(reg, cfg.Accounts.LegacyPaths,
		engine.StoreFactory(clients),
		engine.IdentityFactory(clients),
		account.WithMigratorLogger(log),
		account.WithDefaultEnvironment(defaultEnv),
	).Migrate(mctx)

	eng := engine.NewEngine(reg, clients,
		engine.WithLogger(log),
		engine.WithPolicyTTL(cfg.Accounts.PolicyCacheTTL),
		engine.WithDefaultEnvironment(defaultEnv),
	)

	a.engine = eng
	a.migrated = migrated
	return a, nil
}

// openRegistry opens the JSON registry, or the Postgres one when a
// database URL is configured.
func (a *app) openRegistry(ctx context.Context) (*account.Registry, error) {
	if a.cfg.Accounts.DatabaseURL == "" {
		return account.Open(a.cfg.Accounts.RegistryPath, account.WithLogger(a.log))
	}

	st, err := store.NewPostgresStore(ctx, a.cfg.Accounts.DatabaseURL)
	if err != nil {
		return nil, err
	}
	a.closers = append(a.closers, st.Close)

	if err := st.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrating database: %w", err)
	}
	return account.OpenBackend(ctx, st, account.WithLogger(a.log))
}

// close releases resources held by the app.
func (a *app) close() {
	for _, c := range a.closers {
		c()
	}
	a.closers = nil
}
