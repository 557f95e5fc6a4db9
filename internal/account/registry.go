// Package account keeps the registry of connected eBay seller accounts and
// which of them is active.
package account

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/fizic37/delcampe-ebay/internal/ebay"
	"github.com/fizic37/delcampe-ebay/internal/metrics"
	domain "github.com/fizic37/delcampe-ebay/pkg/types"
)

// ErrNotFound is returned for keys the registry does not hold.
var ErrNotFound = errors.New("account not found")

// Snapshot is the persisted form of the registry.
type Snapshot struct {
	Accounts         map[string]domain.Account `json:"accounts"`
	ActiveAccountKey string                    `json:"active_account_key"`
	LastUpdated      time.Time                 `json:"last_updated"`
}

// Backend persists registry snapshots. Save always receives the complete
// registry.
type Backend interface {
	// Load returns the stored snapshot and whether one exists.
	Load(ctx context.Context) (Snapshot, bool, error)
	Save(ctx context.Context, s Snapshot) error
	// Location describes where the registry lives, for logs and output.
	Location() string
}

const saveTimeout = 30 * time.Second

// Registry holds every connected account keyed by user id and environment.
// Every mutation persists the whole registry. It is safe for concurrent use.
type Registry struct {
	backend Backend
	log     *slog.Logger
	nowFunc func() time.Time

	// writeMu serializes saves; mu guards the in-memory state.
	writeMu     sync.Mutex
	mu          sync.RWMutex
	accounts    map[string]domain.Account
	activeKey   string
	lastUpdated time.Time
	persisted   bool
}

// Option configures the Registry.
type Option func(*Registry)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Registry) {
		r.log = l
	}
}

// WithNowFunc overrides the time function for testing.
func WithNowFunc(f func() time.Time) Option {
	return func(r *Registry) {
		r.nowFunc = f
	}
}

// Open loads the registry stored in the JSON file at path. A missing file
// yields an empty registry; the file is created on the first mutation.
func Open(path string, opts ...Option) (*Registry, error) {
	return OpenBackend(context.Background(), NewFileBackend(path), opts...)
}

// OpenBackend loads the registry held by b.
func OpenBackend(ctx context.Context, b Backend, opts ...Option) (*Registry, error) {
	r := &Registry{
		backend:  b,
		log:      slog.Default(),
		nowFunc:  time.Now,
		accounts: make(map[string]domain.Account),
	}
	for _, opt := range opts {
		opt(r)
	}

	snap, found, err := b.Load(ctx)
	if err != nil {
		return nil, err
	}
	r.persisted = found
	for key, a := range snap.Accounts {
		r.accounts[key] = a
	}
	r.lastUpdated = snap.LastUpdated
	if _, ok := r.accounts[snap.ActiveAccountKey]; ok {
		r.activeKey = snap.ActiveAccountKey
	} else if snap.ActiveAccountKey != "" {
		r.log.Warn("dropping stale active account", "key", snap.ActiveAccountKey)
	}

	metrics.AccountsConnected.Set(float64(len(r.accounts)))
	return r, nil
}

// Location describes where the registry is stored.
func (r *Registry) Location() string {
	return r.backend.Location()
}

// Persisted reports whether the registry has ever been stored.
func (r *Registry) Persisted() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.persisted
}

// Add inserts a or replaces the account with the same key, keeping the
// original connection time. The first account added becomes active.
func (r *Registry) Add(a domain.Account) (string, error) {
	if a.UserID == "" {
		return "", errors.New("account has no user id")
	}
	if !a.Environment.Valid() {
		return "", fmt.Errorf("account %s: invalid environment %q", a.UserID, a.Environment)
	}

	now := r.nowFunc().UTC()
	key := a.Key()

	return key, r.mutate(func() bool {
		if prev, ok := r.accounts[key]; ok && !prev.ConnectedAt.IsZero() {
			a.ConnectedAt = prev.ConnectedAt
		}
		if a.ConnectedAt.IsZero() {
			a.ConnectedAt = now
		}
		if a.LastUsedAt.IsZero() {
			a.LastUsedAt = now
		}
		r.accounts[key] = normalize(a)
		if r.activeKey == "" {
			r.activeKey = key
		}
		return true
	})
}

// Remove deletes the account. When it was active, the first remaining key
// in sorted order becomes active, or none when the registry is empty.
func (r *Registry) Remove(key string) (bool, error) {
	var removed bool
	err := r.mutate(func() bool {
		if _, ok := r.accounts[key]; !ok {
			return false
		}
		delete(r.accounts, key)
		removed = true
		if r.activeKey == key {
			r.activeKey = ""
			if keys := r.sortedKeysLocked(); len(keys) > 0 {
				r.activeKey = keys[0]
			}
		}
		return true
	})
	return removed, err
}

// SetActive makes key the active account and marks it used.
func (r *Registry) SetActive(key string) (bool, error) {
	var found bool
	now := r.nowFunc().UTC()
	err := r.mutate(func() bool {
		a, ok := r.accounts[key]
		if !ok {
			return false
		}
		found = true
		a.LastUsedAt = now
		r.accounts[key] = a
		r.activeKey = key
		return true
	})
	return found, err
}

// Active returns a copy of the active account, or nil when none is active.
func (r *Registry) Active() *domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	a, ok := r.accounts[r.activeKey]
	if !ok {
		return nil
	}
	return &a
}

// ActiveKey returns the active account key, or "".
func (r *Registry) ActiveKey() string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if _, ok := r.accounts[r.activeKey]; !ok {
		return ""
	}
	return r.activeKey
}

// Get returns a copy of the account stored under key.
func (r *Registry) Get(key string) (domain.Account, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.accounts[key]
	return a, ok
}

// List returns every account ordered by key.
func (r *Registry) List() []domain.Account {
	r.mu.RLock()
	defer r.mu.RUnlock()

	keys := r.sortedKeysLocked()
	out := make([]domain.Account, 0, len(keys))
	for _, k := range keys {
		out = append(out, r.accounts[k])
	}
	return out
}

// LastUpdated returns when the registry last changed.
func (r *Registry) LastUpdated() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdated
}

// UpdateTokens stores refreshed tokens for key and marks the account used.
func (r *Registry) UpdateTokens(key string, t domain.TokenSet) error {
	now := r.nowFunc().UTC()
	var found bool
	err := r.mutate(func() bool {
		a, ok := r.accounts[key]
		if !ok {
			return false
		}
		found = true
		a.ApplyTokens(t)
		a.LastUsedAt = now
		r.accounts[key] = normalize(a)
		return true
	})
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("%w: %s", ErrNotFound, key)
	}
	return nil
}

// Persister returns a token persister writing into the account at key.
func (r *Registry) Persister(key string) ebay.TokenPersister {
	return ebay.TokenPersisterFunc(func(_ context.Context, t domain.TokenSet) error {
		return r.UpdateTokens(key, t)
	})
}

// mutate applies fn under the write lock and, if fn reports a change,
// saves the result. The change is staged and the previous state restored
// before the save, so readers are not blocked on I/O and never see a change
// the backend rejected. It becomes visible only once Save succeeds.
func (r *Registry) mutate(fn func() bool) error {
	r.writeMu.Lock()
	defer r.writeMu.Unlock()

	r.mu.Lock()
	prev := Snapshot{Accounts: r.accounts, ActiveAccountKey: r.activeKey, LastUpdated: r.lastUpdated}
	// fn edits a private copy; the live map may be shared with the backend.
	r.restoreLocked(r.snapshotLocked())
	if !fn() {
		r.restoreLocked(prev)
		r.mu.Unlock()
		return nil
	}
	r.lastUpdated = r.nowFunc().UTC()
	next := r.snapshotLocked()
	r.restoreLocked(prev)
	r.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), saveTimeout)
	defer cancel()
	if err := r.backend.Save(ctx, next); err != nil {
		return err
	}

	r.mu.Lock()
	r.restoreLocked(next)
	r.persisted = true
	r.mu.Unlock()

	metrics.AccountsConnected.Set(float64(len(next.Accounts)))
	return nil
}

func (r *Registry) restoreLocked(snap Snapshot) {
	r.accounts = snap.Accounts
	r.activeKey = snap.ActiveAccountKey
	r.lastUpdated = snap.LastUpdated
}

func (r *Registry) snapshotLocked() Snapshot {
	accounts := make(map[string]domain.Account, len(r.accounts))
	for k, a := range r.accounts {
		accounts[k] = a
	}
	return Snapshot{
		Accounts:         accounts,
		ActiveAccountKey: r.activeKey,
		LastUpdated:      r.lastUpdated,
	}
}

func (r *Registry) sortedKeysLocked() []string {
	keys := make([]string, 0, len(r.accounts))
	for k := range r.accounts {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// normalize stores every timestamp in UTC.
func normalize(a domain.Account) domain.Account {
	a.TokenExpiry = a.TokenExpiry.UTC()
	a.ConnectedAt = a.ConnectedAt.UTC()
	a.LastUsedAt = a.LastUsedAt.UTC()
	return a
}
