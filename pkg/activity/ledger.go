// Package activity keeps a bounded, session-scoped log of operations per account.
package activity

import (
	"context"
	"encoding/json"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"tempo-swap/pkg/types"
)

const (
	// MaxEntries caps each account log; the oldest entries are evicted first.
	MaxEntries = 300
	// KeyPrefix namespaces ledger keys in the backing store.
	KeyPrefix = "tempo-activity-v1"
	// DefaultExplorerURL is the block explorer used for receipt links.
	DefaultExplorerURL = "https://explore.tempo.xyz"
)

// Ledger records activity entries per account. Store failures never reach the
// caller: the ledger degrades to an in-process map for the affected account.
type Ledger struct {
	store       Store
	l           *zap.Logger
	explorerURL string
	now         func() time.Time

	mu       sync.Mutex
	fallback map[string][]types.ActivityEntry
}

// Option configures a Ledger
type Option func(*Ledger)

// WithExplorerURL overrides the explorer base used for receipt links
func WithExplorerURL(base string) Option {
	return func(lg *Ledger) {
		if base != "" {
			lg.explorerURL = strings.TrimRight(base, "/")
		}
	}
}

// WithClock overrides the time source
func WithClock(now func() time.Time) Option {
	return func(lg *Ledger) {
		lg.now = now
	}
}

// NewLedger creates a ledger over store. A nil store keeps everything in memory.
func NewLedger(store Store, l *zap.Logger, opts ...Option) *Ledger {
	if store == nil {
		store = NewMemoryStore()
	}
	lg := &Ledger{
		store:       store,
		l:           l,
		explorerURL: DefaultExplorerURL,
		now:         time.Now,
		fallback:    make(map[string][]types.ActivityEntry),
	}
	for _, opt := range opts {
		opt(lg)
	}
	return lg
}

// Key returns the store key for account
func Key(account string) string {
	return KeyPrefix + ":" + strings.ToLower(account)
}

// ExplorerLink returns the receipt page for hash
func (lg *Ledger) ExplorerLink(hash string) string {
	return lg.explorerURL + "/receipt/" + hash
}

// Append records entry at the front of the account log, replacing any entry
// with the same hash and kind. Unknown kinds and empty accounts are ignored.
func (lg *Ledger) Append(ctx context.Context, account string, entry types.ActivityEntry) {
	if account == "" || !entry.Kind.Allowed() {
		lg.l.Debug("activity entry ignored",
			zap.String("account", account),
			zap.String("type", string(entry.Kind)))
		return
	}

	if entry.ExplorerURL == "" && entry.Hash != "" {
		entry.ExplorerURL = lg.ExplorerLink(entry.Hash)
	}
	if entry.CreatedAt == 0 {
		entry.CreatedAt = lg.now().UnixMilli()
	}

	key := Key(account)

	lg.mu.Lock()
	defer lg.mu.Unlock()

	current := lg.readLocked(ctx, key)

	next := make([]types.ActivityEntry, 0, len(current)+1)
	next = append(next, entry)
	for _, e := range current {
		if e.DedupeKey() == entry.DedupeKey() {
			continue
		}
		next = append(next, e)
	}
	if len(next) > MaxEntries {
		next = next[:MaxEntries]
	}

	lg.writeLocked(ctx, key, next)
}

// Read returns the account log, newest first
func (lg *Ledger) Read(ctx context.Context, account string) []types.ActivityEntry {
	if account == "" {
		return []types.ActivityEntry{}
	}

	lg.mu.Lock()
	defer lg.mu.Unlock()

	entries := lg.readLocked(ctx, Key(account))
	out := make([]types.ActivityEntry, len(entries))
	copy(out, entries)
	return out
}

// Clear removes the account log
func (lg *Ledger) Clear(ctx context.Context, account string) {
	if account == "" {
		return
	}
	key := Key(account)

	lg.mu.Lock()
	defer lg.mu.Unlock()

	delete(lg.fallback, key)
	if err := lg.store.Remove(ctx, key); err != nil {
		lg.l.Warn("failed to clear activity", zap.String("key", key), zap.Error(err))
	}
}

// EndSession forgets every account. Stores that can be destroyed are; for the
// others (a redis session expires on its own) only the in-process state goes.
func (lg *Ledger) EndSession() error {
	lg.mu.Lock()
	defer lg.mu.Unlock()

	lg.fallback = make(map[string][]types.ActivityEntry)
	if d, ok := lg.store.(Destroyer); ok {
		return d.Destroy()
	}
	return nil
}

// History returns only swap entries, newest first by creation time
func (lg *Ledger) History(ctx context.Context, account string) []types.ActivityEntry {
	all := lg.Read(ctx, account)

	swaps := make([]types.ActivityEntry, 0, len(all))
	for _, e := range all {
		if e.Kind == types.KindSwap {
			swaps = append(swaps, e)
		}
	}
	sort.SliceStable(swaps, func(i, j int) bool {
		return swaps[i].CreatedAt > swaps[j].CreatedAt
	})
	return swaps
}

// readLocked prefers the fallback copy: it exists only after a failed write
// and is newer than whatever the store holds.
func (lg *Ledger) readLocked(ctx context.Context, key string) []types.ActivityEntry {
	if entries, ok := lg.fallback[key]; ok {
		return entries
	}

	data, err := lg.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			lg.l.Warn("failed to read activity, using memory", zap.String("key", key), zap.Error(err))
		}
		return []types.ActivityEntry{}
	}

	var entries []types.ActivityEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		lg.l.Warn("failed to decode activity", zap.String("key", key), zap.Error(err))
		return []types.ActivityEntry{}
	}
	if entries == nil {
		entries = []types.ActivityEntry{}
	}
	return entries
}

func (lg *Ledger) writeLocked(ctx context.Context, key string, entries []types.ActivityEntry) {
	data, err := json.Marshal(entries)
	if err == nil {
		err = lg.store.Set(ctx, key, data)
	}
	if err != nil {
		lg.l.Warn("failed to persist activity, keeping in memory", zap.String("key", key), zap.Error(err))
		lg.fallback[key] = entries
		return
	}
	delete(lg.fallback, key)
}
