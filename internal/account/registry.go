package account

import (
	"context"
	"log/slog"
	"sync"
)

// DefaultPath is where the process-wide store keeps its snapshot when
// nothing was initialized explicitly.
const DefaultPath = "data/accounts.json"

var (
	defaultMu    sync.Mutex
	defaultStore *Store
)

// Initialize builds the process-wide store on sink and makes it the default.
// Calling it again replaces the previous default without closing it; the
// last call wins.
func Initialize(ctx context.Context, sink Sink, opts ...Option) (*Store, error) {
	s, err := NewStore(ctx, sink, opts...)
	if err != nil {
		return nil, err
	}
	defaultMu.Lock()
	defaultStore = s
	defaultMu.Unlock()
	return s, nil
}

// Instance returns the default store, creating a file-backed one at
// DefaultPath on first use. It returns nil only if that fallback fails.
func Instance() *Store {
	defaultMu.Lock()
	defer defaultMu.Unlock()
	if defaultStore != nil {
		return defaultStore
	}

	ctx := context.Background()
	sink, err := NewFileSink(DefaultPath)
	if err != nil {
		slog.Error("account: default sink", slog.Any("error", err))
		return nil
	}
	s, err := NewStore(ctx, sink)
	if err != nil {
		slog.Error("account: default store", slog.Any("error", err))
		return nil
	}
	defaultStore = s
	return s
}

// Shutdown closes and forgets the default store.
func Shutdown() error {
	defaultMu.Lock()
	s := defaultStore
	defaultStore = nil
	defaultMu.Unlock()
	if s == nil {
		return nil
	}
	return s.Close()
}
