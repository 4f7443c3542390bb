package cart

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/fjod/med_store/internal/storage"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultMaxStores = 10000
	DefaultIdleTTL   = 30 * time.Minute
)

// ManagerConfig bounds how many carts stay in memory. An evicted cart is
// rehydrated on its next use.
type ManagerConfig struct {
	// MaxStores caps the held carts; the least recently used goes first.
	MaxStores int
	// IdleTTL drops a cart that has not been fetched for this long.
	IdleTTL time.Duration
}

// Manager hands out one Store per cart key over a shared backend.
type Manager struct {
	backend storage.Storage
	opts    []Option

	stores *expirable.LRU[string, *Store]

	mu        sync.RWMutex
	listeners []Listener

	sfg singleflight.Group // one rehydration per key
}

func NewManager(backend storage.Storage, cfg ManagerConfig, opts ...Option) *Manager {
	if cfg.MaxStores <= 0 {
		cfg.MaxStores = DefaultMaxStores
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = DefaultIdleTTL
	}
	return &Manager{
		backend: backend,
		opts:    opts,
		stores:  expirable.NewLRU[string, *Store](cfg.MaxStores, nil, cfg.IdleTTL),
	}
}

// Subscribe registers fn on every store the manager has opened or will open.
func (m *Manager) Subscribe(fn Listener) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.listeners = append(m.listeners, fn)
}

// Get returns the store for key, rehydrating it on first use. A backend read
// failure is returned as ErrPersistenceRead and nothing is cached; the next
// Get reads the backend again.
func (m *Manager) Get(ctx context.Context, key string) (*Store, error) {
	if key == "" {
		return nil, fmt.Errorf("%w: cart key is required", ErrInvalidArgument)
	}

	if s, ok := m.stores.Get(key); ok {
		m.stores.Add(key, s) // restart the idle timer
		return s, nil
	}

	v, err, _ := m.sfg.Do(key, func() (interface{}, error) {
		if existing, ok := m.stores.Get(key); ok {
			return existing, nil
		}

		store, err := open(ctx, m.backend, key, m.opts...)
		if err != nil {
			return nil, err
		}
		store.Subscribe(m.dispatch)

		m.stores.Add(key, store)
		return store, nil
	})
	if err != nil {
		return nil, err
	}

	return v.(*Store), nil
}

// Len reports how many carts are held in memory.
func (m *Manager) Len() int {
	return m.stores.Len()
}

func (m *Manager) dispatch(change Change) {
	m.mu.RLock()
	listeners := make([]Listener, len(m.listeners))
	copy(listeners, m.listeners)
	m.mu.RUnlock()

	for _, fn := range listeners {
		fn(change)
	}
}
