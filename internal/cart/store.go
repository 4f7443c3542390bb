package cart

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/fjod/med_store/internal/domain"
	"github.com/fjod/med_store/internal/storage"
	"github.com/shopspring/decimal"
)

const (
	DefaultQuantity = 1
	// MaxQuantity bounds a single entry. Adds past it are rejected and
	// updates are clamped to it.
	MaxQuantity = 99
)

type Op string

const (
	OpAdd    Op = "add"
	OpRemove Op = "remove"
	OpUpdate Op = "update"
	OpClear  Op = "clear"
)

// Change is delivered to subscribers after a mutation has been applied and
// written through to the backend.
type Change struct {
	Key     string
	Op      Op
	Entries []domain.CartEntry
	Count   int
	Total   decimal.Decimal
	// PersistErr is set when the backend write failed.
	PersistErr error
}

type Listener func(Change)

type Option func(*Store)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

type subscription struct {
	id int
	fn Listener
}

// Store owns one cart. Mutations are serialised; subscribers see changes in
// the order they were applied.
type Store struct {
	key     string
	backend storage.Storage
	logger  *slog.Logger

	mu      sync.Mutex
	entries map[string]domain.CartEntry

	// notifyMu is taken before mu is released so notifications keep mutation order.
	notifyMu sync.Mutex

	subMu  sync.Mutex
	subs   []subscription
	nextID int
}

// Open rehydrates the cart stored under key. A missing, unreadable or corrupt
// record yields an empty cart; Open never fails.
func Open(ctx context.Context, backend storage.Storage, key string, opts ...Option) *Store {
	s, _ := open(ctx, backend, key, opts...)
	return s
}

// open is Open that also reports a failed backend read. The returned store is
// usable either way; a corrupt record is not an error here.
func open(ctx context.Context, backend storage.Storage, key string, opts ...Option) (*Store, error) {
	s := &Store{
		key:     key,
		backend: backend,
		logger:  slog.Default(),
		entries: make(map[string]domain.CartEntry),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, s.rehydrate(ctx)
}

func (s *Store) rehydrate(ctx context.Context) error {
	data, err := s.backend.Get(ctx, s.key)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		err = fmt.Errorf("%w: %w", ErrPersistenceRead, err)
		s.logger.Warn("cart rehydration failed, starting empty", "cart", s.key, "error", err)
		return err
	}

	entries, err := decodeEntries(data)
	if err != nil {
		s.logger.Warn("cart snapshot corrupt, starting empty",
			"cart", s.key, "error", fmt.Errorf("%w: %w", ErrPersistenceRead, err))
		return nil
	}
	s.entries = entries
	return nil
}

func (s *Store) Key() string {
	return s.key
}

// Add puts quantity units of product in the cart. An existing entry keeps its
// original snapshot and only grows in quantity.
func (s *Store) Add(ctx context.Context, product domain.ProductSnapshot, quantity int) error {
	if product.ID == "" {
		return fmt.Errorf("%w: product id is required", ErrInvalidArgument)
	}
	if product.Name == "" {
		return fmt.Errorf("%w: product name is required", ErrInvalidArgument)
	}
	if product.Price.IsNegative() {
		return fmt.Errorf("%w: price must not be negative", ErrInvalidArgument)
	}
	if quantity < 1 || quantity > MaxQuantity {
		return fmt.Errorf("%w: quantity must be between 1 and %d, got %d", ErrInvalidArgument, MaxQuantity, quantity)
	}

	return s.mutate(ctx, OpAdd, func(entries map[string]domain.CartEntry) (bool, error) {
		if existing, ok := entries[product.ID]; ok {
			if existing.Quantity > MaxQuantity-quantity {
				return false, fmt.Errorf("%w: %s would exceed %d units", ErrInvalidArgument, product.ID, MaxQuantity)
			}
			existing.Quantity += quantity
			entries[product.ID] = existing
			return true, nil
		}
		entries[product.ID] = domain.CartEntry{Product: product, Quantity: quantity}
		return true, nil
	})
}

// Remove deletes the entry; removing an absent product is a no-op.
func (s *Store) Remove(ctx context.Context, productID string) error {
	return s.mutate(ctx, OpRemove, func(entries map[string]domain.CartEntry) (bool, error) {
		if _, ok := entries[productID]; !ok {
			return false, nil
		}
		delete(entries, productID)
		return true, nil
	})
}

// UpdateQuantity sets an absolute quantity clamped to [1, MaxQuantity];
// removal only happens through Remove.
func (s *Store) UpdateQuantity(ctx context.Context, productID string, quantity int) error {
	quantity = min(max(quantity, 1), MaxQuantity)
	return s.mutate(ctx, OpUpdate, func(entries map[string]domain.CartEntry) (bool, error) {
		existing, ok := entries[productID]
		if !ok {
			return false, nil
		}
		existing.Quantity = quantity
		entries[productID] = existing
		return true, nil
	})
}

func (s *Store) Clear(ctx context.Context) error {
	return s.mutate(ctx, OpClear, func(entries map[string]domain.CartEntry) (bool, error) {
		clear(entries)
		return true, nil
	})
}

func (s *Store) Total() decimal.Decimal {
	s.mu.Lock()
	defer s.mu.Unlock()
	return totalOf(s.entries)
}

// Count is the number of units, not the number of distinct products.
func (s *Store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return countOf(s.entries)
}

// Len is the number of distinct products.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.entries)
}

func (s *Store) Contains(productID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[productID]
	return ok
}

func (s *Store) Entry(productID string) (domain.CartEntry, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.entries[productID]
	return e, ok
}

// Entries returns a copy sorted by product id.
func (s *Store) Entries() []domain.CartEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return sortedEntries(s.entries)
}

// Subscribe registers fn to run synchronously after every applied mutation.
// Listeners may read the store but must not mutate it.
func (s *Store) Subscribe(fn Listener) (unsubscribe func()) {
	s.subMu.Lock()
	defer s.subMu.Unlock()
	s.nextID++
	id := s.nextID
	s.subs = append(s.subs, subscription{id: id, fn: fn})

	var once sync.Once
	return func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			for i, sub := range s.subs {
				if sub.id == id {
					s.subs = append(s.subs[:i:i], s.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// mutate applies fn, writes the snapshot through and then notifies. fn
// reports whether it changed anything; unchanged or rejected changes are
// neither written nor announced.
func (s *Store) mutate(ctx context.Context, op Op, fn func(map[string]domain.CartEntry) (bool, error)) error {
	s.mu.Lock()
	changed, err := fn(s.entries)
	if err != nil || !changed {
		s.mu.Unlock()
		return err
	}

	persistErr := s.persistLocked(ctx)
	change := Change{
		Key:        s.key,
		Op:         op,
		Entries:    sortedEntries(s.entries),
		Count:      countOf(s.entries),
		Total:      totalOf(s.entries),
		PersistErr: persistErr,
	}

	s.notifyMu.Lock()
	s.mu.Unlock()
	s.notify(change)
	s.notifyMu.Unlock()

	if persistErr != nil {
		s.logger.Warn("cart change kept in memory only",
			"cart", s.key, "op", op, "error", persistErr)
		return fmt.Errorf("%w: %w", ErrPersistenceWrite, persistErr)
	}
	return nil
}

func (s *Store) persistLocked(ctx context.Context) error {
	data, err := encodeEntries(s.entries)
	if err != nil {
		return err
	}
	return s.backend.Set(ctx, s.key, data)
}

func (s *Store) notify(change Change) {
	s.subMu.Lock()
	subs := make([]subscription, len(s.subs))
	copy(subs, s.subs)
	s.subMu.Unlock()

	for _, sub := range subs {
		sub.fn(change)
	}
}

func totalOf(entries map[string]domain.CartEntry) decimal.Decimal {
	total := decimal.Zero
	for _, e := range entries {
		total = total.Add(e.Subtotal())
	}
	return total
}

func countOf(entries map[string]domain.CartEntry) int {
	n := 0
	for _, e := range entries {
		n += e.Quantity
	}
	return n
}
