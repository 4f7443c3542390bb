package cart

import "errors"

var (
	// ErrInvalidArgument rejects malformed input before any mutation.
	ErrInvalidArgument = errors.New("invalid argument")
	// ErrPersistenceWrite is non-fatal: the in-memory change was applied and
	// subscribers were notified, but the cart may not survive a reload.
	ErrPersistenceWrite = errors.New("cart snapshot write failed")
	// ErrPersistenceRead: Open logs it and starts empty, Manager.Get returns it
	// without caching the store.
	ErrPersistenceRead = errors.New("cart snapshot unreadable")
)
