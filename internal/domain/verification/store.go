package verification

import "context"

// UpdateFunc mutates a session inside Store.AtomicUpdate. Returning an
// error aborts the update and nothing is written.
type UpdateFunc func(s *Session) error

// Store keeps sessions keyed by transaction id. Implementations must make
// Create and AtomicUpdate atomic with respect to concurrent callers on the
// same id, and treat sessions past ExpiresAt as absent.
type Store interface {
	// Create stores s, failing with ErrSessionAlreadyOpen if a live session
	// already holds the transaction id
	Create(ctx context.Context, s *Session) error

	// Get returns the live session or ErrSessionNotFound
	Get(ctx context.Context, transactionID string) (*Session, error)

	// AtomicUpdate applies fn to the live session and persists the result
	// without extending its expiry. Absent sessions give ErrSessionNotFound.
	AtomicUpdate(ctx context.Context, transactionID string, fn UpdateFunc) (*Session, error)
}
