package port

import "context"

// Stores groups repositories bound to the same transaction.
type Stores struct {
	Users   UserRepository
	Journal JournalRepository
	Posts   PostRepository
}

// UnitOfWork runs fn inside a transaction; a non-nil error rolls it back.
type UnitOfWork interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context, stores Stores) error) error
}
