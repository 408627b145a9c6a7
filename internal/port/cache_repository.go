package port

import "context"

type CacheRepository interface {
	// SetIdempotency sets a key for idempotency check, returns false if already exists
	SetIdempotency(ctx context.Context, key string) (bool, error)

	// PublishAccountChanged broadcasts that an account's ledger state changed
	PublishAccountChanged(ctx context.Context, accountID string) error

	// AccountChanges delivers the IDs of accounts whose ledger state changed.
	// The channel closes when ctx is cancelled.
	AccountChanges(ctx context.Context) (<-chan string, error)
}
