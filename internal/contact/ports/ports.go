// Package ports declares what the reconciliation engine needs from the
// outside world. Stores, lockers and publishers implement these interfaces;
// the service depends only on them.
package ports

//go:generate mockgen -source=ports.go -destination=mocks/ports-mocks.go -package=mocks

import (
	"context"
	"time"

	"linkage/internal/contact/models"
)

// ContactStore is the persistence facade used within one transaction.
type ContactStore interface {
	// FindByEmailOrPhone returns records whose email equals email or whose
	// phone number equals phoneNumber. An empty criterion matches nothing.
	FindByEmailOrPhone(ctx context.Context, email, phoneNumber string) ([]*models.Contact, error)
	// FindLinked returns records whose LinkedID is id, plus the record id
	// itself links to, if any.
	FindLinked(ctx context.Context, id models.ContactID) ([]*models.Contact, error)
	// Create inserts contact and assigns its ID, CreatedAt and UpdatedAt.
	Create(ctx context.Context, contact *models.Contact) error
	// Save persists LinkPrecedence, LinkedID and UpdatedAt of an existing record.
	Save(ctx context.Context, contact *models.Contact) error
}

// ContactStoreTx runs fn against a ContactStore inside one serialized,
// all-or-nothing transaction.
type ContactStoreTx interface {
	RunInTx(ctx context.Context, fn func(store ContactStore) error) error
}

// Locker provides a mutual-exclusion scope shared across processes.
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(context.Context) error, err error)
}

// EventPublisher ships committed contact events to downstream consumers.
type EventPublisher interface {
	Publish(ctx context.Context, events ...models.Event) error
}
