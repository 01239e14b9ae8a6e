package store

import (
	"context"
	"fmt"
	"sort"
	"time"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	dErrors "linkage/pkg/domain-errors"
	"linkage/pkg/platform/sentinel"
)

var _ ports.ContactStoreTx = (*InMemoryStore)(nil)

// InMemoryStore keeps contacts in process memory. Transactions are
// serialized and run against a private copy of the data, which replaces the
// shared state only when the callback succeeds.
type InMemoryStore struct {
	sem      chan struct{}
	contacts map[models.ContactID]*models.Contact
	lastID   models.ContactID
	clock    func() time.Time
}

type MemoryOption func(*InMemoryStore)

// WithClock overrides the source of CreatedAt timestamps.
func WithClock(clock func() time.Time) MemoryOption {
	return func(s *InMemoryStore) {
		s.clock = clock
	}
}

func NewInMemoryStore(opts ...MemoryOption) *InMemoryStore {
	s := &InMemoryStore{
		sem:      make(chan struct{}, 1),
		contacts: make(map[models.ContactID]*models.Contact),
		clock:    time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// RunInTx runs fn with exclusive access to the store. Writes made through
// the store passed to fn are discarded if fn fails or ctx ends first.
func (s *InMemoryStore) RunInTx(ctx context.Context, fn func(store ports.ContactStore) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	select {
	case s.sem <- struct{}{}:
	case <-ctx.Done():
		return dErrors.Wrap(ctx.Err(), dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	defer func() { <-s.sem }()

	work := &memoryTx{
		contacts: make(map[models.ContactID]*models.Contact, len(s.contacts)),
		lastID:   s.lastID,
		clock:    s.clock,
	}
	for id, c := range s.contacts {
		work.contacts[id] = c.Clone()
	}

	if err := fn(work); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	s.contacts = work.contacts
	s.lastID = work.lastID
	return nil
}

// List returns a copy of every stored contact ordered by ID.
func (s *InMemoryStore) List(ctx context.Context) ([]*models.Contact, error) {
	var out []*models.Contact
	err := s.RunInTx(ctx, func(ports.ContactStore) error {
		out = sortedClones(s.contacts, func(*models.Contact) bool { return true })
		return nil
	})
	return out, err
}

// Count returns the number of stored contacts.
func (s *InMemoryStore) Count(ctx context.Context) (int, error) {
	contacts, err := s.List(ctx)
	if err != nil {
		return 0, err
	}
	return len(contacts), nil
}

// memoryTx is the working copy handed to a transaction callback.
type memoryTx struct {
	contacts map[models.ContactID]*models.Contact
	lastID   models.ContactID
	clock    func() time.Time
}

func (t *memoryTx) FindByEmailOrPhone(_ context.Context, email, phoneNumber string) ([]*models.Contact, error) {
	if email == "" && phoneNumber == "" {
		return []*models.Contact{}, nil
	}
	return sortedClones(t.contacts, func(c *models.Contact) bool {
		return (email != "" && c.Email == email) || (phoneNumber != "" && c.PhoneNumber == phoneNumber)
	}), nil
}

func (t *memoryTx) FindLinked(_ context.Context, id models.ContactID) ([]*models.Contact, error) {
	var target models.ContactID
	if c, ok := t.contacts[id]; ok && c.LinkedID != nil {
		target = *c.LinkedID
	}
	return sortedClones(t.contacts, func(c *models.Contact) bool {
		return (c.LinkedID != nil && *c.LinkedID == id) || (!target.IsNil() && c.ID == target)
	}), nil
}

func (t *memoryTx) Create(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("create contact: %w", sentinel.ErrInvalidState)
	}
	if !contact.ID.IsNil() {
		return fmt.Errorf("create contact %s: id already assigned: %w", contact.ID, sentinel.ErrInvalidState)
	}
	t.lastID++
	now := t.clock()
	contact.ID = t.lastID
	contact.CreatedAt = now
	contact.UpdatedAt = now
	t.contacts[contact.ID] = contact.Clone()
	return nil
}

func (t *memoryTx) Save(_ context.Context, contact *models.Contact) error {
	if contact == nil {
		return fmt.Errorf("save contact: %w", sentinel.ErrInvalidState)
	}
	stored, ok := t.contacts[contact.ID]
	if !ok {
		return fmt.Errorf("save contact %s: %w", contact.ID, sentinel.ErrNotFound)
	}
	updated := stored.Clone()
	updated.LinkPrecedence = contact.LinkPrecedence
	updated.LinkedID = nil
	if contact.LinkedID != nil {
		linked := *contact.LinkedID
		updated.LinkedID = &linked
	}
	updated.UpdatedAt = contact.UpdatedAt
	t.contacts[contact.ID] = updated
	return nil
}

func sortedClones(contacts map[models.ContactID]*models.Contact, keep func(*models.Contact) bool) []*models.Contact {
	out := make([]*models.Contact, 0)
	for _, c := range contacts {
		if keep(c) {
			out = append(out, c.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
