package service

import (
	"context"
	"fmt"
	"sort"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
)

// component is the arena of contacts reachable from one submission. The
// first copy of a record seen during discovery is the one every later step
// reads and mutates.
type component struct {
	byID  map[models.ContactID]*models.Contact
	order []models.ContactID
}

func newComponent() *component {
	return &component{byID: make(map[models.ContactID]*models.Contact)}
}

// add stores c unless a record with the same ID is already present.
func (c *component) add(contact *models.Contact) bool {
	if contact == nil {
		return false
	}
	if _, ok := c.byID[contact.ID]; ok {
		return false
	}
	c.byID[contact.ID] = contact
	c.order = append(c.order, contact.ID)
	return true
}

func (c *component) len() int {
	return len(c.order)
}

// members returns contacts in discovery order.
func (c *component) members() []*models.Contact {
	out := make([]*models.Contact, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.byID[id])
	}
	return out
}

// sorted returns contacts oldest first.
func (c *component) sorted() []*models.Contact {
	out := c.members()
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Before(out[j])
	})
	return out
}

// identifiers returns the sets of non-empty emails and phone numbers held by
// the component.
func (c *component) identifiers() (emails, phones map[string]struct{}) {
	emails = make(map[string]struct{}, len(c.order))
	phones = make(map[string]struct{}, len(c.order))
	for _, contact := range c.byID {
		if contact.Email != "" {
			emails[contact.Email] = struct{}{}
		}
		if contact.PhoneNumber != "" {
			phones[contact.PhoneNumber] = struct{}{}
		}
	}
	return emails, phones
}

// searchKeys tracks which attribute values were already used as lookup
// criteria so each one is queried at most once per discovery.
type searchKeys struct {
	emails map[string]struct{}
	phones map[string]struct{}
}

func newSearchKeys() *searchKeys {
	return &searchKeys{emails: map[string]struct{}{}, phones: map[string]struct{}{}}
}

// claim marks email and phone as searched and returns the ones that were not
// searched before. Empty results mean nothing new to look up.
func (k *searchKeys) claim(email, phone string) (string, string) {
	var newEmail, newPhone string
	if email != "" {
		if _, seen := k.emails[email]; !seen {
			k.emails[email] = struct{}{}
			newEmail = email
		}
	}
	if phone != "" {
		if _, seen := k.phones[phone]; !seen {
			k.phones[phone] = struct{}{}
			newPhone = phone
		}
	}
	return newEmail, newPhone
}

// discover expands the records matching email or phone into their connected
// component, following shared emails, shared phone numbers and link pointers
// in both directions until no new record turns up.
func discover(ctx context.Context, store ports.ContactStore, email, phone string) (*component, error) {
	comp := newComponent()
	keys := newSearchKeys()

	seedEmail, seedPhone := keys.claim(email, phone)
	seeds, err := store.FindByEmailOrPhone(ctx, seedEmail, seedPhone)
	if err != nil {
		return nil, fmt.Errorf("find seed contacts: %w", err)
	}

	frontier := make([]*models.Contact, 0, len(seeds))
	for _, seed := range seeds {
		if comp.add(seed) {
			frontier = append(frontier, seed)
		}
	}

	for len(frontier) > 0 {
		current := frontier[0]
		frontier = frontier[1:]

		found, err := store.FindLinked(ctx, current.ID)
		if err != nil {
			return nil, fmt.Errorf("find contacts linked to %s: %w", current.ID, err)
		}
		if e, p := keys.claim(current.Email, current.PhoneNumber); e != "" || p != "" {
			matched, err := store.FindByEmailOrPhone(ctx, e, p)
			if err != nil {
				return nil, fmt.Errorf("find contacts sharing identifiers with %s: %w", current.ID, err)
			}
			found = append(found, matched...)
		}

		for _, contact := range found {
			if comp.add(contact) {
				frontier = append(frontier, contact)
			}
		}
	}
	return comp, nil
}
