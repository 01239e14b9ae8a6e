package service

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"linkage/internal/contact/models"
	"linkage/internal/contact/ports"
	"linkage/pkg/platform/strings"
)

// reconciliation carries the outcome of one transaction back to Identify so
// events and metrics are emitted only after commit.
type reconciliation struct {
	result        *models.IdentityResult
	events        []models.Event
	componentSize int
	relinked      int
	merged        bool
	created       *models.Contact
}

// reconciler performs the read-modify-write steps of a single identify call
// against a transactional store.
type reconciler struct {
	store     ports.ContactStore
	logger    *slog.Logger
	now       time.Time
	requestID string

	comp *component
	out  reconciliation
}

func (r *reconciler) run(ctx context.Context, email, phone string) (*reconciliation, error) {
	comp, err := discover(ctx, r.store, email, phone)
	if err != nil {
		return nil, err
	}
	r.comp = comp

	if comp.len() == 0 {
		return r.createIdentity(ctx, email, phone)
	}

	primary, err := r.selectPrimary(ctx)
	if err != nil {
		return nil, err
	}
	if err := r.flatten(ctx, primary); err != nil {
		return nil, err
	}
	if err := r.appendIfNew(ctx, primary, email, phone); err != nil {
		return nil, err
	}

	r.out.componentSize = r.comp.len()
	r.out.result = assemble(r.comp, primary)
	r.out.result.Created = r.out.created
	return &r.out, nil
}

func (r *reconciler) createIdentity(ctx context.Context, email, phone string) (*reconciliation, error) {
	contact, err := models.NewPrimaryContact(email, phone, r.now)
	if err != nil {
		return nil, err
	}
	if err := r.store.Create(ctx, contact); err != nil {
		return nil, fmt.Errorf("create primary contact: %w", err)
	}
	r.comp.add(contact)
	r.out.created = contact
	r.logCreated(ctx, contact)
	r.out.events = append(r.out.events, models.NewEvent(models.EventContactCreated, contact, contact.ID, r.requestID, r.now))
	r.out.componentSize = 1
	r.out.result = assemble(r.comp, contact)
	r.out.result.Created = contact
	return &r.out, nil
}

// selectPrimary picks the oldest primary of the component. A component
// holding no primary at all promotes its oldest member instead.
func (r *reconciler) selectPrimary(ctx context.Context) (*models.Contact, error) {
	members := r.comp.sorted()

	var primaries []*models.Contact
	for _, c := range members {
		if c.IsPrimary() {
			primaries = append(primaries, c)
		}
	}

	var chosen *models.Contact
	switch {
	case len(primaries) == 0:
		chosen = members[0]
		r.logger.WarnContext(ctx, "component has no primary contact, promoting oldest member",
			"contact_id", chosen.ID,
			"component_size", len(members),
		)
	default:
		chosen = primaries[0]
		if len(primaries) > 1 {
			r.out.merged = true
			r.logger.WarnContext(ctx, "multiple primaries in component",
				"primary_contact_id", chosen.ID,
				"primaries", len(primaries),
				"request_id", r.requestID,
			)
		}
	}

	if chosen.IsRoot() {
		return chosen, nil
	}
	if err := chosen.Promote(r.now); err != nil {
		return nil, err
	}
	if err := r.store.Save(ctx, chosen); err != nil {
		return nil, fmt.Errorf("save promoted contact %s: %w", chosen.ID, err)
	}
	r.out.events = append(r.out.events, models.NewEvent(models.EventContactPromoted, chosen, chosen.ID, r.requestID, r.now))
	return chosen, nil
}

// flatten points every other member directly at primary, demoting
// competing primaries and re-targeting secondaries that link elsewhere.
func (r *reconciler) flatten(ctx context.Context, primary *models.Contact) error {
	for _, c := range r.comp.sorted() {
		if c.ID == primary.ID || c.IsLinkedTo(primary.ID) {
			continue
		}
		if err := c.LinkTo(primary.ID, r.now); err != nil {
			return err
		}
		if err := r.store.Save(ctx, c); err != nil {
			return fmt.Errorf("save relinked contact %s: %w", c.ID, err)
		}
		r.out.relinked++
		r.out.events = append(r.out.events, models.NewEvent(models.EventContactLinked, c, primary.ID, r.requestID, r.now))
	}
	if r.out.merged {
		r.logger.InfoContext(ctx, "contacts merged",
			"primary_contact_id", primary.ID,
			"relinked", r.out.relinked,
			"request_id", r.requestID,
		)
	}
	return nil
}

// appendIfNew records the submission as a secondary when it names an email
// or phone number the component has never seen.
func (r *reconciler) appendIfNew(ctx context.Context, primary *models.Contact, email, phone string) error {
	emails, phones := r.comp.identifiers()
	_, knownEmail := emails[email]
	_, knownPhone := phones[phone]
	if (email == "" || knownEmail) && (phone == "" || knownPhone) {
		return nil
	}

	contact, err := models.NewSecondaryContact(email, phone, primary.ID, r.now)
	if err != nil {
		return err
	}
	if err := r.store.Create(ctx, contact); err != nil {
		return fmt.Errorf("create secondary contact: %w", err)
	}
	r.comp.add(contact)
	r.out.created = contact
	r.logCreated(ctx, contact)
	r.out.events = append(r.out.events, models.NewEvent(models.EventContactCreated, contact, primary.ID, r.requestID, r.now))
	return nil
}

func (r *reconciler) logCreated(ctx context.Context, contact *models.Contact) {
	r.logger.InfoContext(ctx, "contact created",
		"contact_id", contact.ID,
		"link_precedence", contact.LinkPrecedence,
		"request_id", r.requestID,
	)
}

// assemble builds the consolidated view: the primary's values lead, the rest
// follow in creation order without duplicates.
func assemble(comp *component, primary *models.Contact) *models.IdentityResult {
	members := comp.sorted()

	emails := make([]string, 0, len(members))
	phones := make([]string, 0, len(members))
	secondaries := make([]models.ContactID, 0, len(members))

	emails = append(emails, primary.Email)
	phones = append(phones, primary.PhoneNumber)
	for _, c := range members {
		if c.ID == primary.ID {
			continue
		}
		emails = append(emails, c.Email)
		phones = append(phones, c.PhoneNumber)
		if c.LinkPrecedence == models.LinkPrecedenceSecondary {
			secondaries = append(secondaries, c.ID)
		}
	}

	return &models.IdentityResult{
		PrimaryContactID:    primary.ID,
		Emails:              strings.DedupeAndTrim(emails),
		PhoneNumbers:        strings.DedupeAndTrim(phones),
		SecondaryContactIDs: secondaries,
	}
}
