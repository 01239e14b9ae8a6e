package models

import (
	"strconv"
	"time"

	dErrors "linkage/pkg/domain-errors"
)

// ContactID identifies a contact record. IDs are assigned by the store and
// never reused.
type ContactID int64

func (id ContactID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

// IsNil reports whether the ID has not been assigned yet.
func (id ContactID) IsNil() bool {
	return id == 0
}

// LinkPrecedence is the role of a contact inside its identity.
type LinkPrecedence string

const (
	LinkPrecedencePrimary   LinkPrecedence = "primary"
	LinkPrecedenceSecondary LinkPrecedence = "secondary"
)

func (p LinkPrecedence) IsValid() bool {
	return p == LinkPrecedencePrimary || p == LinkPrecedenceSecondary
}

// CanTransitionTo reports whether precedence may change from p to next.
// The only transitions are primary -> secondary (demotion during a merge)
// and secondary -> primary (promotion when a component has no primary).
func (p LinkPrecedence) CanTransitionTo(next LinkPrecedence) bool {
	switch p {
	case LinkPrecedencePrimary:
		return next == LinkPrecedenceSecondary
	case LinkPrecedenceSecondary:
		return next == LinkPrecedencePrimary
	default:
		return false
	}
}

// Contact is one submission of identifying attributes.
//
// Invariants:
//   - At least one of Email or PhoneNumber is non-empty
//   - Email and PhoneNumber never change after construction
//   - A primary has no LinkedID; a secondary links to a primary other than itself
//   - CreatedAt is immutable after the store assigns it
type Contact struct {
	ID             ContactID      `json:"id"`
	Email          string         `json:"email,omitempty"`
	PhoneNumber    string         `json:"phoneNumber,omitempty"`
	LinkedID       *ContactID     `json:"linkedId,omitempty"`
	LinkPrecedence LinkPrecedence `json:"linkPrecedence"`
	CreatedAt      time.Time      `json:"createdAt"`
	UpdatedAt      time.Time      `json:"updatedAt"`
}

// NewPrimaryContact builds the first record of a new identity.
func NewPrimaryContact(email, phoneNumber string, now time.Time) (*Contact, error) {
	if email == "" && phoneNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	return &Contact{
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkPrecedence: LinkPrecedencePrimary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

// NewSecondaryContact builds a record carrying new information for the
// identity rooted at primaryID.
func NewSecondaryContact(email, phoneNumber string, primaryID ContactID, now time.Time) (*Contact, error) {
	if email == "" && phoneNumber == "" {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "contact requires an email or phone number")
	}
	if primaryID.IsNil() {
		return nil, dErrors.New(dErrors.CodeInvariantViolation, "secondary contact requires a primary")
	}
	linked := primaryID
	return &Contact{
		Email:          email,
		PhoneNumber:    phoneNumber,
		LinkedID:       &linked,
		LinkPrecedence: LinkPrecedenceSecondary,
		CreatedAt:      now,
		UpdatedAt:      now,
	}, nil
}

func (c *Contact) IsPrimary() bool {
	return c.LinkPrecedence == LinkPrecedencePrimary
}

// IsRoot reports whether c is a well-formed primary: primary precedence and no link.
func (c *Contact) IsRoot() bool {
	return c.IsPrimary() && c.LinkedID == nil
}

// IsLinkedTo reports whether c is a secondary pointing directly at primaryID.
func (c *Contact) IsLinkedTo(primaryID ContactID) bool {
	return c.LinkPrecedence == LinkPrecedenceSecondary && c.LinkedID != nil && *c.LinkedID == primaryID
}

// Before orders contacts by creation time, breaking ties by the smaller ID.
func (c *Contact) Before(other *Contact) bool {
	if !c.CreatedAt.Equal(other.CreatedAt) {
		return c.CreatedAt.Before(other.CreatedAt)
	}
	return c.ID < other.ID
}

// CanLinkTo checks that c may become (or stay) a secondary of primaryID.
func (c *Contact) CanLinkTo(primaryID ContactID) error {
	if primaryID.IsNil() {
		return dErrors.New(dErrors.CodeInvariantViolation, "cannot link contact to an unassigned primary")
	}
	if primaryID == c.ID {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact cannot link to itself")
	}
	if !c.LinkPrecedence.IsValid() {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact has unknown link precedence")
	}
	return nil
}

// ApplyLink makes c a secondary pointing at primaryID. Demotes a primary or
// re-targets a secondary. Call CanLinkTo first.
func (c *Contact) ApplyLink(primaryID ContactID, now time.Time) {
	linked := primaryID
	c.LinkPrecedence = LinkPrecedenceSecondary
	c.LinkedID = &linked
	c.UpdatedAt = now
}

// LinkTo validates and applies the link in one call.
func (c *Contact) LinkTo(primaryID ContactID, now time.Time) error {
	if err := c.CanLinkTo(primaryID); err != nil {
		return err
	}
	c.ApplyLink(primaryID, now)
	return nil
}

// CanPromote checks that c may become the root of its component. A primary
// that still carries a stale link may be promoted to clear it.
func (c *Contact) CanPromote() error {
	if c.IsRoot() {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact is already primary")
	}
	if !c.IsPrimary() && !c.LinkPrecedence.CanTransitionTo(LinkPrecedencePrimary) {
		return dErrors.New(dErrors.CodeInvariantViolation, "contact has unknown link precedence")
	}
	return nil
}

// ApplyPromotion makes c primary and clears its link. Call CanPromote first.
func (c *Contact) ApplyPromotion(now time.Time) {
	c.LinkPrecedence = LinkPrecedencePrimary
	c.LinkedID = nil
	c.UpdatedAt = now
}

// Promote validates and applies the promotion in one call.
func (c *Contact) Promote(now time.Time) error {
	if err := c.CanPromote(); err != nil {
		return err
	}
	c.ApplyPromotion(now)
	return nil
}

// Clone returns a deep copy of c.
func (c *Contact) Clone() *Contact {
	cp := *c
	if c.LinkedID != nil {
		linked := *c.LinkedID
		cp.LinkedID = &linked
	}
	return &cp
}
