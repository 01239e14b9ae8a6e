package models

import (
	"time"

	"github.com/google/uuid"
)

// EventType names a contact state change.
type EventType string

const (
	EventContactCreated  EventType = "contact.created"
	EventContactLinked   EventType = "contact.linked"
	EventContactPromoted EventType = "contact.promoted"
)

// Event records one committed change to a contact.
type Event struct {
	ID               uuid.UUID      `json:"id"`
	Type             EventType      `json:"type"`
	ContactID        ContactID      `json:"contactId"`
	PrimaryContactID ContactID      `json:"primaryContactId"`
	LinkPrecedence   LinkPrecedence `json:"linkPrecedence"`
	RequestID        string         `json:"requestId,omitempty"`
	OccurredAt       time.Time      `json:"occurredAt"`
}

// NewEvent builds an event for contact after it has been written.
func NewEvent(eventType EventType, contact *Contact, primaryID ContactID, requestID string, now time.Time) Event {
	return Event{
		ID:               uuid.New(),
		Type:             eventType,
		ContactID:        contact.ID,
		PrimaryContactID: primaryID,
		LinkPrecedence:   contact.LinkPrecedence,
		RequestID:        requestID,
		OccurredAt:       now,
	}
}
