package models

import (
	"encoding/json"
	"strings"

	dErrors "linkage/pkg/domain-errors"
)

// IdentifyRequest is one submission of identifying attributes. Empty fields
// are absent.
type IdentifyRequest struct {
	Email       string `json:"email,omitempty"`
	PhoneNumber string `json:"phoneNumber,omitempty"`
}

// UnmarshalJSON accepts phoneNumber as either a JSON string or an integer,
// and treats null as absent.
func (r *IdentifyRequest) UnmarshalJSON(data []byte) error {
	var raw struct {
		Email       *string         `json:"email"`
		PhoneNumber json.RawMessage `json:"phoneNumber"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	phone, err := decodePhoneNumber(raw.PhoneNumber)
	if err != nil {
		return err
	}
	r.Email = ""
	if raw.Email != nil {
		r.Email = *raw.Email
	}
	r.PhoneNumber = phone
	return nil
}

func decodePhoneNumber(raw json.RawMessage) (string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return "", nil
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s, nil
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "phoneNumber must be a string or an integer")
	}
	if _, err := n.Int64(); err != nil {
		return "", dErrors.New(dErrors.CodeBadRequest, "phoneNumber must be a string or an integer")
	}
	return n.String(), nil
}

// Normalize trims surrounding whitespace. A value that is blank after
// trimming becomes absent.
func (r *IdentifyRequest) Normalize() {
	if r == nil {
		return
	}
	r.Email = strings.TrimSpace(r.Email)
	r.PhoneNumber = strings.TrimSpace(r.PhoneNumber)
}

// Validate requires at least one identifier.
func (r *IdentifyRequest) Validate() error {
	if r == nil || (r.Email == "" && r.PhoneNumber == "") {
		return dErrors.New(dErrors.CodeValidation, "at least one of email or phoneNumber is required")
	}
	return nil
}

// IdentityResult is the consolidated view of one identity.
type IdentityResult struct {
	PrimaryContactID    ContactID
	Emails              []string
	PhoneNumbers        []string
	SecondaryContactIDs []ContactID
	// Created is the record inserted by this call, nil when the submission
	// carried no new information.
	Created *Contact
}
