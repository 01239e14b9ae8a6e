package handler

import "linkage/internal/contact/models"

// IdentifyResponse is the body of a successful POST /identify.
type IdentifyResponse struct {
	Contact ContactView `json:"contact"`
}

// ContactView is the consolidated identity as seen by clients.
type ContactView struct {
	PrimaryContactID    int64    `json:"primaryContactId"`
	Emails              []string `json:"emails"`
	PhoneNumbers        []string `json:"phoneNumbers"`
	SecondaryContactIDs []int64  `json:"secondaryContactIds"`
}

func toIdentifyResponse(result *models.IdentityResult) IdentifyResponse {
	view := ContactView{
		PrimaryContactID:    int64(result.PrimaryContactID),
		Emails:              nonNil(result.Emails),
		PhoneNumbers:        nonNil(result.PhoneNumbers),
		SecondaryContactIDs: make([]int64, 0, len(result.SecondaryContactIDs)),
	}
	for _, id := range result.SecondaryContactIDs {
		view.SecondaryContactIDs = append(view.SecondaryContactIDs, int64(id))
	}
	return IdentifyResponse{Contact: view}
}

func nonNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}
