package models

import (
	"encoding/json"
	"strings"
	"testing"
)

// FuzzIdentifyRequestUnmarshal checks that decoding arbitrary bodies never
// panics and that an accepted request survives normalization consistently.
func FuzzIdentifyRequestUnmarshal(f *testing.F) {
	f.Add(`{"email":"a@x.io","phoneNumber":"123"}`)
	f.Add(`{"email":null,"phoneNumber":919191}`)
	f.Add(`{"phoneNumber":12.5}`)
	f.Add(`{"phoneNumber":-0}`)
	f.Add(`{"phoneNumber":1e3}`)
	f.Add(`{"email":"  ","phoneNumber":"\t"}`)
	f.Add(`{}`)
	f.Add(`[]`)
	f.Add(`{"email":`)

	f.Fuzz(func(t *testing.T, body string) {
		var req IdentifyRequest
		if err := json.Unmarshal([]byte(body), &req); err != nil {
			return
		}

		req.Normalize()
		if req.Email != strings.TrimSpace(req.Email) || req.PhoneNumber != strings.TrimSpace(req.PhoneNumber) {
			t.Errorf("normalize left surrounding whitespace: %+v", req)
		}

		once := req
		req.Normalize()
		if req != once {
			t.Errorf("normalize is not idempotent: %+v then %+v", once, req)
		}

		if err := req.Validate(); (err == nil) == (req.Email == "" && req.PhoneNumber == "") {
			t.Errorf("validate disagrees with presence of identifiers: %+v, err=%v", req, err)
		}
	})
}
