package identify

import (
	"context"
	"fmt"
	"strings"

	"github.com/cucumber/godog"
)

// TestContext interface defines the methods needed from the main test context
type TestContext interface {
	POST(path string, body any) error
	LastStatus() int
	GetResponseField(field string) (any, error)
	Scoped(value string) string
	Save(name string, value any)
	Saved(name string) (any, bool)
}

// RegisterSteps registers identify step definitions
func RegisterSteps(ctx *godog.ScenarioContext, tc TestContext) {
	steps := &identifySteps{tc: tc}

	ctx.Step(`^I identify with email "([^"]*)" and phone "([^"]*)"$`, steps.identify)
	ctx.Step(`^I identify with an empty payload$`, steps.identifyEmpty)
	ctx.Step(`^I remember the primary contact as "([^"]*)"$`, steps.rememberPrimary)

	ctx.Step(`^the response status should be (\d+)$`, steps.statusShouldBe)
	ctx.Step(`^the error code should be "([^"]*)"$`, steps.errorCodeShouldBe)
	ctx.Step(`^the primary contact should be "([^"]*)"$`, steps.primaryShouldBe)
	ctx.Step(`^the emails should be "([^"]*)"$`, steps.emailsShouldBe)
	ctx.Step(`^the phone numbers should be "([^"]*)"$`, steps.phonesShouldBe)
	ctx.Step(`^there should be (\d+) secondary contacts?$`, steps.secondaryCountShouldBe)
}

type identifySteps struct {
	tc TestContext
}

func (s *identifySteps) identify(ctx context.Context, email, phone string) error {
	body := map[string]any{"email": nil, "phoneNumber": nil}
	if email != "" {
		body["email"] = s.tc.Scoped(email)
	}
	if phone != "" {
		body["phoneNumber"] = s.tc.Scoped(phone)
	}
	return s.tc.POST("/identify", body)
}

func (s *identifySteps) identifyEmpty(ctx context.Context) error {
	return s.tc.POST("/identify", map[string]any{})
}

func (s *identifySteps) rememberPrimary(ctx context.Context, name string) error {
	id, err := s.tc.GetResponseField("contact.primaryContactId")
	if err != nil {
		return err
	}
	s.tc.Save(name, id)
	return nil
}

func (s *identifySteps) statusShouldBe(ctx context.Context, status int) error {
	if got := s.tc.LastStatus(); got != status {
		return fmt.Errorf("expected status %d, got %d", status, got)
	}
	return nil
}

func (s *identifySteps) errorCodeShouldBe(ctx context.Context, code string) error {
	got, err := s.tc.GetResponseField("error")
	if err != nil {
		return err
	}
	if got != code {
		return fmt.Errorf("expected error %q, got %v", code, got)
	}
	return nil
}

func (s *identifySteps) primaryShouldBe(ctx context.Context, name string) error {
	want, ok := s.tc.Saved(name)
	if !ok {
		return fmt.Errorf("no contact remembered as %q", name)
	}
	got, err := s.tc.GetResponseField("contact.primaryContactId")
	if err != nil {
		return err
	}
	if got != want {
		return fmt.Errorf("expected primary %v (%s), got %v", want, name, got)
	}
	return nil
}

func (s *identifySteps) emailsShouldBe(ctx context.Context, csv string) error {
	return s.listShouldBe("contact.emails", csv)
}

func (s *identifySteps) phonesShouldBe(ctx context.Context, csv string) error {
	return s.listShouldBe("contact.phoneNumbers", csv)
}

func (s *identifySteps) listShouldBe(field, csv string) error {
	raw, err := s.tc.GetResponseField(field)
	if err != nil {
		return err
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("%s is not a list: %v", field, raw)
	}

	var want []string
	if csv != "" {
		for _, v := range strings.Split(csv, ",") {
			want = append(want, s.tc.Scoped(strings.TrimSpace(v)))
		}
	}
	if len(items) != len(want) {
		return fmt.Errorf("%s: expected %v, got %v", field, want, items)
	}
	for i := range want {
		if items[i] != want[i] {
			return fmt.Errorf("%s[%d]: expected %q, got %v", field, i, want[i], items[i])
		}
	}
	return nil
}

func (s *identifySteps) secondaryCountShouldBe(ctx context.Context, n int) error {
	raw, err := s.tc.GetResponseField("contact.secondaryContactIds")
	if err != nil {
		return err
	}
	items, ok := raw.([]any)
	if !ok {
		return fmt.Errorf("secondaryContactIds is not a list: %v", raw)
	}
	if len(items) != n {
		return fmt.Errorf("expected %d secondary contacts, got %d", n, len(items))
	}
	return nil
}
