// Package e2e drives a running linkage server through its HTTP API.
package e2e

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// TestContext holds per-scenario HTTP state.
type TestContext struct {
	baseURL string
	client  *http.Client
	scope   string

	status int
	body   map[string]any
	saved  map[string]any
}

func NewTestContext(baseURL string) *TestContext {
	return &TestContext{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  &http.Client{Timeout: 10 * time.Second},
	}
}

// Reset clears state between scenarios. scope keeps identifiers from
// different scenarios apart on a shared server.
func (tc *TestContext) Reset(scope string) {
	tc.scope = scope
	tc.status = 0
	tc.body = nil
	tc.saved = map[string]any{}
}

// Scoped returns value made unique to the current scenario. Empty values
// stay empty.
func (tc *TestContext) Scoped(value string) string {
	if value == "" {
		return ""
	}
	return tc.scope + "-" + value
}

func (tc *TestContext) POST(path string, body any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", req.Method, req.URL.Path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	tc.status = resp.StatusCode
	tc.body = nil
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &tc.body); err != nil {
			return fmt.Errorf("decode response %q: %w", raw, err)
		}
	}
	return nil
}

func (tc *TestContext) LastStatus() int {
	return tc.status
}

// GetResponseField resolves a dotted path such as "contact.emails".
func (tc *TestContext) GetResponseField(field string) (any, error) {
	var current any = tc.body
	for _, part := range strings.Split(field, ".") {
		obj, ok := current.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("field %q: %q is not an object", field, part)
		}
		current, ok = obj[part]
		if !ok {
			return nil, fmt.Errorf("field %q not found in response", field)
		}
	}
	return current, nil
}

func (tc *TestContext) Save(name string, value any) {
	tc.saved[name] = value
}

func (tc *TestContext) Saved(name string) (any, bool) {
	v, ok := tc.saved[name]
	return v, ok
}
