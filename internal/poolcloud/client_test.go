package poolcloud

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
)

// fakeTokens is a TokenSource handing out generation-numbered tokens so a
// test can assert that a retry really used a new token.
type fakeTokens struct {
	generation  atomic.Int64
	invalidated atomic.Int64
	failEnsure  atomic.Bool
}

func (f *fakeTokens) EnsureValid(ctx context.Context) (string, error) {
	if f.failEnsure.Load() {
		return "", &AuthError{Op: "authenticate", StatusCode: http.StatusBadRequest}
	}
	return fmt.Sprintf("token-%d", f.generation.Load()), nil
}

func (f *fakeTokens) Invalidate() {
	f.invalidated.Add(1)
	f.generation.Add(1)
}

const sampleDocument = `{
	"name": "projects/p/databases/(default)/documents/pools/pool-1",
	"fields": {
		"modules": {"mapValue": {"fields": {
			"ph": {"mapValue": {"fields": {
				"current": {"integerValue": "740"},
				"status": {"mapValue": {"fields": {
					"high_value": {"integerValue": "720"}
				}}}
			}}}
		}}},
		"present": {"booleanValue": true}
	}
}`

func newDocumentServer(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(ClientConfig{DocumentsURL: server.URL}, &fakeTokens{})
}

func TestFetch(t *testing.T) {
	var gotPath, gotAuth string
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(sampleDocument))
	})

	state, err := c.Fetch(context.Background(), "pool-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}

	if gotPath != "/pools/pool-1" {
		t.Errorf("request path = %q, want /pools/pool-1", gotPath)
	}
	if gotAuth != "Bearer token-0" {
		t.Errorf("Authorization = %q, want Bearer token-0", gotAuth)
	}

	want := FlatState{
		"modules_ph_current":           int64(740),
		"modules_ph_status_high_value": int64(720),
		"present":                      true,
	}
	if len(state) != len(want) {
		t.Fatalf("state has %d keys, want %d: %v", len(state), len(want), state)
	}
	for k, v := range want {
		if state[k] != v {
			t.Errorf("state[%q] = %v, want %v", k, state[k], v)
		}
	}
}

func TestFetchRetriesOnceOn401(t *testing.T) {
	tokens := &fakeTokens{}
	var calls atomic.Int64
	var secondAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		secondAuth = r.Header.Get("Authorization")
		_, _ = w.Write([]byte(sampleDocument))
	}))
	t.Cleanup(server.Close)

	c := NewClient(ClientConfig{DocumentsURL: server.URL}, tokens)
	state, err := c.Fetch(context.Background(), "pool-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if len(state) == 0 {
		t.Error("Fetch() returned empty state after retry")
	}
	if got := tokens.invalidated.Load(); got != 1 {
		t.Errorf("Invalidate calls = %d, want exactly 1", got)
	}
	if got := calls.Load(); got != 2 {
		t.Errorf("document requests = %d, want 2", got)
	}
	if secondAuth != "Bearer token-1" {
		t.Errorf("retry Authorization = %q, want the regenerated Bearer token-1", secondAuth)
	}
}

func TestFetchSecond401Propagates(t *testing.T) {
	tokens := &fakeTokens{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
	}))
	t.Cleanup(server.Close)

	c := NewClient(ClientConfig{DocumentsURL: server.URL}, tokens)
	_, err := c.Fetch(context.Background(), "pool-1")

	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusUnauthorized {
		t.Errorf("StatusCode = %d, want 401", apiErr.StatusCode)
	}
	if got := tokens.invalidated.Load(); got != 1 {
		t.Errorf("Invalidate calls = %d, want exactly 1 (never retry twice)", got)
	}
}

func TestFetchServerError(t *testing.T) {
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
	})

	_, err := c.Fetch(context.Background(), "pool-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("StatusCode = %d, want 503", apiErr.StatusCode)
	}
	if apiErr.Op != "fetch" {
		t.Errorf("Op = %q, want fetch", apiErr.Op)
	}
}

func TestFetchMalformedDocument(t *testing.T) {
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields": not-json`))
	})

	_, err := c.Fetch(context.Background(), "pool-1")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Fetch() error = %v, want *APIError", err)
	}
}

func TestFetchSkipsUndecodableFields(t *testing.T) {
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"fields": {
			"good": {"integerValue": "1"},
			"bad": {}
		}}`))
	})

	state, err := c.Fetch(context.Background(), "pool-1")
	if err != nil {
		t.Fatalf("Fetch() error = %v (bad fields must not fail the fetch)", err)
	}
	if state["good"] != int64(1) {
		t.Errorf("state[good] = %v, want 1", state["good"])
	}
	if _, present := state["bad"]; present {
		t.Error("undecodable field must be dropped from the state")
	}
}

func TestFetchAuthFailure(t *testing.T) {
	tokens := &fakeTokens{}
	tokens.failEnsure.Store(true)
	c := NewClient(ClientConfig{DocumentsURL: "http://127.0.0.1:0"}, tokens)

	_, err := c.Fetch(context.Background(), "pool-1")
	var authErr *AuthError
	if !errors.As(err, &authErr) {
		t.Fatalf("Fetch() error = %v, want *AuthError passthrough", err)
	}
}

func TestWrite(t *testing.T) {
	var gotMethod, gotMask, gotBody string
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotMask = r.URL.Query().Get("updateMask.fieldPaths")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
	})

	err := c.Write(context.Background(), "pool-1", "modules.ph.status.high_value", 740)
	if err != nil {
		t.Fatalf("Write() error = %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Errorf("method = %q, want PATCH", gotMethod)
	}
	if gotMask != "modules.ph.status.high_value" {
		t.Errorf("updateMask.fieldPaths = %q, want the dot path", gotMask)
	}
	want := `{"fields":{"modules":{"mapValue":{"fields":{"ph":{"mapValue":{"fields":{"status":{"mapValue":{"fields":{"high_value":{"integerValue":"740"}}}}}}}}}}}}`
	if gotBody != want {
		t.Errorf("body = %s, want %s", gotBody, want)
	}
}

func TestWriteRejected(t *testing.T) {
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "denied", http.StatusForbidden)
	})

	err := c.Write(context.Background(), "pool-1", "modules.ph.setpoint", 720)
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("Write() error = %v, want *APIError", err)
	}
	if apiErr.StatusCode != http.StatusForbidden {
		t.Errorf("StatusCode = %d, want 403", apiErr.StatusCode)
	}
	if apiErr.Op != "write" {
		t.Errorf("Op = %q, want write", apiErr.Op)
	}
}

func TestWriteInvalidPath(t *testing.T) {
	c := NewClient(ClientConfig{DocumentsURL: "http://127.0.0.1:0"}, &fakeTokens{})
	err := c.Write(context.Background(), "pool-1", "", 1)
	if !errors.Is(err, ErrInvalidPath) {
		t.Errorf("Write() error = %v, want ErrInvalidPath", err)
	}
}

func TestTestCredentials(t *testing.T) {
	tokens := &fakeTokens{}
	c := NewClient(ClientConfig{DocumentsURL: "http://127.0.0.1:0"}, tokens)
	if !c.TestCredentials(context.Background()) {
		t.Error("TestCredentials() = false, want true")
	}
	tokens.failEnsure.Store(true)
	if c.TestCredentials(context.Background()) {
		t.Error("TestCredentials() = true after auth failure, want false")
	}
}

func TestTestConnection(t *testing.T) {
	var status atomic.Int64
	status.Store(http.StatusOK)
	c := newDocumentServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(int(status.Load()))
		_, _ = w.Write([]byte(`{"fields":{}}`))
	})

	if !c.TestConnection(context.Background(), "pool-1") {
		t.Error("TestConnection() = false, want true")
	}
	status.Store(http.StatusNotFound)
	if c.TestConnection(context.Background(), "pool-1") {
		t.Error("TestConnection() = true for 404, want false")
	}
}
