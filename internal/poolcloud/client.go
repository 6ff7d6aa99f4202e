package poolcloud

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

// maxDocumentBodySize caps how much of a document store response is read.
const maxDocumentBodySize = 4 << 20 // 4MB

// TokenSource supplies access tokens for document store requests.
// Satisfied by *SessionManager; narrowed to an interface for testing.
type TokenSource interface {
	// EnsureValid returns a usable access token, authenticating or
	// refreshing as needed.
	EnsureValid(ctx context.Context) (string, error)

	// Invalidate forces the next EnsureValid to re-authenticate.
	Invalidate()
}

// Client fetches one pool's document as a flat map and issues single-field
// partial updates, authenticated through a TokenSource.
//
// Thread Safety: all methods are safe for concurrent use; mutable session
// state lives behind the TokenSource.
type Client struct {
	tokens  TokenSource
	baseURL string
	http    *http.Client
	logger  Logger
}

// ClientConfig contains document store settings.
type ClientConfig struct {
	// DocumentsURL is the base URL of the document store; pool documents
	// live under "<DocumentsURL>/pools/{id}".
	DocumentsURL string

	// HTTPClient is the client used for document store calls.
	// If nil, http.DefaultClient is used.
	HTTPClient *http.Client
}

// NewClient creates a document store client.
func NewClient(cfg ClientConfig, tokens TokenSource) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		tokens:  tokens,
		baseURL: strings.TrimSuffix(cfg.DocumentsURL, "/"),
		http:    httpClient,
	}
}

// SetLogger sets an optional logger.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Fetch reads the pool's document, decodes it and flattens it.
//
// On a 401/403 response the session is invalidated exactly once and the
// read retried with a freshly obtained token; a second failure of any kind
// propagates as *APIError carrying the HTTP status. Any other non-success
// status propagates as *APIError without retry. A token that cannot be
// obtained at all propagates the TokenSource's *AuthError.
//
// Individual fields that fail to decode are logged and skipped; the
// remaining fields still produce a usable FlatState.
func (c *Client) Fetch(ctx context.Context, poolID string) (FlatState, error) {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return nil, err
	}

	status, body, err := c.getDocument(ctx, poolID, token)
	if err != nil {
		return nil, &APIError{Op: "fetch", Err: err}
	}

	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		// The token may be revoked out of band; re-authenticate once.
		c.tokens.Invalidate()
		token, err = c.tokens.EnsureValid(ctx)
		if err != nil {
			return nil, err
		}
		status, body, err = c.getDocument(ctx, poolID, token)
		if err != nil {
			return nil, &APIError{Op: "fetch", Err: err}
		}
	}

	if status != http.StatusOK {
		return nil, &APIError{Op: "fetch", StatusCode: status, Message: string(body)}
	}

	var doc Document
	if err := json.Unmarshal(body, &doc); err != nil {
		return nil, &APIError{Op: "fetch", StatusCode: status, Err: fmt.Errorf("parsing document: %w", err)}
	}

	decoded, err := DecodeDocument(doc.Fields)
	if err != nil {
		c.logWarn("document partially decoded", "pool", poolID, "error", err)
	}

	return Flatten(decoded), nil
}

// Write issues a partial update setting a single field path.
//
// The update mask names exactly dotPath, so sibling fields are left
// untouched. Failure propagates as *APIError.
func (c *Client) Write(ctx context.Context, poolID, dotPath string, value any) error {
	token, err := c.tokens.EnsureValid(ctx)
	if err != nil {
		return err
	}

	fields, err := BuildNestedFields(dotPath, value)
	if err != nil {
		return &APIError{Op: "write", Err: err}
	}

	body, err := json.Marshal(struct {
		Fields map[string]Value `json:"fields"`
	}{Fields: fields})
	if err != nil {
		return &APIError{Op: "write", Err: err}
	}

	endpoint := fmt.Sprintf("%s/pools/%s?updateMask.fieldPaths=%s",
		c.baseURL, url.PathEscape(poolID), url.QueryEscape(dotPath))

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, endpoint, bytes.NewReader(body))
	if err != nil {
		return &APIError{Op: "write", Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return &APIError{Op: "write", Err: err}
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxDocumentBodySize)) //nolint:errcheck // Body only used for error text

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return &APIError{Op: "write", StatusCode: resp.StatusCode, Message: string(respBody)}
	}
	return nil
}

// TestCredentials reports whether the held credentials can obtain a token.
// Best-effort: all errors are swallowed. For pairing/repair flows only.
func (c *Client) TestCredentials(ctx context.Context) bool {
	_, err := c.tokens.EnsureValid(ctx)
	return err == nil
}

// TestConnection reports whether the pool's document can be fetched.
// Best-effort: all errors are swallowed. For pairing/repair flows only.
func (c *Client) TestConnection(ctx context.Context, poolID string) bool {
	_, err := c.Fetch(ctx, poolID)
	return err == nil
}

// getDocument performs one authenticated read of the pool document.
func (c *Client) getDocument(ctx context.Context, poolID, token string) (status int, body []byte, err error) {
	endpoint := fmt.Sprintf("%s/pools/%s", c.baseURL, url.PathEscape(poolID))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return 0, nil, err
	}
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := c.http.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close() //nolint:errcheck // Read-only body

	body, err = io.ReadAll(io.LimitReader(resp.Body, maxDocumentBodySize))
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, body, nil
}

// logWarn logs a warning if a logger is set.
func (c *Client) logWarn(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Warn(msg, args...)
	}
}
