package resource

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
)

// rootDocument is the wire shape of a root resource lookup.
type rootDocument struct {
	ID       string   `json:"id"`
	Title    string   `json:"title"`
	Children []string `json:"children"`
}

// HTTPConfig holds configuration for the HTTP resource client.
type HTTPConfig struct {
	// BaseURL is the service root, e.g. "https://api.example.com".
	BaseURL string

	// RequestTimeout bounds each individual request. Zero means 10s.
	RequestTimeout time.Duration
}

// HTTPClient implements Client against a JSON HTTP API. The root resource
// lives at {base}/resources/{id} and exposes its ordered child references in
// the "children" array; each reference is fetched directly for its detail.
type HTTPClient struct {
	base   *url.URL
	client *http.Client
	logger *zap.Logger
}

// NewHTTPClient creates an HTTP resource client.
func NewHTTPClient(cfg HTTPConfig, logger *zap.Logger) (*HTTPClient, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL cannot be empty")
	}
	base, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid base URL: %w", err)
	}
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	if logger == nil {
		logger, _ = zap.NewProduction()
	}
	return &HTTPClient{
		base:   base,
		client: &http.Client{Timeout: timeout},
		logger: logger,
	}, nil
}

// GetChildren performs one request for the root resource and returns its
// child references in document order.
func (c *HTTPClient) GetChildren(ctx context.Context, rootID string) ([]Ref, error) {
	target := c.base.JoinPath("resources", rootID).String()

	var doc rootDocument
	if err := c.getJSON(ctx, target, &doc); err != nil {
		return nil, err
	}

	refs := make([]Ref, len(doc.Children))
	for i, child := range doc.Children {
		refs[i] = Ref(c.resolve(child))
	}

	c.logger.Debug("fetched child references",
		zap.String("root_id", rootID),
		zap.Int("count", len(refs)))

	return refs, nil
}

// GetDetail performs one request for a child reference.
func (c *HTTPClient) GetDetail(ctx context.Context, ref Ref) (Detail, error) {
	target := c.resolve(string(ref))

	var fields map[string]interface{}
	if err := c.getJSON(ctx, target, &fields); err != nil {
		return Detail{}, err
	}

	detail := Detail{Fields: fields}
	if name, ok := fields["name"].(string); ok {
		detail.Name = name
	}
	return detail, nil
}

// resolve makes relative references absolute against the base URL.
func (c *HTTPClient) resolve(ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	return c.base.JoinPath(ref).String()
}

// getJSON performs a single GET and decodes the body. Transport failures map
// to *NetworkError, non-2xx responses to *StatusError.
func (c *HTTPClient) getJSON(ctx context.Context, target string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return &NetworkError{Target: target, Err: err}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return &NetworkError{Target: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return &StatusError{Target: target, Code: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &NetworkError{Target: target, Err: fmt.Errorf("decoding response: %w", err)}
	}
	return nil
}
