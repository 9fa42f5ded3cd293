package shopware

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
)

// DefaultAPIVersion is the highest stable Admin API version.
const DefaultAPIVersion = 3

const (
	LanguageHeader    = "sw-language-id"
	InheritanceHeader = "sw-inheritance"
)

// Transport is an HTTP client bound to one shop and one bearer token.
type Transport struct {
	baseURL    string
	header     http.Header
	httpClient *http.Client
}

func (t *Transport) BaseURL() string { return t.baseURL }

// Header returns a copy of the headers sent with every request.
func (t *Transport) Header() http.Header { return t.header.Clone() }

// Do sends body (may be nil) to path and returns status and response body.
func (t *Transport) Do(ctx context.Context, method, path string, body []byte) (int, []byte, error) {
	var r io.Reader
	if body != nil {
		r = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, r)
	if err != nil {
		return 0, nil, err
	}
	for k, v := range t.header {
		req.Header[k] = v
	}

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, nil, err
	}
	return resp.StatusCode, b, nil
}

// authState is either unauthenticated or authenticated; a token without a
// transport cannot be represented.
type authState interface {
	credentials() Credentials
}

type unauthenticated struct {
	creds Credentials
}

type authenticated struct {
	creds     Credentials
	transport *Transport
}

func (s unauthenticated) credentials() Credentials { return s.creds }
func (s authenticated) credentials() Credentials   { return s.creds }

// Client issues Admin API calls against one shop. The token is fetched on first
// use and reused for the lifetime of the instance. With* methods return new
// clients and never modify the receiver.
type Client struct {
	mu    sync.Mutex
	state authState

	headers    map[string]string
	apiVersion int
	httpClient *http.Client
	auth       TokenExchanger
}

// FromCredentials builds a client. Credentials that already carry a token never
// trigger an exchange.
func FromCredentials(creds Credentials) *Client {
	return newClient(creds, nil, DefaultAPIVersion, nil, nil)
}

func newClient(creds Credentials, headers map[string]string, apiVersion int, httpClient *http.Client, auth TokenExchanger) *Client {
	if httpClient == nil {
		httpClient = &http.Client{Timeout: DefaultHTTPTimeout}
	}
	if auth == nil {
		auth = NewAuthenticator()
	}
	c := &Client{
		headers:    headers,
		apiVersion: apiVersion,
		httpClient: httpClient,
		auth:       auth,
	}
	if _, ok := creds.Token(); ok {
		c.state = authenticated{creds: creds, transport: c.buildTransport(creds)}
	} else {
		c.state = unauthenticated{creds: creds}
	}
	return c
}

// derive copies the configuration, applies fn and starts from a fresh state so the
// next call builds a transport with the new settings. A token already obtained is kept.
func (c *Client) derive(fn func(n *Client)) *Client {
	c.mu.Lock()
	creds := c.state.credentials()
	c.mu.Unlock()

	n := &Client{
		headers:    make(map[string]string, len(c.headers)+1),
		apiVersion: c.apiVersion,
		httpClient: c.httpClient,
		auth:       c.auth,
	}
	for k, v := range c.headers {
		n.headers[k] = v
	}
	fn(n)
	return newClient(creds, n.headers, n.apiVersion, n.httpClient, n.auth)
}

func (c *Client) WithLanguage(languageID string) *Client {
	return c.derive(func(n *Client) { n.headers[LanguageHeader] = languageID })
}

func (c *Client) WithInheritance(inheritance bool) *Client {
	v := "0"
	if inheritance {
		v = "1"
	}
	return c.derive(func(n *Client) { n.headers[InheritanceHeader] = v })
}

// WithHeader merges headers into the configured ones, later values winning.
func (c *Client) WithHeader(headers map[string]string) *Client {
	return c.derive(func(n *Client) {
		for k, v := range headers {
			n.headers[k] = v
		}
	})
}

func (c *Client) WithAPIVersion(version int) *Client {
	return c.derive(func(n *Client) { n.apiVersion = version })
}

// WithHTTPClient overrides the client used for API calls.
func (c *Client) WithHTTPClient(httpClient *http.Client) *Client {
	return c.derive(func(n *Client) { n.httpClient = httpClient })
}

// WithAuthenticator overrides how tokens are obtained.
func (c *Client) WithAuthenticator(auth TokenExchanger) *Client {
	return c.derive(func(n *Client) { n.auth = auth })
}

// Credentials returns the current credentials, token included once exchanged.
func (c *Client) Credentials() Credentials {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state.credentials()
}

func (c *Client) APIVersion() int { return c.apiVersion }

// AuthorizedTransport returns the cached transport, exchanging a token first if
// the client has none. Concurrent callers share a single exchange.
func (c *Client) AuthorizedTransport(ctx context.Context) (*Transport, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch s := c.state.(type) {
	case authenticated:
		return s.transport, nil
	case unauthenticated:
		creds, err := c.auth.Authenticate(ctx, s.creds)
		if err != nil {
			return nil, err
		}
		if _, ok := creds.Token(); !ok {
			return nil, &AuthenticationError{ShopURL: s.creds.ShopURL(), APIKey: s.creds.APIKey(), Reason: "empty access token"}
		}
		t := c.buildTransport(creds)
		c.state = authenticated{creds: creds, transport: t}
		return t, nil
	default:
		return nil, fmt.Errorf("shopware: unknown client state %T", s)
	}
}

func (c *Client) buildTransport(creds Credentials) *Transport {
	token, _ := creds.Token()
	h := http.Header{}
	h.Set("Authorization", "Bearer "+token)
	h.Set("Accept", "application/json")
	h.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		h.Set(k, v)
	}
	return &Transport{
		baseURL:    creds.ShopURL(),
		header:     h,
		httpClient: c.httpClient,
	}
}

func (c *Client) path(segments ...string) string {
	p := fmt.Sprintf("/api/v%d", c.apiVersion)
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	return p
}

// FetchDetail reads a single entity.
func (c *Client) FetchDetail(ctx context.Context, entityType, id string) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, http.MethodGet, c.path(entityType, id), nil, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Search runs a criteria search for entityType.
func (c *Client) Search(ctx context.Context, entityType string, criteria any) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, http.MethodPost, c.path("search", entityType), criteria, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// SearchIDs runs a criteria search returning only ids.
func (c *Client) SearchIDs(ctx context.Context, entityType string, criteria any) (map[string]any, error) {
	var out map[string]any
	if err := c.call(ctx, http.MethodPost, c.path("search-ids", entityType), criteria, http.StatusOK, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// CreateEntity expects exactly 204; any other status, 2xx included, is an error.
func (c *Client) CreateEntity(ctx context.Context, entityType string, data any) error {
	return c.call(ctx, http.MethodPost, c.path(entityType), data, http.StatusNoContent, nil)
}

func (c *Client) UpdateEntity(ctx context.Context, entityType, id string, data any) error {
	return c.call(ctx, http.MethodPatch, c.path(entityType, id), data, http.StatusNoContent, nil)
}

func (c *Client) DeleteEntity(ctx context.Context, entityType, id string) error {
	return c.call(ctx, http.MethodDelete, c.path(entityType, id), nil, http.StatusNoContent, nil)
}

func (c *Client) call(ctx context.Context, method, path string, reqBody any, want int, respBody any) error {
	t, err := c.AuthorizedTransport(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if reqBody != nil {
		payload, err = json.Marshal(reqBody)
		if err != nil {
			return fmt.Errorf("encode %s %s payload: %w", method, path, err)
		}
	}

	status, b, err := t.Do(ctx, method, path, payload)
	if err != nil {
		return &APIError{ShopURL: t.BaseURL(), Path: path, StatusCode: status, Err: err}
	}
	if status != want {
		return &APIError{ShopURL: t.BaseURL(), Path: path, StatusCode: status, Body: b}
	}

	if respBody != nil {
		if err := decodeBody(b, respBody); err != nil {
			return &ParseError{Source: method + " " + path, Body: b, Err: err}
		}
	}
	return nil
}

// decodeBody keeps numbers as json.Number so entity ids and amounts beyond
// 2^53 survive.
func decodeBody(b []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.UseNumber()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if dec.More() {
		return fmt.Errorf("unexpected data after JSON value")
	}
	return nil
}
