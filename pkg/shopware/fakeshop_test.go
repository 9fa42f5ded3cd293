package shopware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
)

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

// fakeShop answers the token endpoint and records every API request.
type fakeShop struct {
	*httptest.Server

	tokenCalls  atomic.Int32
	tokenStatus int
	tokenBody   string

	mu       sync.Mutex
	requests []recordedRequest
	status   int
	body     string
}

func newFakeShop(t *testing.T) *fakeShop {
	t.Helper()
	fs := &fakeShop{
		tokenStatus: http.StatusOK,
		tokenBody:   `{"token_type":"Bearer","expires_in":600,"access_token":"token-123"}`,
		status:      http.StatusOK,
		body:        `{}`,
	}
	fs.Server = httptest.NewServer(http.HandlerFunc(fs.handle))
	t.Cleanup(fs.Close)
	return fs
}

func (fs *fakeShop) handle(w http.ResponseWriter, r *http.Request) {
	b, _ := io.ReadAll(r.Body)
	if r.URL.Path == "/api/oauth/token" {
		fs.tokenCalls.Add(1)
		w.WriteHeader(fs.tokenStatus)
		_, _ = w.Write([]byte(fs.tokenBody))
		return
	}

	fs.mu.Lock()
	fs.requests = append(fs.requests, recordedRequest{Method: r.Method, Path: r.URL.Path, Header: r.Header.Clone(), Body: b})
	status, body := fs.status, fs.body
	fs.mu.Unlock()

	w.WriteHeader(status)
	_, _ = w.Write([]byte(body))
}

func (fs *fakeShop) respond(status int, body string) {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	fs.status = status
	fs.body = body
}

func (fs *fakeShop) lastRequest(t *testing.T) recordedRequest {
	t.Helper()
	fs.mu.Lock()
	defer fs.mu.Unlock()
	if len(fs.requests) == 0 {
		t.Fatalf("no api request recorded")
	}
	return fs.requests[len(fs.requests)-1]
}

func decodeJSON(t *testing.T, b []byte) map[string]any {
	t.Helper()
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		t.Fatalf("decode %s: %v", string(b), err)
	}
	return m
}
