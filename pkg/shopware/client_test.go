package shopware

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestClient_TokenPresentNeverExchanges(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("existing"))

	_, err := c.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)
	_, err = c.Search(context.Background(), "product", map[string]any{})
	require.NoError(t, err)

	assert.Equal(t, int32(0), shop.tokenCalls.Load())
	assert.Equal(t, "Bearer existing", shop.lastRequest(t).Header.Get("Authorization"))
}

func TestClient_ExchangesOncePerInstance(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret"))

	_, err := c.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)
	assert.Equal(t, int32(1), shop.tokenCalls.Load())

	_, err = c.FetchDetail(context.Background(), "product", "2")
	require.NoError(t, err)
	assert.Equal(t, int32(1), shop.tokenCalls.Load())

	assert.Equal(t, "Bearer token-123", shop.lastRequest(t).Header.Get("Authorization"))
	tok, ok := c.Credentials().Token()
	assert.True(t, ok)
	assert.Equal(t, "token-123", tok)
}

func TestClient_ConcurrentCallsShareOneExchange(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret"))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := c.AuthorizedTransport(context.Background())
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), shop.tokenCalls.Load())
}

func TestClient_FreshInstanceReauthenticates(t *testing.T) {
	shop := newFakeShop(t)
	creds := NewCredentials(shop.URL, "key", "secret")

	_, err := FromCredentials(creds).AuthorizedTransport(context.Background())
	require.NoError(t, err)
	_, err = FromCredentials(creds).AuthorizedTransport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(2), shop.tokenCalls.Load())
}

func TestClient_AuthenticationFailure(t *testing.T) {
	shop := newFakeShop(t)
	shop.tokenStatus = http.StatusForbidden
	shop.tokenBody = `{"errors":[{"title":"invalid client"}]}`

	c := FromCredentials(NewCredentials(shop.URL, "key", "bad"))
	_, err := c.AuthorizedTransport(context.Background())

	var authErr *AuthenticationError
	require.True(t, errors.As(err, &authErr))
	assert.Equal(t, shop.URL, authErr.ShopURL)
	assert.Contains(t, authErr.Reason, "invalid client")

	// no business call was attempted
	_, err = c.FetchDetail(context.Background(), "product", "1")
	assert.True(t, errors.As(err, &authErr))
	shop.mu.Lock()
	assert.Empty(t, shop.requests)
	shop.mu.Unlock()
}

func TestClient_FetchDetail(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusOK, `{"id":1}`)

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t")).WithAPIVersion(3)
	got, err := c.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)

	assert.Equal(t, map[string]any{"id": json.Number("1")}, got)
	req := shop.lastRequest(t)
	assert.Equal(t, http.MethodGet, req.Method)
	assert.Equal(t, "/api/v3/product/1", req.Path)
	assert.Equal(t, "application/json", req.Header.Get("Accept"))
}

func TestClient_FetchDetail_UnexpectedStatus(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusNotFound, `{"errors":[]}`)

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	_, err := c.FetchDetail(context.Background(), "product", "missing")

	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, shop.URL, apiErr.ShopURL)
	assert.Equal(t, "/api/v3/product/missing", apiErr.Path)
	assert.Equal(t, http.StatusNotFound, apiErr.StatusCode)
	assert.Equal(t, `{"errors":[]}`, string(apiErr.Body))
}

func TestClient_FetchDetail_MalformedBody(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusOK, `not json`)

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	_, err := c.FetchDetail(context.Background(), "product", "1")

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestClient_FetchDetail_LargeIntegersKeepPrecision(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusOK, `{"id":9007199254740993,"price":{"gross":19.99}}`)

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	got, err := c.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)

	assert.Equal(t, json.Number("9007199254740993"), got["id"])
	id, err := got["id"].(json.Number).Int64()
	require.NoError(t, err)
	assert.Equal(t, int64(9007199254740993), id)
	assert.Equal(t, map[string]any{"gross": json.Number("19.99")}, got["price"])
}

func TestClient_FetchDetail_TrailingData(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusOK, `{"id":1} {"id":2}`)

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	_, err := c.FetchDetail(context.Background(), "product", "1")

	var parseErr *ParseError
	assert.True(t, errors.As(err, &parseErr))
}

func TestClient_SearchEndpoints(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusOK, `{"total":1,"data":[{"id":"a"}]}`)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	criteria := map[string]any{"limit": 1}

	got, err := c.Search(context.Background(), "product", criteria)
	require.NoError(t, err)
	assert.Equal(t, json.Number("1"), got["total"])
	req := shop.lastRequest(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v3/search/product", req.Path)
	assert.Equal(t, map[string]any{"limit": float64(1)}, decodeJSON(t, req.Body))

	_, err = c.SearchIDs(context.Background(), "product", criteria)
	require.NoError(t, err)
	assert.Equal(t, "/api/v3/search-ids/product", shop.lastRequest(t).Path)
}

func TestClient_WriteOperations(t *testing.T) {
	shop := newFakeShop(t)
	shop.respond(http.StatusNoContent, ``)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	ctx := context.Background()

	require.NoError(t, c.CreateEntity(ctx, "product", map[string]any{"name": "p"}))
	req := shop.lastRequest(t)
	assert.Equal(t, http.MethodPost, req.Method)
	assert.Equal(t, "/api/v3/product", req.Path)
	assert.Equal(t, map[string]any{"name": "p"}, decodeJSON(t, req.Body))

	require.NoError(t, c.UpdateEntity(ctx, "product", "abc", map[string]any{"name": "q"}))
	req = shop.lastRequest(t)
	assert.Equal(t, http.MethodPatch, req.Method)
	assert.Equal(t, "/api/v3/product/abc", req.Path)

	require.NoError(t, c.DeleteEntity(ctx, "product", "abc"))
	req = shop.lastRequest(t)
	assert.Equal(t, http.MethodDelete, req.Method)
	assert.Equal(t, "/api/v3/product/abc", req.Path)
}

func TestClient_WriteOperationsRequireNoContent(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	ctx := context.Background()

	for _, status := range []int{http.StatusAccepted, http.StatusOK, http.StatusCreated} {
		shop.respond(status, `{}`)

		var apiErr *APIError
		err := c.CreateEntity(ctx, "product", map[string]any{})
		require.True(t, errors.As(err, &apiErr), "status %d", status)
		assert.Equal(t, status, apiErr.StatusCode)

		assert.Error(t, c.UpdateEntity(ctx, "product", "1", map[string]any{}))
		assert.Error(t, c.DeleteEntity(ctx, "product", "1"))
	}
}

func TestClient_TransportErrorIsAPIError(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))
	shop.Close()

	_, err := c.FetchDetail(context.Background(), "product", "1")
	var apiErr *APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, 0, apiErr.StatusCode)
	assert.Error(t, apiErr.Err)
}

func TestClient_WithMethodsReturnNewClients(t *testing.T) {
	shop := newFakeShop(t)
	base := FromCredentials(NewCredentials(shop.URL, "key", "secret").WithToken("t"))

	baseTransport, err := base.AuthorizedTransport(context.Background())
	require.NoError(t, err)

	derived := base.
		WithLanguage("lang-1").
		WithInheritance(true).
		WithHeader(map[string]string{"x-custom": "a", "single-operation": "1"}).
		WithAPIVersion(4)

	derivedTransport, err := derived.AuthorizedTransport(context.Background())
	require.NoError(t, err)
	assert.NotSame(t, baseTransport, derivedTransport)

	h := derivedTransport.Header()
	assert.Equal(t, "lang-1", h.Get(LanguageHeader))
	assert.Equal(t, "1", h.Get(InheritanceHeader))
	assert.Equal(t, "a", h.Get("x-custom"))
	assert.Equal(t, "Bearer t", h.Get("Authorization"))
	assert.Equal(t, 4, derived.APIVersion())

	// the receiver keeps its configuration and transport
	again, err := base.AuthorizedTransport(context.Background())
	require.NoError(t, err)
	assert.Same(t, baseTransport, again)
	assert.Empty(t, again.Header().Get(LanguageHeader))
	assert.Equal(t, DefaultAPIVersion, base.APIVersion())

	_, err = derived.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)
	req := shop.lastRequest(t)
	assert.Equal(t, "/api/v4/product/1", req.Path)
	assert.Equal(t, "lang-1", req.Header.Get(LanguageHeader))
}

func TestClient_DerivedClientKeepsExchangedToken(t *testing.T) {
	shop := newFakeShop(t)
	c := FromCredentials(NewCredentials(shop.URL, "key", "secret"))

	_, err := c.AuthorizedTransport(context.Background())
	require.NoError(t, err)

	_, err = c.WithLanguage("lang").AuthorizedTransport(context.Background())
	require.NoError(t, err)

	assert.Equal(t, int32(1), shop.tokenCalls.Load())
}

type stubExchanger struct {
	calls int
	token string
}

func (s *stubExchanger) Authenticate(_ context.Context, creds Credentials) (Credentials, error) {
	s.calls++
	return creds.WithToken(s.token), nil
}

func TestClient_WithAuthenticator(t *testing.T) {
	shop := newFakeShop(t)
	stub := &stubExchanger{token: "stubbed"}

	c := FromCredentials(NewCredentials(shop.URL, "key", "secret")).
		WithAuthenticator(stub).
		WithHTTPClient(shop.Client())

	_, err := c.FetchDetail(context.Background(), "product", "1")
	require.NoError(t, err)

	assert.Equal(t, 1, stub.calls)
	assert.Equal(t, int32(0), shop.tokenCalls.Load())
	assert.Equal(t, "Bearer stubbed", shop.lastRequest(t).Header.Get("Authorization"))
}
