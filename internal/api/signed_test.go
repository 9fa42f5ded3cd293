package api

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"appsystem/internal/shop"
	"appsystem/pkg/shopware"
)

const eventBody = `{"data":{"event":"app.installed"},"source":{"url":"https://shop.test","appVersion":"1.0.0","shopId":"abc"}}`

func newVerifier(t *testing.T) (Verifier, *shop.MemoryStore) {
	t.Helper()
	store := shop.NewMemoryStore()
	require.NoError(t, store.Create(context.Background(), "abc", "https://shop.test", "shop-secret"))
	return Verifier{
		Shops:   store,
		Clients: ClientFactory{Shops: store},
		Logger:  zerolog.Nop(),
	}, store
}

type captured struct {
	called bool
	event  shopware.Event
	shopID string
	client *shopware.Client
	body   []byte
}

func capture(c *captured) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c.called = true
		c.event, _ = EventFromContext(r.Context())
		c.shopID = ShopIDFromContext(r.Context())
		c.client, _ = ClientFromContext(r.Context())
		c.body, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusNoContent)
	})
}

func signedPost(body, secret string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/applifecycle/installed", bytes.NewBufferString(body))
	if secret != "" {
		req.Header.Set(shopware.ShopSignatureHeader, shopware.SignPostBody([]byte(body), secret))
	}
	return req
}

func TestSignedPost_Valid(t *testing.T) {
	v, _ := newVerifier(t)
	var c captured

	rec := httptest.NewRecorder()
	v.SignedPost(capture(&c)).ServeHTTP(rec, signedPost(eventBody, "shop-secret"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.True(t, c.called)
	assert.Equal(t, "abc", c.shopID)
	assert.Equal(t, "abc", c.event.ShopID)
	assert.Equal(t, 1, c.event.AppVersion)
	assert.Equal(t, eventBody, string(c.body))
	assert.Nil(t, c.client, "shop without api keys gets no client")
}

func TestSignedPost_ClientForConfirmedShop(t *testing.T) {
	v, store := newVerifier(t)
	require.NoError(t, store.UpdateKeys(context.Background(), "abc", "key", "secretKey"))
	var c captured

	rec := httptest.NewRecorder()
	v.SignedPost(capture(&c)).ServeHTTP(rec, signedPost(eventBody, "shop-secret"))

	assert.Equal(t, http.StatusNoContent, rec.Code)
	require.NotNil(t, c.client)
	assert.Equal(t, "https://shop.test", c.client.Credentials().ShopURL())
	assert.Equal(t, "key", c.client.Credentials().APIKey())
}

func TestSignedPost_Rejections(t *testing.T) {
	unknownShop := `{"data":{},"source":{"url":"https://shop.test","appVersion":"1","shopId":"zzz"}}`

	tests := []struct {
		name   string
		req    *http.Request
		status int
	}{
		{"missing signature", signedPost(eventBody, ""), http.StatusUnauthorized},
		{"wrong secret", signedPost(eventBody, "app-secret"), http.StatusUnauthorized},
		{"unknown shop", signedPost(unknownShop, "shop-secret"), http.StatusUnauthorized},
		{"malformed body", signedPost(`{nope`, "shop-secret"), http.StatusBadRequest},
		{"missing source", signedPost(`{"data":{}}`, "shop-secret"), http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newVerifier(t)
			var c captured

			rec := httptest.NewRecorder()
			v.SignedPost(capture(&c)).ServeHTTP(rec, tt.req)

			assert.Equal(t, tt.status, rec.Code)
			assert.False(t, c.called)
		})
	}
}

func signedGetURL(q shopware.Query, secret string) string {
	return "/iframe/main?" + shopware.SignGetQuery(q, secret).Encode()
}

func TestSignedGet(t *testing.T) {
	q := shopware.Query{
		{Key: "shop-id", Value: "abc"},
		{Key: "shop-url", Value: "https://shop.test"},
		{Key: "timestamp", Value: "1600000000"},
	}

	tests := []struct {
		name   string
		target string
		status int
	}{
		{"valid", signedGetURL(q, "shop-secret"), http.StatusNoContent},
		{"wrong secret", signedGetURL(q, "other"), http.StatusUnauthorized},
		{"tampered", signedGetURL(q, "shop-secret") + "&extra=1", http.StatusUnauthorized},
		{"missing timestamp", signedGetURL(q.Without("timestamp"), "shop-secret"), http.StatusBadRequest},
		{"unknown shop", signedGetURL(q.Without("shop-id").With("shop-id", "zzz"), "shop-secret"), http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, _ := newVerifier(t)
			var c captured

			rec := httptest.NewRecorder()
			v.SignedGet(capture(&c)).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, tt.target, nil))

			assert.Equal(t, tt.status, rec.Code)
			assert.Equal(t, tt.status == http.StatusNoContent, c.called)
			if c.called {
				assert.Equal(t, "abc", c.shopID)
			}
		})
	}
}

func TestWriteShopError(t *testing.T) {
	tests := []struct {
		err    error
		status int
	}{
		{&shopware.AuthenticationError{ShopURL: "u", Reason: "r"}, http.StatusUnauthorized},
		{&shopware.APIError{ShopURL: "u", Path: "/p", StatusCode: 500}, http.StatusBadGateway},
		{&shopware.ParseError{Source: "s"}, http.StatusBadGateway},
		{io.EOF, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		WriteShopError(rec, tt.err)
		assert.Equal(t, tt.status, rec.Code)
		assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	}
}
