package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/rs/zerolog"

	"appsystem/internal/metrics"
	"appsystem/internal/shop"
	"appsystem/pkg/shopware"
)

// requiredGetParams must all be present on a signed GET request.
var requiredGetParams = []string{"shop-url", "shop-id", shopware.ShopSignatureParam, "timestamp"}

// Verifier authenticates requests signed by a registered shop.
//
// On success the shop id, the event (POST only) and, once the shop has
// confirmed its keys, an API client are stored in the request context.
type Verifier struct {
	Shops   shop.Store
	Clients ClientFactory
	Metrics *metrics.Metrics
	Logger  zerolog.Logger
}

// SignedPost verifies the shopware-shop-signature header over the raw body.
func (v Verifier) SignedPost(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := ReadBody(w, r)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
			return
		}

		src, err := shopware.PeekSource(body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing source")
			return
		}

		ok, err := v.verify(r.Context(), src.ShopID, func(secret string) bool {
			return shopware.VerifyInboundPost(body, r.Header.Get(shopware.ShopSignatureHeader), secret)
		})
		if err != nil {
			v.Logger.Error().Err(err).Str("shop_id", src.ShopID).Msg("shop secret lookup failed")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		v.Metrics.Verification("post", ok)
		if !ok {
			v.Logger.Debug().Str("shop_id", src.ShopID).Str("path", r.URL.Path).Msg("rejected unsigned or mis-signed request")
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid shop signature")
			return
		}

		ev, err := shopware.ParseEvent(body)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed event")
			return
		}

		ctx, err := v.withShop(r.Context(), ev.ShopID)
		if err != nil {
			v.Logger.Error().Err(err).Str("shop_id", ev.ShopID).Msg("shop credentials lookup failed")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}

		r.Body = io.NopCloser(bytes.NewReader(body))
		next.ServeHTTP(w, r.WithContext(WithEvent(ctx, ev)))
	})
}

// SignedGet verifies the shopware-shop-signature query parameter over the
// remaining parameters in wire order.
func (v Verifier) SignedGet(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q, err := shopware.ParseQuery(r.URL.RawQuery)
		if err != nil {
			WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid query")
			return
		}
		for _, key := range requiredGetParams {
			if !q.Has(key) {
				WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing "+key)
				return
			}
		}

		shopID := q.Get("shop-id")
		ok, err := v.verify(r.Context(), shopID, func(secret string) bool {
			return shopware.VerifyInboundGet(q, secret)
		})
		if err != nil {
			v.Logger.Error().Err(err).Str("shop_id", shopID).Msg("shop secret lookup failed")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		v.Metrics.Verification("get", ok)
		if !ok {
			WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid shop signature")
			return
		}

		ctx, err := v.withShop(r.Context(), shopID)
		if err != nil {
			v.Logger.Error().Err(err).Str("shop_id", shopID).Msg("shop credentials lookup failed")
			WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// verify looks up the shop secret and runs check. An unknown shop fails
// verification; it is not reported as an error.
func (v Verifier) verify(ctx context.Context, shopID string, check func(secret string) bool) (bool, error) {
	secret, err := v.Shops.LookupSecret(ctx, shopID)
	if errors.Is(err, shop.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return check(secret), nil
}

func (v Verifier) withShop(ctx context.Context, shopID string) (context.Context, error) {
	ctx = WithShopID(ctx, shopID)

	c, err := v.Clients.ForShop(ctx, shopID)
	if errors.Is(err, shop.ErrNotConfirmed) || errors.Is(err, shop.ErrNotFound) {
		return ctx, nil
	}
	if err != nil {
		return ctx, err
	}
	return WithClient(ctx, c), nil
}
