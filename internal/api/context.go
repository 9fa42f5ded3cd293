package api

import (
	"context"

	"appsystem/pkg/shopware"
)

type ctxKey string

const (
	ctxKeyEvent  ctxKey = "event"
	ctxKeyShopID ctxKey = "shop_id"
	ctxKeyClient ctxKey = "client"
)

func WithEvent(ctx context.Context, ev shopware.Event) context.Context {
	return context.WithValue(ctx, ctxKeyEvent, ev)
}

// EventFromContext returns the verified event of a signed POST request.
func EventFromContext(ctx context.Context) (shopware.Event, bool) {
	ev, ok := ctx.Value(ctxKeyEvent).(shopware.Event)
	return ev, ok
}

func WithShopID(ctx context.Context, shopID string) context.Context {
	return context.WithValue(ctx, ctxKeyShopID, shopID)
}

// ShopIDFromContext returns the id of the shop whose signature was verified.
func ShopIDFromContext(ctx context.Context) string {
	s, _ := ctx.Value(ctxKeyShopID).(string)
	return s
}

func WithClient(ctx context.Context, c *shopware.Client) context.Context {
	return context.WithValue(ctx, ctxKeyClient, c)
}

// ClientFromContext returns an API client for the verified shop. It is absent
// while the shop has not confirmed its API keys.
func ClientFromContext(ctx context.Context) (*shopware.Client, bool) {
	c, ok := ctx.Value(ctxKeyClient).(*shopware.Client)
	return c, ok && c != nil
}
