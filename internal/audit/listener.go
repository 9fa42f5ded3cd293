package audit

import (
	"context"

	"appsystem/pkg/shopware"
)

const actorShop = "shop"

// Listener writes every app lifecycle event to the audit log.
type Listener struct {
	Recorder Recorder
}

func (l Listener) AppInstalled(ctx context.Context, ev shopware.Event) error {
	return l.record(ctx, "APP_INSTALLED", ev)
}

func (l Listener) AppUpdated(ctx context.Context, ev shopware.Event) error {
	return l.record(ctx, "APP_UPDATED", ev)
}

func (l Listener) AppActivated(ctx context.Context, ev shopware.Event) error {
	return l.record(ctx, "APP_ACTIVATED", ev)
}

func (l Listener) AppDeactivated(ctx context.Context, ev shopware.Event) error {
	return l.record(ctx, "APP_DEACTIVATED", ev)
}

func (l Listener) AppDeleted(ctx context.Context, ev shopware.Event) error {
	return l.record(ctx, "APP_DELETED", ev)
}

func (l Listener) record(ctx context.Context, action string, ev shopware.Event) error {
	return l.Recorder.Record(ctx, Entry{
		ShopID: ev.ShopID,
		Action: action,
		Actor:  actorShop,
		Metadata: map[string]any{
			"shopUrl":    ev.ShopURL,
			"appVersion": ev.AppVersion,
			"timestamp":  ev.Timestamp,
		},
	})
}
