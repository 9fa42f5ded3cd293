package lifecycle

import (
	"context"

	"github.com/rs/zerolog"

	"appsystem/pkg/shopware"
)

// Listener reacts to app lifecycle events. Returning an error makes the
// endpoint answer 500 so the shop retries the delivery.
type Listener interface {
	AppInstalled(ctx context.Context, ev shopware.Event) error
	AppUpdated(ctx context.Context, ev shopware.Event) error
	AppActivated(ctx context.Context, ev shopware.Event) error
	AppDeactivated(ctx context.Context, ev shopware.Event) error
	// AppDeleted runs before the shop record is removed.
	AppDeleted(ctx context.Context, ev shopware.Event) error
}

// LoggingListener records every lifecycle event.
type LoggingListener struct {
	Logger zerolog.Logger
}

func (l LoggingListener) AppInstalled(_ context.Context, ev shopware.Event) error {
	l.log(EventInstalled, ev)
	return nil
}

func (l LoggingListener) AppUpdated(_ context.Context, ev shopware.Event) error {
	l.log(EventUpdated, ev)
	return nil
}

func (l LoggingListener) AppActivated(_ context.Context, ev shopware.Event) error {
	l.log(EventActivated, ev)
	return nil
}

func (l LoggingListener) AppDeactivated(_ context.Context, ev shopware.Event) error {
	l.log(EventDeactivated, ev)
	return nil
}

func (l LoggingListener) AppDeleted(_ context.Context, ev shopware.Event) error {
	l.log(EventDeleted, ev)
	return nil
}

func (l LoggingListener) log(name EventName, ev shopware.Event) {
	l.Logger.Info().
		Str("event", string(name)).
		Str("shop_id", ev.ShopID).
		Str("shop_url", ev.ShopURL).
		Int("app_version", ev.AppVersion).
		Msg("app lifecycle event")
}
