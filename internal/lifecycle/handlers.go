package lifecycle

import (
	"context"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"appsystem/internal/api"
	"appsystem/internal/metrics"
	"appsystem/internal/shop"
	"appsystem/pkg/shopware"
)

type EventName string

const (
	EventInstalled   EventName = "installed"
	EventUpdated     EventName = "updated"
	EventActivated   EventName = "activated"
	EventDeactivated EventName = "deactivated"
	EventDeleted     EventName = "deleted"
)

func (n EventName) valid() bool {
	switch n {
	case EventInstalled, EventUpdated, EventActivated, EventDeactivated, EventDeleted:
		return true
	}
	return false
}

// Handlers serves POST /applifecycle/{event}. It expects to run behind
// api.Verifier.SignedPost, which puts the verified event into the context.
type Handlers struct {
	Shops     shop.Store
	Listeners []Listener
	Metrics   *metrics.Metrics
	Logger    zerolog.Logger
}

func (h Handlers) Handle(w http.ResponseWriter, r *http.Request) {
	name := EventName(chi.URLParam(r, "event"))
	if !name.valid() {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown lifecycle event")
		return
	}

	ev, ok := api.EventFromContext(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unsigned request")
		return
	}

	if err := h.Dispatch(r.Context(), name, ev); err != nil {
		h.Logger.Error().Err(err).Str("event", string(name)).Str("shop_id", ev.ShopID).Msg("lifecycle event failed")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	w.WriteHeader(http.StatusOK)
}

// Dispatch notifies every listener in order and stops at the first error.
// A deleted event removes the shop once all listeners succeeded.
func (h Handlers) Dispatch(ctx context.Context, name EventName, ev shopware.Event) error {
	h.Metrics.Event("lifecycle", string(name))

	for _, l := range h.Listeners {
		if err := notify(ctx, l, name, ev); err != nil {
			return fmt.Errorf("%s listener: %w", name, err)
		}
	}

	if name == EventDeleted {
		if err := h.Shops.Remove(ctx, ev.ShopID); err != nil {
			return fmt.Errorf("remove shop %s: %w", ev.ShopID, err)
		}
	}
	return nil
}

func notify(ctx context.Context, l Listener, name EventName, ev shopware.Event) error {
	switch name {
	case EventInstalled:
		return l.AppInstalled(ctx, ev)
	case EventUpdated:
		return l.AppUpdated(ctx, ev)
	case EventActivated:
		return l.AppActivated(ctx, ev)
	case EventDeactivated:
		return l.AppDeactivated(ctx, ev)
	case EventDeleted:
		return l.AppDeleted(ctx, ev)
	}
	return fmt.Errorf("unknown lifecycle event %q", name)
}
