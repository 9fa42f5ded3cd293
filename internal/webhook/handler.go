package webhook

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	"appsystem/internal/api"
	"appsystem/internal/metrics"
	"appsystem/pkg/shopware"
)

// Delivery is a verified business webhook.
type Delivery struct {
	// Name is the normalized event name, e.g. "product_written".
	Name  string
	Event shopware.Event
	// Client is nil while the shop has not confirmed its API keys.
	Client *shopware.Client
}

type HandlerFunc func(ctx context.Context, d Delivery) error

// Dispatcher routes signed webhooks to handlers by normalized event name.
// Events without a handler are accepted and dropped.
type Dispatcher struct {
	handlers map[string]HandlerFunc
	dedupe   Deduper
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

type DispatcherOption func(*Dispatcher)

// WithDeduper makes retried deliveries of an already handled payload a no-op.
func WithDeduper(d Deduper) DispatcherOption {
	return func(x *Dispatcher) {
		x.dedupe = d
	}
}

func WithMetrics(m *metrics.Metrics) DispatcherOption {
	return func(x *Dispatcher) {
		x.metrics = m
	}
}

func WithLogger(l zerolog.Logger) DispatcherOption {
	return func(x *Dispatcher) {
		x.logger = l
	}
}

func NewDispatcher(opts ...DispatcherOption) *Dispatcher {
	d := &Dispatcher{handlers: make(map[string]HandlerFunc), logger: zerolog.Nop()}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Handle registers fn for event. Registering the same event twice replaces
// the earlier handler.
func (d *Dispatcher) Handle(event string, fn HandlerFunc) {
	d.handlers[NormalizeEvent(event)] = fn
}

type webhookData struct {
	Event string `json:"event"`
}

// ServeHTTP handles POST /webhook/{event}. It expects to run behind
// api.Verifier.SignedPost.
func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ev, ok := api.EventFromContext(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unsigned request")
		return
	}

	// Prefer the event named in the payload; fall back to the route param.
	var data webhookData
	_ = ev.Decode(&data)
	name := NormalizeEvent(data.Event)
	if name == "" {
		name = NormalizeEvent(chi.URLParam(r, "event"))
	}

	d.metrics.Event("webhook", name)
	log := d.logger.With().Str("event", name).Str("shop_id", ev.ShopID).Logger()

	fn, ok := d.handlers[name]
	if !ok {
		log.Debug().Msg("no handler for webhook")
		w.WriteHeader(http.StatusNoContent)
		return
	}

	var key string
	if d.dedupe != nil {
		body, _ := io.ReadAll(r.Body)
		key = deliveryKey(ev.ShopID, body)
		first, err := d.dedupe.Claim(r.Context(), key)
		if err != nil {
			log.Warn().Err(err).Msg("webhook dedupe unavailable")
			key = ""
		} else if !first {
			log.Debug().Msg("webhook already processed")
			w.WriteHeader(http.StatusNoContent)
			return
		}
	}

	// A failed or panicking handler gives the claim back so Shopware's retry
	// is processed.
	handled := false
	if key != "" {
		defer func() {
			if handled {
				return
			}
			if rerr := d.dedupe.Release(context.WithoutCancel(r.Context()), key); rerr != nil {
				log.Warn().Err(rerr).Msg("webhook dedupe release failed")
			}
		}()
	}

	client, _ := api.ClientFromContext(r.Context())
	if err := fn(r.Context(), Delivery{Name: name, Event: ev, Client: client}); err != nil {
		log.Error().Err(err).Msg("webhook handler failed")
		writeHandlerError(w, err)
		return
	}
	handled = true
	w.WriteHeader(http.StatusNoContent)
}

// Action is a verified action-button callback.
type Action struct {
	// Name is the normalized action from the route, e.g. "order".
	Name   string
	Entity string
	IDs    []string
	Event  shopware.Event
	// Client is nil while the shop has not confirmed its API keys.
	Client *shopware.Client
}

type ActionFunc func(ctx context.Context, a Action) error

type actionData struct {
	IDs    []string `json:"ids"`
	Entity string   `json:"entity"`
	Action string   `json:"action"`
}

// ActionButtons routes signed action-button callbacks by normalized action
// name.
type ActionButtons struct {
	handlers map[string]ActionFunc
	metrics  *metrics.Metrics
	logger   zerolog.Logger
}

func NewActionButtons(m *metrics.Metrics, logger zerolog.Logger) *ActionButtons {
	return &ActionButtons{handlers: make(map[string]ActionFunc), metrics: m, logger: logger}
}

func (b *ActionButtons) Handle(action string, fn ActionFunc) {
	b.handlers[NormalizeEvent(action)] = fn
}

// ServeHTTP handles POST /actionbutton/{action}.
func (b *ActionButtons) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ev, ok := api.EventFromContext(r.Context())
	if !ok {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unsigned request")
		return
	}

	var data actionData
	if err := ev.Decode(&data); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "malformed action data")
		return
	}

	name := NormalizeEvent(chi.URLParam(r, "action"))
	b.metrics.Event("action", name)

	fn, ok := b.handlers[name]
	if !ok {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "unknown action")
		return
	}

	client, _ := api.ClientFromContext(r.Context())
	a := Action{Name: name, Entity: data.Entity, IDs: data.IDs, Event: ev, Client: client}
	if err := fn(r.Context(), a); err != nil {
		b.logger.Error().Err(err).Str("action", name).Str("shop_id", ev.ShopID).Msg("action button failed")
		writeHandlerError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ErrNoClient is returned by handlers that need the shop API before the shop
// confirmed its keys.
var ErrNoClient = errors.New("shop has not confirmed api credentials")

// FetchEntities is an action handler that loads every selected entity from
// the shop and logs its id.
func FetchEntities(logger zerolog.Logger) ActionFunc {
	return func(ctx context.Context, a Action) error {
		if a.Client == nil {
			return ErrNoClient
		}
		entity := a.Entity
		if entity == "" {
			entity = a.Name
		}
		for _, id := range a.IDs {
			detail, err := a.Client.FetchDetail(ctx, entity, id)
			if err != nil {
				return err
			}
			logger.Info().
				Str("shop_id", a.Event.ShopID).
				Str("entity", entity).
				Str("id", id).
				Int("fields", len(detail)).
				Msg("fetched entity for action")
		}
		return nil
	}
}

// LogWebhook is a webhook handler that logs the delivery.
func LogWebhook(logger zerolog.Logger) HandlerFunc {
	return func(_ context.Context, d Delivery) error {
		var payload struct {
			Payload []json.RawMessage `json:"payload"`
		}
		_ = d.Event.Decode(&payload)
		logger.Info().
			Str("event", d.Name).
			Str("shop_id", d.Event.ShopID).
			Int("records", len(payload.Payload)).
			Msg("webhook received")
		return nil
	}
}

func writeHandlerError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNoClient) {
		api.WriteError(w, http.StatusConflict, "SHOP_NOT_CONFIRMED", err.Error())
		return
	}
	api.WriteShopError(w, err)
}
