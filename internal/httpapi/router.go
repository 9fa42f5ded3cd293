package httpapi

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"appsystem/internal/api"
	"appsystem/internal/lifecycle"
	"appsystem/internal/metrics"
	"appsystem/internal/registration"
	"appsystem/internal/shop"
	"appsystem/internal/webhook"
	"appsystem/pkg/config"
	"appsystem/pkg/shopware"
)

type Dependencies struct {
	Cfg     config.Config
	Logger  zerolog.Logger
	Metrics *metrics.Metrics

	Shops shop.Store
	// Tokens is optional; without it every request exchanges its own token.
	Tokens *shopware.TokenCache
	Auth   *shopware.Authenticator
	// HTTPClient is used for outbound shop API calls.
	HTTPClient *http.Client

	Listeners []lifecycle.Listener
	Webhooks  *webhook.Dispatcher
	Actions   *webhook.ActionButtons
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger(deps.Logger))
	r.Use(middleware.Recoverer)

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler())
	}

	verifier := api.Verifier{
		Shops: deps.Shops,
		Clients: api.ClientFactory{
			Shops:      deps.Shops,
			Tokens:     deps.Tokens,
			Auth:       deps.Auth,
			APIVersion: deps.Cfg.Shopware.APIVersion,
			HTTPClient: deps.HTTPClient,
		},
		Metrics: deps.Metrics,
		Logger:  deps.Logger.With().Str("component", "verifier").Logger(),
	}
	registrationHandlers := registration.Handlers{
		Flow: registration.Flow{
			Shops:           deps.Shops,
			AppName:         deps.Cfg.App.Name,
			AppSecret:       deps.Cfg.App.Secret,
			ConfirmationURL: deps.Cfg.ConfirmationURL(),
			Tokens:          deps.Tokens,
			Metrics:         deps.Metrics,
			Logger:          deps.Logger.With().Str("component", "registration").Logger(),
		},
	}
	lifecycleHandlers := lifecycle.Handlers{
		Shops:     deps.Shops,
		Listeners: deps.Listeners,
		Metrics:   deps.Metrics,
		Logger:    deps.Logger.With().Str("component", "lifecycle").Logger(),
	}

	webhooks := deps.Webhooks
	if webhooks == nil {
		webhooks = webhook.NewDispatcher()
	}
	actions := deps.Actions
	if actions == nil {
		actions = webhook.NewActionButtons(deps.Metrics, deps.Logger)
	}

	// Registration is signed with the app secret and verified by the flow itself.
	r.Get("/registration", registrationHandlers.Register)
	r.Post("/registration/confirm", registrationHandlers.Confirm)

	// Everything else is signed with the per-shop secret.
	r.Group(func(r chi.Router) {
		r.Use(verifier.SignedPost)

		r.Post("/applifecycle/{event}", lifecycleHandlers.Handle)
		r.Post("/webhook/{event}", webhooks.ServeHTTP)
		r.Post("/actionbutton/{action}", actions.ServeHTTP)
	})

	r.Group(func(r chi.Router) {
		r.Use(verifier.SignedGet)

		r.Get("/iframe/{module}", iframeHandler{Shops: deps.Shops}.ServeHTTP)
	})

	return r
}

func requestLogger(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)

			logger.Info().
				Str("request_id", middleware.GetReqID(r.Context())).
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Int("status", ww.Status()).
				Dur("duration", time.Since(start)).
				Msg("http request")
		})
	}
}
