package registration

import (
	"encoding/json"
	"errors"
	"net/http"

	"appsystem/internal/api"
	"appsystem/pkg/shopware"
)

type Handlers struct {
	Flow Flow
}

// Register handles GET /registration?shop-id=..&shop-url=..&timestamp=..
func (h Handlers) Register(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	res, err := h.Flow.Register(
		r.Context(),
		q.Get("shop-url"),
		q.Get("shop-id"),
		r.URL.RawQuery,
		r.Header.Get(shopware.AppSignatureHeader),
	)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, res)
}

type confirmRequest struct {
	ShopID    string `json:"shopId"`
	APIKey    string `json:"apiKey"`
	SecretKey string `json:"secretKey"`
}

// Confirm handles POST /registration/confirm.
func (h Handlers) Confirm(w http.ResponseWriter, r *http.Request) {
	body, err := api.ReadBody(w, r)
	if err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid body")
		return
	}

	var req confirmRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	err = h.Flow.Confirm(r.Context(), req.ShopID, req.APIKey, req.SecretKey, body, r.Header.Get(shopware.ShopSignatureHeader))
	if err != nil {
		h.writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusOK)
}

func (h Handlers) writeError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, ErrUnauthorized):
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "invalid signature")
	case errors.Is(err, ErrInvalidRequest):
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "missing shop id, shop url or keys")
	default:
		h.Flow.Logger.Error().Err(err).Msg("registration failed")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}
