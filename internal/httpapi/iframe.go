package httpapi

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"appsystem/internal/api"
	"appsystem/internal/shop"
)

// iframeHandler serves admin modules opened through a signed GET request.
type iframeHandler struct {
	Shops shop.Store
}

type iframeView struct {
	Module    string `json:"module"`
	ShopID    string `json:"shopId"`
	ShopURL   string `json:"shopUrl"`
	Confirmed bool   `json:"confirmed"`
}

func (h iframeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s, err := h.Shops.Find(r.Context(), api.ShopIDFromContext(r.Context()))
	if errors.Is(err, shop.ErrNotFound) {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "unknown shop")
		return
	}
	if err != nil {
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}

	_, confirmed := api.ClientFromContext(r.Context())
	api.WriteJSON(w, http.StatusOK, iframeView{
		Module:    chi.URLParam(r, "module"),
		ShopID:    s.ID,
		ShopURL:   s.URL,
		Confirmed: confirmed,
	})
}
