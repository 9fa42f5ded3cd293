package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"appsystem/pkg/shopware"
)

// MaxBodyBytes caps signed request bodies.
const MaxBodyBytes = 1 << 20

type ErrorEnvelope struct {
	Error APIError `json:"error"`
}

type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func WriteError(w http.ResponseWriter, status int, code, message string) {
	WriteJSON(w, status, ErrorEnvelope{
		Error: APIError{Code: code, Message: message},
	})
}

func WriteJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// WriteShopError maps errors from calls against a shop to a response.
func WriteShopError(w http.ResponseWriter, err error) {
	var authErr *shopware.AuthenticationError
	var apiErr *shopware.APIError
	var parseErr *shopware.ParseError
	switch {
	case errors.As(err, &authErr):
		WriteError(w, http.StatusUnauthorized, "SHOP_AUTHENTICATION_FAILED", "could not authenticate against shop")
	case errors.As(err, &apiErr):
		WriteError(w, http.StatusBadGateway, "SHOP_API_ERROR", "shop api request failed")
	case errors.As(err, &parseErr):
		WriteError(w, http.StatusBadGateway, "SHOP_API_ERROR", "unexpected shop api response")
	default:
		WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
	}
}

// ReadBody reads at most MaxBodyBytes of the request body.
func ReadBody(w http.ResponseWriter, r *http.Request) ([]byte, error) {
	return io.ReadAll(http.MaxBytesReader(w, r.Body, MaxBodyBytes))
}
