package shopware

import "fmt"

// AuthenticationError means the OAuth client-credentials exchange with a shop failed.
type AuthenticationError struct {
	ShopURL    string
	APIKey     string
	Reason     string
	StatusCode int
	Err        error
}

func (e *AuthenticationError) Error() string {
	return fmt.Sprintf("authentication against shop %s with key %s failed: %s", e.ShopURL, e.APIKey, e.Reason)
}

func (e *AuthenticationError) Unwrap() error { return e.Err }

// APIError means a business call returned an unexpected status or never got a response.
// StatusCode is zero when the request failed before a response arrived.
type APIError struct {
	ShopURL    string
	Path       string
	StatusCode int
	Body       []byte
	Err        error
}

func (e *APIError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("error occurred while requesting %s from shop %s: %v", e.Path, e.ShopURL, e.Err)
	}
	return fmt.Sprintf("error occurred while requesting %s from shop %s, got status %d and response was %s", e.Path, e.ShopURL, e.StatusCode, string(e.Body))
}

func (e *APIError) Unwrap() error { return e.Err }

// ParseError means a response or request body was not the JSON we expected.
type ParseError struct {
	Source string
	Body   []byte
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("parse %s: unexpected body %s", e.Source, string(e.Body))
	}
	return fmt.Sprintf("parse %s: %v", e.Source, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }
