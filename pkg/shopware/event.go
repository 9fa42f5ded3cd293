package shopware

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
)

// Event is a signed callback from a shop: lifecycle events, webhooks and action buttons.
// Only build one after the request signature has been verified.
type Event struct {
	ShopURL    string
	ShopID     string
	AppVersion int
	Timestamp  int64
	Data       json.RawMessage
}

// Source is the "source" block every signed POST carries.
type Source struct {
	URL        string          `json:"url"`
	ShopID     string          `json:"shopId"`
	AppVersion json.RawMessage `json:"appVersion"`
}

type envelope struct {
	Source *Source          `json:"source"`
	Data   json.RawMessage  `json:"data"`
	Meta   *json.RawMessage `json:"meta"`
}

type meta struct {
	Timestamp int64 `json:"timestamp"`
}

// PeekSource reads the source block of a POST body so the shop secret can be
// looked up before the signature is checked. Nothing in it is trusted yet.
func PeekSource(body []byte) (Source, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Source{}, &ParseError{Source: "request body", Body: body, Err: err}
	}
	if env.Source == nil || env.Source.ShopID == "" || env.Source.URL == "" {
		return Source{}, &ParseError{Source: "request body source", Body: body}
	}
	return *env.Source, nil
}

// ParseEvent builds an Event from a verified POST body. source.url, source.shopId,
// source.appVersion and data are required.
func ParseEvent(body []byte) (Event, error) {
	var env envelope
	if err := json.Unmarshal(body, &env); err != nil {
		return Event{}, &ParseError{Source: "event", Body: body, Err: err}
	}
	if env.Source == nil || env.Source.URL == "" || env.Source.ShopID == "" || len(env.Source.AppVersion) == 0 || len(env.Data) == 0 {
		return Event{}, &ParseError{Source: "event", Body: body}
	}

	ev := Event{
		ShopURL:    env.Source.URL,
		ShopID:     env.Source.ShopID,
		AppVersion: parseAppVersion(env.Source.AppVersion),
		Data:       env.Data,
	}
	if env.Meta != nil {
		var m meta
		if err := json.Unmarshal(*env.Meta, &m); err == nil {
			ev.Timestamp = m.Timestamp
		}
	}
	return ev, nil
}

// parseAppVersion accepts a number or a version string and keeps the leading
// integer, so "2.1.0" becomes 2.
func parseAppVersion(raw json.RawMessage) int {
	raw = bytes.TrimSpace(raw)
	var s string
	if err := json.Unmarshal(raw, &s); err != nil {
		s = string(raw)
	}
	s = strings.TrimSpace(s)
	end := 0
	for end < len(s) && s[end] >= '0' && s[end] <= '9' {
		end++
	}
	n, err := strconv.Atoi(s[:end])
	if err != nil {
		return 0
	}
	return n
}

// Decode unmarshals the event data into v.
func (e Event) Decode(v any) error {
	if err := json.Unmarshal(e.Data, v); err != nil {
		return &ParseError{Source: "event data", Body: e.Data, Err: err}
	}
	return nil
}
