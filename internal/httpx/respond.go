package httpx

import (
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"net/url"
	"strconv"

	"github.com/kitchenhub/order-relay/internal/relay"
)

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the relay error taxonomy onto HTTP once, so handlers never
// hand-pick status codes.
func writeError(w http.ResponseWriter, err error) {
	var ve *relay.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": ve.Error(), "field": ve.Field})
		return
	}
	var ce *relay.ConflictError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, map[string]string{
			"error":                ce.Error(),
			"handshake_request_id": ce.RequestID,
		})
		return
	}
	var rl *relay.RateLimitError
	if errors.As(err, &rl) {
		w.Header().Set("Retry-After", strconv.Itoa(int(rl.RetryAfter.Seconds())))
		writeJSON(w, http.StatusTooManyRequests, map[string]string{"error": rl.Error()})
		return
	}

	switch {
	case errors.Is(err, relay.ErrMappingNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{
			"error": "no active mapping for this website_restaurant_id; complete a handshake first",
		})
	case errors.Is(err, relay.ErrRestaurantNotFound),
		errors.Is(err, relay.ErrRequestNotFound),
		errors.Is(err, relay.ErrOrderNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, relay.ErrMappingMismatch):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, relay.ErrTerminalState), errors.Is(err, relay.ErrBadTransition):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
	}
}

// parseAbsoluteURL accepts only http(s) URLs with a host.
func parseAbsoluteURL(field, raw string) (*url.URL, error) {
	if raw == "" {
		return nil, &relay.ValidationError{Field: field}
	}
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, &relay.ValidationError{Field: field, Reason: "must be an absolute http(s) URL"}
	}
	return u, nil
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
