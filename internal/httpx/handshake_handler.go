package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkax "github.com/kitchenhub/order-relay/internal/kafka"
	"github.com/kitchenhub/order-relay/internal/relay"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

const (
	handshakeRateLimit  = 10
	handshakeRateWindow = time.Hour
)

type HandshakeHandler struct {
	Handshakes HandshakeStore
	Registry   RegistryStore
	Producer   Publisher
	Service    string
	Log        *zap.SugaredLogger
}

type handshakeReq struct {
	WebsiteRestaurantID string `json:"website_restaurant_id"`
	CallbackURL         string `json:"callback_url"`
	WebsiteDomain       string `json:"website_domain,omitempty"`
	TargetRestaurantUID string `json:"target_restaurant_uid,omitempty"`
}

type handshakeResp struct {
	Success               bool   `json:"success"`
	HandshakeRequestID    string `json:"handshake_request_id"`
	Message               string `json:"message"`
	EstimatedResponseTime string `json:"estimated_response_time"`
}

func (h *HandshakeHandler) Register(r *chi.Mux) {
	r.Post("/handshake", h.create)
	r.Get("/handshake/pending", h.listPending)
	r.Get("/handshake/{id}", h.get)
	r.Post("/handshake/{id}/complete", h.complete)
}

func (h *HandshakeHandler) create(w http.ResponseWriter, r *http.Request) {
	var req handshakeReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.WebsiteRestaurantID == "" {
		writeError(w, &relay.ValidationError{Field: "website_restaurant_id"})
		return
	}
	cb, err := parseAbsoluteURL("callback_url", req.CallbackURL)
	if err != nil {
		writeError(w, err)
		return
	}
	domain := req.WebsiteDomain
	if domain == "" {
		domain = cb.Host
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	ip := clientIP(r)
	n, err := h.Handshakes.CountRecentByIP(ctx, ip, time.Now().Add(-handshakeRateWindow))
	if err != nil {
		h.Log.Errorw("rate limit count failed", "ip", ip, "error", err)
		writeError(w, err)
		return
	}
	if n >= handshakeRateLimit {
		h.Log.Warnw("handshake rate limited", "ip", ip, "recent", n)
		writeError(w, &relay.RateLimitError{RetryAfter: handshakeRateWindow})
		return
	}

	// Best-effort target resolution from the most recently handshaken active
	// mapping; no mapping means a broadcast to all available restaurants.
	target := req.TargetRestaurantUID
	if target == "" {
		m, err := h.Registry.ActiveMapping(ctx, req.WebsiteRestaurantID)
		switch {
		case err == nil:
			target = m.RestaurantUID
		case errors.Is(err, relay.ErrMappingNotFound):
			// broadcast
		default:
			writeError(w, err)
			return
		}
	}

	created, err := h.Handshakes.Create(ctx, relay.HandshakeRequest{
		WebsiteRestaurantID: req.WebsiteRestaurantID,
		CallbackURL:         req.CallbackURL,
		WebsiteDomain:       domain,
		TargetRestaurantUID: target,
		RequesterIP:         ip,
		RequesterUserAgent:  r.UserAgent(),
		ExpiresAt:           time.Now().Add(relay.HandshakeTTL),
	})
	if err != nil {
		var ce *relay.ConflictError
		if !errors.As(err, &ce) {
			h.Log.Errorw("handshake insert failed", "website_restaurant_id", req.WebsiteRestaurantID, "error", err)
		}
		writeError(w, err)
		return
	}

	msg := "handshake request broadcast to all available restaurants"
	if target != "" {
		msg = fmt.Sprintf("handshake request sent to restaurant %s", target)
	}
	h.Log.Infow("handshake request created",
		"handshake_request_id", created.ID,
		"website_restaurant_id", req.WebsiteRestaurantID,
		"target_restaurant_uid", target)
	writeJSON(w, http.StatusOK, handshakeResp{
		Success:               true,
		HandshakeRequestID:    created.ID,
		Message:               msg,
		EstimatedResponseTime: "2-5 minutes",
	})
}

func (h *HandshakeHandler) get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	req, err := h.Handshakes.Get(ctx, chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

func (h *HandshakeHandler) listPending(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("restaurant_uid")
	if uid == "" {
		writeError(w, &relay.ValidationError{Field: "restaurant_uid"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	reqs, err := h.Handshakes.ListPendingFor(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if reqs == nil {
		reqs = []relay.HandshakeRequest{}
	}
	writeJSON(w, http.StatusOK, reqs)
}

type completeReq struct {
	RestaurantUID string `json:"restaurant_uid"`
}

func (h *HandshakeHandler) complete(w http.ResponseWriter, r *http.Request) {
	var body completeReq
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if body.RestaurantUID == "" {
		writeError(w, &relay.ValidationError{Field: "restaurant_uid"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	rest, err := h.Registry.Restaurant(ctx, body.RestaurantUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !rest.IsActive {
		writeError(w, relay.ErrRestaurantNotFound)
		return
	}

	req, err := h.Handshakes.Complete(ctx, chi.URLParam(r, "id"), body.RestaurantUID)
	if err != nil {
		writeError(w, err)
		return
	}

	ev := relay.Envelope{
		EventID:       uuid.NewString(),
		EventType:     relay.EventHandshakeCompleted,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: req.ID,
	}
	ev.Payload = kafkax.MustMarshal(relay.HandshakeCompletedPayload{
		RequestID:           req.ID,
		WebsiteRestaurantID: req.WebsiteRestaurantID,
		RestaurantUID:       body.RestaurantUID,
		CallbackURL:         req.CallbackURL,
	})
	h.Producer.Publish(relay.PartitionKey(req.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(relay.EventHandshakeCompleted)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	h.Log.Infow("handshake completed",
		"handshake_request_id", req.ID,
		"website_restaurant_id", req.WebsiteRestaurantID,
		"restaurant_uid", body.RestaurantUID)
	writeJSON(w, http.StatusOK, req)
}
