package httpx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	kafkax "github.com/kitchenhub/order-relay/internal/kafka"
	"github.com/kitchenhub/order-relay/internal/redisx"
	"github.com/kitchenhub/order-relay/internal/relay"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type OrdersHandler struct {
	Orders   OrderStore
	Registry RegistryStore
	Producer Publisher
	Redis    *redis.Client
	Service  string
	Log      *zap.SugaredLogger
}

type receiveOrderReq struct {
	WebsiteRestaurantID string            `json:"website_restaurant_id"`
	AppRestaurantUID    string            `json:"app_restaurant_uid,omitempty"`
	OrderNumber         string            `json:"orderNumber"`
	Amount              float64           `json:"amount"`
	AmountDisplay       string            `json:"amountDisplay,omitempty"`
	Currency            string            `json:"currency"`
	Items               []relay.OrderItem `json:"items"`
	User                relay.Customer    `json:"user"`
	CallbackURL         string            `json:"callback_url,omitempty"`
	IdempotencyKey      string            `json:"idempotency_key"`
}

type receiveOrderResp struct {
	OrderID       string            `json:"order_id"`
	OrderNumber   string            `json:"order_number"`
	RestaurantUID string            `json:"restaurant_uid"`
	Status        relay.OrderStatus `json:"status"`
	Idempotent    bool              `json:"idempotent"`
}

func (h *OrdersHandler) Register(r *chi.Mux) {
	r.Post("/orders/receive", h.receive)
	r.Get("/orders", h.list)
	r.Get("/orders/{id}", h.get)
	r.Patch("/orders/{id}/status", h.updateStatus)
}

func (h *OrdersHandler) receive(w http.ResponseWriter, r *http.Request) {
	var req receiveOrderReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	switch {
	case req.WebsiteRestaurantID == "":
		writeError(w, &relay.ValidationError{Field: "website_restaurant_id"})
		return
	case req.OrderNumber == "":
		writeError(w, &relay.ValidationError{Field: "orderNumber"})
		return
	case req.IdempotencyKey == "":
		writeError(w, &relay.ValidationError{Field: "idempotency_key"})
		return
	case len(req.Items) == 0:
		writeError(w, &relay.ValidationError{Field: "items", Reason: "must not be empty"})
		return
	}
	if req.CallbackURL != "" {
		if _, err := parseAbsoluteURL("callback_url", req.CallbackURL); err != nil {
			writeError(w, err)
			return
		}
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	// Resolve the internal uid through the active mapping. A caller-asserted
	// uid is not trusted on its own: it must match the active mapping.
	mapping, err := h.Registry.ActiveMapping(ctx, req.WebsiteRestaurantID)
	if req.AppRestaurantUID != "" {
		if err != nil || mapping.RestaurantUID != req.AppRestaurantUID {
			if err != nil && !errors.Is(err, relay.ErrMappingNotFound) {
				writeError(w, err)
				return
			}
			writeError(w, relay.ErrMappingMismatch)
			return
		}
	} else if err != nil {
		writeError(w, err)
		return
	}

	rest, err := h.Registry.Restaurant(ctx, mapping.RestaurantUID)
	if err != nil {
		writeError(w, err)
		return
	}
	if !rest.IsActive {
		writeError(w, relay.ErrRestaurantNotFound)
		return
	}

	// Redis fast-path; the DB unique constraint stays the source of truth.
	idemKey := fmt.Sprintf(redisx.KeyIdemOrderReceive, req.IdempotencyKey)
	if ok, _ := redisx.Exists(ctx, h.Redis, idemKey); ok {
		h.Log.Debugw("idempotency fast-path hit", "idempotency_key", req.IdempotencyKey)
	}

	amountCents := int(math.Round(req.Amount * 100))
	display := req.AmountDisplay
	if display == "" {
		display = fmt.Sprintf("%.2f %s", req.Amount, req.Currency)
	}

	o, existed, err := h.Orders.Create(ctx, relay.Order{
		OrderNumber:         req.OrderNumber,
		AmountCents:         amountCents,
		AmountDisplay:       display,
		Currency:            req.Currency,
		Items:               req.Items,
		Customer:            req.User,
		RestaurantUID:       mapping.RestaurantUID,
		WebsiteRestaurantID: req.WebsiteRestaurantID,
		CallbackURL:         req.CallbackURL,
		IdempotencyKey:      req.IdempotencyKey,
	})
	if err != nil {
		h.Log.Errorw("order insert failed", "order_number", req.OrderNumber, "error", err)
		writeError(w, err)
		return
	}

	_ = h.Redis.Set(ctx, idemKey, o.ID, redisx.TTLIdempotency).Err()
	statusKey := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, statusKey, fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache).Err()

	resp := receiveOrderResp{
		OrderID:       o.ID,
		OrderNumber:   o.OrderNumber,
		RestaurantUID: o.RestaurantUID,
		Status:        o.Status,
		Idempotent:    existed,
	}
	if existed {
		// duplicate submission is a success, not an error
		writeJSON(w, http.StatusOK, resp)
		return
	}

	ev := relay.Envelope{
		EventID:       uuid.NewString(),
		EventType:     relay.EventOrderReceived,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      h.Service,
		TraceID:       r.Header.Get("X-Request-Id"),
		CorrelationID: o.ID,
	}
	ev.Payload = kafkax.MustMarshal(relay.OrderReceivedPayload{
		OrderID:             o.ID,
		OrderNumber:         o.OrderNumber,
		WebsiteRestaurantID: o.WebsiteRestaurantID,
		RestaurantUID:       o.RestaurantUID,
		AmountCents:         o.AmountCents,
		Currency:            o.Currency,
		CallbackURL:         o.CallbackURL,
	})
	h.Producer.Publish(relay.PartitionKey(o.ID), kafkax.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(relay.EventOrderReceived)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)

	h.Log.Infow("order relayed",
		"order_id", o.ID,
		"order_number", o.OrderNumber,
		"restaurant_uid", o.RestaurantUID,
		"website_restaurant_id", o.WebsiteRestaurantID)
	writeJSON(w, http.StatusCreated, resp)
}

func (h *OrdersHandler) list(w http.ResponseWriter, r *http.Request) {
	uid := r.URL.Query().Get("restaurant_uid")
	if uid == "" {
		writeError(w, &relay.ValidationError{Field: "restaurant_uid"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	os, err := h.Orders.ListByRestaurant(ctx, uid)
	if err != nil {
		writeError(w, err)
		return
	}
	if os == nil {
		os = []relay.Order{}
	}
	writeJSON(w, http.StatusOK, os)
}

func (h *OrdersHandler) get(w http.ResponseWriter, r *http.Request) {
	orderID := chi.URLParam(r, "id")

	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	key := fmt.Sprintf(redisx.KeyOrderStatus, orderID)
	if s, err := h.Redis.Get(ctx, key).Result(); err == nil && s != "" {
		writeJSON(w, http.StatusOK, json.RawMessage(s))
		return
	}

	o, err := h.Orders.Get(ctx, orderID)
	if err != nil {
		writeError(w, err)
		return
	}
	// same status-only shape as the cache-hit path
	b, _ := json.Marshal(map[string]any{"status": o.Status})
	_ = h.Redis.Set(ctx, key, b, redisx.TTLStatusCache).Err()
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(b)
}

type updateStatusReq struct {
	Status relay.OrderStatus `json:"status"`
}

func (h *OrdersHandler) updateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if req.Status == "" {
		writeError(w, &relay.ValidationError{Field: "status"})
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	o, err := h.Orders.UpdateStatus(ctx, chi.URLParam(r, "id"), req.Status)
	if err != nil {
		writeError(w, err)
		return
	}

	key := fmt.Sprintf(redisx.KeyOrderStatus, o.ID)
	_ = h.Redis.Set(ctx, key, fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache).Err()

	h.Log.Infow("order status updated", "order_id", o.ID, "status", o.Status)
	writeJSON(w, http.StatusOK, o)
}
