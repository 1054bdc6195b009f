package relay

import (
	"encoding/json"
	"time"
)

const (
	EventOrderReceived      = "OrderReceived"
	EventHandshakeCompleted = "HandshakeCompleted"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	Payload       json.RawMessage `json:"payload"`
}

type OrderReceivedPayload struct {
	OrderID             string `json:"order_id"`
	OrderNumber         string `json:"order_number"`
	WebsiteRestaurantID string `json:"website_restaurant_id"`
	RestaurantUID       string `json:"restaurant_uid"`
	AmountCents         int    `json:"amount_cents"`
	Currency            string `json:"currency"`
	CallbackURL         string `json:"callback_url,omitempty"`
}

type HandshakeCompletedPayload struct {
	RequestID           string `json:"handshake_request_id"`
	WebsiteRestaurantID string `json:"website_restaurant_id"`
	RestaurantUID       string `json:"restaurant_uid"`
	CallbackURL         string `json:"callback_url,omitempty"`
}
