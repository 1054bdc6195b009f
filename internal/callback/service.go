package callback

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	kafkax "github.com/kitchenhub/order-relay/internal/kafka"
	"github.com/kitchenhub/order-relay/internal/redisx"
	"github.com/kitchenhub/order-relay/internal/relay"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

// Service delivers relay events to the website's callback_url. Delivery is
// best-effort: the store is authoritative, so a callback that keeps failing is
// logged and the offset committed rather than poisoning the partition.
type Service struct {
	Redis       *redis.Client
	HTTP        *http.Client
	Log         *zap.SugaredLogger
	MaxAttempts int
}

type notification struct {
	Event               string `json:"event"`
	OrderID             string `json:"order_id,omitempty"`
	OrderNumber         string `json:"order_number,omitempty"`
	HandshakeRequestID  string `json:"handshake_request_id,omitempty"`
	WebsiteRestaurantID string `json:"website_restaurant_id"`
	RestaurantUID       string `json:"restaurant_uid"`
	AmountCents         int    `json:"amount_cents,omitempty"`
	Currency            string `json:"currency,omitempty"`
}

// HandleOrderReceived is wired as the consumer handler for relay.order.received.
func (s *Service) HandleOrderReceived(ctx context.Context, m kafkago.Message) error {
	var env relay.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != relay.EventOrderReceived {
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil || dup {
		return err
	}

	p, err := kafkax.UnwrapPayload[relay.OrderReceivedPayload](env.Payload)
	if err != nil {
		return err
	}
	if p.CallbackURL == "" {
		return nil
	}

	s.deliver(ctx, p.CallbackURL, notification{
		Event:               "order.received",
		OrderID:             p.OrderID,
		OrderNumber:         p.OrderNumber,
		WebsiteRestaurantID: p.WebsiteRestaurantID,
		RestaurantUID:       p.RestaurantUID,
		AmountCents:         p.AmountCents,
		Currency:            p.Currency,
	})
	return nil
}

// HandleHandshakeCompleted is wired for relay.handshake.completed.
func (s *Service) HandleHandshakeCompleted(ctx context.Context, m kafkago.Message) error {
	var env relay.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.EventType != relay.EventHandshakeCompleted {
		return nil
	}
	if dup, err := s.seen(ctx, env.EventID); err != nil || dup {
		return err
	}

	p, err := kafkax.UnwrapPayload[relay.HandshakeCompletedPayload](env.Payload)
	if err != nil {
		return err
	}
	if p.CallbackURL == "" {
		return nil
	}

	s.deliver(ctx, p.CallbackURL, notification{
		Event:               "handshake.completed",
		HandshakeRequestID:  p.RequestID,
		WebsiteRestaurantID: p.WebsiteRestaurantID,
		RestaurantUID:       p.RestaurantUID,
	})
	return nil
}

func (s *Service) seen(ctx context.Context, eventID string) (bool, error) {
	dkey := fmt.Sprintf(redisx.KeyDedup, "callback", eventID)
	exists, err := redisx.Exists(ctx, s.Redis, dkey)
	if err != nil {
		return false, err
	}
	if exists {
		return true, nil
	}
	_ = s.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	return false, nil
}

func (s *Service) deliver(ctx context.Context, url string, n notification) {
	body, err := json.Marshal(n)
	if err != nil {
		s.Log.Errorw("marshal notification", "error", err)
		return
	}

	attempts := s.MaxAttempts
	if attempts <= 0 {
		attempts = 3
	}
	for i := 1; i <= attempts; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
		if err != nil {
			s.Log.Errorw("build callback request", "url", url, "error", err)
			return
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := s.HTTP.Do(req)
		if err == nil {
			code := resp.StatusCode
			resp.Body.Close()
			if code >= 200 && code < 300 {
				s.Log.Infow("callback delivered", "url", url, "event", n.Event, "attempt", i)
				return
			}
			s.Log.Warnw("callback rejected", "url", url, "status", code, "attempt", i)
		} else {
			s.Log.Warnw("callback attempt failed", "url", url, "attempt", i, "error", err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(time.Duration(i) * 500 * time.Millisecond):
		}
	}
	s.Log.Errorw("callback delivery gave up", "url", url, "event", n.Event, "attempts", attempts)
}
