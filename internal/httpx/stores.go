package httpx

import (
	"context"
	"time"

	"github.com/kitchenhub/order-relay/internal/relay"
	"github.com/segmentio/kafka-go"
)

type RegistryStore interface {
	Register(ctx context.Context, in relay.RegistrationInput) (relay.RegisteredRestaurant, error)
	Restaurant(ctx context.Context, uid string) (relay.RegisteredRestaurant, error)
	ActiveMapping(ctx context.Context, websiteID string) (relay.RestaurantMapping, error)
}

type HandshakeStore interface {
	CountRecentByIP(ctx context.Context, ip string, since time.Time) (int, error)
	Create(ctx context.Context, req relay.HandshakeRequest) (relay.HandshakeRequest, error)
	Get(ctx context.Context, id string) (relay.HandshakeRequest, error)
	ListPendingFor(ctx context.Context, restaurantUID string) ([]relay.HandshakeRequest, error)
	Complete(ctx context.Context, id, restaurantUID string) (relay.HandshakeRequest, error)
}

type OrderStore interface {
	Create(ctx context.Context, o relay.Order) (relay.Order, bool, error)
	Get(ctx context.Context, id string) (relay.Order, error)
	ListByRestaurant(ctx context.Context, restaurantUID string) ([]relay.Order, error)
	UpdateStatus(ctx context.Context, id string, to relay.OrderStatus) (relay.Order, error)
}

type Publisher interface {
	Publish(key, value []byte, headers ...kafka.Header)
}
