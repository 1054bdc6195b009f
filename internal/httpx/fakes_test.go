package httpx

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kitchenhub/order-relay/internal/relay"
	kafkago "github.com/segmentio/kafka-go"
)

// In-memory stores mirroring the repo contracts, so handler tests can run the
// full register -> handshake -> relay flow without a database.

type fakeRegistry struct {
	mu          sync.Mutex
	restaurants map[string]relay.RegisteredRestaurant
	mappings    []relay.RestaurantMapping
	registerErr error
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{restaurants: map[string]relay.RegisteredRestaurant{}}
}

func (f *fakeRegistry) Register(_ context.Context, in relay.RegistrationInput) (relay.RegisteredRestaurant, error) {
	if f.registerErr != nil {
		return relay.RegisteredRestaurant{}, f.registerErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	rest := relay.RegisteredRestaurant{
		UID:                 uuid.NewString(),
		WebsiteRestaurantID: in.WebsiteRestaurantID,
		Name:                in.Name,
		Phone:               in.Phone,
		Email:               in.Email,
		Address:             in.Address,
		CallbackURL:         in.CallbackURL,
		IsActive:            true,
		CreatedAt:           now,
		UpdatedAt:           now,
	}
	f.restaurants[rest.UID] = rest
	f.activateMapping(in.WebsiteRestaurantID, rest.UID, in.CallbackURL, nil)
	return rest, nil
}

func (f *fakeRegistry) activateMapping(websiteID, uid, callbackURL string, handshakeID *string) {
	for i := range f.mappings {
		if f.mappings[i].WebsiteRestaurantID == websiteID {
			f.mappings[i].IsActive = false
		}
	}
	f.mappings = append(f.mappings, relay.RestaurantMapping{
		ID:                  int64(len(f.mappings) + 1),
		WebsiteRestaurantID: websiteID,
		RestaurantUID:       uid,
		IsActive:            true,
		CallbackURL:         callbackURL,
		HandshakeRequestID:  handshakeID,
		LastHandshake:       time.Now(),
		CreatedAt:           time.Now(),
	})
}

func (f *fakeRegistry) Restaurant(_ context.Context, uid string) (relay.RegisteredRestaurant, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	rest, ok := f.restaurants[uid]
	if !ok {
		return relay.RegisteredRestaurant{}, relay.ErrRestaurantNotFound
	}
	return rest, nil
}

func (f *fakeRegistry) ActiveMapping(_ context.Context, websiteID string) (relay.RestaurantMapping, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.mappings) - 1; i >= 0; i-- {
		m := f.mappings[i]
		if m.WebsiteRestaurantID == websiteID && m.IsActive {
			return m, nil
		}
	}
	return relay.RestaurantMapping{}, relay.ErrMappingNotFound
}

type fakeHandshakes struct {
	mu       sync.Mutex
	registry *fakeRegistry
	requests map[string]*relay.HandshakeRequest
	countErr error
}

func newFakeHandshakes(reg *fakeRegistry) *fakeHandshakes {
	return &fakeHandshakes{registry: reg, requests: map[string]*relay.HandshakeRequest{}}
}

func (f *fakeHandshakes) CountRecentByIP(_ context.Context, ip string, since time.Time) (int, error) {
	if f.countErr != nil {
		return 0, f.countErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.requests {
		if r.RequesterIP == ip && r.CreatedAt.After(since) {
			n++
		}
	}
	return n, nil
}

func (f *fakeHandshakes) Create(_ context.Context, req relay.HandshakeRequest) (relay.HandshakeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	for _, r := range f.requests {
		if r.WebsiteRestaurantID == req.WebsiteRestaurantID &&
			relay.EffectiveStatus(r.Status, r.ExpiresAt, now) == relay.HandshakePending {
			return relay.HandshakeRequest{}, &relay.ConflictError{RequestID: r.ID}
		}
	}
	req.ID = uuid.NewString()
	req.Status = relay.HandshakePending
	req.CreatedAt = now
	stored := req
	f.requests[req.ID] = &stored
	return req, nil
}

func (f *fakeHandshakes) Get(_ context.Context, id string) (relay.HandshakeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.requests[id]
	if !ok {
		return relay.HandshakeRequest{}, relay.ErrRequestNotFound
	}
	out := *r
	out.Status = relay.EffectiveStatus(out.Status, out.ExpiresAt, time.Now())
	return out, nil
}

func (f *fakeHandshakes) ListPendingFor(_ context.Context, restaurantUID string) ([]relay.HandshakeRequest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	now := time.Now()
	var out []relay.HandshakeRequest
	for _, r := range f.requests {
		if relay.EffectiveStatus(r.Status, r.ExpiresAt, now) != relay.HandshakePending {
			continue
		}
		if r.TargetRestaurantUID == "" || r.TargetRestaurantUID == restaurantUID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeHandshakes) Complete(_ context.Context, id, restaurantUID string) (relay.HandshakeRequest, error) {
	f.mu.Lock()
	r, ok := f.requests[id]
	if !ok {
		f.mu.Unlock()
		return relay.HandshakeRequest{}, relay.ErrRequestNotFound
	}
	if relay.EffectiveStatus(r.Status, r.ExpiresAt, time.Now()) != relay.HandshakePending {
		f.mu.Unlock()
		return relay.HandshakeRequest{}, relay.ErrTerminalState
	}
	r.Status = relay.HandshakeCompleted
	r.TargetRestaurantUID = restaurantUID
	out := *r
	f.mu.Unlock()

	f.registry.mu.Lock()
	f.registry.activateMapping(r.WebsiteRestaurantID, restaurantUID, r.CallbackURL, &r.ID)
	f.registry.mu.Unlock()
	return out, nil
}

type fakeOrders struct {
	mu        sync.Mutex
	byKey     map[string]relay.Order
	byID      map[string]relay.Order
	createErr error
}

func newFakeOrders() *fakeOrders {
	return &fakeOrders{byKey: map[string]relay.Order{}, byID: map[string]relay.Order{}}
}

func (f *fakeOrders) Create(_ context.Context, o relay.Order) (relay.Order, bool, error) {
	if f.createErr != nil {
		return relay.Order{}, false, f.createErr
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if existing, ok := f.byKey[o.IdempotencyKey]; ok {
		return existing, true, nil
	}
	o.ID = uuid.NewString()
	o.Status = relay.OrderPending
	o.CreatedAt = time.Now()
	o.UpdatedAt = o.CreatedAt
	f.byKey[o.IdempotencyKey] = o
	f.byID[o.ID] = o
	return o, false, nil
}

func (f *fakeOrders) Get(_ context.Context, id string) (relay.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return relay.Order{}, relay.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrders) ListByRestaurant(_ context.Context, restaurantUID string) ([]relay.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []relay.Order
	for _, o := range f.byID {
		if o.RestaurantUID == restaurantUID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (f *fakeOrders) UpdateStatus(_ context.Context, id string, to relay.OrderStatus) (relay.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.byID[id]
	if !ok {
		return relay.Order{}, relay.ErrOrderNotFound
	}
	if !relay.CanTransition(o.Status, to) {
		return relay.Order{}, relay.ErrBadTransition
	}
	o.Status = to
	o.UpdatedAt = time.Now()
	f.byID[id] = o
	f.byKey[o.IdempotencyKey] = o
	return o, nil
}

type capturePublisher struct {
	mu   sync.Mutex
	msgs []kafkago.Message
}

func (p *capturePublisher) Publish(key, value []byte, headers ...kafkago.Header) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.msgs = append(p.msgs, kafkago.Message{Key: key, Value: value, Headers: headers})
}

func (p *capturePublisher) count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.msgs)
}
