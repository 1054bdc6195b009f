package relay

import "time"

type RegisteredRestaurant struct {
	UID                 string    `json:"app_restaurant_uid"`
	WebsiteRestaurantID string    `json:"website_restaurant_id"`
	Name                string    `json:"restaurant_name"`
	Phone               string    `json:"restaurant_phone"`
	Email               string    `json:"restaurant_email"`
	Address             string    `json:"restaurant_address"`
	CallbackURL         string    `json:"callback_url"`
	IsActive            bool      `json:"is_active"`
	CreatedAt           time.Time `json:"created_at"`
	UpdatedAt           time.Time `json:"updated_at"`
}

// RestaurantMapping binds a website's restaurant id to the internal uid.
// At most one row per website_restaurant_id may be active (partial unique index).
type RestaurantMapping struct {
	ID                  int64     `json:"id"`
	WebsiteRestaurantID string    `json:"website_restaurant_id"`
	RestaurantUID       string    `json:"app_restaurant_uid"`
	IsActive            bool      `json:"is_active"`
	CallbackURL         string    `json:"callback_url"`
	HandshakeRequestID  *string   `json:"handshake_request_id,omitempty"`
	LastHandshake       time.Time `json:"last_handshake"`
	CreatedAt           time.Time `json:"created_at"`
}

type HandshakeRequest struct {
	ID                  string          `json:"id"`
	WebsiteRestaurantID string          `json:"website_restaurant_id"`
	CallbackURL         string          `json:"callback_url"`
	WebsiteDomain       string          `json:"website_domain"`
	Status              HandshakeStatus `json:"status"`
	TargetRestaurantUID string          `json:"target_restaurant_uid,omitempty"` // empty = broadcast
	RequesterIP         string          `json:"requester_ip"`
	RequesterUserAgent  string          `json:"requester_user_agent"`
	CreatedAt           time.Time       `json:"created_at"`
	ExpiresAt           time.Time       `json:"expires_at"`
}

type OrderItem struct {
	Name           string   `json:"name"`
	Qty            int      `json:"qty"`
	PriceCents     int      `json:"price_cents"`
	Customizations []string `json:"customizations,omitempty"`
}

type Customer struct {
	Name    string `json:"name"`
	Phone   string `json:"phone"`
	Email   string `json:"email,omitempty"`
	Address string `json:"address,omitempty"`
}

type Order struct {
	ID                  string      `json:"order_id"`
	OrderNumber         string      `json:"order_number"`
	AmountCents         int         `json:"amount_cents"`
	AmountDisplay       string      `json:"amount_display"`
	Currency            string      `json:"currency"`
	Status              OrderStatus `json:"status"`
	Items               []OrderItem `json:"items"`
	Customer            Customer    `json:"customer"`
	RestaurantUID       string      `json:"restaurant_uid"`
	WebsiteRestaurantID string      `json:"website_restaurant_id"`
	CallbackURL         string      `json:"callback_url,omitempty"`
	IdempotencyKey      string      `json:"idempotency_key"`
	CreatedAt           time.Time   `json:"created_at"`
	UpdatedAt           time.Time   `json:"updated_at"`
}

type RegistrationInput struct {
	WebsiteRestaurantID string
	Name                string
	Phone               string
	Email               string
	Address             string
	CallbackURL         string
}
