package relay

import "time"

type HandshakeStatus string

const (
	HandshakePending   HandshakeStatus = "pending"
	HandshakeCompleted HandshakeStatus = "completed"
	HandshakeExpired   HandshakeStatus = "expired"
	HandshakeRejected  HandshakeStatus = "rejected"
)

// HandshakeTTL is how long a pending request stays answerable.
const HandshakeTTL = 10 * time.Minute

func (s HandshakeStatus) Terminal() bool {
	return s == HandshakeCompleted || s == HandshakeExpired || s == HandshakeRejected
}

// EffectiveStatus applies lazy expiry: a pending row past expires_at reads as
// expired regardless of the stored status. No background sweep is required.
func EffectiveStatus(s HandshakeStatus, expiresAt, now time.Time) HandshakeStatus {
	if s == HandshakePending && !now.Before(expiresAt) {
		return HandshakeExpired
	}
	return s
}

type OrderStatus string

const (
	OrderPending   OrderStatus = "pending"
	OrderApproved  OrderStatus = "approved"
	OrderCancelled OrderStatus = "cancelled"
	OrderCompleted OrderStatus = "completed"
)

var validNext = map[OrderStatus]map[OrderStatus]bool{
	OrderPending:   {OrderApproved: true, OrderCancelled: true},
	OrderApproved:  {OrderCompleted: true, OrderCancelled: true},
	OrderCancelled: {},
	OrderCompleted: {},
}

func CanTransition(from, to OrderStatus) bool {
	return validNext[from][to]
}
