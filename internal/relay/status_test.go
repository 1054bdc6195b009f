package relay

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestOrderTransitions(t *testing.T) {
	assert.True(t, CanTransition(OrderPending, OrderApproved))
	assert.True(t, CanTransition(OrderPending, OrderCancelled))
	assert.True(t, CanTransition(OrderApproved, OrderCompleted))
	assert.True(t, CanTransition(OrderApproved, OrderCancelled))

	// terminal states never move
	assert.False(t, CanTransition(OrderCompleted, OrderApproved))
	assert.False(t, CanTransition(OrderCancelled, OrderPending))

	// no skipping straight to completed
	assert.False(t, CanTransition(OrderPending, OrderCompleted))
}

func TestEffectiveStatusLazyExpiry(t *testing.T) {
	now := time.Now()

	assert.Equal(t, HandshakePending, EffectiveStatus(HandshakePending, now.Add(time.Minute), now))
	assert.Equal(t, HandshakeExpired, EffectiveStatus(HandshakePending, now.Add(-time.Second), now))
	assert.Equal(t, HandshakeExpired, EffectiveStatus(HandshakePending, now, now))

	// terminal states are untouched even past expiry
	assert.Equal(t, HandshakeCompleted, EffectiveStatus(HandshakeCompleted, now.Add(-time.Hour), now))
	assert.Equal(t, HandshakeRejected, EffectiveStatus(HandshakeRejected, now.Add(-time.Hour), now))
}

func TestHandshakeTerminal(t *testing.T) {
	assert.False(t, HandshakePending.Terminal())
	assert.True(t, HandshakeCompleted.Terminal())
	assert.True(t, HandshakeExpired.Terminal())
	assert.True(t, HandshakeRejected.Terminal())
}
