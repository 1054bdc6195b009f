package relay

const (
	TopicOrderReceived      = "relay.order.received"
	TopicHandshakeCompleted = "relay.handshake.completed"
)

// Partition key = order/request id, so events for one aggregate keep their order.
func PartitionKey(id string) []byte { return []byte(id) }
