package orders

const (
	TopicOrderCreated       = "catering.order.created"
	TopicOrderPaid          = "catering.order.paid"
	TopicOrderStatusChanged = "catering.order.status_changed"
)

// TopicFor maps an event type to its topic.
func TopicFor(eventType string) string {
	switch eventType {
	case EventOrderCreated:
		return TopicOrderCreated
	case EventOrderPaid:
		return TopicOrderPaid
	default:
		return TopicOrderStatusChanged
	}
}

// Partition key = order_id so every event of one order stays in order.
func PartitionKey(orderID string) []byte { return []byte(orderID) }
