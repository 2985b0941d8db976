package events

// Topic constants for domain events emitted by the platform.
const (
	TopicOrderCreated   = "order.created"
	TopicOrderUpdated   = "order.updated"
	TopicPaymentUpdated = "payment.updated"
	TopicPaymentDue     = "payment.due"
)

// DefaultTopics returns the canonical list of topics.
func DefaultTopics() []string {
	return []string{
		TopicOrderCreated,
		TopicOrderUpdated,
		TopicPaymentUpdated,
		TopicPaymentDue,
	}
}
