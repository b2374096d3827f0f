package enums

type OutboxEventType string

const (
	EventOrderPlaced OutboxEventType = "order.placed"
	EventOrderPaid   OutboxEventType = "order.paid"
)

type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
)

type OutboxStatus string

const (
	OutboxStatusPending   OutboxStatus = "pending"
	OutboxStatusPublished OutboxStatus = "published"
	OutboxStatusFailed    OutboxStatus = "failed"
)
