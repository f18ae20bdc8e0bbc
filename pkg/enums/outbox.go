package enums

import "slices"

// OutboxAggregateType mirrors the aggregate_type column check.
type OutboxAggregateType string

const (
	AggregateOrder OutboxAggregateType = "order"
	AggregateCard  OutboxAggregateType = "card"
)

func (a OutboxAggregateType) IsValid() bool {
	return a == AggregateOrder || a == AggregateCard
}

// OutboxEventType doubles as the Kafka event_type header.
type OutboxEventType string

const (
	EventOrderCreated   OutboxEventType = "order.created"
	EventOrderPaid      OutboxEventType = "order.paid"
	EventOrderApproved  OutboxEventType = "order.approved"
	EventOrderShipped   OutboxEventType = "order.shipped"
	EventOrderDelivered OutboxEventType = "order.delivered"
	EventOrderCancelled OutboxEventType = "order.cancelled"
	EventCardActivated  OutboxEventType = "card.activated"
)

var outboxEventTypes = []OutboxEventType{
	EventOrderCreated, EventOrderPaid, EventOrderApproved, EventOrderShipped,
	EventOrderDelivered, EventOrderCancelled, EventCardActivated,
}

func (e OutboxEventType) IsValid() bool {
	return slices.Contains(outboxEventTypes, e)
}
