package enums

// OutboxEventType identifies the domain event written to the outbox.
type OutboxEventType string

const (
	EventPaymentInitiated     OutboxEventType = "payment.initiated"
	EventPaymentReleased      OutboxEventType = "payment.released"
	EventPaymentRefunded      OutboxEventType = "payment.refunded"
	EventWalletTransfer       OutboxEventType = "wallet.transfer"
	EventCouponApplied        OutboxEventType = "coupon.applied"
	EventOrderModified        OutboxEventType = "order.modified"
	EventFulfillmentShipped   OutboxEventType = "fulfillment.shipped"
	EventFulfillmentDelivered OutboxEventType = "fulfillment.delivered"
	EventOrderDelivered       OutboxEventType = "order.delivered"
)

// OutboxAggregateType names the aggregate an outbox event belongs to.
type OutboxAggregateType string

const (
	AggregateOrder       OutboxAggregateType = "order"
	AggregatePayment     OutboxAggregateType = "payment"
	AggregateWallet      OutboxAggregateType = "wallet"
	AggregateFulfillment OutboxAggregateType = "fulfillment"
)
