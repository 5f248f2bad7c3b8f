package models

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusPending    OrderStatus = "PENDING"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusProcessing OrderStatus = "PROCESSING"
	StatusShipping   OrderStatus = "SHIPPING"
	StatusDelivered  OrderStatus = "DELIVERED"
	StatusCompleted  OrderStatus = "COMPLETED"
	StatusPaid       OrderStatus = "PAID"
	StatusFailed     OrderStatus = "FAILED"
	StatusRefunded   OrderStatus = "REFUNDED"
	StatusCanceled   OrderStatus = "CANCELED"
)

// PaymentStatus is the settlement state of a single payment row.
type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentFailed  PaymentStatus = "FAILED"
)

// PaymentProvider identifies the channel a payment is settled through.
type PaymentProvider string

const (
	ProviderGateway      PaymentProvider = "GATEWAY"
	ProviderCOD          PaymentProvider = "COD"
	ProviderBankTransfer PaymentProvider = "BANK_TRANSFER"
	ProviderOther        PaymentProvider = "OTHER"
)

// ActorSystem attributes automated transitions in the status history.
const ActorSystem = "SYSTEM"
