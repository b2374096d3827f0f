package payloads

import "github.com/google/uuid"

// OrderPlacedEvent drives the best-effort cart cleanup after checkout commits.
type OrderPlacedEvent struct {
	OrderID    uuid.UUID   `json:"orderId"`
	CustomerID uuid.UUID   `json:"customerId"`
	VariantIDs []uuid.UUID `json:"variantIds"`
}

// OrderPaidEvent records a verified gateway callback.
type OrderPaidEvent struct {
	OrderID uuid.UUID `json:"orderId"`
	TxnRef  string    `json:"txnRef"`
}
