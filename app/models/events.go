package models

// Provider events are normalized once at the ingestion boundary into one of
// the variants below. Downstream code never inspects raw payload shapes.

type CheckoutCompleted struct {
	SessionID      string
	UserID         string
	PaymentStatus  string
	CustomerID     string
	SubscriptionID string
	CustomerEmail  string
}

type SubscriptionCreated struct {
	SubscriptionID string
	CustomerID     string
	UserID         string
}

type SubscriptionUpdated struct {
	SubscriptionID    string
	CustomerID        string
	CancelAtPeriodEnd bool
}

type SubscriptionDeleted struct {
	SubscriptionID string
	CustomerID     string
	UserID         string
}
