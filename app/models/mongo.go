package models

// FreeTierLimit is the number of documents (and, separately, transcripts)
// a non-pro user may process.
const FreeTierLimit = 3

type MongoUser struct {
	ID               string `bson:"_id"`
	Email            string `bson:"email,omitempty"`
	StripeCustomerId string `bson:"stripe_customer_id,omitempty"`
	IsPro            bool   `bson:"is_pro"`
	DocumentCount    int64  `bson:"document_count"`
	TranscriptCount  int64  `bson:"transcript_count"`
	UpdatedAt        string `bson:"updated_at"`
}

// UsageCounter names a counter field on the user document.
type UsageCounter string

const (
	DocumentCounter   UsageCounter = "document_count"
	TranscriptCounter UsageCounter = "transcript_count"
)

// MongoSubscriptionRecord mirrors provider subscription state for analytics,
// one document per provider subscription id.
type MongoSubscriptionRecord struct {
	ID                 string  `bson:"_id"`
	UserID             string  `bson:"user_id"`
	StripeCustomerId   string  `bson:"stripe_customer_id"`
	StripePriceId      string  `bson:"stripe_price_id"`
	Status             string  `bson:"status"`
	PlanName           string  `bson:"plan_name"`
	Amount             float64 `bson:"amount"`
	Currency           string  `bson:"currency"`
	Interval           string  `bson:"interval"`
	CurrentPeriodStart string  `bson:"current_period_start,omitempty"`
	CurrentPeriodEnd   string  `bson:"current_period_end,omitempty"`
	CancelAtPeriodEnd  bool    `bson:"cancel_at_period_end"`
	CreatedAt          string  `bson:"created_at"`
}

// MongoPaymentRecord mirrors a completed provider payment for analytics.
type MongoPaymentRecord struct {
	ID               string  `bson:"_id"`
	UserID           string  `bson:"user_id"`
	StripeCustomerId string  `bson:"stripe_customer_id"`
	Amount           float64 `bson:"amount"`
	Currency         string  `bson:"currency"`
	Status           string  `bson:"status"`
	CreatedAt        string  `bson:"created_at"`
}
