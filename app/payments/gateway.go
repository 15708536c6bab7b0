package payments

import (
	"context"
	"strings"

	log "github.com/sirupsen/logrus"

	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/stripe/stripe-go/v78/customer"
	"github.com/stripe/stripe-go/v78/subscription"
)

// UserIdMetadataKey is the metadata key binding a checkout session (and the
// customer behind it) to a local user. Set at session creation, it is the only
// trustworthy attribution for payment signals.
const UserIdMetadataKey = "user_id"

// CheckoutParams describes a subscription checkout to create for a user.
type CheckoutParams struct {
	UserID      string
	UserEmail   string
	PriceID     string
	FrontendURL string
}

// Gateway wraps the payment provider API. The reconciler and handlers depend
// on this interface rather than package-level stripe state so tests can
// substitute doubles.
type Gateway interface {
	CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*stripe.CheckoutSession, error)
	GetCheckoutSession(ctx context.Context, sessionId string) (*stripe.CheckoutSession, error)
	GetCustomer(ctx context.Context, customerId string) (*stripe.Customer, error)
	GetSubscription(ctx context.Context, subscriptionId string) (*stripe.Subscription, error)
}

// StripeGateway is the production Gateway backed by stripe-go.
type StripeGateway struct{}

// NewStripeGateway configures the stripe client and returns the gateway.
func NewStripeGateway(token, serviceName, frontendUrl string) *StripeGateway {
	stripe.Key = token
	stripe.SetAppInfo(&stripe.AppInfo{
		Name:    serviceName,
		Version: "0.0.1",
		URL:     frontendUrl,
	})
	return &StripeGateway{}
}

func (g *StripeGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*stripe.CheckoutSession, error) {
	frontendUrl := strings.TrimRight(p.FrontendURL, "/")
	params := &stripe.CheckoutSessionParams{
		Mode:               stripe.String(string(stripe.CheckoutSessionModeSubscription)),
		CustomerEmail:      stripe.String(p.UserEmail),
		PaymentMethodTypes: stripe.StringSlice([]string{"card"}),
		LineItems: []*stripe.CheckoutSessionLineItemParams{
			{
				Price:    stripe.String(p.PriceID),
				Quantity: stripe.Int64(1),
			},
		},
		SuccessURL: stripe.String(frontendUrl + "/payment-success?payment=success&session_id={CHECKOUT_SESSION_ID}"),
		CancelURL:  stripe.String(frontendUrl + "/checkout?payment=cancelled"),
	}
	params.Context = ctx
	params.AddMetadata(UserIdMetadataKey, p.UserID)

	s, err := session.New(params)
	if err != nil {
		log.Errorf("CreateCheckoutSession: %v", err)
		return nil, err
	}
	return s, nil
}

func (g *StripeGateway) GetCheckoutSession(ctx context.Context, sessionId string) (*stripe.CheckoutSession, error) {
	params := &stripe.CheckoutSessionParams{}
	params.Context = ctx
	s, err := session.Get(sessionId, params)
	if err != nil {
		log.Errorf("GetCheckoutSession: %v", err)
		return nil, err
	}
	return s, nil
}

func (g *StripeGateway) GetCustomer(ctx context.Context, customerId string) (*stripe.Customer, error) {
	params := &stripe.CustomerParams{}
	params.Context = ctx
	c, err := customer.Get(customerId, params)
	if err != nil {
		log.Errorf("GetCustomer: %v", err)
		return nil, err
	}
	return c, nil
}

func (g *StripeGateway) GetSubscription(ctx context.Context, subscriptionId string) (*stripe.Subscription, error) {
	params := &stripe.SubscriptionParams{}
	params.Context = ctx
	s, err := subscription.Get(subscriptionId, params)
	if err != nil {
		log.Errorf("GetSubscription: %v", err)
		return nil, err
	}
	return s, nil
}
