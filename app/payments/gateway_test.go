package payments

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/checkout/session"
	"github.com/undefinedlabs/go-mpatch"
)

func TestCreateCheckoutSessionParams(t *testing.T) {
	var captured *stripe.CheckoutSessionParams
	sessionNewPatch, err := mpatch.PatchMethod(
		session.New,
		func(params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			captured = params
			return &stripe.CheckoutSession{
				ID:  testSessionId,
				URL: "https://checkout.stripe.com/c/pay/" + testSessionId,
			}, nil
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionNewPatch.Unpatch()

	gateway := NewStripeGateway("sk_test_token", "docuchat", "https://docuchat.example")
	sess, err := gateway.CreateCheckoutSession(context.Background(), CheckoutParams{
		UserID:      testUserId,
		UserEmail:   "user@example.com",
		PriceID:     "price_ABC123",
		FrontendURL: "https://docuchat.example/",
	})
	assert.NoError(t, err)
	assert.Equal(t, testSessionId, sess.ID)

	assert.Equal(t, string(stripe.CheckoutSessionModeSubscription), *captured.Mode)
	assert.Equal(t, "user@example.com", *captured.CustomerEmail)
	assert.Equal(t, "price_ABC123", *captured.LineItems[0].Price)
	assert.Equal(t, int64(1), *captured.LineItems[0].Quantity)
	assert.Equal(t, testUserId, captured.Metadata[UserIdMetadataKey])
	assert.Equal(t, "https://docuchat.example/payment-success?payment=success&session_id={CHECKOUT_SESSION_ID}", *captured.SuccessURL)
	assert.Equal(t, "https://docuchat.example/checkout?payment=cancelled", *captured.CancelURL)
}

func TestGetCheckoutSessionPassesId(t *testing.T) {
	var requestedId string
	sessionGetPatch, err := mpatch.PatchMethod(
		session.Get,
		func(id string, params *stripe.CheckoutSessionParams) (*stripe.CheckoutSession, error) {
			requestedId = id
			return &stripe.CheckoutSession{
				ID:            id,
				PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
			}, nil
		},
	)
	if err != nil {
		t.Fatal(err)
	}
	defer sessionGetPatch.Unpatch()

	gateway := &StripeGateway{}
	sess, err := gateway.GetCheckoutSession(context.Background(), testSessionId)
	assert.NoError(t, err)
	assert.Equal(t, testSessionId, requestedId)
	assert.Equal(t, stripe.CheckoutSessionPaymentStatusPaid, sess.PaymentStatus)
}
