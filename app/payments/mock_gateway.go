package payments

import (
	"context"
	"errors"
	"sync"

	"github.com/stripe/stripe-go/v78"
)

// MockGateway is an in-memory Gateway for tests. It records calls so tests
// can assert the gateway was (or was not) reached.
type MockGateway struct {
	mu sync.Mutex

	Sessions      map[string]*stripe.CheckoutSession
	Customers     map[string]*stripe.Customer
	Subscriptions map[string]*stripe.Subscription

	CreateErr error

	GetSessionCalls int
	CreateCalls     int
}

func NewMockGateway() *MockGateway {
	return &MockGateway{
		Sessions:      make(map[string]*stripe.CheckoutSession),
		Customers:     make(map[string]*stripe.Customer),
		Subscriptions: make(map[string]*stripe.Subscription),
	}
}

func (g *MockGateway) CreateCheckoutSession(ctx context.Context, p CheckoutParams) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.CreateCalls++
	if g.CreateErr != nil {
		return nil, g.CreateErr
	}
	return &stripe.CheckoutSession{
		ID:       "cs_test_mock",
		URL:      "https://checkout.stripe.test/pay/cs_test_mock",
		Metadata: map[string]string{UserIdMetadataKey: p.UserID},
	}, nil
}

func (g *MockGateway) GetCheckoutSession(ctx context.Context, sessionId string) (*stripe.CheckoutSession, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.GetSessionCalls++
	if sess, ok := g.Sessions[sessionId]; ok {
		return sess, nil
	}
	return nil, errors.New("no such checkout session")
}

func (g *MockGateway) GetCustomer(ctx context.Context, customerId string) (*stripe.Customer, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if c, ok := g.Customers[customerId]; ok {
		return c, nil
	}
	return nil, errors.New("no such customer")
}

func (g *MockGateway) GetSubscription(ctx context.Context, subscriptionId string) (*stripe.Subscription, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if s, ok := g.Subscriptions[subscriptionId]; ok {
		return s, nil
	}
	return nil, errors.New("no such subscription")
}
