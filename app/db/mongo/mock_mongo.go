package mongo

import (
	"context"
	"sync"

	"docuchat/m/v2/app/models"

	"go.mongodb.org/mongo-driver/mongo/readpref"
)

// MockStore is an in-memory Store for tests. It records pro-status writes so
// tests can assert on mutation counts (or their absence).
type MockStore struct {
	mu sync.Mutex

	Users map[string]*models.MongoUser

	// ProWrites records every SetProStatus call as userId -> values written.
	ProWrites map[string][]bool

	SetProStatusErr error
	GetUserErr      error

	Subscriptions []*models.MongoSubscriptionRecord
	Payments      []*models.MongoPaymentRecord
}

func NewMockStore() *MockStore {
	return &MockStore{
		Users:     make(map[string]*models.MongoUser),
		ProWrites: make(map[string][]bool),
	}
}

func (m *MockStore) Disconnect(ctx context.Context) error { return nil }

func (m *MockStore) Ping(ctx context.Context, rp *readpref.ReadPref) error { return nil }

func (m *MockStore) GetOrCreateUser(ctx context.Context, userId string) (*models.MongoUser, error) {
	if m.GetUserErr != nil {
		return nil, m.GetUserErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.getOrCreateLocked(userId), nil
}

func (m *MockStore) getOrCreateLocked(userId string) *models.MongoUser {
	if user, ok := m.Users[userId]; ok {
		return user
	}
	user := &models.MongoUser{ID: userId}
	m.Users[userId] = user
	return user
}

func (m *MockStore) SetProStatus(ctx context.Context, userId string, pro bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ProWrites[userId] = append(m.ProWrites[userId], pro)
	if m.SetProStatusErr != nil {
		return m.SetProStatusErr
	}
	m.getOrCreateLocked(userId).IsPro = pro
	return nil
}

func (m *MockStore) IncrementUsage(ctx context.Context, userId string, counter models.UsageCounter, limit int64) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	user := m.getOrCreateLocked(userId)
	switch counter {
	case models.TranscriptCounter:
		if !user.IsPro && user.TranscriptCount >= limit {
			return 0, ErrQuotaExceeded
		}
		user.TranscriptCount++
		return user.TranscriptCount, nil
	default:
		if !user.IsPro && user.DocumentCount >= limit {
			return 0, ErrQuotaExceeded
		}
		user.DocumentCount++
		return user.DocumentCount, nil
	}
}

func (m *MockStore) UpdateUserContacts(ctx context.Context, userId, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(userId).Email = email
	return nil
}

func (m *MockStore) UpdateUserStripeCustomerId(ctx context.Context, userId, stripeCustomerId string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getOrCreateLocked(userId).StripeCustomerId = stripeCustomerId
	return nil
}

func (m *MockStore) GetUsersCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return int64(len(m.Users)), nil
}

func (m *MockStore) GetProUsersCount(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var count int64
	for _, user := range m.Users {
		if user.IsPro {
			count++
		}
	}
	return count, nil
}

func (m *MockStore) SaveSubscriptionRecord(ctx context.Context, record *models.MongoSubscriptionRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Subscriptions = append(m.Subscriptions, record)
	return nil
}

func (m *MockStore) SavePaymentRecord(ctx context.Context, record *models.MongoPaymentRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Payments = append(m.Payments, record)
	return nil
}

// AnalyticsCounts returns how many subscription and payment records were
// saved, safe to call while writers are still running.
func (m *MockStore) AnalyticsCounts() (subscriptions, payments int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.Subscriptions), len(m.Payments)
}

// TotalProWrites returns how many pro-status mutations were applied across
// all users.
func (m *MockStore) TotalProWrites() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	total := 0
	for _, writes := range m.ProWrites {
		total += len(writes)
	}
	return total
}
