package mongo

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/models"

	"github.com/sirupsen/logrus"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	UsersCollection         = "users"
	SubscriptionsCollection = "subscriptions"
	PaymentsCollection      = "payments"
)

// ErrQuotaExceeded is returned when a usage increment is refused because the
// user exhausted the free tier.
var ErrQuotaExceeded = errors.New("usage quota exceeded")

// Client is a mongo client
type Client struct {
	*mongo.Client
}

// Store is the entitlement store surface the rest of the app depends on.
// Handlers and the reconciler receive it as an injected dependency so tests
// can substitute a mock.
type Store interface {
	Disconnect(ctx context.Context) error
	Ping(ctx context.Context, rp *readpref.ReadPref) error
	GetOrCreateUser(ctx context.Context, userId string) (*models.MongoUser, error)
	SetProStatus(ctx context.Context, userId string, pro bool) error
	IncrementUsage(ctx context.Context, userId string, counter models.UsageCounter, limit int64) (int64, error)
	UpdateUserContacts(ctx context.Context, userId, email string) error
	UpdateUserStripeCustomerId(ctx context.Context, userId, stripeCustomerId string) error
	GetUsersCount(ctx context.Context) (int64, error)
	GetProUsersCount(ctx context.Context) (int64, error)
	SaveSubscriptionRecord(ctx context.Context, record *models.MongoSubscriptionRecord) error
	SavePaymentRecord(ctx context.Context, record *models.MongoPaymentRecord) error
}

// NewClient creates a new mongo client
func NewClient(connection string) *Client {
	return &Client{
		Client: mustConnect(connection),
	}
}

// mustConnect connects to mongo and panics on error
func mustConnect(connection string) *mongo.Client {
	client, err := mongo.NewClient(options.Client().ApplyURI(connection).SetMaxConnecting(25))
	if err != nil {
		logrus.WithError(err).Panic("failed to create mongo client")
	}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	err = client.Connect(ctx)
	if err != nil {
		logrus.WithError(err).Panic("failed to connect to mongo")
	}

	return client
}

func (c *Client) users() *mongo.Collection {
	return c.Database(config.CONFIG.MongoDBName).Collection(UsersCollection)
}

// GetOrCreateUser returns the entitlement document for userId, creating it
// with zero counters and is_pro=false on first read.
func (c *Client) GetOrCreateUser(ctx context.Context, userId string) (*models.MongoUser, error) {
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$setOnInsert": bson.M{
			"is_pro":           false,
			"document_count":   int64(0),
			"transcript_count": int64(0),
			"updated_at":       now(),
		},
	}
	opts := options.FindOneAndUpdate().SetUpsert(true).SetReturnDocument(options.After)

	var user models.MongoUser
	err := c.users().FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if err != nil {
		return nil, fmt.Errorf("GetOrCreateUser: %w", err)
	}
	return &user, nil
}

// SetProStatus overwrites the pro flag. The mutation is a pure assignment, so
// repeated or concurrent application converges on the same document state.
func (c *Client) SetProStatus(ctx context.Context, userId string, pro bool) error {
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$set": bson.M{
			"is_pro":     pro,
			"updated_at": now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := c.users().UpdateOne(ctx, filter, update, opts)
	if err != nil {
		return fmt.Errorf("SetProStatus: %w", err)
	}
	return nil
}

// IncrementUsage bumps a usage counter. The quota check and the increment are
// a single conditional update, atomic per document, so concurrent requests
// from the same user can neither lose increments nor overshoot the limit.
// Pro users bypass the limit. Returns the new counter value.
func (c *Client) IncrementUsage(ctx context.Context, userId string, counter models.UsageCounter, limit int64) (int64, error) {
	filter := bson.M{
		"_id": userId,
		"$or": []bson.M{
			{"is_pro": true},
			{string(counter): bson.M{"$lt": limit}},
		},
	}
	update := bson.M{
		"$inc": bson.M{string(counter): int64(1)},
		"$set": bson.M{"updated_at": now()},
	}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)

	var user models.MongoUser
	err := c.users().FindOneAndUpdate(ctx, filter, update, opts).Decode(&user)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return 0, ErrQuotaExceeded
	}
	if err != nil {
		return 0, fmt.Errorf("IncrementUsage: %w", err)
	}

	switch counter {
	case models.TranscriptCounter:
		return user.TranscriptCount, nil
	default:
		return user.DocumentCount, nil
	}
}

func (c *Client) UpdateUserContacts(ctx context.Context, userId, email string) error {
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$set": bson.M{
			"email":      email,
			"updated_at": now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := c.users().UpdateOne(ctx, filter, update, opts)
	return err
}

func (c *Client) UpdateUserStripeCustomerId(ctx context.Context, userId, stripeCustomerId string) error {
	filter := bson.M{"_id": userId}
	update := bson.M{
		"$set": bson.M{
			"stripe_customer_id": stripeCustomerId,
			"updated_at":         now(),
		},
	}

	opts := options.Update().SetUpsert(true)
	_, err := c.users().UpdateOne(ctx, filter, update, opts)
	return err
}

func (c *Client) GetUsersCount(ctx context.Context) (int64, error) {
	count, err := c.users().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, fmt.Errorf("GetUsersCount: %w", err)
	}
	return count, nil
}

func (c *Client) GetProUsersCount(ctx context.Context) (int64, error) {
	count, err := c.users().CountDocuments(ctx, bson.M{"is_pro": true})
	if err != nil {
		return 0, fmt.Errorf("GetProUsersCount: %w", err)
	}
	return count, nil
}

// SaveSubscriptionRecord upserts the analytics mirror document for a provider
// subscription. Best-effort; callers log and continue on error.
func (c *Client) SaveSubscriptionRecord(ctx context.Context, record *models.MongoSubscriptionRecord) error {
	collection := c.Database(config.CONFIG.MongoDBName).Collection(SubscriptionsCollection)
	filter := bson.M{"_id": record.ID}
	update := bson.M{"$set": record}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func (c *Client) SavePaymentRecord(ctx context.Context, record *models.MongoPaymentRecord) error {
	collection := c.Database(config.CONFIG.MongoDBName).Collection(PaymentsCollection)
	filter := bson.M{"_id": record.ID}
	update := bson.M{"$set": record}

	opts := options.Update().SetUpsert(true)
	_, err := collection.UpdateOne(ctx, filter, update, opts)
	return err
}

func now() string {
	return time.Now().UTC().Format(time.RFC3339)
}
