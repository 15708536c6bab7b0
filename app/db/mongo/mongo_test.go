package mongo

import (
	"context"
	"runtime"
	"strings"
	"testing"

	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/models"

	"github.com/tryvium-travels/memongo"
)

var MockMongoServer *memongo.Server

func TestMain(m *testing.M) {
	opts := &memongo.Options{
		MongoVersion: "6.0.13",
	}
	if runtime.GOARCH == "arm64" {
		if runtime.GOOS == "darwin" {
			// Only set the custom url as workaround for arm64 macs
			opts.DownloadURL = "https://fastdl.mongodb.org/osx/mongodb-macos-x86_64-6.0.13.tgz"
		}
	}

	MockMongoServer, _ = memongo.Start("6.0.13")
	defer MockMongoServer.Stop()
	m.Run()
}

func newTestClient(t *testing.T) *Client {
	t.Helper()
	uri := MockMongoServer.URIWithRandomDB()

	// parse db name from uri
	dbName := uri[strings.LastIndex(uri, "/")+1:]
	config.CONFIG = &config.Config{
		MongoDBName: dbName,
	}
	return NewClient(uri)
}

func TestGetOrCreateUser(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	user, err := client.GetOrCreateUser(ctx, "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("error creating user: %v", err)
	}
	if user.ID != "11111111-1111-1111-1111-111111111111" {
		t.Fatalf("expected user id to round trip, got %s", user.ID)
	}
	if user.IsPro {
		t.Fatal("expected new user to not be pro")
	}
	if user.DocumentCount != 0 || user.TranscriptCount != 0 {
		t.Fatalf("expected zero counters, got %d/%d", user.DocumentCount, user.TranscriptCount)
	}
	if user.UpdatedAt == "" {
		t.Fatal("expected updated_at to be set on creation")
	}

	// second read returns the same document, no duplicate
	_, err = client.GetOrCreateUser(ctx, "11111111-1111-1111-1111-111111111111")
	if err != nil {
		t.Fatalf("error reading user: %v", err)
	}
	count, err := client.GetUsersCount(ctx)
	if err != nil {
		t.Fatalf("error counting users: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 user, got %d", count)
	}
}

func TestSetProStatusIdempotent(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		if err := client.SetProStatus(ctx, "user-1", true); err != nil {
			t.Fatalf("error setting pro status: %v", err)
		}
	}

	user, err := client.GetOrCreateUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("error reading user: %v", err)
	}
	if !user.IsPro {
		t.Fatal("expected user to be pro")
	}

	if err := client.SetProStatus(ctx, "user-1", false); err != nil {
		t.Fatalf("error clearing pro status: %v", err)
	}
	user, err = client.GetOrCreateUser(ctx, "user-1")
	if err != nil {
		t.Fatalf("error reading user: %v", err)
	}
	if user.IsPro {
		t.Fatal("expected user to be downgraded")
	}
}

func TestIncrementUsageQuota(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	_, err := client.GetOrCreateUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("error creating user: %v", err)
	}

	for i := int64(1); i <= models.FreeTierLimit; i++ {
		count, err := client.IncrementUsage(ctx, "user-2", models.DocumentCounter, models.FreeTierLimit)
		if err != nil {
			t.Fatalf("error incrementing usage: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}

	_, err = client.IncrementUsage(ctx, "user-2", models.DocumentCounter, models.FreeTierLimit)
	if err != ErrQuotaExceeded {
		t.Fatalf("expected ErrQuotaExceeded, got %v", err)
	}

	// counter unchanged after the refused increment
	user, err := client.GetOrCreateUser(ctx, "user-2")
	if err != nil {
		t.Fatalf("error reading user: %v", err)
	}
	if user.DocumentCount != models.FreeTierLimit {
		t.Fatalf("expected counter to stay at %d, got %d", models.FreeTierLimit, user.DocumentCount)
	}

	// transcripts are a separate counter
	count, err := client.IncrementUsage(ctx, "user-2", models.TranscriptCounter, models.FreeTierLimit)
	if err != nil {
		t.Fatalf("error incrementing transcript usage: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected transcript count 1, got %d", count)
	}
}

func TestIncrementUsageProBypass(t *testing.T) {
	client := newTestClient(t)
	ctx := context.Background()

	if err := client.SetProStatus(ctx, "user-3", true); err != nil {
		t.Fatalf("error setting pro status: %v", err)
	}

	for i := int64(1); i <= models.FreeTierLimit+2; i++ {
		count, err := client.IncrementUsage(ctx, "user-3", models.DocumentCounter, models.FreeTierLimit)
		if err != nil {
			t.Fatalf("error incrementing usage for pro user: %v", err)
		}
		if count != i {
			t.Fatalf("expected count %d, got %d", i, count)
		}
	}
}
