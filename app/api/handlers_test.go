package api

import (
	"encoding/json"
	"log"
	"net/http"
	"testing"
	"time"

	"docuchat/m/v2/app/alerts"
	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/db/mongo"
	"docuchat/m/v2/app/db/redis"
	"docuchat/m/v2/app/models"
	"docuchat/m/v2/app/payments"

	"github.com/DataDog/datadog-go/v5/statsd"
	"github.com/stretchr/testify/assert"
	"github.com/stripe/stripe-go/v78"
	"github.com/valyala/fasthttp"
)

const (
	testUserId    = "11111111-1111-1111-1111-111111111111"
	testSessionId = "cs_test_a1b2c3d4e5"
)

func init() {
	testClient, err := statsd.New("127.0.0.1:8125", statsd.WithNamespace("tests."))
	if err != nil {
		log.Fatalf("error creating test DataDog client: %v", err)
	}
	config.CONFIG = &config.Config{
		DataDogClient: testClient,
		Environment:   "dev",
		FrontendURL:   "https://docuchat.example",
	}
}

func newTestHandlers() (*Handlers, *mongo.MockStore, *payments.MockGateway) {
	store := mongo.NewMockStore()
	gateway := payments.NewMockGateway()
	reconciler := payments.NewReconciler(store, gateway, alerts.LogNotifier{})
	return NewHandlers(store, gateway, reconciler), store, gateway
}

func postJSON(body string) *fasthttp.RequestCtx {
	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.Header.SetContentType("application/json")
	ctx.Request.SetBody([]byte(body))
	return ctx
}

func paidSession(userId string) *stripe.CheckoutSession {
	return &stripe.CheckoutSession{
		ID:            testSessionId,
		PaymentStatus: stripe.CheckoutSessionPaymentStatusPaid,
		Metadata:      map[string]string{payments.UserIdMetadataKey: userId},
	}
}

func TestCheckoutReturnsSessionURL(t *testing.T) {
	handlers, _, gateway := newTestHandlers()

	ctx := postJSON(`{"user_id": "` + testUserId + `", "user_email": "user@example.com", "price_id": "price_ABC123"}`)
	handlers.Checkout(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"url":"https://checkout.stripe.test/pay/cs_test_mock"}`, string(ctx.Response.Body()))
	assert.Equal(t, 1, gateway.CreateCalls)
}

func TestCheckoutInvalidBodyRejectedBeforeGateway(t *testing.T) {
	handlers, _, gateway := newTestHandlers()

	ctx := postJSON(`{"user_id": "nope", "user_email": "nope", "price_id": "nope"}`)
	handlers.Checkout(ctx)

	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	var resp models.ValidationErrorResponse
	assert.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
	assert.Len(t, resp.Errors, 3)
	assert.Equal(t, 0, gateway.CreateCalls)
}

func TestCheckoutMalformedJSON(t *testing.T) {
	handlers, _, gateway := newTestHandlers()

	ctx := postJSON(`{not json`)
	handlers.Checkout(ctx)

	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, 0, gateway.CreateCalls)
}

func TestCheckoutGatewayFailure(t *testing.T) {
	handlers, _, gateway := newTestHandlers()
	gateway.CreateErr = assert.AnError

	ctx := postJSON(`{"user_id": "` + testUserId + `", "user_email": "user@example.com", "price_id": "price_ABC123"}`)
	handlers.Checkout(ctx)

	assert.Equal(t, http.StatusInternalServerError, ctx.Response.StatusCode())
}

func TestVerifyPaymentHappyPath(t *testing.T) {
	handlers, store, gateway := newTestHandlers()
	gateway.Sessions[testSessionId] = paidSession(testUserId)

	ctx := postJSON(`{"session_id": "` + testSessionId + `", "user_id": "` + testUserId + `"}`)
	handlers.VerifyPayment(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":true,"isPaid":true,"message":"Payment verified and Pro status activated"}`, string(ctx.Response.Body()))
	assert.True(t, store.Users[testUserId].IsPro)
}

func TestVerifyPaymentMalformedSessionIdRejectedBeforeGateway(t *testing.T) {
	handlers, _, gateway := newTestHandlers()

	ctx := postJSON(`{"session_id": "cs_test_abc; rm -rf /", "user_id": "` + testUserId + `"}`)
	handlers.VerifyPayment(ctx)

	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
	assert.Equal(t, 0, gateway.GetSessionCalls, "invalid session id must never reach the gateway")
}

func TestVerifyPaymentDeclineShapeIsUniform(t *testing.T) {
	// An unpaid session and another user's session must be indistinguishable
	// to the caller, otherwise the endpoint leaks session ownership.
	handlers, _, gateway := newTestHandlers()
	unpaid := paidSession(testUserId)
	unpaid.PaymentStatus = stripe.CheckoutSessionPaymentStatusUnpaid
	gateway.Sessions["cs_test_unpaid1"] = unpaid
	gateway.Sessions["cs_test_otheruser1"] = paidSession("22222222-2222-2222-2222-222222222222")

	unpaidCtx := postJSON(`{"session_id": "cs_test_unpaid1", "user_id": "` + testUserId + `"}`)
	handlers.VerifyPayment(unpaidCtx)

	mismatchCtx := postJSON(`{"session_id": "cs_test_otheruser1", "user_id": "` + testUserId + `"}`)
	handlers.VerifyPayment(mismatchCtx)

	assert.Equal(t, http.StatusForbidden, unpaidCtx.Response.StatusCode())
	assert.Equal(t, unpaidCtx.Response.StatusCode(), mismatchCtx.Response.StatusCode())
	assert.Equal(t, string(unpaidCtx.Response.Body()), string(mismatchCtx.Response.Body()))
	assert.JSONEq(t, `{"success":false,"isPaid":false,"message":"Payment not verified"}`, string(unpaidCtx.Response.Body()))
}

func TestVerifyPaymentActivationFailureIsBadGateway(t *testing.T) {
	handlers, store, gateway := newTestHandlers()
	gateway.Sessions[testSessionId] = paidSession(testUserId)
	store.SetProStatusErr = assert.AnError

	ctx := postJSON(`{"session_id": "` + testSessionId + `", "user_id": "` + testUserId + `"}`)
	handlers.VerifyPayment(ctx)

	assert.Equal(t, http.StatusBadGateway, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"success":false,"isPaid":false,"error":"Failed to activate Pro status"}`, string(ctx.Response.Body()))
}

func TestUsageCreatesUserOnFirstRead(t *testing.T) {
	handlers, store, _ := newTestHandlers()

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("user_id", testUserId)
	handlers.Usage(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"user_id":"`+testUserId+`","document_count":0,"transcript_count":0,"is_pro":false}`, string(ctx.Response.Body()))
	assert.Contains(t, store.Users, testUserId)
}

func TestUsageInvalidUserId(t *testing.T) {
	handlers, _, _ := newTestHandlers()

	ctx := &fasthttp.RequestCtx{}
	ctx.SetUserValue("user_id", "not-a-uuid")
	handlers.Usage(ctx)

	assert.Equal(t, http.StatusBadRequest, ctx.Response.StatusCode())
}

func TestIncrementDocumentEnforcesFreeTierLimit(t *testing.T) {
	handlers, store, _ := newTestHandlers()

	for i := int64(1); i <= models.FreeTierLimit; i++ {
		ctx := postJSON(`{"user_id": "` + testUserId + `"}`)
		handlers.IncrementDocument(ctx)
		assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
		var resp models.IncrementUsageResponse
		assert.NoError(t, json.Unmarshal(ctx.Response.Body(), &resp))
		assert.True(t, resp.Allowed)
		assert.Equal(t, i, resp.Count)
	}

	ctx := postJSON(`{"user_id": "` + testUserId + `"}`)
	handlers.IncrementDocument(ctx)
	assert.Equal(t, http.StatusForbidden, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"allowed":false,"message":"Free tier limit reached. Upgrade to Pro for unlimited usage."}`, string(ctx.Response.Body()))
	assert.Equal(t, int64(models.FreeTierLimit), store.Users[testUserId].DocumentCount)

	// transcripts are a separate counter
	transcriptCtx := postJSON(`{"user_id": "` + testUserId + `"}`)
	handlers.IncrementTranscript(transcriptCtx)
	assert.Equal(t, http.StatusOK, transcriptCtx.Response.StatusCode())
}

func TestIncrementDocumentProUserBypassesLimit(t *testing.T) {
	handlers, store, _ := newTestHandlers()
	store.Users[testUserId] = &models.MongoUser{ID: testUserId, IsPro: true, DocumentCount: 100}

	ctx := postJSON(`{"user_id": "` + testUserId + `"}`)
	handlers.IncrementDocument(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.Equal(t, int64(101), store.Users[testUserId].DocumentCount)
}

func TestHealth(t *testing.T) {
	handlers, _, _ := newTestHandlers()

	ctx := &fasthttp.RequestCtx{}
	handlers.Health(ctx)

	assert.Equal(t, http.StatusOK, ctx.Response.StatusCode())
	assert.JSONEq(t, `{"status":"ok"}`, string(ctx.Response.Body()))
}

func TestRateLimitedMiddleware(t *testing.T) {
	limiter := redis.NewRateLimiter(redis.NewMockRedisClient(), "test", 2, time.Minute)
	calls := 0
	handler := RateLimited(limiter, func(ctx *fasthttp.RequestCtx) { calls++ })

	for i := 0; i < 2; i++ {
		ctx := &fasthttp.RequestCtx{}
		handler(ctx)
		assert.NotEqual(t, http.StatusTooManyRequests, ctx.Response.StatusCode())
	}
	assert.Equal(t, 2, calls)

	ctx := &fasthttp.RequestCtx{}
	handler(ctx)
	assert.Equal(t, http.StatusTooManyRequests, ctx.Response.StatusCode())
	assert.Equal(t, "60", string(ctx.Response.Header.Peek("Retry-After")))
	assert.Equal(t, 2, calls, "refused request must not reach the handler")
}

func TestCORSAllowsConfiguredOrigin(t *testing.T) {
	handler := CORS([]string{"https://docuchat.example"}, func(ctx *fasthttp.RequestCtx) {
		ctx.Response.Header.SetStatusCode(http.StatusOK)
	})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.Header.Set("Origin", "https://docuchat.example")
	handler(ctx)
	assert.Equal(t, "https://docuchat.example", string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))

	ctx = &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodPost)
	ctx.Request.Header.Set("Origin", "https://evil.example")
	handler(ctx)
	assert.Empty(t, string(ctx.Response.Header.Peek("Access-Control-Allow-Origin")))
}

func TestCORSPreflight(t *testing.T) {
	handler := CORS([]string{"https://docuchat.example"}, func(ctx *fasthttp.RequestCtx) {
		t.Fatal("preflight must not reach the handler")
	})

	ctx := &fasthttp.RequestCtx{}
	ctx.Request.Header.SetMethod(fasthttp.MethodOptions)
	ctx.Request.Header.Set("Origin", "https://docuchat.example")
	handler(ctx)
	assert.Equal(t, http.StatusNoContent, ctx.Response.StatusCode())
}
