package payments

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/models"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v78"
	"github.com/stripe/stripe-go/v78/webhook"
	"github.com/valyala/fasthttp"
)

// WebhookHandler authenticates inbound provider events and dispatches them to
// the reconciler. Signature verification over the exact request bytes is the
// authentication mechanism for this endpoint; nothing unverified reaches the
// reconciler unless the explicit unauthenticated mode is enabled.
type WebhookHandler struct {
	reconciler *Reconciler
}

func NewWebhookHandler(reconciler *Reconciler) *WebhookHandler {
	return &WebhookHandler{reconciler: reconciler}
}

func (h *WebhookHandler) Handle(ctx *fasthttp.RequestCtx) {
	payload := ctx.PostBody()
	secret := config.CONFIG.StripeEndpointSecret

	var event stripe.Event
	authenticated := true
	if secret == "" {
		if !config.CONFIG.AllowUnverifiedWebhooks || config.CONFIG.IsProduction() {
			log.Error("Webhook rejected: no signing secret configured")
			config.CONFIG.DataDogClient.Incr("stripe.webhook_rejected", []string{"reason:no_secret"}, 1)
			ctx.Response.Header.SetStatusCode(http.StatusBadRequest)
			return
		}
		// opt-in development mode only, every event is flagged
		log.Warn("Processing UNAUTHENTICATED webhook event, signature verification is disabled")
		authenticated = false
		if err := json.Unmarshal(payload, &event); err != nil {
			log.Errorf("Webhook error while parsing request: %v", err)
			ctx.Response.Header.SetStatusCode(http.StatusBadRequest)
			return
		}
	} else {
		signatureHeader := string(ctx.Request.Header.Peek("Stripe-Signature"))
		var err error
		event, err = webhook.ConstructEvent(payload, signatureHeader, secret)
		if err != nil {
			// logged distinctly from business failures for security monitoring
			log.Errorf("Webhook signature verification failed: %v", err)
			config.CONFIG.DataDogClient.Incr("stripe.webhook_rejected", []string{"reason:bad_signature"}, 1)
			ctx.Response.Header.SetStatusCode(http.StatusBadRequest)
			return
		}
	}
	config.CONFIG.DataDogClient.Incr("stripe.webhook", []string{
		"event_type:" + string(event.Type),
		fmt.Sprintf("authenticated:%t", authenticated),
	}, 1)

	// Once authenticated, the provider always gets a success acknowledgment:
	// its blind retries racing the verification path are not the recovery
	// mechanism here, operator alerts are.
	h.dispatch(ctx, event)

	ctx.Response.Header.SetStatusCode(http.StatusOK)
	ctx.SetContentType("application/json")
	body, _ := json.Marshal(models.WebhookResponse{Received: true})
	ctx.SetBody(body)
}

func (h *WebhookHandler) dispatch(ctx context.Context, event stripe.Event) {
	switch event.Type {
	case "checkout.session.completed":
		var sess stripe.CheckoutSession
		if err := json.Unmarshal(event.Data.Raw, &sess); err != nil {
			log.Errorf("Error parsing %s webhook JSON: %v", event.Type, err)
			return
		}
		h.reconciler.HandleCheckoutCompleted(ctx, normalizeCheckoutCompleted(sess))
	case "customer.subscription.created":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Errorf("Error parsing %s webhook JSON: %v", event.Type, err)
			return
		}
		h.reconciler.HandleSubscriptionCreated(ctx, models.SubscriptionCreated{
			SubscriptionID: sub.ID,
			CustomerID:     customerId(sub.Customer),
			UserID:         sub.Metadata[UserIdMetadataKey],
		})
	case "customer.subscription.updated":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Errorf("Error parsing %s webhook JSON: %v", event.Type, err)
			return
		}
		h.reconciler.HandleSubscriptionUpdated(ctx, models.SubscriptionUpdated{
			SubscriptionID:    sub.ID,
			CustomerID:        customerId(sub.Customer),
			CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		})
	case "customer.subscription.deleted":
		var sub stripe.Subscription
		if err := json.Unmarshal(event.Data.Raw, &sub); err != nil {
			log.Errorf("Error parsing %s webhook JSON: %v", event.Type, err)
			return
		}
		h.reconciler.HandleSubscriptionDeleted(ctx, models.SubscriptionDeleted{
			SubscriptionID: sub.ID,
			CustomerID:     customerId(sub.Customer),
			UserID:         sub.Metadata[UserIdMetadataKey],
		})
	default:
		log.Infof("Unhandled Stripe event type: %s", event.Type)
		config.CONFIG.DataDogClient.Incr("stripe.webhook_unhandled", []string{"event_type:" + string(event.Type)}, 1)
	}
}

func normalizeCheckoutCompleted(sess stripe.CheckoutSession) models.CheckoutCompleted {
	event := models.CheckoutCompleted{
		SessionID:     sess.ID,
		UserID:        sess.Metadata[UserIdMetadataKey],
		PaymentStatus: string(sess.PaymentStatus),
		CustomerID:    customerId(sess.Customer),
	}
	if sess.Subscription != nil {
		event.SubscriptionID = sess.Subscription.ID
	}
	if sess.CustomerDetails != nil {
		event.CustomerEmail = sess.CustomerDetails.Email
	}
	return event
}

func customerId(c *stripe.Customer) string {
	if c == nil {
		return ""
	}
	return c.ID
}
