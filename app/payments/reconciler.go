package payments

import (
	"context"
	"errors"
	"fmt"
	"time"

	"docuchat/m/v2/app/alerts"
	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/db/mongo"
	"docuchat/m/v2/app/models"

	log "github.com/sirupsen/logrus"
	"github.com/stripe/stripe-go/v78"
)

const (
	ProPlanName = "DocuChat Pro"

	// customerLookupTimeout bounds the gateway call made while handling a
	// subscription deletion, so webhook acknowledgment stays fast.
	customerLookupTimeout = 5 * time.Second
)

// ErrActivationFailed means the payment is real and verified but the
// entitlement store write failed. Callers must surface this distinctly from a
// decline: the client should retry activation, not pay again.
var ErrActivationFailed = errors.New("payment verified but activation failed")

// Reconciler is the single authority mutating entitlement state for payment
// reasons. Both the synchronous verification path and the webhook path funnel
// into it, and both apply the same idempotent pro-status assignment, so no
// ordering or duplication of the two signals can diverge the end state.
type Reconciler struct {
	store    mongo.Store
	gateway  Gateway
	notifier alerts.Notifier
}

func NewReconciler(store mongo.Store, gateway Gateway, notifier alerts.Notifier) *Reconciler {
	return &Reconciler{
		store:    store,
		gateway:  gateway,
		notifier: notifier,
	}
}

// VerifyPayment is the synchronous entry point. It retrieves the authoritative
// session from the gateway, checks the payment settled and the session's
// metadata binding matches the claimed user, and only then upgrades.
// Returns (false, nil) for a decline; callers must not reveal which check
// failed. A store failure after a verified payment returns ErrActivationFailed.
func (r *Reconciler) VerifyPayment(ctx context.Context, sessionId, userId string) (bool, error) {
	sess, err := r.gateway.GetCheckoutSession(ctx, sessionId)
	if err != nil {
		return false, fmt.Errorf("VerifyPayment: retrieving session: %w", err)
	}

	isPaid := sess.PaymentStatus == "paid"
	isAuthorized := sess.Metadata[UserIdMetadataKey] == userId
	config.CONFIG.DataDogClient.Incr("payments.verify", []string{
		"payment_status:" + string(sess.PaymentStatus),
		fmt.Sprintf("authorized:%t", isAuthorized),
	}, 1)

	if !isPaid || !isAuthorized {
		log.Infof("Verification declined for session %s (paid=%t)", sessionId, isPaid)
		return false, nil
	}

	if err := r.store.SetProStatus(ctx, userId, true); err != nil {
		log.Errorf("VerifyPayment: failed to activate pro status for user %s: %v", userId, err)
		return false, fmt.Errorf("%w: %v", ErrActivationFailed, err)
	}
	log.Infof("Payment verified, pro status activated for user %s", userId)

	go r.recordAnalytics(sess, userId)
	return true, nil
}

// HandleCheckoutCompleted applies the webhook-path upgrade for a completed
// checkout session. Missing metadata or an unpaid session is a logged no-op,
// never a webhook failure.
func (r *Reconciler) HandleCheckoutCompleted(ctx context.Context, event models.CheckoutCompleted) {
	config.CONFIG.DataDogClient.Incr("stripe.checkout_session_completed", []string{"payment_status:" + event.PaymentStatus}, 1)
	if event.UserID == "" {
		log.Warnf("Checkout session %s completed without user id metadata, skipping", event.SessionID)
		return
	}
	if event.PaymentStatus != "" && event.PaymentStatus != "paid" {
		log.Errorf("Checkout session %s payment status is not paid: %s, user_id: %s", event.SessionID, event.PaymentStatus, event.UserID)
		return
	}
	r.upgrade(ctx, event.UserID, "checkout.session.completed")
}

// HandleSubscriptionCreated applies the same idempotent upgrade as a
// completed checkout; whichever signal lands first wins and repeats are
// harmless.
func (r *Reconciler) HandleSubscriptionCreated(ctx context.Context, event models.SubscriptionCreated) {
	config.CONFIG.DataDogClient.Incr("stripe.customer_subscription_created", nil, 1)
	if event.UserID == "" {
		log.Warnf("Subscription %s created without user id metadata, skipping", event.SubscriptionID)
		return
	}
	r.upgrade(ctx, event.UserID, "customer.subscription.created")
}

// HandleSubscriptionUpdated is informational. A pending cancellation does not
// change entitlement; only actual deletion downgrades.
func (r *Reconciler) HandleSubscriptionUpdated(ctx context.Context, event models.SubscriptionUpdated) {
	config.CONFIG.DataDogClient.Incr("stripe.customer_subscription_updated", []string{
		fmt.Sprintf("cancel_at_period_end:%t", event.CancelAtPeriodEnd),
	}, 1)
	if event.CancelAtPeriodEnd {
		log.Infof("Subscription %s will cancel at period end", event.SubscriptionID)
	}
}

// HandleSubscriptionDeleted is the only downgrade path. The user binding
// comes from subscription metadata, falling back to a bounded customer lookup
// at the gateway; an unknown customer is a no-op.
func (r *Reconciler) HandleSubscriptionDeleted(ctx context.Context, event models.SubscriptionDeleted) {
	config.CONFIG.DataDogClient.Incr("stripe.customer_subscription_deleted", nil, 1)

	userId := event.UserID
	if userId == "" && event.CustomerID != "" {
		lookupCtx, cancel := context.WithTimeout(ctx, customerLookupTimeout)
		defer cancel()
		customer, err := r.gateway.GetCustomer(lookupCtx, event.CustomerID)
		if err != nil {
			log.Errorf("HandleSubscriptionDeleted: failed to get customer %s: %v", event.CustomerID, err)
			return
		}
		userId = customer.Metadata[UserIdMetadataKey]
	}
	if userId == "" {
		log.Warnf("Subscription %s deleted for unmapped customer %s, skipping", event.SubscriptionID, event.CustomerID)
		return
	}

	if err := r.store.SetProStatus(ctx, userId, false); err != nil {
		log.Errorf("HandleSubscriptionDeleted: failed to downgrade user %s: %v", userId, err)
		r.notifier.Alert(fmt.Sprintf("failed to downgrade user %s after subscription deletion: %v", userId, err))
		return
	}
	log.Infof("Subscription %s deleted, user %s downgraded", event.SubscriptionID, userId)
}

func (r *Reconciler) upgrade(ctx context.Context, userId, source string) {
	if err := r.store.SetProStatus(ctx, userId, true); err != nil {
		// deliberately still acknowledged upstream: provider retries racing
		// the verification path are worse than an operator-visible failure
		log.Errorf("Failed to activate pro status for user %s from %s: %v", userId, source, err)
		r.notifier.Alert(fmt.Sprintf("failed to activate pro status for user %s from %s: %v", userId, source, err))
		return
	}
	log.Infof("Pro status activated for user %s from %s", userId, source)
}

// recordAnalytics mirrors provider subscription and payment state into the
// analytics collections and captures contact details on the user document.
// Best-effort: failures are logged and never affect the verification result.
func (r *Reconciler) recordAnalytics(sess *stripe.CheckoutSession, userId string) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	customerId := ""
	if sess.Customer != nil {
		customerId = sess.Customer.ID
		if err := r.store.UpdateUserStripeCustomerId(ctx, userId, customerId); err != nil {
			log.Errorf("recordAnalytics: failed to save stripe customer id for user %s: %v", userId, err)
		}
	}
	if sess.CustomerDetails != nil && sess.CustomerDetails.Email != "" {
		if err := r.store.UpdateUserContacts(ctx, userId, sess.CustomerDetails.Email); err != nil {
			log.Errorf("recordAnalytics: failed to save contacts for user %s: %v", userId, err)
		}
	}

	if sess.Subscription != nil {
		sub, err := r.gateway.GetSubscription(ctx, sess.Subscription.ID)
		if err != nil {
			log.Errorf("recordAnalytics: failed to fetch subscription %s: %v", sess.Subscription.ID, err)
		} else if record := subscriptionRecord(sub, userId, customerId); record != nil {
			if err := r.store.SaveSubscriptionRecord(ctx, record); err != nil {
				log.Errorf("recordAnalytics: failed to save subscription record %s: %v", record.ID, err)
			}
		}
	}

	if sess.PaymentIntent != nil {
		record := &models.MongoPaymentRecord{
			ID:               sess.PaymentIntent.ID,
			UserID:           userId,
			StripeCustomerId: customerId,
			Amount:           float64(sess.AmountTotal) / 100,
			Currency:         string(sess.Currency),
			Status:           "succeeded",
			CreatedAt:        time.Now().UTC().Format(time.RFC3339),
		}
		if err := r.store.SavePaymentRecord(ctx, record); err != nil {
			log.Errorf("recordAnalytics: failed to save payment record %s: %v", record.ID, err)
		}
	}
}

func subscriptionRecord(sub *stripe.Subscription, userId, customerId string) *models.MongoSubscriptionRecord {
	if sub == nil {
		return nil
	}
	record := &models.MongoSubscriptionRecord{
		ID:                sub.ID,
		UserID:            userId,
		StripeCustomerId:  customerId,
		Status:            string(sub.Status),
		PlanName:          ProPlanName,
		Currency:          string(sub.Currency),
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
		CreatedAt:         time.Now().UTC().Format(time.RFC3339),
	}
	if sub.CurrentPeriodStart > 0 {
		record.CurrentPeriodStart = time.Unix(sub.CurrentPeriodStart, 0).UTC().Format(time.RFC3339)
	}
	if sub.CurrentPeriodEnd > 0 {
		record.CurrentPeriodEnd = time.Unix(sub.CurrentPeriodEnd, 0).UTC().Format(time.RFC3339)
	}
	if sub.Items != nil && len(sub.Items.Data) > 0 && sub.Items.Data[0].Price != nil {
		price := sub.Items.Data[0].Price
		record.StripePriceId = price.ID
		record.Amount = float64(price.UnitAmount) / 100
		if price.Recurring != nil {
			record.Interval = string(price.Recurring.Interval)
		}
	}
	return record
}
