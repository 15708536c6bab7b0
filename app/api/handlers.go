package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"docuchat/m/v2/app/config"
	"docuchat/m/v2/app/db/mongo"
	"docuchat/m/v2/app/models"
	"docuchat/m/v2/app/payments"

	log "github.com/sirupsen/logrus"
	"github.com/valyala/fasthttp"
)

const genericErrorMessage = "An error occurred. Please try again."

// Handlers are the thin HTTP adapters over the reconciler, gateway and store.
type Handlers struct {
	store      mongo.Store
	gateway    payments.Gateway
	reconciler *payments.Reconciler
}

func NewHandlers(store mongo.Store, gateway payments.Gateway, reconciler *payments.Reconciler) *Handlers {
	return &Handlers{
		store:      store,
		gateway:    gateway,
		reconciler: reconciler,
	}
}

// Checkout creates a provider-hosted checkout session bound to the requesting
// user and returns its URL. No local state is written.
func (h *Handlers) Checkout(ctx *fasthttp.RequestCtx) {
	var req models.CheckoutRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if errs := validateCheckoutRequest(req); len(errs) > 0 {
		writeJSON(ctx, http.StatusBadRequest, models.ValidationErrorResponse{Errors: errs})
		return
	}

	log.Infof("Creating checkout for user %s, price %s", req.UserID, req.PriceID)
	sess, err := h.gateway.CreateCheckoutSession(ctx, payments.CheckoutParams{
		UserID:      req.UserID,
		UserEmail:   req.UserEmail,
		PriceID:     req.PriceID,
		FrontendURL: config.CONFIG.FrontendURL,
	})
	if err != nil {
		writeJSON(ctx, http.StatusInternalServerError, models.ErrorResponse{Error: errorMessage(err)})
		return
	}
	writeJSON(ctx, http.StatusOK, models.CheckoutResponse{URL: sess.URL})
}

// VerifyPayment is the synchronous reconciliation entry point. The decline
// response is identical whether the session is unpaid or belongs to another
// user, so the endpoint is not a user-id oracle.
func (h *Handlers) VerifyPayment(ctx *fasthttp.RequestCtx) {
	var req models.VerifyPaymentRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if errs := validateVerifyPaymentRequest(req); len(errs) > 0 {
		writeJSON(ctx, http.StatusBadRequest, models.ValidationErrorResponse{Errors: errs})
		return
	}

	paid, err := h.reconciler.VerifyPayment(ctx, req.SessionID, req.UserID)
	if errors.Is(err, payments.ErrActivationFailed) {
		// payment is real but not yet reflected; the client retries
		// activation, it must not pay again
		writeJSON(ctx, http.StatusBadGateway, models.VerifyPaymentResponse{
			Success: false,
			Error:   "Failed to activate Pro status",
		})
		return
	}
	if err != nil {
		log.Errorf("VerifyPayment: %v", err)
		writeJSON(ctx, http.StatusInternalServerError, models.ErrorResponse{Error: errorMessage(err)})
		return
	}
	if !paid {
		writeJSON(ctx, http.StatusForbidden, models.VerifyPaymentResponse{
			Success: false,
			IsPaid:  false,
			Message: "Payment not verified",
		})
		return
	}
	writeJSON(ctx, http.StatusOK, models.VerifyPaymentResponse{
		Success: true,
		IsPaid:  true,
		Message: "Payment verified and Pro status activated",
	})
}

// Usage returns the entitlement record, creating it on first read.
func (h *Handlers) Usage(ctx *fasthttp.RequestCtx) {
	userId, _ := ctx.UserValue("user_id").(string)
	if !isValidUserId(userId) {
		writeJSON(ctx, http.StatusBadRequest, models.ErrorResponse{Error: "invalid user ID"})
		return
	}
	user, err := h.store.GetOrCreateUser(ctx, userId)
	if err != nil {
		log.Errorf("Usage: %v", err)
		writeJSON(ctx, http.StatusInternalServerError, models.ErrorResponse{Error: errorMessage(err)})
		return
	}
	writeJSON(ctx, http.StatusOK, models.UsageResponse{
		UserID:          user.ID,
		DocumentCount:   user.DocumentCount,
		TranscriptCount: user.TranscriptCount,
		IsPro:           user.IsPro,
	})
}

func (h *Handlers) IncrementDocument(ctx *fasthttp.RequestCtx) {
	h.incrementUsage(ctx, models.DocumentCounter)
}

func (h *Handlers) IncrementTranscript(ctx *fasthttp.RequestCtx) {
	h.incrementUsage(ctx, models.TranscriptCounter)
}

func (h *Handlers) incrementUsage(ctx *fasthttp.RequestCtx, counter models.UsageCounter) {
	var req models.IncrementUsageRequest
	if err := json.Unmarshal(ctx.PostBody(), &req); err != nil {
		writeJSON(ctx, http.StatusBadRequest, models.ErrorResponse{Error: "invalid request body"})
		return
	}
	if !isValidUserId(req.UserID) {
		writeJSON(ctx, http.StatusBadRequest, models.ErrorResponse{Error: "invalid user ID"})
		return
	}

	if _, err := h.store.GetOrCreateUser(ctx, req.UserID); err != nil {
		log.Errorf("incrementUsage: %v", err)
		writeJSON(ctx, http.StatusInternalServerError, models.ErrorResponse{Error: errorMessage(err)})
		return
	}
	count, err := h.store.IncrementUsage(ctx, req.UserID, counter, models.FreeTierLimit)
	if errors.Is(err, mongo.ErrQuotaExceeded) {
		writeJSON(ctx, http.StatusForbidden, models.IncrementUsageResponse{
			Allowed: false,
			Message: "Free tier limit reached. Upgrade to Pro for unlimited usage.",
		})
		return
	}
	if err != nil {
		log.Errorf("incrementUsage: %v", err)
		writeJSON(ctx, http.StatusInternalServerError, models.ErrorResponse{Error: errorMessage(err)})
		return
	}
	writeJSON(ctx, http.StatusOK, models.IncrementUsageResponse{
		Allowed: true,
		Count:   count,
	})
}

func (h *Handlers) Health(ctx *fasthttp.RequestCtx) {
	writeJSON(ctx, http.StatusOK, models.HealthResponse{Status: "ok"})
}

// errorMessage hides provider and store internals outside development mode.
func errorMessage(err error) string {
	if !config.CONFIG.IsProduction() {
		return err.Error()
	}
	return genericErrorMessage
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, v interface{}) {
	ctx.Response.Header.SetStatusCode(status)
	ctx.SetContentType("application/json")
	body, err := json.Marshal(v)
	if err != nil {
		log.Errorf("writeJSON: %v", err)
		return
	}
	ctx.SetBody(body)
}
