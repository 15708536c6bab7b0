package models

type CheckoutRequest struct {
	UserID    string `json:"user_id"`
	UserEmail string `json:"user_email"`
	PriceID   string `json:"price_id"`
}

type CheckoutResponse struct {
	URL string `json:"url"`
}

type VerifyPaymentRequest struct {
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id"`
}

type VerifyPaymentResponse struct {
	Success bool   `json:"success"`
	IsPaid  bool   `json:"isPaid"`
	Message string `json:"message,omitempty"`
	Error   string `json:"error,omitempty"`
}

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

type ValidationErrorResponse struct {
	Errors []FieldError `json:"errors"`
}

type ErrorResponse struct {
	Error string `json:"error"`
}

type UsageResponse struct {
	UserID          string `json:"user_id"`
	DocumentCount   int64  `json:"document_count"`
	TranscriptCount int64  `json:"transcript_count"`
	IsPro           bool   `json:"is_pro"`
}

type IncrementUsageRequest struct {
	UserID string `json:"user_id"`
}

type IncrementUsageResponse struct {
	Allowed bool   `json:"allowed"`
	Count   int64  `json:"count,omitempty"`
	Message string `json:"message,omitempty"`
}

type WebhookResponse struct {
	Received bool `json:"received"`
}

type HealthResponse struct {
	Status string `json:"status"`
}
