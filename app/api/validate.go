package api

import (
	"net/mail"
	"regexp"

	"docuchat/m/v2/app/models"

	"github.com/google/uuid"
)

// Input grammars, matched before any gateway call is made.
var (
	priceIdPattern   = regexp.MustCompile(`^price_[A-Za-z0-9_]+$`)
	sessionIdPattern = regexp.MustCompile(`^cs_(test|live)_[A-Za-z0-9]+$`)
)

func isValidUserId(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}

func isValidEmail(value string) bool {
	addr, err := mail.ParseAddress(value)
	return err == nil && addr.Address == value
}

func validateCheckoutRequest(req models.CheckoutRequest) []models.FieldError {
	var errs []models.FieldError
	if !isValidUserId(req.UserID) {
		errs = append(errs, models.FieldError{Field: "user_id", Message: "Invalid user ID"})
	}
	if !isValidEmail(req.UserEmail) {
		errs = append(errs, models.FieldError{Field: "user_email", Message: "Invalid email"})
	}
	if !priceIdPattern.MatchString(req.PriceID) {
		errs = append(errs, models.FieldError{Field: "price_id", Message: "Invalid price ID"})
	}
	return errs
}

func validateVerifyPaymentRequest(req models.VerifyPaymentRequest) []models.FieldError {
	var errs []models.FieldError
	if !sessionIdPattern.MatchString(req.SessionID) {
		errs = append(errs, models.FieldError{Field: "session_id", Message: "Invalid session ID"})
	}
	if !isValidUserId(req.UserID) {
		errs = append(errs, models.FieldError{Field: "user_id", Message: "Invalid user ID"})
	}
	return errs
}
