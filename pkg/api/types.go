package api

import "github.com/Kirk-Client/Kirk-Site/pkg/storefront"

// PaymentIntentRequest is the body of POST /payments/stripe/intent
type PaymentIntentRequest struct {
	// Amount in minor currency units
	Amount        float64           `json:"amount"`
	Currency      string            `json:"currency"`
	CustomerEmail string            `json:"customerEmail"`
	UserID        string            `json:"userId"`
	Items         []storefront.Item `json:"items"`
}

// ChargeRequest is the body of POST /payments/crypto/charge
type ChargeRequest struct {
	// Amount in major currency units
	Amount   float64           `json:"amount"`
	Currency string            `json:"currency"`
	UserID   string            `json:"userId"`
	Email    string            `json:"email"`
	Items    []storefront.Item `json:"items"`
}

// AuthEvent is the body of the auth event routes
type AuthEvent struct {
	UID         string `json:"uid"`
	Email       string `json:"email"`
	DisplayName string `json:"displayName"`
}

// ErrorResponse is written for every failed request
type ErrorResponse struct {
	Error string `json:"error"`
}
