// Package api exposes the storefront's checkout, webhook and account endpoints over HTTP.
package api

import (
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/Kirk-Client/Kirk-Site/pkg/accounts"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/coinbase"
	"github.com/Kirk-Client/Kirk-Site/pkg/billing/stripe"
	"github.com/Kirk-Client/Kirk-Site/pkg/storefront"
)

const defaultMaxBodyBytes = 64 * 1024

var (
	errInvalidAmount    = errors.New("Invalid amount")
	errMethodNotAllowed = errors.New("Method not allowed")
	errUnauthorized     = errors.New("Unauthorized")
	errInvalidBody      = errors.New("Invalid request body")
)

// Handler serves the storefront HTTP API
type Handler struct {
	config Config
	logger storefront.Logger
	now    func() time.Time
}

// NewHandler creates a new API handler with the given configuration
func NewHandler(config Config) (*Handler, error) {
	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	if config.MaxBodyBytes == 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	logger := config.Logger
	if logger == nil {
		logger = &storefront.NoopLogger{}
	}
	return &Handler{
		config: config,
		logger: logger,
		now:    time.Now,
	}, nil
}

// Router builds the chi router for every configured route
func (h *Handler) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	for _, mw := range h.config.Middlewares {
		r.Use(mw)
	}
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		h.handleError(w, r, errMethodNotAllowed, http.StatusMethodNotAllowed)
	})

	r.Get("/healthz", h.Health)
	if h.config.MetricsHandler != nil {
		r.Method(http.MethodGet, "/metrics", h.config.MetricsHandler)
	}

	if h.config.PaymentIntents != nil {
		r.Post("/payments/stripe/intent", h.CreatePaymentIntent)
	}
	if h.config.Charges != nil {
		r.Post("/payments/crypto/charge", h.CreateCryptoCharge)
	}

	// Dispatchers answer non-POST methods themselves.
	if h.config.StripeWebhook != nil {
		r.Handle("/webhooks/stripe", h.config.StripeWebhook)
	}
	if h.config.CoinbaseWebhook != nil {
		r.Handle("/webhooks/coinbase", h.config.CoinbaseWebhook)
	}

	if h.config.Accounts != nil && h.config.AdminToken != "" {
		r.Group(func(r chi.Router) {
			r.Use(h.requireAdmin)
			r.Post("/admin/users/reconcile", h.ReconcileUsers)
			r.Post("/auth/events/user-created", h.UserCreated)
			r.Post("/auth/events/user-deleted", h.UserDeleted)
		})
	}
	return r
}

// Health reports liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// CreatePaymentIntent creates a card payment intent for the posted cart
func (h *Handler) CreatePaymentIntent(w http.ResponseWriter, r *http.Request) {
	var req PaymentIntentRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		h.handleError(w, r, errInvalidAmount, http.StatusBadRequest)
		return
	}

	intent, err := h.config.PaymentIntents.CreatePaymentIntent(r.Context(), stripe.PaymentIntentRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Email:    req.CustomerEmail,
		UserID:   req.UserID,
		Items:    req.Items,
	})
	if err != nil {
		h.handleProviderError(w, r, "failed to create payment intent", err)
		return
	}
	h.writeJSON(w, http.StatusOK, intent)
}

// CreateCryptoCharge creates a hosted crypto charge and records it as pending
func (h *Handler) CreateCryptoCharge(w http.ResponseWriter, r *http.Request) {
	var req ChargeRequest
	if err := h.decode(w, r, &req); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if req.Amount <= 0 {
		h.handleError(w, r, errInvalidAmount, http.StatusBadRequest)
		return
	}

	ctx := r.Context()
	charge, err := h.config.Charges.CreateCharge(ctx, coinbase.ChargeRequest{
		Amount:   req.Amount,
		Currency: req.Currency,
		Email:    req.Email,
		UserID:   req.UserID,
		Items:    req.Items,
	})
	if err != nil {
		h.handleProviderError(w, r, "failed to create crypto charge", err)
		return
	}

	items := req.Items
	if items == nil {
		items = []storefront.Item{}
	}
	pending := &storefront.CryptoPayment{
		ChargeID:  charge.ID,
		UserID:    storefront.UserIDOrGuest(req.UserID),
		Email:     req.Email,
		Items:     items,
		Amount:    req.Amount,
		Status:    storefront.CryptoPaymentPending,
		CreatedAt: h.now().UTC(),
	}
	if _, err := h.config.CryptoPayments.AddCryptoPayment(ctx, pending); err != nil {
		h.logger.Error("Failed to record pending crypto payment",
			storefront.Field{Key: "charge_id", Value: charge.ID},
			storefront.Field{Key: "error", Value: err},
		)
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}

	h.logger.Info("Crypto charge created",
		storefront.Field{Key: "charge_id", Value: charge.ID},
		storefront.Field{Key: "user_id", Value: pending.UserID},
	)
	h.writeJSON(w, http.StatusOK, charge)
}

// ReconcileUsers creates user documents for every auth user missing one
func (h *Handler) ReconcileUsers(w http.ResponseWriter, r *http.Request) {
	report, err := h.config.Accounts.ReconcileUsers(r.Context())
	if err != nil {
		h.logger.Error("User reconciliation failed", storefront.Field{Key: "error", Value: err})
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, struct {
		Success bool   `json:"success"`
		Message string `json:"message"`
		*accounts.ReconcileReport
	}{
		Success:         true,
		Message:         "User document check/creation complete",
		ReconcileReport: report,
	})
}

// UserCreated provisions the user document for a new auth account
func (h *Handler) UserCreated(w http.ResponseWriter, r *http.Request) {
	var event AuthEvent
	if err := h.decode(w, r, &event); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	created, err := h.config.Accounts.OnUserCreate(r.Context(), accounts.AuthUser{
		UID:         event.UID,
		Email:       event.Email,
		DisplayName: event.DisplayName,
	})
	if err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"created": created})
}

// UserDeleted removes the user document of a deleted auth account
func (h *Handler) UserDeleted(w http.ResponseWriter, r *http.Request) {
	var event AuthEvent
	if err := h.decode(w, r, &event); err != nil {
		h.handleError(w, r, err, http.StatusBadRequest)
		return
	}
	if err := h.config.Accounts.OnUserDelete(r.Context(), event.UID); err != nil {
		h.handleError(w, r, err, http.StatusInternalServerError)
		return
	}
	h.writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (h *Handler) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if h.config.AdminToken == "" || subtle.ConstantTimeCompare([]byte(token), []byte(h.config.AdminToken)) != 1 {
			h.handleError(w, r, errUnauthorized, http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (h *Handler) decode(w http.ResponseWriter, r *http.Request, v interface{}) error {
	body := http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)
	defer body.Close()
	if err := json.NewDecoder(body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		return errInvalidBody
	}
	return nil
}

func (h *Handler) handleProviderError(w http.ResponseWriter, r *http.Request, msg string, err error) {
	if errors.Is(err, storefront.ErrInvalidAmount) {
		h.handleError(w, r, errInvalidAmount, http.StatusBadRequest)
		return
	}
	h.logger.Error(msg, storefront.Field{Key: "error", Value: err})
	code := http.StatusInternalServerError
	if errors.Is(err, billing.ErrProviderNotConfigured) {
		code = http.StatusServiceUnavailable
	}
	h.handleError(w, r, err, code)
}

func (h *Handler) handleError(w http.ResponseWriter, r *http.Request, err error, code int) {
	if h.config.OnError != nil {
		h.config.OnError(w, r, err, code)
		return
	}
	h.writeJSON(w, code, ErrorResponse{Error: err.Error()})
}

func (h *Handler) writeJSON(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to write response", storefront.Field{Key: "error", Value: err})
	}
}
