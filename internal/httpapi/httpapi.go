// Package httpapi exposes the terminal-facing REST surface. Handlers stay
// thin: decode, validate, call the service, map errors to status codes.
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"apotekpos/backend/internal/allocator"
	"apotekpos/backend/internal/availability"
	"apotekpos/backend/internal/cart"
	"apotekpos/backend/internal/checkout"
	"apotekpos/backend/internal/domain"
	"apotekpos/backend/internal/store"
)

type API struct {
	ledger        store.Ledger
	checker       *availability.Service
	carts         *cart.Manager
	committer     *checkout.Committer
	sessions      *SessionManager
	allowedOrigin string
	logger        *zap.Logger
	validate      *validator.Validate
}

func New(ledger store.Ledger, checker *availability.Service, carts *cart.Manager, committer *checkout.Committer, sessions *SessionManager, allowedOrigin string, logger *zap.Logger) *API {
	return &API{
		ledger:        ledger,
		checker:       checker,
		carts:         carts,
		committer:     committer,
		sessions:      sessions,
		allowedOrigin: allowedOrigin,
		logger:        logger,
		validate:      validator.New(validator.WithRequiredStructEnabled()),
	}
}

func (a *API) Handler() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/healthz", a.handleHealth)

	mux.HandleFunc("/api/v1/products", a.requireSession(a.handleProducts))
	mux.HandleFunc("/api/v1/products/", a.requireSession(a.handleProductActions))
	mux.HandleFunc("/api/v1/inventory/batches", a.requireSession(a.handleReceiveBatch))
	mux.HandleFunc("/api/v1/inventory/adjust", a.requireSession(a.handleAdjustStock))
	mux.HandleFunc("/api/v1/inventory/expiry-report", a.requireSession(a.handleExpiryReport))

	mux.HandleFunc("/api/v1/availability/check", a.requireSession(a.handleAvailabilityCheck))

	mux.HandleFunc("/api/v1/cart", a.requireSession(a.handleCart))
	mux.HandleFunc("/api/v1/cart/items", a.requireSession(a.handleCartAdd))
	mux.HandleFunc("/api/v1/cart/items/", a.requireSession(a.handleCartItemActions))
	mux.HandleFunc("/api/v1/cart/discount", a.requireSession(a.handleCartDiscount))
	mux.HandleFunc("/api/v1/cart/tax", a.requireSession(a.handleCartTax))
	mux.HandleFunc("/api/v1/cart/clear", a.requireSession(a.handleCartClear))

	mux.HandleFunc("/api/v1/checkout", a.requireSession(a.handleCheckout))

	mux.HandleFunc("/api/v1/sales", a.requireSession(a.handleSales))
	mux.HandleFunc("/api/v1/sales/", a.requireSession(a.handleSaleActions))

	mux.HandleFunc("/api/v1/events", a.requireSession(a.handleEvents))

	return a.withMiddleware(mux)
}

func (a *API) requireSession(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			a.writeError(w, http.StatusUnauthorized, errors.New("missing bearer token"))
			return
		}
		session, err := a.sessions.Verify(strings.TrimPrefix(header, "Bearer "))
		if err != nil {
			a.writeError(w, http.StatusUnauthorized, err)
			return
		}
		next(w, r.WithContext(contextWithSession(r.Context(), session)))
	}
}

func (a *API) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}

func (a *API) handleProducts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	products, err := a.ledger.ListProducts(r.Context(), session.TenantID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"products": products})
}

// handleProductActions serves /api/v1/products/{id}/batches.
func (a *API) handleProductActions(w http.ResponseWriter, r *http.Request) {
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/products/")
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] != "batches" {
		a.writeError(w, http.StatusNotFound, errors.New("unknown product action"))
		return
	}
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	includeExpired := r.URL.Query().Get("include_expired") == "true"
	batches, err := a.ledger.ListBatches(r.Context(), session.TenantID, parts[0], includeExpired)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"batches": batches})
}

type receiveBatchRequest struct {
	ProductID   string    `json:"product_id" validate:"required"`
	BatchNumber string    `json:"batch_number" validate:"required"`
	ExpiryDate  time.Time `json:"expiry_date" validate:"required"`
	Qty         int       `json:"qty" validate:"required,gt=0"`
	SupplierID  string    `json:"supplier_id"`
}

func (a *API) handleReceiveBatch(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req receiveBatchRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	batch, err := a.ledger.ReceiveBatch(r.Context(), session.TenantID, domain.Batch{
		ProductID:   req.ProductID,
		BatchNumber: req.BatchNumber,
		ExpiryDate:  req.ExpiryDate,
		Qty:         req.Qty,
		SupplierID:  req.SupplierID,
	})
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, map[string]any{"batch": batch})
}

type adjustStockRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	Qty       int    `json:"qty" validate:"gte=0"`
}

func (a *API) handleAdjustStock(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req adjustStockRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	if err := a.ledger.AdjustStock(r.Context(), session.TenantID, req.ProductID, req.Qty); err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"product_id": req.ProductID, "stock": req.Qty})
}

type expiryReportEntry struct {
	Batch          domain.Batch `json:"batch"`
	Classification string       `json:"classification"`
}

func (a *API) handleExpiryReport(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	products, err := a.ledger.ListProducts(r.Context(), session.TenantID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	now := time.Now().UTC()
	entries := make([]expiryReportEntry, 0, 32)
	for _, p := range products {
		if !p.BatchTracked {
			continue
		}
		batches, err := a.ledger.ListBatches(r.Context(), session.TenantID, p.ID, true)
		if err != nil {
			a.writeStoreError(w, err)
			return
		}
		for _, b := range batches {
			if b.Qty < 1 || !b.Active {
				continue
			}
			entries = append(entries, expiryReportEntry{
				Batch:          b,
				Classification: allocator.Classify(b.ExpiryDate, now),
			})
		}
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"entries": entries})
}

type availabilityCheckRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	BatchID   string `json:"batch_id"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

func (a *API) handleAvailabilityCheck(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req availabilityCheckRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	current, err := a.carts.Load(r.Context(), session.TenantID, session.TerminalID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}

	verdict, err := a.checker.CanAdd(r.Context(), session.TenantID, availability.Request{
		ProductID:    req.ProductID,
		BatchID:      req.BatchID,
		RequestedQty: req.Qty,
		HeldQty:      current.QtyOf(req.ProductID, req.BatchID),
	})
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, verdict)
}

func (a *API) handleCart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	current, err := a.carts.Load(r.Context(), session.TenantID, session.TerminalID)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, current)
}

type cartAddRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	BatchID   string `json:"batch_id"`
	Qty       int    `json:"qty" validate:"required,gt=0"`
}

func (a *API) handleCartAdd(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req cartAddRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := a.carts.AddItem(r.Context(), session.TenantID, session.TerminalID, req.ProductID, req.BatchID, req.Qty)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, updated)
}

type cartLineRequest struct {
	ProductID string `json:"product_id" validate:"required"`
	BatchID   string `json:"batch_id"`
}

// handleCartItemActions serves /api/v1/cart/items/{increment|decrement|remove}.
func (a *API) handleCartItemActions(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	action := strings.TrimPrefix(r.URL.Path, "/api/v1/cart/items/")

	var req cartLineRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	var updated *cart.Cart
	var err error
	switch action {
	case "increment":
		updated, err = a.carts.IncrementQty(r.Context(), session.TenantID, session.TerminalID, req.ProductID, req.BatchID)
	case "decrement":
		updated, err = a.carts.DecrementQty(r.Context(), session.TenantID, session.TerminalID, req.ProductID, req.BatchID)
	case "remove":
		updated, err = a.carts.RemoveItem(r.Context(), session.TenantID, session.TerminalID, req.ProductID, req.BatchID)
	default:
		a.writeError(w, http.StatusNotFound, fmt.Errorf("unknown cart action %q", action))
		return
	}
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, updated)
}

type cartDiscountRequest struct {
	Value float64 `json:"value" validate:"gte=0"`
	Type  string  `json:"type" validate:"required,oneof=amount percent"`
}

func (a *API) handleCartDiscount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req cartDiscountRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := a.carts.SetDiscount(r.Context(), session.TenantID, session.TerminalID, req.Value, req.Type)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, updated)
}

type cartTaxRequest struct {
	Percent float64 `json:"percent" validate:"gte=0,lte=100"`
}

func (a *API) handleCartTax(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req cartTaxRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	updated, err := a.carts.SetTaxRate(r.Context(), session.TenantID, session.TerminalID, req.Percent)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, updated)
}

func (a *API) handleCartClear(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	if err := a.carts.Clear(r.Context(), session.TenantID, session.TerminalID); err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeCart(w, cart.NewCart())
}

type checkoutRequest struct {
	IdempotencyKey string `json:"idempotency_key"`
	PaymentMethod  string `json:"payment_method" validate:"required,oneof=cash card qris transfer"`
	TenderedCents  int64  `json:"tendered_cents" validate:"gte=0"`
}

func (a *API) handleCheckout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	var req checkoutRequest
	if !a.decodeAndValidate(w, r, &req) {
		return
	}

	result, err := a.committer.Commit(r.Context(), checkout.Request{
		TenantID:       session.TenantID,
		SessionID:      session.TerminalID,
		IdempotencyKey: req.IdempotencyKey,
		PaymentMethod:  req.PaymentMethod,
		TenderedCents:  req.TenderedCents,
	})
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusCreated, result)
}

func (a *API) handleSales(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	now := time.Now().UTC()
	from := now.Add(-24 * time.Hour)
	to := now.Add(time.Minute)
	if raw := r.URL.Query().Get("from"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid from: %v", err))
			return
		}
		from = parsed
	}
	if raw := r.URL.Query().Get("to"); raw != "" {
		parsed, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			a.writeError(w, http.StatusBadRequest, fmt.Errorf("invalid to: %v", err))
			return
		}
		to = parsed
	}
	limit := parsePositiveLimit(r.URL.Query().Get("limit"), 100, 500)

	sales, err := a.ledger.ListSales(r.Context(), session.TenantID, from, to, limit)
	if err != nil {
		a.writeStoreError(w, err)
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]any{"sales": sales})
}

type refundRequest struct {
	Reason string `json:"reason" validate:"required"`
}

// handleSaleActions serves /api/v1/sales/{id} and /api/v1/sales/{id}/refund.
func (a *API) handleSaleActions(w http.ResponseWriter, r *http.Request) {
	session, _ := sessionFromContext(r.Context())
	rest := strings.TrimPrefix(r.URL.Path, "/api/v1/sales/")
	parts := strings.Split(rest, "/")

	switch {
	case len(parts) == 1 && parts[0] != "":
		if r.Method != http.MethodGet {
			a.writeMethodNotAllowed(w)
			return
		}
		sale, err := a.ledger.GetSale(r.Context(), session.TenantID, parts[0])
		if err != nil {
			a.writeStoreError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"sale": sale})

	case len(parts) == 2 && parts[0] != "" && parts[1] == "refund":
		if r.Method != http.MethodPost {
			a.writeMethodNotAllowed(w)
			return
		}
		var req refundRequest
		if !a.decodeAndValidate(w, r, &req) {
			return
		}
		sale, err := a.ledger.MarkSaleRefunded(r.Context(), session.TenantID, parts[0], req.Reason)
		if err != nil {
			a.writeStoreError(w, err)
			return
		}
		a.writeJSON(w, http.StatusOK, map[string]any{"sale": sale})

	default:
		a.writeError(w, http.StatusNotFound, errors.New("unknown sale action"))
	}
}

// handleEvents streams ledger changes for the session's tenant as
// server-sent events until the client disconnects.
func (a *API) handleEvents(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		a.writeMethodNotAllowed(w)
		return
	}
	session, _ := sessionFromContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		a.writeError(w, http.StatusInternalServerError, errors.New("streaming unsupported"))
		return
	}

	events, cancel := a.ledger.Watch(session.TenantID)
	defer cancel()

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	keepalive := time.NewTicker(25 * time.Second)
	defer keepalive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case <-keepalive.C:
			fmt.Fprint(w, ": keepalive\n\n")
			flusher.Flush()
		case event, open := <-events:
			if !open {
				return
			}
			payload, err := json.Marshal(event)
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: ledger\ndata: %s\n\n", payload)
			flusher.Flush()
		}
	}
}

func (a *API) withMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("Access-Control-Allow-Origin", a.allowedOrigin)
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,OPTIONS")
		w.Header().Set("Vary", "Origin")

		if r.Method == http.MethodPost && strings.Contains(strings.ToLower(r.Header.Get("Content-Type")), "application/json") {
			r.Body = http.MaxBytesReader(w, r.Body, 1<<20)
		}

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}

		startedAt := time.Now()
		next.ServeHTTP(w, r)
		a.logger.Debug("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Duration("took", time.Since(startedAt)))
	})
}

func (a *API) writeCart(w http.ResponseWriter, c *cart.Cart) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"cart":   c,
		"totals": c.Totals(),
	})
}

func (a *API) decodeAndValidate(w http.ResponseWriter, r *http.Request, dest any) bool {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	if err := decoder.Decode(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	if err := a.validate.Struct(dest); err != nil {
		a.writeError(w, http.StatusBadRequest, err)
		return false
	}
	return true
}

// writeStoreError maps service errors to HTTP statuses. A commit rejection is
// a 409 carrying every violation so the terminal can render them all.
func (a *API) writeStoreError(w http.ResponseWriter, err error) {
	var commitErr *store.CommitError
	if errors.As(err, &commitErr) {
		a.writeJSON(w, http.StatusConflict, map[string]any{
			"error":      commitErr.Error(),
			"violations": commitErr.Violations,
		})
		return
	}

	switch {
	case errors.Is(err, store.ErrNotFound),
		errors.Is(err, store.ErrProductNotFound),
		errors.Is(err, store.ErrBatchNotFound):
		a.writeError(w, http.StatusNotFound, err)
	case errors.Is(err, store.ErrBatchExpired):
		a.writeError(w, http.StatusConflict, err)
	case errors.Is(err, store.ErrInvalidSale):
		a.writeError(w, http.StatusUnprocessableEntity, err)
	case errors.Is(err, store.ErrPersistence):
		a.writeError(w, http.StatusServiceUnavailable, err)
	default:
		a.writeError(w, http.StatusInternalServerError, err)
	}
}

func parsePositiveLimit(raw string, fallback int, max int) int {
	limit := fallback
	if trimmed := strings.TrimSpace(raw); trimmed != "" {
		if parsed, err := strconv.Atoi(trimmed); err == nil && parsed > 0 {
			limit = parsed
		}
	}
	if max > 0 && limit > max {
		return max
	}
	return limit
}

func (a *API) writeMethodNotAllowed(w http.ResponseWriter) {
	a.writeError(w, http.StatusMethodNotAllowed, errors.New("method not allowed"))
}

func (a *API) writeError(w http.ResponseWriter, status int, err error) {
	msg := err.Error()
	if status >= 500 {
		a.logger.Error("request failed", zap.Int("status", status), zap.Error(err))
		msg = "internal server error"
	}
	a.writeJSON(w, status, map[string]any{"error": msg})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
