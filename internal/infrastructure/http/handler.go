package httptransport

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	appOrder "github.com/heroeats/marketplace/internal/application/order"
	"github.com/heroeats/marketplace/internal/application/webhook"
	domainCatalog "github.com/heroeats/marketplace/internal/domain/catalog"
	domainInventory "github.com/heroeats/marketplace/internal/domain/inventory"
	domainOrder "github.com/heroeats/marketplace/internal/domain/order"
	domainPayment "github.com/heroeats/marketplace/internal/domain/payment"
	"github.com/heroeats/marketplace/internal/pkg/logging"
)

const maxWebhookBody = 1 << 20 // 1 MiB

type Handler struct {
	orders     *appOrder.Service
	reconciler *webhook.Reconciler
}

func NewHandler(orders *appOrder.Service, reconciler *webhook.Reconciler) *Handler {
	return &Handler{orders: orders, reconciler: reconciler}
}

func (h *Handler) Router() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /orders", h.handleCreateOrder)
	mux.HandleFunc("GET /orders", h.handleListOrders)
	mux.HandleFunc("GET /orders/{id}", h.handleGetOrder)
	mux.HandleFunc("POST /orders/{id}/payment", h.handleInitiatePayment)
	mux.HandleFunc("POST /orders/{id}/cancel", h.handleCancelOrder)
	mux.HandleFunc("POST /orders/{id}/status", h.handleUpdateStatus)
	mux.HandleFunc("POST /payments/complete", h.handleCompletePayment)
	mux.HandleFunc("POST /payments/cancel", h.handleCancelPayment)
	mux.HandleFunc("POST /webhooks/{provider}", h.handleWebhook)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	return withRequestLogger(mux)
}

// withRequestLogger stamps a request-scoped logger onto the context so the
// application layers log with the request attached.
func withRequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		logger := zap.L().With(
			zap.String("request_id", uuid.NewString()),
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
		)
		next.ServeHTTP(w, r.WithContext(logging.ContextWithLogger(r.Context(), logger)))
	})
}

type lineRequest struct {
	ProductID string `json:"product_id"`
	Quantity  int    `json:"quantity"`
}

type createOrderRequest struct {
	UserID     string        `json:"user_id"`
	Lines      []lineRequest `json:"lines"`
	PickupTime time.Time     `json:"pickup_time"`
}

type lineResponse struct {
	ProductID   string `json:"product_id"`
	ProductName string `json:"product_name"`
	Quantity    int    `json:"quantity"`
	UnitPrice   string `json:"unit_price"`
}

type orderResponse struct {
	OrderID          string         `json:"order_id"`
	UserID           string         `json:"user_id"`
	Lines            []lineResponse `json:"lines"`
	TotalAmount      string         `json:"total_amount"`
	Currency         string         `json:"currency"`
	Status           string         `json:"status"`
	PaymentStatus    string         `json:"payment_status,omitempty"`
	PaymentProvider  string         `json:"payment_provider,omitempty"`
	PaymentReference string         `json:"payment_reference,omitempty"`
	PickupTime       *time.Time     `json:"pickup_time,omitempty"`
}

func toOrderResponse(o *domainOrder.Order) orderResponse {
	resp := orderResponse{
		OrderID:          o.ID,
		UserID:           o.UserID,
		TotalAmount:      o.Total.Amount.StringFixed(2),
		Currency:         o.Total.Currency.String(),
		Status:           string(o.Status),
		PaymentStatus:    string(o.PaymentStatus),
		PaymentProvider:  o.PaymentProvider,
		PaymentReference: o.PaymentReference,
	}
	if !o.PickupTime.IsZero() {
		pickup := o.PickupTime
		resp.PickupTime = &pickup
	}
	for _, line := range o.Lines {
		resp.Lines = append(resp.Lines, lineResponse{
			ProductID:   line.ProductID,
			ProductName: line.ProductName,
			Quantity:    line.Quantity,
			UnitPrice:   line.UnitPrice.Amount.StringFixed(2),
		})
	}
	return resp
}

func (h *Handler) handleCreateOrder(w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	lines := make([]appOrder.LineInput, 0, len(req.Lines))
	for _, line := range req.Lines {
		lines = append(lines, appOrder.LineInput{ProductID: line.ProductID, Quantity: line.Quantity})
	}

	result, err := h.orders.CreateOrder(r.Context(), appOrder.CreateOrderInput{
		UserID:     req.UserID,
		Lines:      lines,
		PickupTime: req.PickupTime,
	})
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(result))
}

func (h *Handler) handleGetOrder(w http.ResponseWriter, r *http.Request) {
	result, err := h.orders.GetOrder(r.Context(), r.PathValue("id"), r.URL.Query().Get("user_id"))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

func (h *Handler) handleListOrders(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, errors.New("user_id is required"))
		return
	}

	results, err := h.orders.ListOrdersForUser(r.Context(), userID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	resp := make([]orderResponse, 0, len(results))
	for _, o := range results {
		resp = append(resp, toOrderResponse(o))
	}
	writeJSON(w, http.StatusOK, resp)
}

type initiatePaymentRequest struct {
	Provider string `json:"provider"`
}

type initiatePaymentResponse struct {
	PaymentReference string `json:"payment_reference"`
	RedirectURL      string `json:"redirect_url"`
}

func (h *Handler) handleInitiatePayment(w http.ResponseWriter, r *http.Request) {
	var req initiatePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	session, err := h.orders.InitiatePayment(r.Context(), r.PathValue("id"), req.Provider)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, initiatePaymentResponse{
		PaymentReference: session.Reference,
		RedirectURL:      session.RedirectURL,
	})
}

type completePaymentRequest struct {
	PaymentReference string `json:"payment_reference"`
	ApproverToken    string `json:"approver_token"`
}

func (h *Handler) handleCompletePayment(w http.ResponseWriter, r *http.Request) {
	var req completePaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orders.CompletePayment(r.Context(), req.PaymentReference, req.ApproverToken)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

type cancelPaymentRequest struct {
	PaymentReference string `json:"payment_reference"`
}

func (h *Handler) handleCancelPayment(w http.ResponseWriter, r *http.Request) {
	var req cancelPaymentRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orders.CancelPayment(r.Context(), req.PaymentReference)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

type cancelOrderRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) handleCancelOrder(w http.ResponseWriter, r *http.Request) {
	var req cancelOrderRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	if err := h.orders.CancelOrder(r.Context(), r.PathValue("id"), req.UserID); err != nil {
		writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

func (h *Handler) handleUpdateStatus(w http.ResponseWriter, r *http.Request) {
	var req updateStatusRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	result, err := h.orders.UpdateOrderStatus(r.Context(), r.PathValue("id"), domainOrder.Status(req.Status))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(result))
}

func (h *Handler) handleWebhook(w http.ResponseWriter, r *http.Request) {
	provider := r.PathValue("provider")

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}

	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		signature = r.Header.Get("X-Webhook-Signature")
	}

	if err := h.reconciler.Handle(r.Context(), provider, payload, signature); err != nil {
		switch {
		case errors.Is(err, webhook.ErrInvalidSignature),
			errors.Is(err, webhook.ErrMalformedEvent),
			errors.Is(err, webhook.ErrUnknownProvider):
			writeError(w, http.StatusBadRequest, err)
		default:
			writeError(w, http.StatusInternalServerError, err)
		}
		return
	}

	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, domainOrder.ErrNotFound),
		errors.Is(err, domainOrder.ErrUnknownReference),
		errors.Is(err, domainCatalog.ErrProductNotFound),
		errors.Is(err, domainCatalog.ErrUserNotFound),
		errors.Is(err, domainInventory.ErrNotFound):
		writeError(w, http.StatusNotFound, err)
	case errors.Is(err, domainOrder.ErrNotOwner):
		writeError(w, http.StatusForbidden, err)
	case errors.Is(err, domainInventory.ErrInsufficientStock),
		errors.Is(err, domainOrder.ErrNotPending),
		errors.Is(err, domainOrder.ErrInvalidState),
		errors.Is(err, domainOrder.ErrPaymentFinal),
		errors.Is(err, domainOrder.ErrConflict):
		writeError(w, http.StatusConflict, err)
	case errors.Is(err, domainInventory.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrInvalidQuantity),
		errors.Is(err, domainOrder.ErrNoLines),
		errors.Is(err, domainPayment.ErrUnknownProvider),
		errors.Is(err, appOrder.ErrCreationFailed):
		writeError(w, http.StatusBadRequest, err)
	case errors.Is(err, domainPayment.ErrProvider):
		writeError(w, http.StatusBadGateway, err)
	default:
		writeError(w, http.StatusInternalServerError, err)
	}
}
