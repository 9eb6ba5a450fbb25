package handler

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/rl1809/rocket-cart/internal/core/domain"
	"github.com/rl1809/rocket-cart/internal/core/service"
)

// CartStore is the cart surface the HTTP API drives.
type CartStore interface {
	Cart() domain.Cart
	AddProduct(ctx context.Context, productID int) (domain.Cart, error)
	RemoveProduct(ctx context.Context, productID int) (domain.Cart, error)
	UpdateProductAmount(ctx context.Context, req service.UpdateProductAmount) (domain.Cart, error)
}

// NotificationSource lists recent user-facing notifications.
type NotificationSource interface {
	Recent() []domain.Notification
}

type HTTPHandler struct {
	cart          CartStore
	notifications NotificationSource
	log           logrus.FieldLogger
}

type AddProductRequest struct {
	ProductID int `json:"product_id"`
}

type UpdateAmountRequest struct {
	Amount int `json:"amount"`
}

type CartResponse struct {
	Items       []domain.Product `json:"items"`
	Size        int              `json:"size"`
	ItemsAmount map[int]int      `json:"items_amount"`
	Total       json.Number      `json:"total"`
}

type MutationResponse struct {
	Success bool          `json:"success"`
	Message string        `json:"message,omitempty"`
	Cart    *CartResponse `json:"cart,omitempty"`
}

func NewHTTPHandler(cart CartStore, notifications NotificationSource, log logrus.FieldLogger) *HTTPHandler {
	return &HTTPHandler{cart: cart, notifications: notifications, log: log}
}

// Routes mounts the API. ws may be nil when the live feed is disabled.
func (h *HTTPHandler) Routes(ws http.Handler) http.Handler {
	r := chi.NewRouter()
	r.Use(requestID)
	r.Use(middleware.Recoverer)

	r.Get("/health", h.HealthCheck)

	r.Route("/api", func(r chi.Router) {
		r.Use(middleware.Timeout(30 * time.Second))
		r.Get("/cart", h.GetCart)
		r.Post("/cart/items", h.AddProduct)
		r.Put("/cart/items/{productID}", h.UpdateProductAmount)
		r.Delete("/cart/items/{productID}", h.RemoveProduct)
		r.Get("/notifications", h.ListNotifications)
	})

	if ws != nil {
		r.Get("/ws", ws.ServeHTTP)
	}
	return r
}

func (h *HTTPHandler) GetCart(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, newCartResponse(h.cart.Cart()))
}

func (h *HTTPHandler) AddProduct(w http.ResponseWriter, r *http.Request) {
	var req AddProductRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MutationResponse{Message: "invalid request body"})
		return
	}
	if req.ProductID <= 0 {
		writeJSON(w, http.StatusBadRequest, MutationResponse{Message: "missing required fields"})
		return
	}

	cart, err := h.cart.AddProduct(r.Context(), req.ProductID)
	h.respond(w, r, cart, err)
}

func (h *HTTPHandler) UpdateProductAmount(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}

	var req UpdateAmountRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, MutationResponse{Message: "invalid request body"})
		return
	}

	cart, err := h.cart.UpdateProductAmount(r.Context(), service.UpdateProductAmount{ProductID: productID, Amount: req.Amount})
	h.respond(w, r, cart, err)
}

func (h *HTTPHandler) RemoveProduct(w http.ResponseWriter, r *http.Request) {
	productID, ok := productIDParam(w, r)
	if !ok {
		return
	}
	cart, err := h.cart.RemoveProduct(r.Context(), productID)
	h.respond(w, r, cart, err)
}

func (h *HTTPHandler) ListNotifications(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifications.Recent())
}

func (h *HTTPHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// respond reports the outcome of a mutation. On success the body carries the
// cart that mutation committed.
func (h *HTTPHandler) respond(w http.ResponseWriter, r *http.Request, committed domain.Cart, err error) {
	if err == nil {
		cart := newCartResponse(committed)
		writeJSON(w, http.StatusOK, MutationResponse{Success: true, Cart: &cart})
		return
	}

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, service.ErrStockExceeded):
		status = http.StatusConflict
	case errors.Is(err, service.ErrProductNotInCart):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidAmount):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrGateway):
		status = http.StatusBadGateway
	}

	message := "internal error"
	var rejected *service.RejectedError
	if errors.As(err, &rejected) {
		message = rejected.Message
	}

	h.log.WithFields(logrus.Fields{
		"request_id": r.Header.Get(requestIDHeader),
		"path":       r.URL.Path,
		"status":     status,
	}).WithError(err).Info("cart mutation rejected")

	writeJSON(w, status, MutationResponse{Success: false, Message: message})
}

func newCartResponse(cart domain.Cart) CartResponse {
	return CartResponse{
		Items:       cart,
		Size:        cart.Size(),
		ItemsAmount: cart.ItemsAmount(),
		Total:       json.Number(cart.Total().StringFixed(2)),
	}
}

func productIDParam(w http.ResponseWriter, r *http.Request) (int, bool) {
	id, err := strconv.Atoi(chi.URLParam(r, "productID"))
	if err != nil || id <= 0 {
		writeJSON(w, http.StatusBadRequest, MutationResponse{Message: "invalid product id"})
		return 0, false
	}
	return id, true
}

const requestIDHeader = "X-Request-ID"

func requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.NewString()
			r.Header.Set(requestIDHeader, id)
		}
		w.Header().Set(requestIDHeader, id)
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}
