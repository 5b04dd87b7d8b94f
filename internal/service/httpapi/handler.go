// Package httpapi - HTTP-интерфейс заказов покупателей и поставщиков.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
	"github.com/vladislavdragonenkov/backoffice/internal/service/orders"
)

// maxBodyBytes ограничивает размер тела запроса.
const maxBodyBytes = 1 << 20

// OrderService - операции, которые HTTP-слой вызывает у сервиса заказов.
type OrderService interface {
	CreateCustomerOrder(ctx context.Context, in orders.CreateInput) (domain.Order, error)
	CreateSupplierOrder(ctx context.Context, in orders.CreateInput) (domain.Order, error)
	UpdateCustomerOrder(ctx context.Context, in orders.UpdateInput) (domain.Order, error)
	UpdateSupplierOrder(ctx context.Context, in orders.UpdateInput) (domain.Order, error)
	ChangeSituation(ctx context.Context, in orders.ChangeSituationInput) (domain.Order, error)
	GetOrder(ctx context.Context, kind domain.OrderKind, id int64) (domain.Order, error)
	SoftDelete(ctx context.Context, kind domain.OrderKind, id, actor int64) error
	HardDelete(ctx context.Context, kind domain.OrderKind, id, actor int64) error
	ListProductStockLogs(ctx context.Context, productID int64, limit int) ([]domain.StockLogEntry, error)
	ListOrderStockLogs(ctx context.Context, kind domain.OrderKind, id int64) ([]domain.StockLogEntry, error)
}

// Handler обслуживает HTTP API.
type Handler struct {
	orders OrderService
	auth   Authenticator
	logger *log.Entry
	// timeout ограничивает обработку одного запроса; 0 отключает ограничение.
	timeout time.Duration
}

// NewHandler создаёт обработчик API.
func NewHandler(svc OrderService, auth Authenticator, logger *log.Entry, timeout time.Duration) *Handler {
	if logger == nil {
		logger = log.WithField("component", "http-api")
	}
	return &Handler{orders: svc, auth: auth, logger: logger, timeout: timeout}
}

// Routes собирает chi-роутер со всеми маршрутами API.
func (h *Handler) Routes() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(accessLog(h.logger))
	r.Use(middleware.Recoverer)
	if h.timeout > 0 {
		r.Use(middleware.Timeout(h.timeout))
	}

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusNotFound, "route not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	r.Group(func(r chi.Router) {
		r.Use(requireBearer(h.auth))

		h.mountOrders(r, "/customer-orders", domain.OrderKindCustomer)
		h.mountOrders(r, "/supplier-orders", domain.OrderKindSupplier)
		r.Get("/products/{id}/stock-logs", h.listProductStockLogs)
	})
	return r
}

func (h *Handler) mountOrders(r chi.Router, prefix string, kind domain.OrderKind) {
	r.Route(prefix, func(r chi.Router) {
		r.Post("/", h.createOrder(kind))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", h.getOrder(kind))
			r.Put("/", h.updateOrder(kind))
			r.Delete("/", h.softDelete(kind))
			r.Patch("/situation", h.changeSituation(kind))
			r.Delete("/permanent", h.hardDelete(kind))
			r.Get("/stock-logs", h.listOrderStockLogs(kind))
		})
	})
}

func (h *Handler) createOrder(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req orderRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		items, err := req.items()
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		actor, _ := ActorFromContext(r.Context())
		in := orders.CreateInput{
			Header:    req.header(kind),
			Situation: domain.Situation(req.Situation),
			Items:     items,
			Actor:     actor,
		}

		var order domain.Order
		if kind == domain.OrderKindSupplier {
			order, err = h.orders.CreateSupplierOrder(r.Context(), in)
		} else {
			order, err = h.orders.CreateCustomerOrder(r.Context(), in)
		}
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, "order created", newOrderResponse(order))
	}
}

func (h *Handler) updateOrder(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var req orderRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		items, err := req.items()
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}

		actor, _ := ActorFromContext(r.Context())
		in := orders.UpdateInput{ID: id, Header: req.header(kind), Items: items, Actor: actor}

		var order domain.Order
		if kind == domain.OrderKindSupplier {
			order, err = h.orders.UpdateSupplierOrder(r.Context(), in)
		} else {
			order, err = h.orders.UpdateCustomerOrder(r.Context(), in)
		}
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "order updated", newOrderResponse(order))
	}
}

func (h *Handler) changeSituation(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		var req situationRequest
		if err := decodeBody(w, r, &req); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		if req.Situation == "" {
			writeError(w, r, h.logger, fmt.Errorf("%w: situation is required", domain.ErrValidation))
			return
		}

		actor, _ := ActorFromContext(r.Context())
		order, err := h.orders.ChangeSituation(r.Context(), orders.ChangeSituationInput{
			Kind:      kind,
			ID:        id,
			Situation: domain.Situation(req.Situation),
			Actor:     actor,
		})
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "order situation updated", newOrderResponse(order))
	}
}

func (h *Handler) getOrder(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		order, err := h.orders.GetOrder(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "ok", newOrderResponse(order))
	}
}

func (h *Handler) softDelete(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		actor, _ := ActorFromContext(r.Context())
		if err := h.orders.SoftDelete(r.Context(), kind, id, actor); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "order deleted", nil)
	}
}

func (h *Handler) hardDelete(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		actor, _ := ActorFromContext(r.Context())
		if err := h.orders.HardDelete(r.Context(), kind, id, actor); err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "order permanently deleted", nil)
	}
}

func (h *Handler) listOrderStockLogs(kind domain.OrderKind) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := pathID(r)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		entries, err := h.orders.ListOrderStockLogs(r.Context(), kind, id)
		if err != nil {
			writeError(w, r, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, "ok", newStockLogResponses(entries))
	}
}

func (h *Handler) listProductStockLogs(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}

	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		limit, err = strconv.Atoi(raw)
		if err != nil || limit <= 0 {
			writeError(w, r, h.logger, fmt.Errorf("%w: limit must be a positive integer", domain.ErrValidation))
			return
		}
	}

	entries, err := h.orders.ListProductStockLogs(r.Context(), id, limit)
	if err != nil {
		writeError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, "ok", newStockLogResponses(entries))
}

func pathID(r *http.Request) (int64, error) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("%w: invalid id %q", domain.ErrValidation, raw)
	}
	return id, nil
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("%w: invalid request body: %v", domain.ErrValidation, err)
	}
	return nil
}
