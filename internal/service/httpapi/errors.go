package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	log "github.com/sirupsen/logrus"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

// envelope - единый формат ответа API.
type envelope struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

const internalErrorMessage = "internal server error"

func writeJSON(w http.ResponseWriter, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(envelope{Code: code, Message: message, Data: data})
}

// statusFor переводит категорию доменной ошибки в HTTP-статус.
// Conflict и InsufficientStock отдаются как 400.
func statusFor(err error) int {
	switch {
	case errors.Is(err, domain.ErrValidation):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, domain.ErrConflict):
		return http.StatusBadRequest
	case errors.Is(err, domain.ErrInsufficientStock):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError пишет ошибку в конверте. Внутренние ошибки и сбои транзакций
// логируются, а клиент получает обобщённое сообщение.
func writeError(w http.ResponseWriter, r *http.Request, logger *log.Entry, err error) {
	code := statusFor(err)
	if code == http.StatusInternalServerError {
		requestLogger(r, logger).WithError(err).
			WithField("category", domain.ErrorCategory(err)).
			Error("request failed")
		writeJSON(w, code, internalErrorMessage, nil)
		return
	}

	var stockErr *domain.InsufficientStockError
	if errors.As(err, &stockErr) {
		writeJSON(w, code, err.Error(), map[string]int64{
			"product_id": stockErr.ProductID,
			"available":  stockErr.Available,
			"requested":  stockErr.Requested,
		})
		return
	}

	writeJSON(w, code, err.Error(), nil)
}
