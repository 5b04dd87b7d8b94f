package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	log "github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"

	"github.com/vladislavdragonenkov/backoffice/internal/domain"
)

func TestStatusFor(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{err: domain.ErrItemsRequired, want: http.StatusBadRequest},
		{err: domain.ErrProductNotFound, want: http.StatusNotFound},
		{err: domain.ErrOrderNotInProcess, want: http.StatusBadRequest},
		{err: &domain.InsufficientStockError{ProductID: 1}, want: http.StatusBadRequest},
		{err: fmt.Errorf("%w: commit: %w", domain.ErrTransaction, errors.New("conn reset")), want: http.StatusInternalServerError},
		{err: domain.ErrOrderNumberExhausted, want: http.StatusInternalServerError},
		{err: fmt.Errorf("insert order: %w", domain.ErrOrderNumberTaken), want: http.StatusInternalServerError},
		{err: errors.New("boom"), want: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		require.Equal(t, tt.want, statusFor(tt.err), tt.err.Error())
	}
}

func TestWriteError_HidesInternalDetails(t *testing.T) {
	logger := log.New()
	logger.SetLevel(log.PanicLevel)

	req := httptest.NewRequest(http.MethodPost, "/customer-orders", nil)
	w := httptest.NewRecorder()

	writeError(w, req, logger.WithField("component", "test"),
		fmt.Errorf("%w: rollback: %w", domain.ErrTransaction, errors.New("pq: password authentication failed")))

	require.Equal(t, http.StatusInternalServerError, w.Code)
	var body envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, internalErrorMessage, body.Message)
	require.NotContains(t, w.Body.String(), "password")
}
