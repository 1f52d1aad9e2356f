package http

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"storefront/internal/domain"
)

var errorStatus = []struct {
	err    error
	status int
}{
	{domain.ErrEmptyCart, http.StatusBadRequest},
	{domain.ErrInvalidQuantity, http.StatusBadRequest},
	{domain.ErrInvalidPaymentMethod, http.StatusBadRequest},
	{domain.ErrInvalidProductPatch, http.StatusBadRequest},
	{domain.ErrUnauthorized, http.StatusForbidden},
	{domain.ErrOrderNotFound, http.StatusNotFound},
	{domain.ErrProductNotFound, http.StatusNotFound},
	{domain.ErrCartLineNotFound, http.StatusNotFound},
	{domain.ErrInsufficientStock, http.StatusConflict},
	{domain.ErrNotEligible, http.StatusConflict},
	{domain.ErrInvalidTransition, http.StatusConflict},
	{domain.ErrCartChanged, http.StatusConflict},
	{domain.ErrProductInactive, http.StatusUnprocessableEntity},
}

const genericFailure = "the request could not be completed, please try again"

// writeError is the single place domain errors become HTTP responses.
// Anything unrecognised, and every transaction failure, is logged in full
// and answered with a generic message.
func writeError(c *gin.Context, err error) {
	var short *domain.InsufficientStockError
	if errors.As(err, &short) {
		body := gin.H{
			"error":     short.Error(),
			"productId": short.ProductID,
			"requested": short.Requested,
		}
		if short.Available >= 0 {
			body["available"] = short.Available
		}
		c.JSON(http.StatusConflict, body)
		return
	}

	if !errors.Is(err, domain.ErrTransactionFailure) {
		for _, m := range errorStatus {
			if errors.Is(err, m.err) {
				c.JSON(m.status, gin.H{"error": m.err.Error()})
				return
			}
		}
	}

	slog.Default().ErrorContext(c.Request.Context(), "request failed",
		"component", "http",
		"method", c.Request.Method,
		"path", c.FullPath(),
		"user_id", currentUser(c),
		"error", err,
	)
	c.JSON(http.StatusInternalServerError, gin.H{"error": genericFailure})
}
