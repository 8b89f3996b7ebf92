package gateway

import (
	"errors"
	"net/http"

	"github.com/example/storefront/pkg/checkout"
	"github.com/example/storefront/pkg/repository"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type errorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	// Unavailable lists product ids that blocked checkout.
	Unavailable []uint `json:"unavailable,omitempty"`
}

func classify(err error) (int, string) {
	switch {
	case errors.Is(err, checkout.ErrEmptyCart):
		return http.StatusBadRequest, "empty_cart"
	case errors.Is(err, checkout.ErrInvalidMethod):
		return http.StatusBadRequest, "invalid_payment_method"
	case errors.Is(err, checkout.ErrNoPendingPayment):
		return http.StatusBadRequest, "no_pending_payment"
	case errors.Is(err, checkout.ErrInvalidAddress):
		return http.StatusUnprocessableEntity, "invalid_address"
	case errors.Is(err, checkout.ErrUnavailableProducts):
		return http.StatusUnprocessableEntity, "unavailable_products"
	case errors.Is(err, checkout.ErrNotFound), errors.Is(err, repository.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, checkout.ErrPaymentDeclined):
		return http.StatusPaymentRequired, "payment_declined"
	case errors.Is(err, checkout.ErrPaymentUnavailable):
		return http.StatusBadGateway, "payment_unavailable"
	case errors.Is(err, checkout.ErrInvalidTransition):
		return http.StatusConflict, "invalid_transition"
	default:
		return http.StatusInternalServerError, "internal_error"
	}
}

// fail writes the error response for err. Session changes made before the
// failure are still saved.
func (g *Gateway) fail(c *gin.Context, err error) {
	status, code := classify(err)

	resp := errorResponse{Error: code, Message: err.Error()}
	if status == http.StatusInternalServerError {
		g.logger.Error("Request failed",
			zap.String("method", c.Request.Method),
			zap.String("path", c.Request.URL.Path),
			zap.Error(err))
		resp.Message = "internal server error"
	}

	var unavailable *checkout.UnavailableError
	if errors.As(err, &unavailable) {
		resp.Unavailable = unavailable.ProductIDs
	}

	g.saveSession(c)
	c.JSON(status, resp)
}

func badRequest(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, errorResponse{Error: "invalid_request", Message: err.Error()})
}
