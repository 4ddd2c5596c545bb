package orders

import (
	"errors"
	"net/http"
)

var (
	ErrInvalidOrder           = errors.New("missing required fields: user_id, product, quantity")
	ErrInvalidQuantity        = errors.New("invalid quantity")
	ErrUserNotFound           = errors.New("user not found")
	ErrUserValidation         = errors.New("failed to validate user")
	ErrUserServiceUnavailable = errors.New("user service unavailable")
	ErrOrderNotFound          = errors.New("order not found")
)

// errPaymentGateway is raised by the failure-injection product. It is never
// returned; it panics through to the global recovery handler.
var errPaymentGateway = errors.New("payment gateway timeout: unable to reach provider")

func statusFor(err error) (int, string) {
	switch {
	case errors.Is(err, ErrInvalidOrder):
		return http.StatusBadRequest, "Missing required fields: user_id, product, quantity"
	case errors.Is(err, ErrInvalidQuantity):
		return http.StatusBadRequest, "Invalid quantity"
	case errors.Is(err, ErrUserNotFound):
		return http.StatusNotFound, "User not found"
	case errors.Is(err, ErrUserValidation):
		return http.StatusInternalServerError, "Failed to validate user"
	case errors.Is(err, ErrUserServiceUnavailable):
		return http.StatusServiceUnavailable, "Service unavailable"
	case errors.Is(err, ErrOrderNotFound):
		return http.StatusNotFound, "Order not found"
	default:
		return http.StatusInternalServerError, "Internal server error"
	}
}
