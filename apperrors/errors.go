package apperrors

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is an application error carrying the HTTP status it maps to.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
	Err     error  `json:"-"`
}

func (e *Error) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates a new Error.
func New(code int, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}

// Wrap returns a copy of base carrying err as its cause.
func Wrap(base *Error, err error) *Error {
	return &Error{Code: base.Code, Message: base.Message, Err: err}
}

// Order/payment lifecycle errors
var (
	ErrEmptyCart           = New(http.StatusBadRequest, "Cart is empty", nil)
	ErrProductNotFound     = New(http.StatusNotFound, "Product not found", nil)
	ErrCartItemNotFound    = New(http.StatusNotFound, "Cart item not found", nil)
	ErrOrderNotFound       = New(http.StatusNotFound, "Order not found", nil)
	ErrAlreadyPaid         = New(http.StatusBadRequest, "Order already paid", nil)
	ErrPaymentDeclined     = New(http.StatusBadRequest, "Payment declined", nil)
	ErrGatewayUnavailable  = New(http.StatusBadGateway, "Payment gateway unavailable", nil)
	ErrWebhookVerification = New(http.StatusBadRequest, "Webhook verification failed", nil)
	ErrUnsupportedCurrency = New(http.StatusBadRequest, "Unsupported currency", nil)
)

// Generic errors
var (
	ErrBadRequest     = New(http.StatusBadRequest, "Bad request", nil)
	ErrUnauthorized   = New(http.StatusUnauthorized, "Unauthorized", nil)
	ErrInternalServer = New(http.StatusInternalServerError, "Internal server error", nil)
	ErrPersistence    = New(http.StatusInternalServerError, "Persistence error", nil)
)

// Is reports whether err is (or wraps) the given application error.
// Wrapped copies made with Wrap share the base's code and message.
func Is(err error, base *Error) bool {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code == base.Code && appErr.Message == base.Message
	}
	return false
}

// Respond writes err to the gin context, mapping unknown errors to 500.
func Respond(c *gin.Context, err error) {
	var appErr *Error
	if !errors.As(err, &appErr) {
		appErr = Wrap(ErrInternalServer, err)
	}
	c.JSON(appErr.Code, gin.H{"error": appErr.Message})
}
