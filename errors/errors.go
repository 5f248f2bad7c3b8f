package errors

import (
	"fmt"
	"net/http"
	"strings"

	"order-core/models"
)

// Error is the typed failure every service method returns. Code is the HTTP
// status the controllers map it to.
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
	return &Error{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// Creation preconditions and race failures.
var (
	ErrCartNotFound      = New(http.StatusNotFound, "Cart not found", nil)
	ErrCartEmpty         = New(http.StatusBadRequest, "Cart has no items", nil)
	ErrInsufficientStock = New(http.StatusConflict, "Insufficient stock", nil)
)

// Lookup and authorization failures.
var (
	ErrOrderNotFound = New(http.StatusNotFound, "Order not found", nil)
	ErrForbidden     = New(http.StatusForbidden, "Forbidden", nil)
)

// Gateway callback integrity failure. Fails closed: no state is mutated.
var ErrSignatureMismatch = New(http.StatusBadRequest, "Signature mismatch", nil)

// ErrUnderPayment rejects a remote confirmation whose amount does not cover
// the order total. There is no under-payment tolerance.
var ErrUnderPayment = New(http.StatusUnprocessableEntity, "Notified amount below order total", nil)

// InvalidTransitionError reports a status change outside the allowed-next
// table, enumerating the legal targets for the caller.
type InvalidTransitionError struct {
	From    models.OrderStatus
	To      models.OrderStatus
	Allowed []models.OrderStatus
}

func (e *InvalidTransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("invalid transition %s -> %s: %s is terminal", e.From, e.To, e.From)
	}
	targets := make([]string, 0, len(e.Allowed))
	for _, s := range e.Allowed {
		targets = append(targets, string(s))
	}
	return fmt.Sprintf("invalid transition %s -> %s: allowed targets are %s", e.From, e.To, strings.Join(targets, ", "))
}

// AsError wraps an InvalidTransitionError for the controller layer.
func (e *InvalidTransitionError) AsError() *Error {
	return New(http.StatusConflict, e.Error(), e)
}
