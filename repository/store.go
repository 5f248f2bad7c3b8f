package repository

import (
	"context"
	"errors"
	"strings"

	"order-core/models"

	"github.com/google/uuid"
)

var (
	ErrNotFound          = errors.New("record not found")
	ErrInsufficientStock = errors.New("insufficient stock")
)

// IsDuplicate reports whether err is a unique-constraint violation. Order
// code collisions surface this way and are retryable, not fatal.
func IsDuplicate(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate") || strings.Contains(msg, "unique")
}

// Store is the persistence boundary of the order core. Transaction is the
// only way multi-row writes are ever grouped: the closure receives a Store
// bound to the transactional handle, commits on normal return and rolls back
// on any error.
type Store interface {
	Transaction(ctx context.Context, fn func(tx Store) error) error

	GetCartWithItems(ctx context.Context, cartID uuid.UUID) (*models.Cart, error)
	ClearCartItems(ctx context.Context, cartID uuid.UUID) error

	GetVariant(ctx context.Context, variantID uuid.UUID) (*models.Variant, error)
	// AdjustStock moves a variant's stock counter by delta in one conditional
	// update. A decrement that would go negative fails with
	// ErrInsufficientStock instead of overselling.
	AdjustStock(ctx context.Context, variantID uuid.UUID, delta int) error

	CreateOrder(ctx context.Context, order *models.Order) error
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrderForUpdate(ctx context.Context, orderID uuid.UUID) (*models.Order, error)
	GetOrderByCodeForUpdate(ctx context.Context, code string) (*models.Order, error)
	UpdateOrderStatus(ctx context.Context, orderID uuid.UUID, status models.OrderStatus) error
	AppendHistory(ctx context.Context, entry *models.OrderStatusHistory) error

	CreatePayment(ctx context.Context, payment *models.Payment) error
	MarkPaymentsPaid(ctx context.Context, orderID uuid.UUID) error
	UpdateLatestPayment(ctx context.Context, orderID uuid.UUID, provider models.PaymentProvider, status models.PaymentStatus, raw string) error
	ListPaymentsByOrder(ctx context.Context, orderID uuid.UUID) ([]models.Payment, error)

	ListOrdersByUser(ctx context.Context, userID uuid.UUID, page, limit int) ([]models.Order, int64, error)
	ListOrders(ctx context.Context, page, limit int) ([]models.Order, int64, error)
}
