package services

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	apperrors "order-core/errors"
	"order-core/models"
	"order-core/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// codeAttempts bounds retries when a generated order code collides.
const codeAttempts = 3

// CreateOrderRequest carries the cart reference, the shipping snapshot, the
// chosen provider and the externally pre-computed charge figures. The stored
// total is always recomputed by the builder from the snapshot prices.
type CreateOrderRequest struct {
	CartID         uuid.UUID              `json:"cart_id" binding:"required"`
	Provider       models.PaymentProvider `json:"provider" binding:"required"`
	Shipping       models.ShippingAddress `json:"shipping"`
	VatAmount      int64                  `json:"vat_amount" binding:"min=0"`
	DiscountAmount int64                  `json:"discount_amount" binding:"min=0"`
	ShippingFee    int64                  `json:"shipping_fee" binding:"min=0"`
	VoucherCode    string                 `json:"voucher_code"`
}

type OrderListResponse struct {
	Orders []models.Order `json:"orders"`
	Meta   MetaData       `json:"meta"`
}

type MetaData struct {
	Page        int   `json:"page"`
	Limit       int   `json:"limit"`
	TotalOrders int64 `json:"total_orders"`
	TotalPages  int64 `json:"total_pages"`
	HasMore     bool  `json:"has_more"`
}

// OrderService is the order lifecycle core: creation, transitions,
// cancellation and remote payment settlement.
type OrderService interface {
	CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*models.Order, *apperrors.Error)
	UpdateStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor, reason, note string) (*models.Order, *apperrors.Error)
	CancelOrder(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, *apperrors.Error)
	GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, *apperrors.Error)
	GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderListResponse, *apperrors.Error)
	GetAllOrders(ctx context.Context, page, limit int) (*OrderListResponse, *apperrors.Error)
	ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, *apperrors.Error)

	PaymentSettler
}

// PaymentSettler is the slice of the order core the payment channels drive.
type PaymentSettler interface {
	// MarkOrderPaidByCode settles an order from a verified remote
	// confirmation. When amount is positive it must cover the order total.
	// Replays against an order no longer awaiting payment return
	// changed=false with no side effects.
	MarkOrderPaidByCode(ctx context.Context, code string, provider models.PaymentProvider, amount int64, raw, reason string) (*models.Order, bool, *apperrors.Error)
	// MarkPaymentFailedByCode records a verified failure on the latest
	// payment row of the provider; the order status is left untouched.
	MarkPaymentFailedByCode(ctx context.Context, code string, provider models.PaymentProvider, raw string) *apperrors.Error
}

type orderServiceImpl struct {
	store       repository.Store
	transitions TransitionTable
	audit       *AuditSink
	codePrefix  string
	logger      *zap.Logger
}

// NewOrderService creates a new OrderService.
func NewOrderService(store repository.Store, transitions TransitionTable, audit *AuditSink, codePrefix string, logger *zap.Logger) OrderService {
	return &orderServiceImpl{
		store:       store,
		transitions: transitions,
		audit:       audit,
		codePrefix:  codePrefix,
		logger:      logger,
	}
}

// CreateOrder assembles Order + OrderItems + the initial Payment from the
// cart in one transaction: snapshot prices, decrement stock, empty the cart.
// Any failing step aborts the whole unit; no partial order is observable.
func (s *orderServiceImpl) CreateOrder(ctx context.Context, userID uuid.UUID, req *CreateOrderRequest) (*models.Order, *apperrors.Error) {
	var created *models.Order

	for attempt := 0; attempt < codeAttempts; attempt++ {
		code := generateOrderCode(s.codePrefix)

		err := s.store.Transaction(ctx, func(tx repository.Store) error {
			cart, err := tx.GetCartWithItems(ctx, req.CartID)
			if errors.Is(err, repository.ErrNotFound) {
				return apperrors.ErrCartNotFound
			}
			if err != nil {
				return err
			}
			if len(cart.Items) == 0 {
				return apperrors.ErrCartEmpty
			}

			var subtotal int64
			items := make([]models.OrderItem, 0, len(cart.Items))
			for _, line := range cart.Items {
				if line.Quantity <= 0 {
					return apperrors.New(http.StatusBadRequest, "Cart item quantity must be positive", nil)
				}
				variant, err := tx.GetVariant(ctx, line.VariantID)
				if errors.Is(err, repository.ErrNotFound) {
					return apperrors.New(http.StatusBadRequest, "Cart references unknown variant", nil)
				}
				if err != nil {
					return err
				}
				if variant.Stock < line.Quantity {
					return apperrors.ErrInsufficientStock
				}
				items = append(items, models.OrderItem{
					VariantID: variant.ID,
					Price:     variant.Price,
					Quantity:  line.Quantity,
				})
				subtotal += variant.Price * int64(line.Quantity)
			}

			total := subtotal - req.DiscountAmount + req.VatAmount + req.ShippingFee

			order := &models.Order{
				Code:           code,
				UserID:         userID,
				Status:         models.StatusPending,
				Total:          total,
				DiscountAmount: req.DiscountAmount,
				VatAmount:      req.VatAmount,
				ShippingFee:    req.ShippingFee,
				VoucherCode:    req.VoucherCode,
				Shipping:       req.Shipping,
				Items:          items,
			}
			if err := tx.CreateOrder(ctx, order); err != nil {
				return err
			}

			payment := &models.Payment{
				OrderID:  order.ID,
				Provider: req.Provider,
				Status:   models.PaymentPending,
				Amount:   total,
			}
			if err := tx.CreatePayment(ctx, payment); err != nil {
				return err
			}
			order.Payments = []models.Payment{*payment}

			for _, item := range order.Items {
				if err := tx.AdjustStock(ctx, item.VariantID, -item.Quantity); err != nil {
					if errors.Is(err, repository.ErrInsufficientStock) {
						return apperrors.ErrInsufficientStock
					}
					return err
				}
			}

			if err := tx.ClearCartItems(ctx, cart.ID); err != nil {
				return err
			}

			created = order
			return nil
		})

		if err == nil {
			break
		}
		if repository.IsDuplicate(err) {
			s.logger.Warn("Order code collision, retrying", zap.String("code", code), zap.Int("attempt", attempt+1))
			continue
		}
		var appErr *apperrors.Error
		if errors.As(err, &appErr) {
			return nil, appErr
		}
		s.logger.Error("Order creation failed", zap.String("cart_id", req.CartID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to create order", err)
	}

	if created == nil {
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to allocate order code", nil)
	}

	s.audit.Emit(AuditEvent{
		Action:   "order.created",
		Entity:   "order",
		ActorID:  userID.String(),
		EntityID: created.ID.String(),
		Detail:   fmt.Sprintf("code=%s total=%d provider=%s", created.Code, created.Total, created.Payments[0].Provider),
	})

	return created, nil
}

// UpdateStatus applies an administrator transition bound by the base table.
func (s *orderServiceImpl) UpdateStatus(ctx context.Context, orderID uuid.UUID, target models.OrderStatus, actor, reason, note string) (*models.Order, *apperrors.Error) {
	var order *models.Order

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if verr := s.transitions.Validate(order.Status, target); verr != nil {
			return verr.AsError()
		}

		return s.applyTransition(ctx, tx, order, target, optional(actor), reason, note)
	})
	if appErr := asAppError(err); appErr != nil {
		return nil, appErr
	}
	if err != nil {
		s.logger.Error("Status update failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to update order status", err)
	}

	s.audit.Emit(AuditEvent{
		Action:   "order.status_changed",
		Entity:   "order",
		ActorID:  actor,
		EntityID: order.ID.String(),
		Detail:   fmt.Sprintf("code=%s to=%s reason=%s", order.Code, target, reason),
	})
	return order, nil
}

// CancelOrder applies the customer-facing cancel: ownership check plus the
// stricter no-cancel-after-shipping predicate, on top of the base table.
func (s *orderServiceImpl) CancelOrder(ctx context.Context, orderID, userID uuid.UUID, reason string) (*models.Order, *apperrors.Error) {
	var order *models.Order

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.GetOrderForUpdate(ctx, orderID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if order.UserID != userID {
			return apperrors.ErrForbidden
		}
		if !CanCustomerCancel(order.Status) {
			return apperrors.ErrForbidden
		}
		if verr := s.transitions.Validate(order.Status, models.StatusCanceled); verr != nil {
			return verr.AsError()
		}

		actor := userID.String()
		return s.applyTransition(ctx, tx, order, models.StatusCanceled, &actor, reason, "")
	})
	if appErr := asAppError(err); appErr != nil {
		return nil, appErr
	}
	if err != nil {
		s.logger.Error("Cancel failed", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to cancel order", err)
	}

	s.audit.Emit(AuditEvent{
		Action:   "order.canceled",
		Entity:   "order",
		ActorID:  userID.String(),
		EntityID: order.ID.String(),
		Detail:   fmt.Sprintf("code=%s reason=%s", order.Code, reason),
	})
	return order, nil
}

// MarkOrderPaidByCode settles an order from a verified gateway callback or
// bank-transfer notification. Idempotent: an order past its payment window
// is left untouched and changed=false is returned.
func (s *orderServiceImpl) MarkOrderPaidByCode(ctx context.Context, code string, provider models.PaymentProvider, amount int64, raw, reason string) (*models.Order, bool, *apperrors.Error) {
	var order *models.Order
	changed := false
	overpaid := false

	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		var err error
		order, err = tx.GetOrderByCodeForUpdate(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return err
		}

		if !AwaitsPayment(order.Status) {
			return nil
		}
		if amount > 0 && amount < order.Total {
			return apperrors.ErrUnderPayment
		}
		overpaid = amount > order.Total

		if err := tx.UpdateOrderStatus(ctx, order.ID, models.StatusPaid); err != nil {
			return err
		}
		if err := tx.MarkPaymentsPaid(ctx, order.ID); err != nil {
			return err
		}
		if err := tx.UpdateLatestPayment(ctx, order.ID, provider, models.PaymentPaid, raw); err != nil {
			if !errors.Is(err, repository.ErrNotFound) {
				return err
			}
			// Settled through a channel the order was not created with:
			// record it as its own payment row.
			settleAmount := amount
			if settleAmount == 0 {
				settleAmount = order.Total
			}
			payment := &models.Payment{
				OrderID:  order.ID,
				Provider: provider,
				Status:   models.PaymentPaid,
				Amount:   settleAmount,
				Raw:      raw,
			}
			if err := tx.CreatePayment(ctx, payment); err != nil {
				return err
			}
		}

		actor := models.ActorSystem
		if err := tx.AppendHistory(ctx, &models.OrderStatusHistory{
			OrderID:    order.ID,
			FromStatus: order.Status,
			ToStatus:   models.StatusPaid,
			Actor:      &actor,
			Reason:     reason,
		}); err != nil {
			return err
		}

		order.Status = models.StatusPaid
		changed = true
		return nil
	})
	if appErr := asAppError(err); appErr != nil {
		return nil, false, appErr
	}
	if err != nil {
		s.logger.Error("Payment settlement failed", zap.String("order_code", code), zap.Error(err))
		return nil, false, apperrors.New(http.StatusInternalServerError, "Failed to settle payment", err)
	}

	if changed {
		s.audit.Emit(AuditEvent{
			Action:   "order.paid",
			Entity:   "order",
			ActorID:  models.ActorSystem,
			EntityID: order.ID.String(),
			Detail:   fmt.Sprintf("code=%s provider=%s amount=%d", order.Code, provider, amount),
		})
		if overpaid {
			s.audit.Emit(AuditEvent{
				Action:   "payment.overpaid",
				Entity:   "order",
				ActorID:  models.ActorSystem,
				EntityID: order.ID.String(),
				Detail:   fmt.Sprintf("code=%s notified=%d total=%d", order.Code, amount, order.Total),
			})
		}
	}
	return order, changed, nil
}

// MarkPaymentFailedByCode records a verified failure on the latest payment
// row of the provider. The order status is left for timeout handling.
func (s *orderServiceImpl) MarkPaymentFailedByCode(ctx context.Context, code string, provider models.PaymentProvider, raw string) *apperrors.Error {
	err := s.store.Transaction(ctx, func(tx repository.Store) error {
		order, err := tx.GetOrderByCodeForUpdate(ctx, code)
		if errors.Is(err, repository.ErrNotFound) {
			return apperrors.ErrOrderNotFound
		}
		if err != nil {
			return err
		}
		err = tx.UpdateLatestPayment(ctx, order.ID, provider, models.PaymentFailed, raw)
		if errors.Is(err, repository.ErrNotFound) {
			return nil
		}
		return err
	})
	if appErr := asAppError(err); appErr != nil {
		return appErr
	}
	if err != nil {
		s.logger.Error("Payment failure record failed", zap.String("order_code", code), zap.Error(err))
		return apperrors.New(http.StatusInternalServerError, "Failed to record payment failure", err)
	}
	return nil
}

func (s *orderServiceImpl) GetOrder(ctx context.Context, orderID uuid.UUID) (*models.Order, *apperrors.Error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperrors.ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to fetch order", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to fetch order", err)
	}
	return order, nil
}

func (s *orderServiceImpl) GetUserOrders(ctx context.Context, userID uuid.UUID, page, limit int) (*OrderListResponse, *apperrors.Error) {
	orders, total, err := s.store.ListOrdersByUser(ctx, userID, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch orders", zap.String("user_id", userID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to fetch orders", err)
	}
	return listResponse(orders, total, page, limit), nil
}

func (s *orderServiceImpl) GetAllOrders(ctx context.Context, page, limit int) (*OrderListResponse, *apperrors.Error) {
	orders, total, err := s.store.ListOrders(ctx, page, limit)
	if err != nil {
		s.logger.Error("Failed to fetch all orders", zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to fetch orders", err)
	}
	return listResponse(orders, total, page, limit), nil
}

func (s *orderServiceImpl) ListPayments(ctx context.Context, orderID uuid.UUID) ([]models.Payment, *apperrors.Error) {
	if _, appErr := s.GetOrder(ctx, orderID); appErr != nil {
		return nil, appErr
	}
	payments, err := s.store.ListPaymentsByOrder(ctx, orderID)
	if err != nil {
		s.logger.Error("Failed to fetch payments", zap.String("order_id", orderID.String()), zap.Error(err))
		return nil, apperrors.New(http.StatusInternalServerError, "Failed to fetch payments", err)
	}
	return payments, nil
}

// applyTransition writes the status, cascades payment rows on PAID, restores
// stock on failure/cancel/refund statuses and appends the history row, all
// against the caller's transactional handle.
func (s *orderServiceImpl) applyTransition(ctx context.Context, tx repository.Store, order *models.Order, target models.OrderStatus, actor *string, reason, note string) error {
	if err := tx.UpdateOrderStatus(ctx, order.ID, target); err != nil {
		return err
	}

	if target == models.StatusPaid {
		if err := tx.MarkPaymentsPaid(ctx, order.ID); err != nil {
			return err
		}
	}

	if RestoresStock(target) {
		for _, item := range order.Items {
			if err := tx.AdjustStock(ctx, item.VariantID, item.Quantity); err != nil {
				return err
			}
		}
	}

	if err := tx.AppendHistory(ctx, &models.OrderStatusHistory{
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   target,
		Actor:      actor,
		Reason:     reason,
		Note:       note,
	}); err != nil {
		return err
	}

	order.Status = target
	return nil
}

// generateOrderCode builds prefix + base36 timestamp + random suffix.
// Collisions are unlikely but possible; the insert treats a uniqueness
// violation as retryable.
func generateOrderCode(prefix string) string {
	ts := strings.ToUpper(strconv.FormatInt(time.Now().UnixMilli(), 36))
	suffix := strings.ToUpper(strings.ReplaceAll(uuid.New().String(), "-", "")[:4])
	return fmt.Sprintf("%s-%s-%s", prefix, ts, suffix)
}

func listResponse(orders []models.Order, total int64, page, limit int) *OrderListResponse {
	return &OrderListResponse{
		Orders: orders,
		Meta: MetaData{
			Page:        page,
			Limit:       limit,
			TotalOrders: total,
			TotalPages:  calculateTotalPages(total, limit),
			HasMore:     total > int64(page*limit),
		},
	}
}

func calculateTotalPages(total int64, limit int) int64 {
	if limit == 0 {
		return 0
	}
	return (total + int64(limit) - 1) / int64(limit)
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func asAppError(err error) *apperrors.Error {
	if err == nil {
		return nil
	}
	var appErr *apperrors.Error
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}
