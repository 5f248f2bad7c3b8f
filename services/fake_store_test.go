package services_test

import (
	"context"
	"fmt"
	"strings"
	"time"

	"order-core/models"
	"order-core/repository"

	"github.com/google/uuid"
)

// fakeStore is an in-memory Store. Transaction snapshots the whole state and
// restores it when the closure errors, mirroring commit/rollback semantics.
type fakeStore struct {
	carts    map[uuid.UUID]*models.Cart
	variants map[uuid.UUID]*models.Variant
	orders   map[uuid.UUID]*models.Order
	payments []models.Payment
	history  []models.OrderStatusHistory

	seq    int
	failOn map[string]error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		carts:    make(map[uuid.UUID]*models.Cart),
		variants: make(map[uuid.UUID]*models.Variant),
		orders:   make(map[uuid.UUID]*models.Order),
		failOn:   make(map[string]error),
	}
}

func (f *fakeStore) fail(op string) error {
	if err, ok := f.failOn[op]; ok {
		return err
	}
	return nil
}

func (f *fakeStore) snapshot() *fakeStore {
	snap := newFakeStore()
	for id, c := range f.carts {
		cc := *c
		cc.Items = append([]models.CartItem(nil), c.Items...)
		snap.carts[id] = &cc
	}
	for id, v := range f.variants {
		vv := *v
		snap.variants[id] = &vv
	}
	for id, o := range f.orders {
		oo := *o
		oo.Items = append([]models.OrderItem(nil), o.Items...)
		snap.orders[id] = &oo
	}
	snap.payments = append([]models.Payment(nil), f.payments...)
	snap.history = append([]models.OrderStatusHistory(nil), f.history...)
	snap.seq = f.seq
	return snap
}

func (f *fakeStore) restore(snap *fakeStore) {
	f.carts = snap.carts
	f.variants = snap.variants
	f.orders = snap.orders
	f.payments = snap.payments
	f.history = snap.history
	f.seq = snap.seq
}

func (f *fakeStore) Transaction(_ context.Context, fn func(tx repository.Store) error) error {
	snap := f.snapshot()
	if err := fn(f); err != nil {
		f.restore(snap)
		return err
	}
	return nil
}

func (f *fakeStore) GetCartWithItems(_ context.Context, cartID uuid.UUID) (*models.Cart, error) {
	cart, ok := f.carts[cartID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cc := *cart
	cc.Items = append([]models.CartItem(nil), cart.Items...)
	return &cc, nil
}

func (f *fakeStore) ClearCartItems(_ context.Context, cartID uuid.UUID) error {
	if cart, ok := f.carts[cartID]; ok {
		cart.Items = nil
	}
	return nil
}

func (f *fakeStore) GetVariant(_ context.Context, variantID uuid.UUID) (*models.Variant, error) {
	variant, ok := f.variants[variantID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	vv := *variant
	return &vv, nil
}

func (f *fakeStore) AdjustStock(_ context.Context, variantID uuid.UUID, delta int) error {
	variant, ok := f.variants[variantID]
	if !ok {
		return repository.ErrNotFound
	}
	if delta < 0 && variant.Stock < -delta {
		return repository.ErrInsufficientStock
	}
	variant.Stock += delta
	return nil
}

func (f *fakeStore) CreateOrder(_ context.Context, order *models.Order) error {
	if err := f.fail("CreateOrder"); err != nil {
		return err
	}
	for _, existing := range f.orders {
		if existing.Code == order.Code {
			return fmt.Errorf("duplicate key value violates unique constraint \"idx_orders_code\"")
		}
	}
	if order.ID == uuid.Nil {
		order.ID = uuid.New()
	}
	for i := range order.Items {
		if order.Items[i].ID == uuid.Nil {
			order.Items[i].ID = uuid.New()
		}
		order.Items[i].OrderID = order.ID
	}
	oo := *order
	oo.Items = append([]models.OrderItem(nil), order.Items...)
	f.orders[order.ID] = &oo
	return nil
}

func (f *fakeStore) getOrderCopy(order *models.Order) *models.Order {
	oo := *order
	oo.Items = append([]models.OrderItem(nil), order.Items...)
	return &oo
}

func (f *fakeStore) GetOrder(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	oo := f.getOrderCopy(order)
	for _, p := range f.payments {
		if p.OrderID == orderID {
			oo.Payments = append(oo.Payments, p)
		}
	}
	return oo, nil
}

func (f *fakeStore) GetOrderForUpdate(_ context.Context, orderID uuid.UUID) (*models.Order, error) {
	order, ok := f.orders[orderID]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return f.getOrderCopy(order), nil
}

func (f *fakeStore) GetOrderByCodeForUpdate(_ context.Context, code string) (*models.Order, error) {
	for _, order := range f.orders {
		if strings.EqualFold(order.Code, code) {
			return f.getOrderCopy(order), nil
		}
	}
	return nil, repository.ErrNotFound
}

func (f *fakeStore) UpdateOrderStatus(_ context.Context, orderID uuid.UUID, status models.OrderStatus) error {
	if err := f.fail("UpdateOrderStatus"); err != nil {
		return err
	}
	order, ok := f.orders[orderID]
	if !ok {
		return repository.ErrNotFound
	}
	order.Status = status
	return nil
}

func (f *fakeStore) AppendHistory(_ context.Context, entry *models.OrderStatusHistory) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	f.history = append(f.history, *entry)
	return nil
}

func (f *fakeStore) CreatePayment(_ context.Context, payment *models.Payment) error {
	if err := f.fail("CreatePayment"); err != nil {
		return err
	}
	if payment.ID == uuid.Nil {
		payment.ID = uuid.New()
	}
	f.seq++
	payment.CreatedAt = time.Unix(int64(f.seq), 0)
	f.payments = append(f.payments, *payment)
	return nil
}

func (f *fakeStore) MarkPaymentsPaid(_ context.Context, orderID uuid.UUID) error {
	for i := range f.payments {
		if f.payments[i].OrderID == orderID {
			f.payments[i].Status = models.PaymentPaid
		}
	}
	return nil
}

func (f *fakeStore) UpdateLatestPayment(_ context.Context, orderID uuid.UUID, provider models.PaymentProvider, status models.PaymentStatus, raw string) error {
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].OrderID == orderID && f.payments[i].Provider == provider {
			f.payments[i].Status = status
			if raw != "" {
				f.payments[i].Raw = raw
			}
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f *fakeStore) ListPaymentsByOrder(_ context.Context, orderID uuid.UUID) ([]models.Payment, error) {
	var out []models.Payment
	for i := len(f.payments) - 1; i >= 0; i-- {
		if f.payments[i].OrderID == orderID {
			out = append(out, f.payments[i])
		}
	}
	return out, nil
}

func (f *fakeStore) ListOrdersByUser(_ context.Context, userID uuid.UUID, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range f.orders {
		if order.UserID == userID {
			out = append(out, *f.getOrderCopy(order))
		}
	}
	return out, int64(len(out)), nil
}

func (f *fakeStore) ListOrders(_ context.Context, _, _ int) ([]models.Order, int64, error) {
	var out []models.Order
	for _, order := range f.orders {
		out = append(out, *f.getOrderCopy(order))
	}
	return out, int64(len(out)), nil
}

