package services_test

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"order-core/models"
	"order-core/services"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestReconciler(settler services.PaymentSettler) *services.ReconcilerService {
	logger, _ := zap.NewDevelopment()
	return services.NewReconcilerService(settler, nil, "ORD", logger)
}

// fakeDeduper records references in memory with the mark-after-settlement
// contract of the real cache.
type fakeDeduper struct {
	seen map[string]bool
}

func newFakeDeduper() *fakeDeduper {
	return &fakeDeduper{seen: make(map[string]bool)}
}

func (d *fakeDeduper) Seen(_ context.Context, ref string) bool {
	return d.seen[ref]
}

func (d *fakeDeduper) MarkSeen(_ context.Context, ref string) {
	d.seen[ref] = true
}

func TestParseNotifications_BareObject(t *testing.T) {
	payload := []byte(`{"id": 101, "description": "CK ORD-AB12-XYZ9 thanh toan", "amount": 150000}`)

	notifications, err := services.ParseNotifications(payload)
	require.NoError(t, err)
	require.Len(t, notifications, 1)
	assert.Equal(t, "101", notifications[0].Reference)
	assert.Contains(t, notifications[0].Description, "ORD-AB12-XYZ9")
	assert.Equal(t, int64(150000), notifications[0].Amount)
}

func TestParseNotifications_WrappedList(t *testing.T) {
	payload := []byte(`{"transactions": [
		{"referenceCode": "FT123", "content": "ORD-A-B", "transferAmount": "99000.00"},
		{"referenceCode": "FT124", "content": "no code here", "transferAmount": 5000}
	]}`)

	notifications, err := services.ParseNotifications(payload)
	require.NoError(t, err)
	require.Len(t, notifications, 2)
	assert.Equal(t, "FT123", notifications[0].Reference)
	assert.Equal(t, int64(99000), notifications[0].Amount)
	assert.Equal(t, int64(5000), notifications[1].Amount)
}

func TestParseNotifications_BareArray(t *testing.T) {
	payload := []byte(`[{"id": 7, "description": "x"}, {"id": 8, "description": "y"}]`)

	notifications, err := services.ParseNotifications(payload)
	require.NoError(t, err)
	assert.Len(t, notifications, 2)
}

func TestParseNotifications_Malformed(t *testing.T) {
	_, err := services.ParseNotifications([]byte(`not json`))
	assert.Error(t, err)

	_, err = services.ParseNotifications([]byte(``))
	assert.Error(t, err)
}

func TestProcessBatch_SettlesMatchingOrder(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 55, "description": "chuyen khoan %s cam on", "amount": %d}`,
		order.Code, order.Total))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, order.Code, results[0].OrderCode)
	assert.Equal(t, "PAID", results[0].Status)

	assert.Equal(t, models.StatusPaid, store.orders[order.ID].Status)
	require.Len(t, store.history, 1)
	require.NotNil(t, store.history[0].Actor)
	assert.Equal(t, models.ActorSystem, *store.history[0].Actor)
	assert.Contains(t, store.history[0].Reason, fmt.Sprintf("amount=%d", order.Total))
}

// The code match is case-insensitive and tolerates surrounding free text.
func TestProcessBatch_CaseInsensitiveMatch(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 56, "description": "...%s...", "amount": %d}`,
		strings.ToLower(order.Code), order.Total))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusPaid, store.orders[order.ID].Status)
}

// A zero or absent amount can never settle an order; the amount must cover
// the total, and only the signature-verified gateway path may waive the
// check.
func TestProcessBatch_ZeroAmountRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 900, "description": "%s", "amount": 0}`, order.Code))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, results)
	assert.Equal(t, models.StatusPending, store.orders[order.ID].Status)
	assert.Empty(t, store.history)
}

func TestProcessBatch_MissingAmountRejected(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 901, "description": "%s"}`, order.Code))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, results)
	assert.Equal(t, models.StatusPending, store.orders[order.ID].Status)
}

// A malformed element inside a recognized batch is a per-item skip; the
// valid siblings still settle.
func TestProcessBatch_MalformedElementSkipped(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(`[
		"garbage",
		{"id": 902, "description": "%s", "amount": %d}
	]`, order.Code, order.Total))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, order.Code, results[0].OrderCode)
	assert.Equal(t, models.StatusPaid, store.orders[order.ID].Status)
}

func TestProcessBatch_UnderPaymentOmitted(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 57, "description": "%s", "amount": %d}`, order.Code, order.Total-1))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, results)
	assert.Equal(t, models.StatusPending, store.orders[order.ID].Status)
	assert.Empty(t, store.history)
}

func TestProcessBatch_OverPaymentAccepted(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 58, "description": "%s", "amount": %d}`, order.Code, order.Total+1000))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusPaid, store.orders[order.ID].Status)
}

// Replaying the identical notification produces exactly one PAID transition
// and exactly one history row.
func TestProcessBatch_IdempotentReplay(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 59, "description": "%s", "amount": %d}`, order.Code, order.Total))

	first, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, first, 1)

	second, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, second)

	assert.Len(t, store.history, 1)
}

// A reference is marked seen only after its settlement committed, so a
// transient failure leaves the redelivery retryable.
func TestProcessBatch_TransientFailureKeepsRedeliveryRetryable(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	deduper := newFakeDeduper()
	logger, _ := zap.NewDevelopment()
	reconciler := services.NewReconcilerService(svc, deduper, "ORD", logger)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 903, "description": "%s", "amount": %d}`, order.Code, order.Total))

	store.failOn["UpdateOrderStatus"] = errors.New("connection reset")
	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, results)
	assert.Equal(t, models.StatusPending, store.orders[order.ID].Status)
	assert.False(t, deduper.seen["903"])

	delete(store.failOn, "UpdateOrderStatus")
	results, appErr = reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, models.StatusPaid, store.orders[order.ID].Status)
	assert.True(t, deduper.seen["903"])
}

func TestProcessBatch_SeenReferenceSkipped(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	deduper := newFakeDeduper()
	logger, _ := zap.NewDevelopment()
	reconciler := services.NewReconcilerService(svc, deduper, "ORD", logger)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(
		`{"id": 904, "description": "%s", "amount": %d}`, order.Code, order.Total))

	first, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, first, 1)

	second, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	assert.Empty(t, second)
	assert.Len(t, store.history, 1)
}

// One non-actionable notification never aborts the rest of the batch.
func TestProcessBatch_MixedBatch(t *testing.T) {
	store := newFakeStore()
	svc := newTestOrderService(store)
	reconciler := newTestReconciler(svc)
	userID := uuid.New()
	order := createTestOrder(t, svc, store, userID)

	payload := []byte(fmt.Sprintf(`[
		{"id": 60, "description": "no order reference", "amount": 100},
		{"id": 61, "description": "ORD-ZZZZ-9999 unknown order", "amount": 100},
		{"id": 62, "description": "%s", "amount": %d}
	]`, order.Code, order.Total))

	results, appErr := reconciler.ProcessBatch(context.Background(), payload)
	require.Nil(t, appErr)
	require.Len(t, results, 1)
	assert.Equal(t, order.Code, results[0].OrderCode)
}
