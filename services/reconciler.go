package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"

	apperrors "order-core/errors"
	"order-core/models"
	"order-core/repository"

	"go.uber.org/zap"
)

// BankNotification is the canonical shape every accepted webhook payload is
// normalized into before matching.
type BankNotification struct {
	Reference   string          `json:"reference"`
	Description string          `json:"description"`
	Amount      int64           `json:"amount"`
	Raw         json.RawMessage `json:"-"`
}

// ReconcileResult reports one settled notification. Skipped notifications
// never appear in the batch result.
type ReconcileResult struct {
	OrderCode string `json:"orderCode"`
	Status    string `json:"status"`
}

// ReconcilerService matches loosely-structured bank-transfer notifications
// to orders and settles them idempotently.
type ReconcilerService struct {
	settler     PaymentSettler
	deduper     repository.Deduper
	codePattern *regexp.Regexp
	logger      *zap.Logger
}

func NewReconcilerService(settler PaymentSettler, deduper repository.Deduper, codePrefix string, logger *zap.Logger) *ReconcilerService {
	pattern := regexp.MustCompile(`(?i)` + regexp.QuoteMeta(codePrefix) + `-[A-Z0-9]+-[A-Z0-9]+`)
	return &ReconcilerService{
		settler:     settler,
		deduper:     deduper,
		codePattern: pattern,
		logger:      logger,
	}
}

// ProcessBatch normalizes the payload and processes each notification
// independently. One notification's failure, malformed elements included, is
// logged and never aborts the remaining items; only notifications that
// changed state are returned. The 400 is reserved for a payload whose
// top-level shape is unrecognizable.
func (r *ReconcilerService) ProcessBatch(ctx context.Context, payload []byte) ([]ReconcileResult, *apperrors.Error) {
	raws, err := splitBatch(payload)
	if err != nil {
		return nil, apperrors.New(http.StatusBadRequest, "Unrecognized notification payload", err)
	}

	results := make([]ReconcileResult, 0, len(raws))
	for _, raw := range raws {
		n, err := decodeNotification(raw)
		if err != nil {
			r.logger.Warn("Malformed notification in batch, skipping", zap.Error(err))
			continue
		}
		code, ok := r.processOne(ctx, n)
		if ok {
			results = append(results, ReconcileResult{OrderCode: code, Status: string(models.StatusPaid)})
		}
	}
	return results, nil
}

// processOne runs the per-notification pipeline: extract code, dedup, match,
// verify amount, settle. Every skip is logged as non-actionable.
func (r *ReconcilerService) processOne(ctx context.Context, n BankNotification) (string, bool) {
	code := r.codePattern.FindString(n.Description)
	if code == "" {
		r.logger.Info("Notification without order code, skipping",
			zap.String("reference", n.Reference))
		return "", false
	}
	code = strings.ToUpper(code)

	// Settlement requires a positive amount covering the order total; the
	// zero sentinel that waives the check belongs to the signature-verified
	// gateway path only.
	if n.Amount <= 0 {
		r.logger.Warn("Notification without a positive amount, skipping",
			zap.String("reference", n.Reference),
			zap.String("order_code", code),
			zap.Int64("amount", n.Amount))
		return "", false
	}

	if r.deduper != nil && n.Reference != "" && r.deduper.Seen(ctx, n.Reference) {
		r.logger.Info("Notification already seen, skipping",
			zap.String("reference", n.Reference),
			zap.String("order_code", code))
		return "", false
	}

	reason := fmt.Sprintf("bank transfer %s amount=%d", n.Reference, n.Amount)
	_, changed, appErr := r.settler.MarkOrderPaidByCode(ctx, code, models.ProviderBankTransfer, n.Amount, string(n.Raw), reason)
	if appErr != nil {
		switch {
		case errors.Is(appErr, apperrors.ErrOrderNotFound):
			r.logger.Info("No order matches notification code, skipping",
				zap.String("order_code", code))
		case errors.Is(appErr, apperrors.ErrUnderPayment):
			r.logger.Warn("Notified amount below order total, skipping",
				zap.String("order_code", code),
				zap.Int64("amount", n.Amount))
		default:
			r.logger.Error("Notification processing failed",
				zap.String("order_code", code),
				zap.Error(appErr))
		}
		return "", false
	}
	if !changed {
		r.logger.Info("Order no longer awaiting payment, skipping",
			zap.String("order_code", code))
		return "", false
	}

	// Marked only after the settlement committed: a transient failure above
	// leaves the reference unmarked so the aggregator's redelivery retries.
	if r.deduper != nil && n.Reference != "" {
		r.deduper.MarkSeen(ctx, n.Reference)
	}
	return code, true
}

// rawNotification tolerates the field spellings and types the aggregator is
// known to emit.
type rawNotification struct {
	ID            json.Number `json:"id"`
	ReferenceCode string      `json:"referenceCode"`
	Description   string      `json:"description"`
	Content       string      `json:"content"`
	Amount        flexAmount  `json:"amount"`
	TransferAmt   flexAmount  `json:"transferAmount"`
}

type batchEnvelope struct {
	Transactions []json.RawMessage `json:"transactions"`
}

// ParseNotifications normalizes the three accepted payload shapes (a bare
// object, an object wrapping a transactions list, or a bare array) into one
// flat list. Malformed elements inside a recognized batch are dropped; only
// an unrecognizable top-level shape is an error.
func ParseNotifications(payload []byte) ([]BankNotification, error) {
	raws, err := splitBatch(payload)
	if err != nil {
		return nil, err
	}

	notifications := make([]BankNotification, 0, len(raws))
	for _, raw := range raws {
		n, err := decodeNotification(raw)
		if err != nil {
			continue
		}
		notifications = append(notifications, n)
	}
	return notifications, nil
}

// splitBatch resolves the top-level shape into a flat element list.
func splitBatch(payload []byte) ([]json.RawMessage, error) {
	trimmed := strings.TrimSpace(string(payload))
	if trimmed == "" {
		return nil, fmt.Errorf("empty payload")
	}

	switch trimmed[0] {
	case '[':
		var raws []json.RawMessage
		if err := json.Unmarshal(payload, &raws); err != nil {
			return nil, err
		}
		return raws, nil
	case '{':
		var env batchEnvelope
		if err := json.Unmarshal(payload, &env); err != nil {
			return nil, err
		}
		if env.Transactions != nil {
			return env.Transactions, nil
		}
		return []json.RawMessage{json.RawMessage(payload)}, nil
	default:
		return nil, fmt.Errorf("payload is neither object nor array")
	}
}

func decodeNotification(raw json.RawMessage) (BankNotification, error) {
	var rn rawNotification
	if err := json.Unmarshal(raw, &rn); err != nil {
		return BankNotification{}, err
	}
	return normalize(rn, raw), nil
}

func normalize(rn rawNotification, raw json.RawMessage) BankNotification {
	n := BankNotification{Raw: raw}

	n.Reference = rn.ReferenceCode
	if n.Reference == "" {
		n.Reference = rn.ID.String()
	}

	n.Description = rn.Description
	if n.Description == "" {
		n.Description = rn.Content
	}

	n.Amount = int64(rn.Amount)
	if n.Amount == 0 {
		n.Amount = int64(rn.TransferAmt)
	}
	return n
}

// flexAmount accepts an amount delivered as a JSON number or a numeric
// string, truncating any fractional part to minor units.
type flexAmount int64

func (f *flexAmount) UnmarshalJSON(b []byte) error {
	s := strings.Trim(strings.TrimSpace(string(b)), `"`)
	if s == "" || s == "null" {
		*f = 0
		return nil
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("unparseable amount %q: %w", s, err)
	}
	*f = flexAmount(int64(v))
	return nil
}
