package services

import (
	"context"
	"crypto/hmac"
	"crypto/sha512"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"time"

	apperrors "order-core/errors"
	"order-core/models"
	"order-core/repository"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	paramVersion   = "vnp_Version"
	paramCommand   = "vnp_Command"
	paramTmnCode   = "vnp_TmnCode"
	paramAmount    = "vnp_Amount"
	paramTxnRef    = "vnp_TxnRef"
	paramOrderInfo = "vnp_OrderInfo"
	paramOrderType = "vnp_OrderType"
	paramIPAddr    = "vnp_IpAddr"
	paramCreate    = "vnp_CreateDate"
	paramReturnURL = "vnp_ReturnUrl"
	paramLocale    = "vnp_Locale"
	paramCurrCode  = "vnp_CurrCode"
	paramRespCode  = "vnp_ResponseCode"
	paramHash      = "vnp_SecureHash"
	paramHashType  = "vnp_SecureHashType"

	respCodeSuccess = "00"
)

// GatewayConfig holds the merchant credentials for the hosted-payment-page
// provider.
type GatewayConfig struct {
	BaseURL    string
	TmnCode    string
	HashSecret string
	ReturnURL  string
	Locale     string
	Currency   string
}

// CallbackResult is returned to the caller of the verified return endpoint.
type CallbackResult struct {
	Success   bool   `json:"success"`
	OrderCode string `json:"orderCode"`
}

// GatewayService builds signed outbound redirect URLs and verifies signed
// inbound callbacks.
type GatewayService struct {
	cfg     GatewayConfig
	store   repository.Store
	settler PaymentSettler
	logger  *zap.Logger
	now     func() time.Time
}

func NewGatewayService(cfg GatewayConfig, store repository.Store, settler PaymentSettler, logger *zap.Logger) *GatewayService {
	if cfg.Locale == "" {
		cfg.Locale = "vn"
	}
	if cfg.Currency == "" {
		cfg.Currency = "VND"
	}
	return &GatewayService{
		cfg:     cfg,
		store:   store,
		settler: settler,
		logger:  logger,
		now:     time.Now,
	}
}

// BuildPaymentURL assembles the canonical parameter set for the order, signs
// it and returns the fully-formed redirect URL.
func (s *GatewayService) BuildPaymentURL(ctx context.Context, orderID uuid.UUID, clientIP string) (string, *apperrors.Error) {
	order, err := s.store.GetOrder(ctx, orderID)
	if errors.Is(err, repository.ErrNotFound) {
		return "", apperrors.ErrOrderNotFound
	}
	if err != nil {
		s.logger.Error("Failed to load order for payment URL", zap.String("order_id", orderID.String()), zap.Error(err))
		return "", apperrors.New(http.StatusInternalServerError, "Failed to build payment URL", err)
	}
	if !AwaitsPayment(order.Status) {
		return "", apperrors.New(http.StatusConflict, "Order is not awaiting payment", nil)
	}

	params := map[string]string{
		paramVersion: "2.1.0",
		paramCommand: "pay",
		paramTmnCode: s.cfg.TmnCode,
		// Provider convention: amount is sent multiplied by 100.
		paramAmount:    strconv.FormatInt(order.Total*100, 10),
		paramTxnRef:    order.Code,
		paramOrderInfo: "Payment for order " + order.Code,
		paramOrderType: "other",
		paramIPAddr:    clientIP,
		paramCreate:    s.now().Format("20060102150405"),
		paramReturnURL: s.cfg.ReturnURL,
		paramLocale:    s.cfg.Locale,
		paramCurrCode:  s.cfg.Currency,
	}

	canonical := canonicalQuery(params)
	digest := s.Sign(params)
	return s.cfg.BaseURL + "?" + canonical + "&" + paramHash + "=" + digest, nil
}

// Sign computes the hex HMAC-SHA512 digest over the canonical encoding of
// params. The digest fields themselves are never part of the signed string.
func (s *GatewayService) Sign(params map[string]string) string {
	signable := make(map[string]string, len(params))
	for k, v := range params {
		if k == paramHash || k == paramHashType {
			continue
		}
		signable[k] = v
	}
	mac := hmac.New(sha512.New, []byte(s.cfg.HashSecret))
	mac.Write([]byte(canonicalQuery(signable)))
	return hex.EncodeToString(mac.Sum(nil))
}

// VerifyCallback re-signs the delivered parameters (digest fields stripped)
// and compares against the remote digest. A mismatch fails closed with zero
// state change. A verified success settles the order; a verified failure
// marks only the payment row failed.
func (s *GatewayService) VerifyCallback(ctx context.Context, params map[string]string) (*CallbackResult, *apperrors.Error) {
	remote := params[paramHash]
	if remote == "" {
		return nil, apperrors.ErrSignatureMismatch
	}

	expected := s.Sign(params)
	if !hmac.Equal([]byte(strings.ToLower(remote)), []byte(expected)) {
		s.logger.Warn("Gateway callback signature mismatch", zap.String("txn_ref", params[paramTxnRef]))
		return nil, apperrors.ErrSignatureMismatch
	}

	code := params[paramTxnRef]
	raw, _ := json.Marshal(params)

	if params[paramRespCode] != respCodeSuccess {
		if appErr := s.settler.MarkPaymentFailedByCode(ctx, code, models.ProviderGateway, string(raw)); appErr != nil {
			return nil, appErr
		}
		return &CallbackResult{Success: false, OrderCode: code}, nil
	}

	_, _, appErr := s.settler.MarkOrderPaidByCode(ctx, code, models.ProviderGateway, 0, string(raw),
		"gateway confirmation "+params[paramRespCode])
	if appErr != nil {
		return nil, appErr
	}
	return &CallbackResult{Success: true, OrderCode: code}, nil
}

// canonicalQuery sorts keys lexicographically and URL-encodes each key and
// value into one query string. This exact string is the signature input;
// any reordering breaks interoperability with the remote verifier.
func canonicalQuery(params map[string]string) string {
	keys := make([]string, 0, len(params))
	for k := range params {
		if params[k] == "" {
			continue
		}
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for i, k := range keys {
		if i > 0 {
			b.WriteByte('&')
		}
		b.WriteString(url.QueryEscape(k))
		b.WriteByte('=')
		b.WriteString(url.QueryEscape(params[k]))
	}
	return b.String()
}
