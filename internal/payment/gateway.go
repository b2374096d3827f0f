package payment

import (
	"context"
	"crypto/rand"
	"fmt"
	"math/big"
	"net/url"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/internal/orders"
	"github.com/dmtri/stylehub-backend/pkg/config"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
	"github.com/dmtri/stylehub-backend/pkg/outbox/payloads"
)

// Settings-store keys that override the gateway env defaults at runtime.
const (
	SettingMerchantCode = "gateway.merchant_code"
	SettingSecret       = "gateway.secret"
	SettingPayURL       = "gateway.pay_url"
	SettingReturnURL    = "gateway.return_url"
	SettingFrontendURL  = "frontend.url"
)

const (
	gatewayVersion     = "2.1.0"
	gatewayCommandPay  = "pay"
	gatewaySuccessCode = "00"
	timestampLayout    = "20060102150405"
)

// SettingsProvider exposes the mutable configuration store.
type SettingsProvider interface {
	Get(ctx context.Context, key string) (string, bool, error)
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// CallbackResult reports a verified callback. AlreadyPaid marks the
// idempotent no-op case where a duplicate callback arrived after the order
// was marked paid.
type CallbackResult struct {
	OrderID     uuid.UUID
	TxnRef      string
	AlreadyPaid bool
}

// Adapter wraps the payment gateway: it issues signed redirect URLs and
// validates asynchronous callbacks. Gateway credentials come from the
// injected settings provider with env-config defaults.
type Adapter struct {
	cfg        config.GatewayConfig
	settings   SettingsProvider
	correlator *Correlator
	tx         txRunner
	ordersRepo orders.Repository
	outboxSvc  *outbox.Service
	logg       *logger.Logger

	now       func() time.Time
	newTxnRef func() (string, error)
}

// AdapterParams collects the adapter dependencies.
type AdapterParams struct {
	Config     config.GatewayConfig
	Settings   SettingsProvider
	Correlator *Correlator
	TxRunner   txRunner
	OrdersRepo orders.Repository
	Outbox     *outbox.Service
	Logger     *logger.Logger

	// Test seams; production uses time.Now and a random reference.
	Now       func() time.Time
	NewTxnRef func() (string, error)
}

func NewAdapter(params AdapterParams) (*Adapter, error) {
	if params.Settings == nil {
		return nil, fmt.Errorf("settings provider required")
	}
	if params.Correlator == nil {
		return nil, fmt.Errorf("correlator required")
	}
	if params.TxRunner == nil {
		return nil, fmt.Errorf("tx runner required")
	}
	if params.OrdersRepo == nil {
		return nil, fmt.Errorf("orders repository required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Now == nil {
		params.Now = time.Now
	}
	if params.NewTxnRef == nil {
		params.NewTxnRef = randomTxnRef
	}
	return &Adapter{
		cfg:        params.Config,
		settings:   params.Settings,
		correlator: params.Correlator,
		tx:         params.TxRunner,
		ordersRepo: params.OrdersRepo,
		outboxSvc:  params.Outbox,
		logg:       params.Logger,
		now:        params.Now,
		newTxnRef:  params.NewTxnRef,
	}, nil
}

// BuildPaymentURL creates the signed redirect URL for an order and stores the
// transaction correlation. No lock is held across the gateway round-trip.
func (a *Adapter) BuildPaymentURL(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, clientIP string) (string, error) {
	if orderID == uuid.Nil {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "order id required")
	}
	if amount.Sign() <= 0 {
		return "", pkgerrors.New(pkgerrors.CodeValidation, "amount must be positive")
	}

	merchantCode, err := a.resolve(ctx, SettingMerchantCode, a.cfg.MerchantCode)
	if err != nil {
		return "", err
	}
	secret, err := a.resolve(ctx, SettingSecret, a.cfg.Secret)
	if err != nil {
		return "", err
	}
	payURL, err := a.resolve(ctx, SettingPayURL, a.cfg.PayURL)
	if err != nil {
		return "", err
	}
	returnURL, err := a.resolve(ctx, SettingReturnURL, a.cfg.ReturnURL)
	if err != nil {
		return "", err
	}
	if merchantCode == "" || secret == "" {
		return "", pkgerrors.New(pkgerrors.CodeDependency, "gateway credentials not configured")
	}

	loc, err := time.LoadLocation(a.cfg.Timezone)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "loading gateway timezone")
	}
	txnRef, err := a.newTxnRef()
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeInternal, err, "generating transaction reference")
	}

	created := a.now().In(loc)
	fields := map[string]string{
		"vnp_Version":    gatewayVersion,
		"vnp_Command":    gatewayCommandPay,
		"vnp_TmnCode":    merchantCode,
		"vnp_Amount":     strconv.FormatInt(MinorUnits(amount), 10),
		"vnp_CurrCode":   a.cfg.CurrencyCode,
		"vnp_TxnRef":     txnRef,
		"vnp_OrderInfo":  "Payment for order " + orderID.String(),
		"vnp_Locale":     a.cfg.Locale,
		"vnp_ReturnUrl":  returnURL,
		"vnp_IpAddr":     clientIP,
		"vnp_CreateDate": created.Format(timestampLayout),
		"vnp_ExpireDate": created.Add(a.cfg.LinkExpiry).Format(timestampLayout),
	}

	canonical, signature := Sign(fields, secret)

	if err := a.correlator.Put(ctx, txnRef, orderID); err != nil {
		return "", err
	}

	if a.logg != nil {
		logCtx := a.logg.WithOrderID(ctx, orderID.String())
		logCtx = a.logg.WithTxnRef(logCtx, txnRef)
		a.logg.Info(logCtx, "payment url issued")
	}
	return payURL + "?" + canonical + "&" + FieldSecureHash + "=" + signature, nil
}

// ValidateCallback verifies the gateway callback and marks the order paid.
// Only a fully verified, successfully attributed callback flips IsPaid, and
// it flips at most once; the flip and its order.paid outbox event commit
// together.
func (a *Adapter) ValidateCallback(ctx context.Context, params url.Values) (*CallbackResult, error) {
	fields := make(map[string]string, len(params))
	for key := range params {
		fields[key] = params.Get(key)
	}

	given, ok := fields[FieldSecureHash]
	if !ok || given == "" {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "missing signature")
	}

	secret, err := a.resolve(ctx, SettingSecret, a.cfg.Secret)
	if err != nil {
		return nil, err
	}
	if !Verify(fields, secret, given) {
		return nil, pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid signature")
	}

	if code := fields["vnp_ResponseCode"]; code != gatewaySuccessCode {
		return nil, pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment declined: "+code).
			WithDetails(map[string]any{"response_code": code})
	}

	txnRef := fields["vnp_TxnRef"]
	orderID, err := a.correlator.Get(ctx, txnRef)
	if err != nil {
		return nil, err
	}

	result := &CallbackResult{OrderID: orderID, TxnRef: txnRef}
	err = a.tx.WithTx(ctx, func(tx *gorm.DB) error {
		repo := a.ordersRepo.WithTx(tx)
		order, err := repo.FindByID(ctx, orderID)
		if err != nil {
			return err
		}
		if order.IsPaid {
			result.AlreadyPaid = true
			return nil
		}
		if err := repo.SetPaid(ctx, orderID); err != nil {
			return err
		}
		return a.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPaid,
			AggregateType: enums.AggregateOrder,
			AggregateID:   orderID,
			Version:       1,
			OccurredAt:    a.now(),
			Data: payloads.OrderPaidEvent{
				OrderID: orderID,
				TxnRef:  txnRef,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	if a.logg != nil {
		logCtx := a.logg.WithOrderID(ctx, orderID.String())
		logCtx = a.logg.WithTxnRef(logCtx, txnRef)
		if result.AlreadyPaid {
			a.logg.Info(logCtx, "duplicate payment callback ignored")
		} else {
			a.logg.Info(logCtx, "order marked paid")
		}
	}
	return result, nil
}

// FrontendURL resolves the frontend base URL used for post-payment redirects.
func (a *Adapter) FrontendURL(ctx context.Context) string {
	value, err := a.resolve(ctx, SettingFrontendURL, a.cfg.FrontendURL)
	if err != nil || value == "" {
		return a.cfg.FrontendURL
	}
	return value
}

// MinorUnits converts a decimal amount to the gateway's minor-unit integer,
// truncating: 110.5 -> 11050.
func MinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(decimal.NewFromInt(100)).IntPart()
}

func (a *Adapter) resolve(ctx context.Context, key, fallback string) (string, error) {
	value, ok, err := a.settings.Get(ctx, key)
	if err != nil {
		return "", pkgerrors.Wrap(pkgerrors.CodeDependency, err, "reading settings store")
	}
	if !ok || value == "" {
		return fallback, nil
	}
	return value, nil
}

func randomTxnRef() (string, error) {
	// 8-digit reference, matching the gateway's sample integrations.
	n, err := rand.Int(rand.Reader, big.NewInt(90000000))
	if err != nil {
		return "", err
	}
	return strconv.FormatInt(n.Int64()+10000000, 10), nil
}
