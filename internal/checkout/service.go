package checkout

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/dmtri/stylehub-backend/internal/inventory"
	"github.com/dmtri/stylehub-backend/internal/orders"
	"github.com/dmtri/stylehub-backend/pkg/config"
	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/metrics"
	"github.com/dmtri/stylehub-backend/pkg/outbox"
	"github.com/dmtri/stylehub-backend/pkg/outbox/payloads"
)

const auditNotePlaced = "Order placed"

// Line is one requested variant in a checkout.
type Line struct {
	VariantID uuid.UUID
	Quantity  int
}

// Input carries everything needed to place an order.
type Input struct {
	CustomerID    uuid.UUID
	Lines         []Line
	PaymentMethod enums.PaymentMethod
	RecipientName string
	Phone         string
	Address       string
	ClientIP      string
}

// Result is the committed order plus, for gateway payments, the signed
// redirect URL.
type Result struct {
	Order      *models.Order
	PaymentURL string
}

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// PaymentLinker issues signed payment redirect URLs after the order commits.
type PaymentLinker interface {
	BuildPaymentURL(ctx context.Context, orderID uuid.UUID, amount decimal.Decimal, clientIP string) (string, error)
}

// Service runs the transactional checkout: stock reservation, order rows,
// totals, audit trail and the outbox event all commit or roll back together.
// The payment link is built only after the commit.
type Service struct {
	tx           txRunner
	ordersRepo   orders.Repository
	outboxSvc    *outbox.Service
	linker       PaymentLinker
	mtr          *metrics.CheckoutMetrics
	logg         *logger.Logger
	shippingCost decimal.Decimal
}

// Params collects the checkout service dependencies.
type Params struct {
	Config     config.CheckoutConfig
	TxRunner   txRunner
	OrdersRepo orders.Repository
	Outbox     *outbox.Service
	Linker     PaymentLinker
	Metrics    *metrics.CheckoutMetrics
	Logger     *logger.Logger
}

func NewService(params Params) (*Service, error) {
	if params.TxRunner == nil {
		return nil, errors.New("tx runner required")
	}
	if params.OrdersRepo == nil {
		return nil, errors.New("orders repository required")
	}
	if params.Outbox == nil {
		return nil, errors.New("outbox service required")
	}
	if params.Linker == nil {
		return nil, errors.New("payment linker required")
	}
	shipping, err := decimal.NewFromString(params.Config.ShippingCost)
	if err != nil || shipping.Sign() < 0 {
		return nil, errors.New("invalid shipping cost")
	}
	return &Service{
		tx:           params.TxRunner,
		ordersRepo:   params.OrdersRepo,
		outboxSvc:    params.Outbox,
		linker:       params.Linker,
		mtr:          params.Metrics,
		logg:         params.Logger,
		shippingCost: shipping,
	}, nil
}

// Execute places the order. Any failure before commit leaves no trace: no
// stock moves, no order rows, no outbox event. A payment link failure after
// commit leaves the order placed and unpaid; the retry endpoint covers it.
func (s *Service) Execute(ctx context.Context, input Input) (*Result, error) {
	if err := validateInput(input); err != nil {
		s.mtr.IncCheckout("invalid")
		return nil, err
	}

	var order *models.Order
	err := s.tx.WithTx(ctx, func(tx *gorm.DB) error {
		requests := make([]inventory.Request, 0, len(input.Lines))
		for _, line := range input.Lines {
			requests = append(requests, inventory.Request{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}
		items, err := inventory.Reserve(ctx, tx, requests)
		if err != nil {
			return err
		}

		repo := s.ordersRepo.WithTx(tx)
		order, err = repo.Create(ctx, &models.Order{
			CustomerID:    input.CustomerID,
			Status:        enums.OrderStatusNew,
			PaymentMethod: input.PaymentMethod,
			RecipientName: input.RecipientName,
			Phone:         input.Phone,
			Address:       input.Address,
			ShippingCost:  s.shippingCost,
		})
		if err != nil {
			return err
		}

		lines := make([]models.OrderLine, 0, len(items))
		variantIDs := make([]uuid.UUID, 0, len(items))
		productCost := decimal.Zero
		subTotal := decimal.Zero
		for _, item := range items {
			qty := decimal.NewFromInt(int64(item.Quantity))
			lineTotal := item.UnitPrice.Mul(qty)
			lineCost := item.UnitCost.Mul(qty)
			lines = append(lines, models.OrderLine{
				OrderID:   order.ID,
				VariantID: item.VariantID,
				Quantity:  item.Quantity,
				UnitPrice: item.UnitPrice,
				LineCost:  lineCost,
				LineTotal: lineTotal,
			})
			variantIDs = append(variantIDs, item.VariantID)
			productCost = productCost.Add(lineCost)
			subTotal = subTotal.Add(lineTotal)
		}
		if err := repo.CreateLines(ctx, lines); err != nil {
			return err
		}

		totals := orders.Totals{
			ProductCost: productCost,
			SubTotal:    subTotal,
			Total:       subTotal.Add(s.shippingCost),
		}
		if err := repo.UpdateTotals(ctx, order.ID, totals); err != nil {
			return err
		}
		order.ProductCost = totals.ProductCost
		order.SubTotal = totals.SubTotal
		order.Total = totals.Total
		order.Lines = lines

		if err := repo.AppendAuditEvent(ctx, order.ID, enums.OrderStatusNew, auditNotePlaced); err != nil {
			return err
		}

		return s.outboxSvc.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventOrderPlaced,
			AggregateType: enums.AggregateOrder,
			AggregateID:   order.ID,
			Version:       1,
			OccurredAt:    time.Now(),
			Data: payloads.OrderPlacedEvent{
				OrderID:    order.ID,
				CustomerID: input.CustomerID,
				VariantIDs: variantIDs,
			},
		})
	})
	if err != nil {
		s.mtr.IncCheckout(outcomeLabel(err))
		return nil, err
	}

	result := &Result{Order: order}
	if input.PaymentMethod == enums.PaymentMethodGateway {
		paymentURL, err := s.linker.BuildPaymentURL(ctx, order.ID, order.Total, input.ClientIP)
		if err != nil {
			s.mtr.IncCheckout("payment_link_error")
			if s.logg != nil {
				s.logg.Error(s.logg.WithOrderID(ctx, order.ID.String()), "payment link failed after checkout", err)
			}
			return nil, pkgerrors.
				Wrap(pkgerrors.CodeDependency, err, "order placed but payment link failed").
				WithDetails(map[string]any{"order_id": order.ID})
		}
		result.PaymentURL = paymentURL
	}

	s.mtr.IncCheckout("success")
	if s.logg != nil {
		logCtx := s.logg.WithOrderID(ctx, order.ID.String())
		logCtx = s.logg.WithCustomerID(logCtx, input.CustomerID.String())
		s.logg.Info(logCtx, "checkout committed")
	}
	return result, nil
}

// RetryPaymentURL issues a fresh payment link for a placed, unpaid gateway
// order. The new link gets its own transaction reference and correlation.
func (s *Service) RetryPaymentURL(ctx context.Context, orderID uuid.UUID, clientIP string) (string, error) {
	order, err := s.ordersRepo.FindByID(ctx, orderID)
	if err != nil {
		return "", err
	}
	if order.PaymentMethod != enums.PaymentMethodGateway {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order is not a gateway payment")
	}
	if order.IsPaid {
		return "", pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")
	}
	return s.linker.BuildPaymentURL(ctx, order.ID, order.Total, clientIP)
}

func validateInput(input Input) error {
	if input.CustomerID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "customer id required")
	}
	if len(input.Lines) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one line is required")
	}
	if !input.PaymentMethod.Valid() {
		return pkgerrors.New(pkgerrors.CodeValidation, "unknown payment method")
	}
	if input.RecipientName == "" || input.Phone == "" || input.Address == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "recipient name, phone and address are required")
	}
	return nil
}

func outcomeLabel(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeInsufficientStock:
		return "insufficient_stock"
	case pkgerrors.CodeValidation:
		return "invalid"
	case pkgerrors.CodeNotFound:
		return "not_found"
	default:
		return "error"
	}
}
