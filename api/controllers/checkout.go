package controllers

import (
	"context"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/dmtri/stylehub-backend/api/responses"
	"github.com/dmtri/stylehub-backend/api/validators"
	checkoutsvc "github.com/dmtri/stylehub-backend/internal/checkout"
	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
	"github.com/dmtri/stylehub-backend/pkg/logger"
)

type checkoutLineRequest struct {
	VariantID uuid.UUID `json:"variant_id" validate:"required,uuid4"`
	Quantity  int       `json:"quantity" validate:"required,gt=0"`
}

type checkoutRequest struct {
	CustomerID    uuid.UUID             `json:"customer_id" validate:"required,uuid4"`
	RecipientName string                `json:"recipient_name" validate:"required,max=128"`
	Phone         string                `json:"phone" validate:"required,max=32"`
	Address       string                `json:"address" validate:"required,max=256"`
	PaymentMethod string                `json:"payment_method" validate:"required,oneof=COD GATEWAY"`
	Lines         []checkoutLineRequest `json:"lines" validate:"required,min=1,dive"`
}

type checkoutLineResponse struct {
	VariantID uuid.UUID `json:"variant_id"`
	Quantity  int       `json:"quantity"`
	UnitPrice string    `json:"unit_price"`
	LineTotal string    `json:"line_total"`
}

type checkoutResponse struct {
	OrderID    uuid.UUID              `json:"order_id"`
	Status     string                 `json:"status"`
	SubTotal   string                 `json:"sub_total"`
	Shipping   string                 `json:"shipping_cost"`
	Total      string                 `json:"total"`
	Lines      []checkoutLineResponse `json:"lines"`
	PaymentURL string                 `json:"payment_url,omitempty"`
}

// CheckoutService is the checkout surface the handlers depend on.
type CheckoutService interface {
	Execute(ctx context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error)
	RetryPaymentURL(ctx context.Context, orderID uuid.UUID, clientIP string) (string, error)
}

// Checkout places an order from the submitted lines.
func Checkout(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if svc == nil {
			responses.WriteError(r.Context(), logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		var payload checkoutRequest
		if err := validators.DecodeJSONBody(r, &payload); err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		lines := make([]checkoutsvc.Line, 0, len(payload.Lines))
		for _, line := range payload.Lines {
			lines = append(lines, checkoutsvc.Line{
				VariantID: line.VariantID,
				Quantity:  line.Quantity,
			})
		}

		result, err := svc.Execute(r.Context(), checkoutsvc.Input{
			CustomerID:    payload.CustomerID,
			Lines:         lines,
			PaymentMethod: enums.PaymentMethod(payload.PaymentMethod),
			RecipientName: payload.RecipientName,
			Phone:         payload.Phone,
			Address:       payload.Address,
			ClientIP:      ClientIP(r),
		})
		if err != nil {
			responses.WriteError(r.Context(), logg, w, err)
			return
		}

		responses.WriteSuccessStatus(w, http.StatusCreated, newCheckoutResponse(result))
	}
}

func newCheckoutResponse(result *checkoutsvc.Result) checkoutResponse {
	if result == nil || result.Order == nil {
		return checkoutResponse{}
	}
	order := result.Order
	lines := make([]checkoutLineResponse, 0, len(order.Lines))
	for _, line := range order.Lines {
		lines = append(lines, newCheckoutLineResponse(line))
	}
	return checkoutResponse{
		OrderID:    order.ID,
		Status:     string(order.Status),
		SubTotal:   order.SubTotal.StringFixed(2),
		Shipping:   order.ShippingCost.StringFixed(2),
		Total:      order.Total.StringFixed(2),
		Lines:      lines,
		PaymentURL: result.PaymentURL,
	}
}

func newCheckoutLineResponse(line models.OrderLine) checkoutLineResponse {
	return checkoutLineResponse{
		VariantID: line.VariantID,
		Quantity:  line.Quantity,
		UnitPrice: line.UnitPrice.StringFixed(2),
		LineTotal: line.LineTotal.StringFixed(2),
	}
}

// ClientIP prefers the first X-Forwarded-For hop, falling back to the
// connection's remote address.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first := strings.TrimSpace(strings.Split(fwd, ",")[0]); first != "" {
			return first
		}
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
