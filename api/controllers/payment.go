package controllers

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmtri/stylehub-backend/api/responses"
	"github.com/dmtri/stylehub-backend/internal/payment"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
	"github.com/dmtri/stylehub-backend/pkg/logger"
	"github.com/dmtri/stylehub-backend/pkg/metrics"
)

const confirmPaymentPath = "/confirm-payment/"

// CallbackValidator is the gateway surface the return handler depends on.
type CallbackValidator interface {
	ValidateCallback(ctx context.Context, params url.Values) (*payment.CallbackResult, error)
	FrontendURL(ctx context.Context) string
}

// PaymentReturn validates the gateway's browser return and sends the shopper
// to the frontend confirmation page. The response is always a redirect; the
// outcome segment tells the frontend what to render.
func PaymentReturn(adapter CallbackValidator, mtr *metrics.CheckoutMetrics, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if adapter == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "payment adapter unavailable"))
			return
		}

		result, err := adapter.ValidateCallback(ctx, r.URL.Query())
		outcome := "success"
		if err != nil {
			outcome = callbackOutcome(err)
			if logg != nil {
				logg.Warn(logg.WithFields(ctx, map[string]any{"outcome": outcome}), "payment return rejected")
			}
		} else if result.AlreadyPaid {
			outcome = "success"
		}
		mtr.IncCallback(outcome)

		segment := "failure"
		switch outcome {
		case "success":
			segment = "success"
		case "error":
			segment = "error"
		}
		target := strings.TrimRight(adapter.FrontendURL(ctx), "/") + confirmPaymentPath + segment
		http.Redirect(w, r, target, http.StatusFound)
	}
}

// PaymentRetry issues a fresh payment URL for a placed, unpaid order.
func PaymentRetry(svc CheckoutService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "checkout service unavailable"))
			return
		}

		orderID, err := uuid.Parse(chi.URLParam(r, "orderId"))
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "invalid order id"))
			return
		}

		paymentURL, err := svc.RetryPaymentURL(ctx, orderID, ClientIP(r))
		if err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}
		responses.WriteSuccess(w, map[string]string{"payment_url": paymentURL})
	}
}

// callbackOutcome buckets a callback failure for the redirect and metrics.
// Verification and attribution failures are payment failures from the
// shopper's point of view; infrastructure faults are errors.
func callbackOutcome(err error) string {
	typed := pkgerrors.As(err)
	if typed == nil {
		return "error"
	}
	switch typed.Code() {
	case pkgerrors.CodeSignatureInvalid,
		pkgerrors.CodePaymentDeclined,
		pkgerrors.CodeUnknownTransaction,
		pkgerrors.CodeStateConflict:
		return "failure"
	default:
		return "error"
	}
}
