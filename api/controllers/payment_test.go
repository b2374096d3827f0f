package controllers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/dmtri/stylehub-backend/internal/payment"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
)

type fakeValidator struct {
	result   *payment.CallbackResult
	err      error
	frontend string
}

func (f *fakeValidator) ValidateCallback(context.Context, url.Values) (*payment.CallbackResult, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeValidator) FrontendURL(context.Context) string {
	return f.frontend
}

func TestPaymentReturnRedirects(t *testing.T) {
	t.Parallel()

	cases := []struct {
		name      string
		validator *fakeValidator
		want      string
	}{
		{
			name:      "success",
			validator: &fakeValidator{result: &payment.CallbackResult{OrderID: uuid.New()}},
			want:      "https://shop.example/confirm-payment/success",
		},
		{
			name:      "duplicate callback",
			validator: &fakeValidator{result: &payment.CallbackResult{OrderID: uuid.New(), AlreadyPaid: true}},
			want:      "https://shop.example/confirm-payment/success",
		},
		{
			name:      "declined",
			validator: &fakeValidator{err: pkgerrors.New(pkgerrors.CodePaymentDeclined, "payment declined: 24")},
			want:      "https://shop.example/confirm-payment/failure",
		},
		{
			name:      "bad signature",
			validator: &fakeValidator{err: pkgerrors.New(pkgerrors.CodeSignatureInvalid, "invalid signature")},
			want:      "https://shop.example/confirm-payment/failure",
		},
		{
			name:      "unknown transaction",
			validator: &fakeValidator{err: pkgerrors.New(pkgerrors.CodeUnknownTransaction, "transaction reference not found or expired")},
			want:      "https://shop.example/confirm-payment/failure",
		},
		{
			name:      "dependency down",
			validator: &fakeValidator{err: pkgerrors.New(pkgerrors.CodeDependency, "redis unavailable")},
			want:      "https://shop.example/confirm-payment/error",
		},
	}

	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			tc.validator.frontend = "https://shop.example"
			req := httptest.NewRequest(http.MethodGet, "/payment/return?vnp_TxnRef=12345678", nil)
			rec := httptest.NewRecorder()
			PaymentReturn(tc.validator, nil, nil)(rec, req)

			if rec.Code != http.StatusFound {
				t.Fatalf("status = %d", rec.Code)
			}
			if got := rec.Header().Get("Location"); got != tc.want {
				t.Fatalf("location = %q, want %q", got, tc.want)
			}
		})
	}
}

func retryRequest(t *testing.T, orderID string) *http.Request {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, "/payment/retry/"+orderID, nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("orderId", orderID)
	return req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))
}

func TestPaymentRetryReturnsURL(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{retryURL: "https://gateway.example/pay?ref=2"}
	rec := httptest.NewRecorder()
	PaymentRetry(svc, nil)(rec, retryRequest(t, uuid.NewString()))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestPaymentRetryRejectsBadID(t *testing.T) {
	t.Parallel()

	rec := httptest.NewRecorder()
	PaymentRetry(&fakeCheckoutService{}, nil)(rec, retryRequest(t, "not-a-uuid"))
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d", rec.Code)
	}
}

func TestPaymentRetryPaidOrderConflicts(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{retryErr: pkgerrors.New(pkgerrors.CodeStateConflict, "order already paid")}
	rec := httptest.NewRecorder()
	PaymentRetry(svc, nil)(rec, retryRequest(t, uuid.NewString()))
	if rec.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", rec.Code)
	}
}
