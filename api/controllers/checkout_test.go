package controllers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	checkoutsvc "github.com/dmtri/stylehub-backend/internal/checkout"
	"github.com/dmtri/stylehub-backend/pkg/db/models"
	"github.com/dmtri/stylehub-backend/pkg/enums"
	pkgerrors "github.com/dmtri/stylehub-backend/pkg/errors"
	"github.com/dmtri/stylehub-backend/pkg/types"
)

type fakeCheckoutService struct {
	result   *checkoutsvc.Result
	err      error
	retryURL string
	retryErr error
	gotInput checkoutsvc.Input
}

func (f *fakeCheckoutService) Execute(_ context.Context, input checkoutsvc.Input) (*checkoutsvc.Result, error) {
	f.gotInput = input
	if f.err != nil {
		return nil, f.err
	}
	return f.result, nil
}

func (f *fakeCheckoutService) RetryPaymentURL(context.Context, uuid.UUID, string) (string, error) {
	if f.retryErr != nil {
		return "", f.retryErr
	}
	return f.retryURL, nil
}

func checkoutBody(t *testing.T, variantID uuid.UUID) *bytes.Buffer {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"customer_id":    uuid.NewString(),
		"recipient_name": "An Nguyen",
		"phone":          "0901234567",
		"address":        "12 Hang Bong, Hanoi",
		"payment_method": "GATEWAY",
		"lines": []map[string]any{
			{"variant_id": variantID.String(), "quantity": 2},
		},
	})
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	return bytes.NewBuffer(body)
}

func TestCheckoutHandlerCreated(t *testing.T) {
	t.Parallel()

	orderID := uuid.New()
	variantID := uuid.New()
	svc := &fakeCheckoutService{result: &checkoutsvc.Result{
		Order: &models.Order{
			ID:           orderID,
			Status:       enums.OrderStatusNew,
			SubTotal:     decimal.NewFromInt(110),
			ShippingCost: decimal.NewFromInt(10),
			Total:        decimal.NewFromInt(120),
			Lines: []models.OrderLine{{
				VariantID: variantID,
				Quantity:  2,
				UnitPrice: decimal.NewFromInt(50),
				LineTotal: decimal.NewFromInt(100),
			}},
		},
		PaymentURL: "https://gateway.example/pay?x=1",
	}}

	req := httptest.NewRequest(http.MethodPost, "/checkout", checkoutBody(t, variantID))
	req.Header.Set("X-Forwarded-For", "203.0.113.7, 10.0.0.1")
	rec := httptest.NewRecorder()
	Checkout(svc, nil)(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	if svc.gotInput.ClientIP != "203.0.113.7" {
		t.Fatalf("client ip = %q", svc.gotInput.ClientIP)
	}
	if svc.gotInput.PaymentMethod != enums.PaymentMethodGateway {
		t.Fatalf("payment method = %q", svc.gotInput.PaymentMethod)
	}

	var envelope types.SuccessEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	data := envelope.Data.(map[string]any)
	if data["order_id"] != orderID.String() {
		t.Fatalf("order_id = %v", data["order_id"])
	}
	if data["total"] != "120.00" {
		t.Fatalf("total = %v", data["total"])
	}
	if data["payment_url"] != "https://gateway.example/pay?x=1" {
		t.Fatalf("payment_url = %v", data["payment_url"])
	}
}

func TestCheckoutHandlerRejectsBadBody(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{}
	body := bytes.NewBufferString(`{"customer_id":"not-a-uuid"}`)
	req := httptest.NewRequest(http.MethodPost, "/checkout", body)
	rec := httptest.NewRecorder()
	Checkout(svc, nil)(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestCheckoutHandlerMapsInsufficientStock(t *testing.T) {
	t.Parallel()

	svc := &fakeCheckoutService{err: pkgerrors.New(pkgerrors.CodeInsufficientStock, "insufficient stock")}
	req := httptest.NewRequest(http.MethodPost, "/checkout", checkoutBody(t, uuid.New()))
	rec := httptest.NewRecorder()
	Checkout(svc, nil)(rec, req)

	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d body=%s", rec.Code, rec.Body.String())
	}
	var envelope types.ErrorEnvelope
	if err := json.Unmarshal(rec.Body.Bytes(), &envelope); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if envelope.Error.Code != string(pkgerrors.CodeInsufficientStock) {
		t.Fatalf("error code = %q", envelope.Error.Code)
	}
}

func TestClientIPFallsBackToRemoteAddr(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.4:52011"
	if got := ClientIP(req); got != "198.51.100.4" {
		t.Fatalf("client ip = %q", got)
	}
}
