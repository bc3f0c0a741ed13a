package payments

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAuthorizeChargeSendsIdempotencyKey(t *testing.T) {
	var gotKey, gotPath, gotAmount string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("Idempotency-Key")
		gotPath = r.URL.Path
		r.ParseForm()
		gotAmount = r.PostFormValue("amount")
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"id":"pi_123","status":"requires_capture"}`))
	}))
	defer server.Close()

	c := NewStripeClientWithBaseURL("sk_test", server.URL)
	holdID, _, err := c.AuthorizeCharge(context.Background(), "42", 90.00, "key-1")
	if err != nil {
		t.Fatalf("AuthorizeCharge: %v", err)
	}

	if holdID != "pi_123" {
		t.Errorf("id холда: ожидался pi_123, получен %s", holdID)
	}
	if gotKey != "key-1" {
		t.Errorf("Idempotency-Key: ожидался key-1, получен %q", gotKey)
	}
	if gotPath != "/payment_intents" {
		t.Errorf("путь: ожидался /payment_intents, получен %s", gotPath)
	}
	if gotAmount != "9000" {
		t.Errorf("сумма в копейках: ожидалось 9000, получено %s", gotAmount)
	}
}

func TestServerErrorIsRetryable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		w.Write([]byte(`{}`))
	}))
	defer server.Close()

	c := NewStripeClientWithBaseURL("sk_test", server.URL)
	_, err := c.Transfer(context.Background(), "acct_1", 90.00, "key-2")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}

	gwErr, ok := err.(*GatewayError)
	if !ok {
		t.Fatalf("ожидалась *GatewayError, получено %T", err)
	}
	if !gwErr.Retryable {
		t.Error("5xx должна быть повторяемой ошибкой")
	}
}

func TestCardDeclineIsTerminal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusPaymentRequired)
		w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer server.Close()

	c := NewStripeClientWithBaseURL("sk_test", server.URL)
	_, _, err := c.AuthorizeCharge(context.Background(), "42", 90.00, "key-3")
	if err == nil {
		t.Fatal("ожидалась ошибка")
	}

	gwErr, ok := err.(*GatewayError)
	if !ok {
		t.Fatalf("ожидалась *GatewayError, получено %T", err)
	}
	if gwErr.Retryable {
		t.Error("отказ по карте не должен быть повторяемым")
	}
}

func TestCaptureHoldHitsCapturePath(t *testing.T) {
	var gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		w.Write([]byte(`{"id":"pi_123","status":"succeeded"}`))
	}))
	defer server.Close()

	c := NewStripeClientWithBaseURL("sk_test", server.URL)
	receiptID, err := c.CaptureHold(context.Background(), "pi_123", "key-4")
	if err != nil {
		t.Fatalf("CaptureHold: %v", err)
	}
	if receiptID != "pi_123" {
		t.Errorf("id квитанции: ожидался pi_123, получен %s", receiptID)
	}
	if gotPath != "/payment_intents/pi_123/capture" {
		t.Errorf("путь захвата: получен %s", gotPath)
	}
}
