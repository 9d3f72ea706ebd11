package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func sign(secret, body []byte) string {
	mac := hmac.New(sha256.New, secret)
	mac.Write(body)
	return base64.StdEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyAcceptsValidSignature(t *testing.T) {
	verifier := NewWebhookVerifier("top-secret")
	body := []byte(`{"id":42}`)

	if !verifier.Verify(body, sign([]byte("top-secret"), body)) {
		t.Fatal("expected valid signature to verify")
	}
}

func TestVerifyRejectsTamperedBody(t *testing.T) {
	verifier := NewWebhookVerifier("top-secret")
	signature := sign([]byte("top-secret"), []byte(`{"id":42}`))

	if verifier.Verify([]byte(`{"id":43}`), signature) {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestVerifyRejectsMalformedEncoding(t *testing.T) {
	verifier := NewWebhookVerifier("top-secret")
	if verifier.Verify([]byte(`{}`), "not-base64!!") {
		t.Fatal("expected malformed signature to fail verification")
	}
}

func TestRequireSignatureMiddleware(t *testing.T) {
	verifier := NewWebhookVerifier("top-secret")
	body := []byte(`{"id":42}`)

	var seenBody []byte
	handler := verifier.RequireSignature()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seenBody, _ = io.ReadAll(r.Body)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", bytes.NewReader(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", sign([]byte("top-secret"), body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if !bytes.Equal(seenBody, body) {
		t.Fatalf("expected body restored for handler, got %q", seenBody)
	}

	req = httptest.NewRequest(http.MethodPost, "/webhooks/orders", bytes.NewReader(body))
	req.Header.Set("X-Shopify-Hmac-Sha256", sign([]byte("wrong-secret"), body))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for bad signature, got %d", rec.Code)
	}
}

func TestRequireSignatureCustomHeader(t *testing.T) {
	verifier := NewWebhookVerifier("top-secret", WithSignatureHeader("X-Relay-Signature"))
	body := []byte(`{}`)

	handler := verifier.RequireSignature()(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/webhooks/orders", bytes.NewReader(body))
	req.Header.Set("X-Relay-Signature", sign([]byte("top-secret"), body))
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}
