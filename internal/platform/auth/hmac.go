package auth

import (
	"bytes"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"io"
	"net/http"
	"strings"

	"go.uber.org/zap"

	"github.com/qrmerch/relay/internal/platform/httpx"
	"github.com/qrmerch/relay/internal/platform/requestctx"
)

const defaultSignatureHeader = "X-Shopify-Hmac-Sha256"

// maxWebhookBody bounds how much of an inbound body is read for verification.
const maxWebhookBody = 1 << 20

// WebhookVerifier validates the keyed-hash signature the shop platform
// computes over the raw webhook body. Verification happens before any
// parsing; an invalid signature never reaches the order pipeline.
type WebhookVerifier struct {
	secret []byte
	header string
}

// VerifierOption customises the verifier.
type VerifierOption func(*WebhookVerifier)

// WithSignatureHeader overrides the header carrying the signature.
func WithSignatureHeader(header string) VerifierOption {
	return func(v *WebhookVerifier) {
		if header != "" {
			v.header = header
		}
	}
}

// NewWebhookVerifier builds a verifier for the given shared secret.
func NewWebhookVerifier(secret string, opts ...VerifierOption) *WebhookVerifier {
	verifier := &WebhookVerifier{
		secret: []byte(secret),
		header: defaultSignatureHeader,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(verifier)
		}
	}
	return verifier
}

// Verify reports whether the signature matches the body under the shared secret.
func (v *WebhookVerifier) Verify(body []byte, signature string) bool {
	if v == nil || len(v.secret) == 0 {
		return false
	}
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return false
	}

	decoded, err := base64.StdEncoding.DecodeString(signature)
	if err != nil {
		return false
	}

	mac := hmac.New(sha256.New, v.secret)
	_, _ = mac.Write(body)
	return hmac.Equal(decoded, mac.Sum(nil))
}

// RequireSignature enforces a valid signature on the request, restoring the
// body for downstream handlers on success.
func (v *WebhookVerifier) RequireSignature() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()

			if v == nil || len(v.secret) == 0 {
				httpx.WriteError(ctx, w, httpx.NewError("verification_unavailable", "webhook signing secret not configured", http.StatusServiceUnavailable))
				return
			}

			body, err := readAndRestoreBody(r)
			if err != nil {
				httpx.WriteError(ctx, w, httpx.NewError("invalid_body", "unable to read body for signature verification", http.StatusBadRequest))
				return
			}

			if !v.Verify(body, r.Header.Get(v.header)) {
				requestctx.Logger(ctx).Warn("webhook signature rejected",
					zap.String("header", v.header),
					zap.Int("body_bytes", len(body)),
				)
				httpx.WriteError(ctx, w, httpx.NewError("signature_invalid", "signature verification failed", http.StatusUnauthorized))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func readAndRestoreBody(r *http.Request) ([]byte, error) {
	if r.Body == nil {
		return nil, nil
	}
	defer r.Body.Close()

	buf, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBody))
	if err != nil {
		return nil, err
	}

	r.Body = io.NopCloser(bytes.NewReader(buf))
	return buf, nil
}
