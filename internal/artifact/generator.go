package artifact

import (
	"context"
	"errors"
	"fmt"
	"strings"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/qrmerch/relay/internal/domain"
	"github.com/qrmerch/relay/internal/platform/storage"
)

// TextProperty names the line-item property carrying the QR text directive.
const TextProperty = "qr_text"

const (
	qrImageSize = 512
	contentType = "image/png"
)

// ErrUploaderMissing indicates the uploader dependency is absent.
var ErrUploaderMissing = errors.New("artifact: uploader is not configured")

// Generator renders the order's QR image and hosts it, returning a public
// URL. Object keys derive from the order id, so regenerating for the same
// order overwrites the previous upload instead of accumulating objects.
type Generator struct {
	uploader storage.Uploader
	prefix   string
}

// GeneratorOption customises the generator.
type GeneratorOption func(*Generator)

// WithPathPrefix overrides the object key prefix (default "qr").
func WithPathPrefix(prefix string) GeneratorOption {
	return func(g *Generator) {
		prefix = strings.Trim(strings.TrimSpace(prefix), "/")
		if prefix != "" {
			g.prefix = prefix
		}
	}
}

// NewGenerator constructs a generator backed by the given uploader.
func NewGenerator(uploader storage.Uploader, opts ...GeneratorOption) (*Generator, error) {
	if uploader == nil {
		return nil, ErrUploaderMissing
	}
	generator := &Generator{uploader: uploader, prefix: "qr"}
	for _, opt := range opts {
		if opt != nil {
			opt(generator)
		}
	}
	return generator, nil
}

// Generate implements the artifact generation step of the order pipeline.
func (g *Generator) Generate(ctx context.Context, order domain.Order) (string, error) {
	text := qrText(order)

	png, err := qrcode.Encode(text, qrcode.Medium, qrImageSize)
	if err != nil {
		return "", fmt.Errorf("artifact: encode qr for order %s: %w", order.ExternalID(), err)
	}

	object := fmt.Sprintf("%s/%s.png", g.prefix, order.ExternalID())
	url, err := g.uploader.Upload(ctx, object, contentType, png)
	if err != nil {
		return "", fmt.Errorf("artifact: upload %s: %w", object, err)
	}
	return url, nil
}

// qrText returns the first qr_text directive found in the order's line item
// properties, falling back to the order id.
func qrText(order domain.Order) string {
	for _, item := range order.LineItems {
		if text := strings.TrimSpace(item.Property(TextProperty)); text != "" {
			return text
		}
	}
	return order.ExternalID()
}
