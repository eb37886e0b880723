package qrcode

import (
	"encoding/base64"
	"fmt"

	qr "github.com/skip2/go-qrcode"
)

// Generator produces QR code PNGs for scan tokens (book ids, receipt numbers).
type Generator struct {
	size int
}

// NewGenerator builds a generator with the given pixel size. Sizes below 64 fall back
// to 256.
func NewGenerator(size int) *Generator {
	if size < 64 {
		size = 256
	}
	return &Generator{size: size}
}

// PNG encodes the content into a QR code PNG.
func (g *Generator) PNG(content string) ([]byte, error) {
	if content == "" {
		return nil, fmt.Errorf("qr content is empty")
	}
	png, err := qr.Encode(content, qr.Medium, g.size)
	if err != nil {
		return nil, fmt.Errorf("encode qr: %w", err)
	}
	return png, nil
}

// DataURI encodes the content as an inline base64 PNG data URI, suitable for embedding
// in HTML receipts.
func (g *Generator) DataURI(content string) (string, error) {
	png, err := g.PNG(content)
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(png), nil
}
