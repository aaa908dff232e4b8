package decoder

import (
	"context"
	"fmt"

	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/config"
)

// Chain runs decoders in order and concatenates their payloads, dropping repeated texts.
// The first decoder error aborts the frame.
type Chain []scanning.Decoder

// Decode implements scanning.Decoder
func (c Chain) Decode(ctx context.Context, frame scanning.Frame) ([]scanning.Payload, error) {
	var out []scanning.Payload
	seen := make(map[string]bool)
	for _, d := range c {
		payloads, err := d.Decode(ctx, frame)
		if err != nil {
			return nil, err
		}
		for _, p := range payloads {
			if p.Text == "" || seen[p.Text] {
				continue
			}
			seen[p.Text] = true
			out = append(out, p)
		}
	}
	return out, nil
}

// New builds the decoder named in configuration (zxing, opencv-qr or all).
// The returned close function releases native resources.
func New(name string) (scanning.Decoder, func() error, error) {
	noop := func() error { return nil }

	switch name {
	case config.DecoderZXing:
		return NewZXing(), noop, nil
	case config.DecoderOpenCVQR:
		qr := NewOpenCVQR()
		return qr, qr.Close, nil
	case config.DecoderAll, "":
		qr := NewOpenCVQR()
		return Chain{NewZXing(), qr}, qr.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown decoder %q", name)
	}
}

var _ scanning.Decoder = Chain(nil)
