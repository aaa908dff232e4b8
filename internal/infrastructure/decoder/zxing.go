// Package decoder provides scanning.Decoder implementations backed by ZXing
// (makiuchi-d/gozxing) and the OpenCV QR detector.
package decoder

import (
	"context"
	"errors"
	"fmt"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	"github.com/scanstock/backend/internal/domain/scanning"
)

// ZXing decodes retail linear barcodes and QR codes from a frame.
// Readers run in a fixed order, product symbologies first, so the first payload
// of a frame is the product code when one is visible.
type ZXing struct {
	hints      map[gozxing.DecodeHintType]interface{}
	newReaders func() []gozxing.Reader
}

// NewZXing creates a decoder for EAN-13, EAN-8, UPC-A, UPC-E, Code 128, Code 39 and QR
func NewZXing() *ZXing {
	return &ZXing{
		hints: map[gozxing.DecodeHintType]interface{}{
			gozxing.DecodeHintType_TRY_HARDER: true,
		},
		newReaders: defaultReaders,
	}
}

// readers keep per-decode state, so each Decode call gets its own set
func defaultReaders() []gozxing.Reader {
	return []gozxing.Reader{
		oned.NewEAN13Reader(),
		oned.NewEAN8Reader(),
		oned.NewUPCAReader(),
		oned.NewUPCEReader(),
		oned.NewCode128Reader(),
		oned.NewCode39Reader(),
		qrcode.NewQRCodeReader(),
	}
}

// Decode returns every distinct symbol the readers recognise
func (z *ZXing) Decode(ctx context.Context, frame scanning.Frame) ([]scanning.Payload, error) {
	if frame.Image == nil {
		return nil, nil
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("binarize frame %d: %w", frame.Seq, err)
	}

	var payloads []scanning.Payload
	seen := make(map[string]bool)
	for _, reader := range z.newReaders() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		result, err := reader.Decode(bmp, z.hints)
		if err != nil {
			if isNoSymbol(err) {
				continue
			}
			return nil, fmt.Errorf("zxing decode: %w", err)
		}

		text := result.GetText()
		if text == "" || seen[text] {
			continue
		}
		seen[text] = true
		payloads = append(payloads, scanning.Payload{
			Text:   text,
			Format: result.GetBarcodeFormat().String(),
		})
	}
	return payloads, nil
}

// isNoSymbol reports ZXing's not-found, checksum and format exceptions, which all
// mean "no readable symbol in this frame" rather than a decoder failure
func isNoSymbol(err error) bool {
	var re gozxing.ReaderException
	return errors.As(err, &re)
}

var _ scanning.Decoder = (*ZXing)(nil)
