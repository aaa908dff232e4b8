package decoder

import (
	"context"
	"fmt"
	"sync"

	"github.com/scanstock/backend/internal/domain/scanning"
	"gocv.io/x/gocv"
)

// FormatQRCode is the format reported by the OpenCV detector
const FormatQRCode = "QR_CODE"

// OpenCVQR decodes QR codes with cv::QRCodeDetector
type OpenCVQR struct {
	mu       sync.Mutex
	detector gocv.QRCodeDetector
	closed   bool
}

// NewOpenCVQR creates the detector. Close releases its native resources.
func NewOpenCVQR() *OpenCVQR {
	return &OpenCVQR{detector: gocv.NewQRCodeDetector()}
}

// Decode returns the QR payload of the frame, if any
func (d *OpenCVQR) Decode(ctx context.Context, frame scanning.Frame) ([]scanning.Payload, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if frame.Image == nil {
		return nil, nil
	}

	img, err := gocv.ImageToMatRGB(frame.Image)
	if err != nil {
		return nil, fmt.Errorf("convert frame %d: %w", frame.Seq, err)
	}
	defer img.Close()

	points := gocv.NewMat()
	defer points.Close()
	straight := gocv.NewMat()
	defer straight.Close()

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil, fmt.Errorf("qr detector closed")
	}

	text := d.detector.DetectAndDecode(img, &points, &straight)
	if text == "" {
		return nil, nil
	}
	return []scanning.Payload{{Text: text, Format: FormatQRCode}}, nil
}

// Close releases the detector
func (d *OpenCVQR) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return nil
	}
	d.closed = true
	return d.detector.Close()
}

var _ scanning.Decoder = (*OpenCVQR)(nil)
