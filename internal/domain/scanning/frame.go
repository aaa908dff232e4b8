// Package scanning holds the barcode acquisition policy: sampling a live camera
// stream, decoding each frame and settling on the value read most often.
package scanning

import (
	"context"
	"image"
	"time"
)

// Frame is a single raster image read from a FrameStream.
// Frames are ephemeral: the acquirer hands each one to the decoder and the
// optional observer, then drops it.
type Frame struct {
	Seq        int
	Width      int
	Height     int
	Image      image.Image
	CapturedAt time.Time
}

// Payload is one machine-readable symbol decoded from a frame
type Payload struct {
	Text   string `json:"text"`
	Format string `json:"format"`
}

// FrameSource opens live video streams identified by an endpoint
// (a network camera URL, a device index, a replay directory).
type FrameSource interface {
	// Open connects to the endpoint. A non-nil stream is returned only when err is nil.
	Open(ctx context.Context, endpoint string) (FrameStream, error)
}

// FrameStream yields frames from an opened device
type FrameStream interface {
	// Read blocks until the next frame is available or the read fails
	Read(ctx context.Context) (Frame, error)
	// Close releases the device. It is idempotent and safe to call after a failed read.
	Close() error
}

// Decoder extracts symbols from a frame. An empty slice means nothing was recognised;
// an error means the decoder itself failed.
type Decoder interface {
	Decode(ctx context.Context, frame Frame) ([]Payload, error)
}

// DecoderFunc adapts a function to the Decoder interface
type DecoderFunc func(ctx context.Context, frame Frame) ([]Payload, error)

// Decode calls f(ctx, frame)
func (f DecoderFunc) Decode(ctx context.Context, frame Frame) ([]Payload, error) {
	return f(ctx, frame)
}

// FrameObserver receives every frame read during an acquisition, before decoding.
// It is the display side channel; it must not retain the frame image.
type FrameObserver func(frame Frame)
