package camera

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"
)

// PreviewEncoder downscales frames and encodes them as JPEG for the live preview
type PreviewEncoder struct {
	scale   float64
	quality int
}

// NewPreviewEncoder creates an encoder. scale is clamped to (0,1], quality to [1,100].
func NewPreviewEncoder(scale float64, quality int) *PreviewEncoder {
	if scale <= 0 || scale > 1 {
		scale = 1
	}
	quality = min(max(quality, 1), 100)
	return &PreviewEncoder{scale: scale, quality: quality}
}

// Encode returns the JPEG bytes of img resized by the encoder scale
func (e *PreviewEncoder) Encode(img image.Image) ([]byte, error) {
	if img == nil {
		return nil, fmt.Errorf("preview frame has no image")
	}

	src, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("convert preview frame: %w", err)
	}
	defer src.Close()

	out := src
	if e.scale < 1 {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(src, &resized, image.Point{}, e.scale, e.scale, gocv.InterpolationArea)
		out = resized
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, out, []int{gocv.IMWriteJpegQuality, e.quality})
	if err != nil {
		return nil, fmt.Errorf("encode preview frame: %w", err)
	}
	defer buf.Close()

	// GetBytes aliases native memory released by buf.Close
	data := make([]byte, buf.Len())
	copy(data, buf.GetBytes())
	return data, nil
}
