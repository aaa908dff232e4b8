package scanning

import (
	"context"
	"image"
	"image/draw"
	"testing"
	"time"

	"github.com/makiuchi-d/gozxing"
	"github.com/makiuchi-d/gozxing/oned"
	"github.com/makiuchi-d/gozxing/qrcode"
	appcatalog "github.com/scanstock/backend/internal/application/catalog"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/decoder"
	"github.com/scanstock/backend/internal/infrastructure/persistence"
	"github.com/scanstock/backend/tests/testutil"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

// printedLabel is a camera pointed at one printed symbol
type printedLabel struct {
	img image.Image
}

func (l printedLabel) Open(ctx context.Context, endpoint string) (scanning.FrameStream, error) {
	return &labelStream{img: l.img}, nil
}

type labelStream struct {
	img image.Image
	seq int
}

func (s *labelStream) Read(ctx context.Context) (scanning.Frame, error) {
	if err := ctx.Err(); err != nil {
		return scanning.Frame{}, err
	}
	s.seq++
	b := s.img.Bounds()
	return scanning.Frame{Seq: s.seq, Width: b.Dx(), Height: b.Dy(), Image: s.img, CapturedAt: time.Now()}, nil
}

func (s *labelStream) Close() error { return nil }

func render(t *testing.T, w gozxing.Writer, text string, format gozxing.BarcodeFormat, width, height int) image.Image {
	t.Helper()
	m, err := w.Encode(text, format, width, height, nil)
	require.NoError(t, err)
	img := image.NewRGBA(m.Bounds())
	draw.Draw(img, img.Bounds(), m, image.Point{}, draw.Src)
	return img
}

// newStation wires the real ZXing decoder and a sqlite inventory behind the scan service
func newStation(t *testing.T, label image.Image) (*ScanService, *appcatalog.ProductService) {
	t.Helper()
	acquirer, err := scanning.NewAcquirer(printedLabel{img: label}, decoder.NewZXing(), scanning.Policy{
		RequiredReads:   3,
		RetryDelay:      time.Millisecond,
		MaxReadFailures: 1,
	})
	require.NoError(t, err)

	db := testutil.NewSQLiteDatabase(t)
	products := appcatalog.NewProductService(persistence.NewGormProductRepository(db.DB), nil)
	svc := NewScanService(acquirer, products, persistence.NewGormScanRecordRepository(db.DB), nil,
		ScanServiceConfig{DefaultEndpoint: "http://cam/video", SessionTimeout: 10 * time.Second},
		zaptest.NewLogger(t))
	return svc, products
}

func TestScanService_PrintedLabelsAreStored(t *testing.T) {
	tests := []struct {
		name   string
		label  image.Image
		text   string
		format string
	}{
		{
			name:   "code 39 with slash and space",
			label:  render(t, oned.NewCode39Writer(), "PART/42 A", gozxing.BarcodeFormat_CODE_39, 600, 150),
			text:   "PART/42 A",
			format: "CODE_39",
		},
		{
			name:   "qr url",
			label:  render(t, qrcode.NewQRCodeWriter(), "https://example.com/p/1?lot=7", gozxing.BarcodeFormat_QR_CODE, 240, 240),
			text:   "https://example.com/p/1?lot=7",
			format: "QR_CODE",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			svc, products := newStation(t, tt.label)

			session, outcome, err := svc.Scan(ctx, Session{}, "")
			require.NoError(t, err)
			assert.Equal(t, tt.text, outcome.Barcode)
			assert.Equal(t, tt.format, outcome.Format)
			assert.Equal(t, 3, outcome.Count)
			assert.Equal(t, ModeCreate, outcome.Mode)

			session, product, mode, err := svc.Submit(ctx, session, SubmitRequest{
				Name:  "Hex Bolt M6",
				Stock: 40,
				Price: decimal.RequireFromString("0.10"),
			})
			require.NoError(t, err)
			assert.Equal(t, ModeCreate, mode)
			assert.Equal(t, tt.text, product.Barcode)
			assert.False(t, session.HasBarcode())

			stored, err := products.Get(ctx, tt.text)
			require.NoError(t, err)
			assert.Equal(t, int64(40), stored.Stock)

			history, err := svc.History(ctx, "", 5)
			require.NoError(t, err)
			require.Len(t, history, 1)
			assert.Equal(t, tt.text, history[0].Barcode)
		})
	}
}
