package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	catalogapp "github.com/scanstock/backend/internal/application/catalog"
	scanapp "github.com/scanstock/backend/internal/application/scanning"
	"github.com/scanstock/backend/internal/domain/catalog"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/interfaces/http/dto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const testEndpoint = "rtsp://10.0.0.5/stream"

// MockAcquirer implements scanapp.Acquirer for testing
type MockAcquirer struct {
	mock.Mock
}

func (m *MockAcquirer) Acquire(ctx context.Context, endpoint string) (*scanning.Result, error) {
	args := m.Called(ctx, endpoint)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*scanning.Result), args.Error(1)
}

func (m *MockAcquirer) Policy() scanning.Policy {
	return scanning.DefaultPolicy()
}

// MockRecordRepository implements scanning.RecordRepository for testing
type MockRecordRepository struct {
	mock.Mock
}

func (m *MockRecordRepository) Save(ctx context.Context, record *scanning.Record) error {
	return m.Called(ctx, record).Error(0)
}

func (m *MockRecordRepository) FindRecent(ctx context.Context, endpoint string, limit int) ([]scanning.Record, error) {
	args := m.Called(ctx, endpoint, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]scanning.Record), args.Error(1)
}

type scannerFixture struct {
	acquirer *MockAcquirer
	products *MockProductRepository
	records  *MockRecordRepository
	service  *scanapp.ScanService
	router   *gin.Engine
}

func newScannerFixture(defaultEndpoint string) *scannerFixture {
	f := &scannerFixture{
		acquirer: new(MockAcquirer),
		products: new(MockProductRepository),
		records:  new(MockRecordRepository),
	}
	f.records.On("Save", mock.Anything, mock.Anything).Return(nil).Maybe()

	f.service = scanapp.NewScanService(
		f.acquirer,
		catalogapp.NewProductService(f.products, nil),
		f.records,
		nil,
		scanapp.ScanServiceConfig{DefaultEndpoint: defaultEndpoint, SessionTimeout: 5 * time.Second},
		nil,
	)
	h := NewScannerHandler(f.service)

	f.router = gin.New()
	scanner := f.router.Group("/api/v1/scanner")
	scanner.POST("/scan", h.Scan)
	scanner.POST("/submit", h.Submit)
	scanner.POST("/reset", h.Reset)
	scanner.POST("/cancel", h.Cancel)
	scanner.GET("/history", h.History)
	return f
}

func acquired(barcode string) *scanning.Result {
	return &scanning.Result{
		Barcode:         barcode,
		Format:          "EAN_13",
		Count:           10,
		SuccessfulReads: 12,
		FramesRead:      14,
		ConnectAttempts: 1,
		Tally:           []scanning.TallyEntry{{Text: barcode, Format: "EAN_13", Count: 10}},
		Duration:        800 * time.Millisecond,
	}
}

func TestScannerHandler_ScanUnknownBarcode(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.acquirer.On("Acquire", mock.Anything, testEndpoint).Return(acquired("4006381333931"), nil)
	f.products.On("FindByBarcode", mock.Anything, "4006381333931").Return(nil, shared.ErrNotFound)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	session := data["session"].(map[string]any)
	assert.Equal(t, "4006381333931", session["scanned_barcode"])

	outcome := data["outcome"].(map[string]any)
	assert.Equal(t, "create", outcome["mode"])
	assert.Equal(t, false, outcome["known"])
	assert.Equal(t, false, outcome["reused"])
	assert.Equal(t, float64(10), outcome["count"])
	assert.Equal(t, float64(800), outcome["duration_ms"])
	f.acquirer.AssertExpectations(t)
	f.records.AssertCalled(t, "Save", mock.Anything, mock.MatchedBy(func(r *scanning.Record) bool {
		return r.Outcome == scanning.OutcomeAcquired && r.Barcode == "4006381333931"
	}))
}

func TestScannerHandler_ScanKnownBarcodePrefillsForm(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.acquirer.On("Acquire", mock.Anything, "rtsp://cam-2/stream").Return(acquired("111"), nil)
	f.products.On("FindByBarcode", mock.Anything, "111").Return(testProduct("111", "Tea", 4, "2.50"), nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", `{"endpoint":"rtsp://cam-2/stream"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	outcome := decodeResponse(t, w).Data.(map[string]any)["outcome"].(map[string]any)
	assert.Equal(t, "update", outcome["mode"])
	assert.Equal(t, true, outcome["known"])
	form := outcome["form"].(map[string]any)
	assert.Equal(t, "Tea", form["name"])
	assert.Equal(t, float64(4), form["stock"])
	assert.Equal(t, "2.5", form["price"])
}

func TestScannerHandler_ScanReusesSessionBarcode(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.products.On("FindByBarcode", mock.Anything, "111").Return(nil, shared.ErrNotFound)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", `{"session":{"scanned_barcode":"111"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	outcome := decodeResponse(t, w).Data.(map[string]any)["outcome"].(map[string]any)
	assert.Equal(t, true, outcome["reused"])
	assert.Equal(t, "111", outcome["barcode"])
	f.acquirer.AssertNotCalled(t, "Acquire", mock.Anything, mock.Anything)
}

func TestScannerHandler_ScanAcquisitionErrors(t *testing.T) {
	tests := []struct {
		name   string
		kind   scanning.ErrorKind
		status int
		code   string
	}{
		{"camera unreachable", scanning.KindDeviceUnreachable, http.StatusServiceUnavailable, dto.ErrCodeDeviceUnreachable},
		{"stream dropped", scanning.KindStreamInterrupted, http.StatusBadGateway, dto.ErrCodeStreamInterrupted},
		{"decoder fault", scanning.KindDecoderFault, http.StatusBadGateway, dto.ErrCodeDecoderFault},
		{"endpoint busy", scanning.KindEndpointBusy, http.StatusConflict, dto.ErrCodeEndpointBusy},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newScannerFixture(testEndpoint)
			f.acquirer.On("Acquire", mock.Anything, testEndpoint).
				Return(nil, &scanning.AcquisitionError{Kind: tt.kind, Endpoint: testEndpoint, Attempts: 6})

			w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", `{}`)

			assert.Equal(t, tt.status, w.Code)
			assert.Equal(t, tt.code, decodeResponse(t, w).Error.Code)
			f.products.AssertNotCalled(t, "FindByBarcode", mock.Anything, mock.Anything)
		})
	}
}

func TestScannerHandler_ScanWithoutEndpoint(t *testing.T) {
	f := newScannerFixture("")

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", "")

	assert.Equal(t, http.StatusBadRequest, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidInput, decodeResponse(t, w).Error.Code)
}

func TestScannerHandler_ScanStoreUnavailableAfterAcquisition(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.acquirer.On("Acquire", mock.Anything, testEndpoint).Return(acquired("111"), nil)
	f.products.On("FindByBarcode", mock.Anything, "111").Return(nil, shared.ErrStoreUnavailable)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", "")

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeStoreUnavailable, resp.Error.Code)
	session := resp.Data.(map[string]any)["session"].(map[string]any)
	assert.Equal(t, "111", session["scanned_barcode"])
}

func TestScannerHandler_SubmitCreatesProduct(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.products.On("FindByBarcode", mock.Anything, "111").Return(nil, shared.ErrNotFound)
	f.products.On("Exists", mock.Anything, "111").Return(false, nil)
	f.products.On("Insert", mock.Anything, mock.MatchedBy(func(p *catalog.Product) bool {
		return p.Barcode == "111" && p.Name == "Tea" && p.Stock == 3
	})).Return(nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/submit",
		`{"session":{"scanned_barcode":"111"},"name":"Tea","stock":3,"price":"2.50"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "create", data["mode"])
	assert.Empty(t, data["session"])
	assert.Equal(t, "111", data["product"].(map[string]any)["barcode"])
	f.products.AssertExpectations(t)
}

func TestScannerHandler_SubmitUpdatesProduct(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.products.On("FindByBarcode", mock.Anything, "111").Return(testProduct("111", "Tea", 1, "2.50"), nil)
	f.products.On("Update", mock.Anything, "111", "Black Tea", int64(9), mock.Anything).Return(nil)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/submit",
		`{"session":{"scanned_barcode":"111"},"name":"Black Tea","stock":9,"price":"2.75"}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, "update", data["mode"])
	assert.Equal(t, "Black Tea", data["product"].(map[string]any)["name"])
}

func TestScannerHandler_SubmitWithoutScan(t *testing.T) {
	f := newScannerFixture(testEndpoint)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/submit", `{"name":"Tea","stock":1}`)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, dto.ErrCodeInvalidState, decodeResponse(t, w).Error.Code)
}

func TestScannerHandler_SubmitValidation(t *testing.T) {
	f := newScannerFixture(testEndpoint)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/submit",
		`{"session":{"scanned_barcode":"111"},"stock":-1}`)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	resp := decodeResponse(t, w)
	assert.Equal(t, dto.ErrCodeValidation, resp.Error.Code)
	assert.Len(t, resp.Error.Details, 2)
}

func TestScannerHandler_Reset(t *testing.T) {
	f := newScannerFixture(testEndpoint)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/reset", `{"session":{"scanned_barcode":"111"}}`)

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Empty(t, data["session"])
	assert.Nil(t, data["outcome"])
}

func TestScannerHandler_CancelIdle(t *testing.T) {
	f := newScannerFixture(testEndpoint)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/cancel", "")

	assert.Equal(t, http.StatusOK, w.Code)
	data := decodeResponse(t, w).Data.(map[string]any)
	assert.Equal(t, false, data["cancelled"])
	assert.Equal(t, testEndpoint, data["endpoint"])
}

func TestScannerHandler_CancelRunningScan(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	f.acquirer.On("Acquire", mock.Anything, testEndpoint).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, &scanning.AcquisitionError{Kind: scanning.KindCancelled, Endpoint: testEndpoint})

	var wg sync.WaitGroup
	var scanResp *httptest.ResponseRecorder
	wg.Add(1)
	go func() {
		defer wg.Done()
		scanResp = doRequest(f.router, http.MethodPost, "/api/v1/scanner/scan", "")
	}()

	require.Eventually(t, func() bool {
		return f.service.Scanning(testEndpoint)
	}, 2*time.Second, 5*time.Millisecond)

	w := doRequest(f.router, http.MethodPost, "/api/v1/scanner/cancel", `{"endpoint":"`+testEndpoint+`"}`)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decodeResponse(t, w).Data.(map[string]any)["cancelled"])

	wg.Wait()
	assert.Equal(t, http.StatusConflict, scanResp.Code)
	assert.Equal(t, dto.ErrCodeScanCancelled, decodeResponse(t, scanResp).Error.Code)
	assert.False(t, f.service.Scanning(testEndpoint))
}

func TestScannerHandler_History(t *testing.T) {
	f := newScannerFixture(testEndpoint)
	records := []scanning.Record{
		{ID: uuid.New(), Endpoint: testEndpoint, Outcome: scanning.OutcomeAcquired, Barcode: "111", Count: 10, CreatedAt: time.Now()},
		{ID: uuid.New(), Endpoint: testEndpoint, Outcome: scanning.OutcomeDeviceUnreachable, ConnectAttempts: 6, Error: "unreachable", CreatedAt: time.Now()},
	}
	f.records.On("FindRecent", mock.Anything, testEndpoint, 2).Return(records, nil)
	f.records.On("FindRecent", mock.Anything, "", 50).Return([]scanning.Record{}, nil)

	t.Run("filtered and limited", func(t *testing.T) {
		w := doRequest(f.router, http.MethodGet, "/api/v1/scanner/history?endpoint="+testEndpoint+"&limit=2", "")

		assert.Equal(t, http.StatusOK, w.Code)
		items := decodeResponse(t, w).Data.([]any)
		require.Len(t, items, 2)
		assert.Equal(t, "acquired", items[0].(map[string]any)["outcome"])
		assert.Equal(t, "device_unreachable", items[1].(map[string]any)["outcome"])
	})

	t.Run("defaults", func(t *testing.T) {
		w := doRequest(f.router, http.MethodGet, "/api/v1/scanner/history", "")
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Empty(t, decodeResponse(t, w).Data)
	})

	t.Run("bad limit", func(t *testing.T) {
		w := doRequest(f.router, http.MethodGet, "/api/v1/scanner/history?limit=abc", "")
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, dto.ErrCodeValidationRange, decodeResponse(t, w).Error.Code)
	})
}
