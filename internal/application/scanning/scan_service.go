package scanning

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	appcatalog "github.com/scanstock/backend/internal/application/catalog"
	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/domain/shared"
	"github.com/scanstock/backend/internal/infrastructure/logger"
	"github.com/scanstock/backend/internal/infrastructure/telemetry"
	"go.uber.org/zap"
)

// Acquirer runs one consensus acquisition against an endpoint
type Acquirer interface {
	Acquire(ctx context.Context, endpoint string) (*scanning.Result, error)
	Policy() scanning.Policy
}

// Inventory is the product side of the scan shell
type Inventory interface {
	Get(ctx context.Context, barcode string) (*appcatalog.ProductResponse, error)
	Register(ctx context.Context, req appcatalog.RegisterProductRequest) (*appcatalog.ProductResponse, error)
	Update(ctx context.Context, barcode string, req appcatalog.UpdateProductRequest) (*appcatalog.ProductResponse, error)
}

// AcquisitionRecorder receives the audit record of every acquisition
type AcquisitionRecorder interface {
	RecordAcquisition(ctx context.Context, rec *scanning.Record)
}

// ScanServiceConfig holds scan shell settings
type ScanServiceConfig struct {
	DefaultEndpoint string
	SessionTimeout  time.Duration
}

// ScanService drives the scan, fill form, submit loop
type ScanService struct {
	acquirer  Acquirer
	inventory Inventory
	records   scanning.RecordRepository
	metrics   AcquisitionRecorder
	config    ScanServiceConfig
	logger    *zap.Logger

	mu       sync.Mutex
	inflight map[string]*inflightScan
}

type inflightScan struct {
	cancel  context.CancelFunc
	started time.Time
}

// NewScanService creates a ScanService. records and metrics may be nil.
func NewScanService(
	acquirer Acquirer,
	inventory Inventory,
	records scanning.RecordRepository,
	metrics AcquisitionRecorder,
	cfg ScanServiceConfig,
	log *zap.Logger,
) *ScanService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ScanService{
		acquirer:  acquirer,
		inventory: inventory,
		records:   records,
		metrics:   metrics,
		config:    cfg,
		logger:    log.Named("scan"),
		inflight:  make(map[string]*inflightScan),
	}
}

// DefaultEndpoint returns the endpoint used when a request names none
func (s *ScanService) DefaultEndpoint() string {
	return s.config.DefaultEndpoint
}

// Scan returns the barcode for the session. A session that already holds a barcode
// is answered from the store without touching the camera; otherwise one acquisition
// runs against endpoint and its barcode is stored in the returned session.
func (s *ScanService) Scan(ctx context.Context, session Session, endpoint string) (Session, *ScanOutcome, error) {
	if session.HasBarcode() {
		outcome := &ScanOutcome{
			Barcode: *session.ScannedBarcode,
			Format:  session.Format,
			Reused:  true,
		}
		if err := s.fillForm(ctx, outcome); err != nil {
			return session, nil, err
		}
		return session, outcome, nil
	}

	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = s.config.DefaultEndpoint
	}
	if endpoint == "" {
		return session, nil, shared.NewDomainError("INVALID_INPUT", "No camera endpoint given and none configured")
	}

	res, err := s.acquire(ctx, endpoint)
	if err != nil {
		return session, nil, err
	}

	barcode := res.Barcode
	session = Session{ScannedBarcode: &barcode, Format: res.Format}

	outcome := &ScanOutcome{
		Barcode:         res.Barcode,
		Format:          res.Format,
		Count:           res.Count,
		SuccessfulReads: res.SuccessfulReads,
		FramesRead:      res.FramesRead,
		ConnectAttempts: res.ConnectAttempts,
		Tally:           res.Tally,
		DurationMs:      res.Duration.Milliseconds(),
	}
	if err := s.fillForm(ctx, outcome); err != nil {
		return session, nil, err
	}
	return session, outcome, nil
}

// acquire runs one bounded, cancellable acquisition and records its outcome
func (s *ScanService) acquire(ctx context.Context, endpoint string) (*scanning.Result, error) {
	policy := s.acquirer.Policy()
	ctx, span := telemetry.StartSpan(ctx, "scan.acquire",
		telemetry.SpanEndpoint.String(endpoint),
		telemetry.SpanRequiredReads.Int(policy.RequiredReads))

	ctx, log := logger.WithEndpoint(ctx, logger.Enrich(ctx, s.logger), endpoint)

	var cancel context.CancelFunc
	if s.config.SessionTimeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, s.config.SessionTimeout)
	} else {
		ctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	unregister := s.register(endpoint, cancel)
	defer unregister()

	log.Debug("acquisition started", zap.Int("required_reads", policy.RequiredReads))
	start := time.Now()
	res, err := s.acquirer.Acquire(ctx, endpoint)
	elapsed := time.Since(start)

	rec := scanning.NewRecord(endpoint, res, err, elapsed)
	s.saveRecord(ctx, log, rec)
	if s.metrics != nil {
		s.metrics.RecordAcquisition(ctx, rec)
	}
	span.SetAttributes(telemetry.SpanOutcome.String(string(rec.Outcome)))

	if err != nil {
		telemetry.Finish(span, err)
		fields := []zap.Field{
			zap.String("outcome", string(rec.Outcome)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err),
		}
		switch scanning.KindOf(err) {
		case scanning.KindCancelled, scanning.KindEndpointBusy:
			log.Info("acquisition stopped", fields...)
		default:
			log.Warn("acquisition failed", fields...)
		}
		return nil, err
	}

	span.SetAttributes(
		telemetry.SpanBarcode.String(res.Barcode),
		telemetry.SpanFormat.String(res.Format),
		telemetry.SpanConsensusCount.Int(res.Count),
		telemetry.SpanFramesRead.Int(res.FramesRead),
		telemetry.SpanReadFailures.Int(res.ReadFailures),
		telemetry.SpanConnectAttempts.Int(res.ConnectAttempts),
	)
	telemetry.Finish(span, nil)
	log.Info("barcode acquired",
		zap.String("barcode", res.Barcode),
		zap.String("format", res.Format),
		zap.Int("count", res.Count),
		zap.Int("successful_reads", res.SuccessfulReads),
		zap.Int("frames_read", res.FramesRead),
		zap.Duration("elapsed", elapsed),
	)
	return res, nil
}

// register makes the acquisition cancellable through Cancel. When another
// acquisition already runs on the endpoint the existing entry is kept.
func (s *ScanService) register(endpoint string, cancel context.CancelFunc) func() {
	key := scanning.NormalizeEndpoint(endpoint)
	entry := &inflightScan{cancel: cancel, started: time.Now()}

	s.mu.Lock()
	defer s.mu.Unlock()
	if _, busy := s.inflight[key]; busy {
		return func() {}
	}
	s.inflight[key] = entry

	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		if s.inflight[key] == entry {
			delete(s.inflight, key)
		}
	}
}

// saveRecord stores the audit record. A failed save is logged, never returned:
// the acquisition result stands on its own.
func (s *ScanService) saveRecord(ctx context.Context, log *zap.Logger, rec *scanning.Record) {
	if s.records == nil {
		return
	}
	// The acquisition context may already be cancelled
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if err := s.records.Save(saveCtx, rec); err != nil {
		log.Warn("failed to save scan record", zap.String("record_id", rec.ID.String()), zap.Error(err))
	}
}

// fillForm looks the barcode up and prefills the form when the product is known
func (s *ScanService) fillForm(ctx context.Context, outcome *ScanOutcome) error {
	product, err := s.inventory.Get(ctx, outcome.Barcode)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			outcome.Known = false
			outcome.Mode = ModeCreate
			outcome.Form = Form{}
			return nil
		}
		return err
	}

	outcome.Known = true
	outcome.Mode = ModeUpdate
	outcome.Form = Form{Name: product.Name, Stock: product.Stock, Price: product.Price}
	return nil
}

// Submit saves the form for the scanned barcode: a new product is registered,
// a known one is updated. The session is cleared on success.
func (s *ScanService) Submit(ctx context.Context, session Session, form SubmitRequest) (Session, *appcatalog.ProductResponse, Mode, error) {
	if !session.HasBarcode() {
		return session, nil, "", shared.NewDomainError("INVALID_STATE", "No barcode has been scanned")
	}
	barcode := *session.ScannedBarcode

	_, err := s.inventory.Get(ctx, barcode)
	switch {
	case err == nil:
		product, err := s.inventory.Update(ctx, barcode, appcatalog.UpdateProductRequest{
			Name:  form.Name,
			Stock: form.Stock,
			Price: form.Price,
		})
		if err != nil {
			return session, nil, "", err
		}
		return Session{}, product, ModeUpdate, nil

	case errors.Is(err, shared.ErrNotFound):
		product, err := s.inventory.Register(ctx, appcatalog.RegisterProductRequest{
			Barcode: barcode,
			Name:    form.Name,
			Stock:   form.Stock,
			Price:   form.Price,
		})
		if err != nil {
			return session, nil, "", err
		}
		return Session{}, product, ModeCreate, nil

	default:
		return session, nil, "", err
	}
}

// Reset discards the scanned barcode
func (s *ScanService) Reset(Session) Session {
	return Session{}
}

// Cancel stops the acquisition running on endpoint. It reports whether one was running.
func (s *ScanService) Cancel(endpoint string) bool {
	endpoint = strings.TrimSpace(endpoint)
	if endpoint == "" {
		endpoint = s.config.DefaultEndpoint
	}
	key := scanning.NormalizeEndpoint(endpoint)

	s.mu.Lock()
	entry, ok := s.inflight[key]
	s.mu.Unlock()
	if !ok {
		return false
	}

	entry.cancel()
	s.logger.Info("acquisition cancelled by operator",
		zap.String("endpoint", endpoint),
		zap.Duration("running_for", time.Since(entry.started)),
	)
	return true
}

// Scanning reports whether an acquisition is running on endpoint
func (s *ScanService) Scanning(endpoint string) bool {
	key := scanning.NormalizeEndpoint(endpoint)
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.inflight[key]
	return ok
}

// History returns recent acquisition records, newest first
func (s *ScanService) History(ctx context.Context, endpoint string, limit int) ([]RecordResponse, error) {
	if s.records == nil {
		return []RecordResponse{}, nil
	}
	if limit <= 0 {
		limit = 50
	}
	records, err := s.records.FindRecent(ctx, strings.TrimSpace(endpoint), limit)
	if err != nil {
		return nil, err
	}
	return ToRecordResponses(records), nil
}
