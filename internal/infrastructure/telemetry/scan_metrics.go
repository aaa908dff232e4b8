package telemetry

import (
	"context"

	"github.com/scanstock/backend/internal/domain/scanning"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
)

// ScanMetrics holds the instruments recorded for acquisitions and inventory operations.
type ScanMetrics struct {
	acquisitions    *Counter   // scan_acquisitions_total
	duration        *Histogram // scan_acquisition_duration_seconds
	frames          *Histogram // scan_frames_read
	readFailures    *Counter   // scan_read_failures_total
	connectAttempts *Counter   // scan_connect_attempts_total
	agreement       *Histogram // scan_consensus_agreement_ratio
	inventoryOps    *Counter   // inventory_operations_total
}

// NewScanMetrics creates the scan instruments on meter. A nil meter records nothing.
func NewScanMetrics(meter metric.Meter) (*ScanMetrics, error) {
	if meter == nil {
		meter = noop.NewMeterProvider().Meter(TracerName)
	}

	acquisitions, err := NewCounter(meter,
		"scan_acquisitions_total",
		"Total number of barcode acquisitions by outcome",
		"{acquisition}",
	)
	if err != nil {
		return nil, err
	}

	duration, err := NewHistogram(meter, "scan_acquisition_duration_seconds",
		"Wall time of one acquisition from lock to consensus or failure", "s", ScanDurationBuckets)
	if err != nil {
		return nil, err
	}

	frames, err := NewHistogram(meter, "scan_frames_read",
		"Frames read per successful acquisition", "{frame}", FrameCountBuckets)
	if err != nil {
		return nil, err
	}

	readFailures, err := NewCounter(meter,
		"scan_read_failures_total",
		"Frame reads that returned no image",
		"{read}",
	)
	if err != nil {
		return nil, err
	}

	connectAttempts, err := NewCounter(meter,
		"scan_connect_attempts_total",
		"Attempts to open a camera endpoint",
		"{attempt}",
	)
	if err != nil {
		return nil, err
	}

	agreement, err := NewHistogram(meter, "scan_consensus_agreement_ratio",
		"Share of successful decodes that agreed with the winning payload", "1", agreementBuckets)
	if err != nil {
		return nil, err
	}

	inventoryOps, err := NewCounter(meter,
		"inventory_operations_total",
		"Inventory operations by kind and outcome",
		"{operation}",
	)
	if err != nil {
		return nil, err
	}

	return &ScanMetrics{
		acquisitions:    acquisitions,
		duration:        duration,
		frames:          frames,
		readFailures:    readFailures,
		connectAttempts: connectAttempts,
		agreement:       agreement,
		inventoryOps:    inventoryOps,
	}, nil
}

// RecordAcquisition records one audit record
func (m *ScanMetrics) RecordAcquisition(ctx context.Context, rec *scanning.Record) {
	if m == nil || rec == nil {
		return
	}

	outcome := AttrOutcome.String(string(rec.Outcome))
	m.acquisitions.Inc(ctx, AttrEndpoint.String(rec.Endpoint), outcome)
	m.duration.RecordDuration(ctx, rec.Duration, outcome)

	if rec.ConnectAttempts > 0 {
		m.connectAttempts.Add(ctx, int64(rec.ConnectAttempts), AttrEndpoint.String(rec.Endpoint))
	}
	if rec.ReadFailures > 0 {
		m.readFailures.Add(ctx, int64(rec.ReadFailures), AttrEndpoint.String(rec.Endpoint))
	}

	if rec.Outcome != scanning.OutcomeAcquired {
		return
	}
	m.frames.Record(ctx, float64(rec.FramesRead), AttrFormat.String(rec.Format))
	if rec.SuccessfulReads > 0 {
		m.agreement.Record(ctx, float64(rec.Count)/float64(rec.SuccessfulReads), AttrFormat.String(rec.Format))
	}
}

// RecordInventoryOperation counts a catalog operation; err selects the outcome label
func (m *ScanMetrics) RecordInventoryOperation(ctx context.Context, operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.inventoryOps.Inc(ctx, AttrOperation.String(operation), AttrOutcome.String(outcome))
}
