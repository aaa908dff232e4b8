package scanning

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Outcome of one recorded acquisition
type Outcome string

const (
	OutcomeAcquired          Outcome = "acquired"
	OutcomeDeviceUnreachable Outcome = "device_unreachable"
	OutcomeStreamInterrupted Outcome = "stream_interrupted"
	OutcomeDecoderFault      Outcome = "decoder_fault"
	OutcomeCancelled         Outcome = "cancelled"
	OutcomeEndpointBusy      Outcome = "endpoint_busy"
	OutcomeInvalidEndpoint   Outcome = "invalid_endpoint"
	OutcomeFailed            Outcome = "failed"
)

// Record is the audit entry kept for every acquisition attempt
type Record struct {
	ID              uuid.UUID
	Endpoint        string
	Outcome         Outcome
	Barcode         string
	Format          string
	Count           int
	SuccessfulReads int
	FramesRead      int
	ReadFailures    int
	ConnectAttempts int
	Duration        time.Duration
	Error           string
	CreatedAt       time.Time
}

// NewRecord builds the audit entry for an acquisition that returned res or err
func NewRecord(endpoint string, res *Result, err error, elapsed time.Duration) *Record {
	rec := &Record{
		ID:        uuid.New(),
		Endpoint:  endpoint,
		Duration:  elapsed,
		CreatedAt: time.Now(),
	}

	if err != nil {
		rec.Outcome = OutcomeOf(err)
		rec.Error = err.Error()
		return rec
	}

	rec.Outcome = OutcomeAcquired
	if res != nil {
		rec.Barcode = res.Barcode
		rec.Format = res.Format
		rec.Count = res.Count
		rec.SuccessfulReads = res.SuccessfulReads
		rec.FramesRead = res.FramesRead
		rec.ReadFailures = res.ReadFailures
		rec.ConnectAttempts = res.ConnectAttempts
		rec.Duration = res.Duration
	}
	return rec
}

// OutcomeOf maps an acquisition error to its recorded outcome
func OutcomeOf(err error) Outcome {
	switch KindOf(err) {
	case KindDeviceUnreachable:
		return OutcomeDeviceUnreachable
	case KindStreamInterrupted:
		return OutcomeStreamInterrupted
	case KindDecoderFault:
		return OutcomeDecoderFault
	case KindCancelled:
		return OutcomeCancelled
	case KindEndpointBusy:
		return OutcomeEndpointBusy
	case KindInvalidEndpoint:
		return OutcomeInvalidEndpoint
	default:
		return OutcomeFailed
	}
}

// RecordRepository persists acquisition audit entries
type RecordRepository interface {
	Save(ctx context.Context, record *Record) error
	// FindRecent returns the latest records, newest first. An empty endpoint matches all.
	FindRecent(ctx context.Context, endpoint string, limit int) ([]Record, error)
}
