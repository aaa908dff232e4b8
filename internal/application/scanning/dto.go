package scanning

import (
	"time"

	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/shopspring/decimal"
)

// Session is the client-held state of the scan shell. It carries the barcode
// accepted by the last acquisition until the form is submitted or reset.
type Session struct {
	ScannedBarcode *string `json:"scanned_barcode,omitempty"`
	Format         string  `json:"format,omitempty"`
}

// HasBarcode reports whether a barcode is waiting for the form
func (s Session) HasBarcode() bool {
	return s.ScannedBarcode != nil && *s.ScannedBarcode != ""
}

// Mode tells the client which form to show for a scanned barcode
type Mode string

const (
	ModeCreate Mode = "create"
	ModeUpdate Mode = "update"
)

// Form holds the product fields shown to the operator
type Form struct {
	Name  string          `json:"name"`
	Stock int64           `json:"stock"`
	Price decimal.Decimal `json:"price"`
}

// ScanOutcome is the result of one Scan call
type ScanOutcome struct {
	Barcode string `json:"barcode"`
	Format  string `json:"format,omitempty"`
	Known   bool   `json:"known"`
	Mode    Mode   `json:"mode"`
	Form    Form   `json:"form"`
	// Reused is true when the session already held a barcode and no acquisition ran
	Reused          bool                  `json:"reused"`
	Count           int                   `json:"count"`
	SuccessfulReads int                   `json:"successful_reads"`
	FramesRead      int                   `json:"frames_read"`
	ConnectAttempts int                   `json:"connect_attempts"`
	Tally           []scanning.TallyEntry `json:"tally,omitempty"`
	DurationMs      int64                 `json:"duration_ms"`
}

// SubmitRequest is the filled-in form for the scanned barcode
type SubmitRequest struct {
	Name  string          `json:"name" binding:"required,min=1,max=200"`
	Stock int64           `json:"stock" binding:"min=0"`
	Price decimal.Decimal `json:"price"`
}

// RecordResponse is one acquisition audit entry
type RecordResponse struct {
	ID              string    `json:"id"`
	Endpoint        string    `json:"endpoint"`
	Outcome         string    `json:"outcome"`
	Barcode         string    `json:"barcode,omitempty"`
	Format          string    `json:"format,omitempty"`
	Count           int       `json:"count"`
	SuccessfulReads int       `json:"successful_reads"`
	FramesRead      int       `json:"frames_read"`
	ReadFailures    int       `json:"read_failures"`
	ConnectAttempts int       `json:"connect_attempts"`
	DurationMs      int64     `json:"duration_ms"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
}

// ToRecordResponses converts audit records for API responses
func ToRecordResponses(records []scanning.Record) []RecordResponse {
	out := make([]RecordResponse, len(records))
	for i, r := range records {
		out[i] = RecordResponse{
			ID:              r.ID.String(),
			Endpoint:        r.Endpoint,
			Outcome:         string(r.Outcome),
			Barcode:         r.Barcode,
			Format:          r.Format,
			Count:           r.Count,
			SuccessfulReads: r.SuccessfulReads,
			FramesRead:      r.FramesRead,
			ReadFailures:    r.ReadFailures,
			ConnectAttempts: r.ConnectAttempts,
			DurationMs:      r.Duration.Milliseconds(),
			Error:           r.Error,
			CreatedAt:       r.CreatedAt,
		}
	}
	return out
}
