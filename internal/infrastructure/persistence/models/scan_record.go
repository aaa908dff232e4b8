package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/scanstock/backend/internal/domain/scanning"
)

// ScanRecordModel is the persistence model for acquisition audit entries.
type ScanRecordModel struct {
	ID              uuid.UUID `gorm:"type:uuid;primaryKey"`
	Endpoint        string    `gorm:"type:varchar(512);not null;index:idx_scan_records_endpoint_created,priority:1"`
	Outcome         string    `gorm:"type:varchar(32);not null"`
	Barcode         string    `gorm:"type:varchar(512);index"`
	Format          string    `gorm:"type:varchar(32)"`
	Count           int       `gorm:"not null;default:0"`
	SuccessfulReads int       `gorm:"not null;default:0"`
	FramesRead      int       `gorm:"not null;default:0"`
	ReadFailures    int       `gorm:"not null;default:0"`
	ConnectAttempts int       `gorm:"not null;default:0"`
	DurationMs      int64     `gorm:"not null;default:0"`
	Error           string    `gorm:"type:text"`
	CreatedAt       time.Time `gorm:"not null;index:idx_scan_records_endpoint_created,priority:2"`
}

// TableName returns the table name for GORM
func (ScanRecordModel) TableName() string {
	return "scan_records"
}

// ToDomain converts the persistence model to a domain Record.
func (m *ScanRecordModel) ToDomain() scanning.Record {
	return scanning.Record{
		ID:              m.ID,
		Endpoint:        m.Endpoint,
		Outcome:         scanning.Outcome(m.Outcome),
		Barcode:         m.Barcode,
		Format:          m.Format,
		Count:           m.Count,
		SuccessfulReads: m.SuccessfulReads,
		FramesRead:      m.FramesRead,
		ReadFailures:    m.ReadFailures,
		ConnectAttempts: m.ConnectAttempts,
		Duration:        time.Duration(m.DurationMs) * time.Millisecond,
		Error:           m.Error,
		CreatedAt:       m.CreatedAt,
	}
}

// ScanRecordModelFromDomain creates a new persistence model from a domain Record.
func ScanRecordModelFromDomain(r *scanning.Record) *ScanRecordModel {
	return &ScanRecordModel{
		ID:              r.ID,
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
