package persistence

import (
	"context"

	"github.com/scanstock/backend/internal/domain/scanning"
	"github.com/scanstock/backend/internal/infrastructure/persistence/models"
	"gorm.io/gorm"
)

const maxRecentRecords = 500

// GormScanRecordRepository implements scanning.RecordRepository using GORM
type GormScanRecordRepository struct {
	db *gorm.DB
}

// NewGormScanRecordRepository creates a new GormScanRecordRepository
func NewGormScanRecordRepository(db *gorm.DB) *GormScanRecordRepository {
	return &GormScanRecordRepository{db: db}
}

// Save stores an acquisition record
func (r *GormScanRecordRepository) Save(ctx context.Context, record *scanning.Record) error {
	if err := r.db.WithContext(ctx).Create(models.ScanRecordModelFromDomain(record)).Error; err != nil {
		return translateError("save scan record", err)
	}
	return nil
}

// FindRecent returns the latest records, newest first
func (r *GormScanRecordRepository) FindRecent(ctx context.Context, endpoint string, limit int) ([]scanning.Record, error) {
	if limit <= 0 || limit > maxRecentRecords {
		limit = maxRecentRecords
	}

	query := r.db.WithContext(ctx).Model(&models.ScanRecordModel{})
	if endpoint != "" {
		query = query.Where("endpoint = ?", endpoint)
	}

	var rows []models.ScanRecordModel
	if err := query.Order("created_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, translateError("list scan records", err)
	}

	records := make([]scanning.Record, len(rows))
	for i := range rows {
		records[i] = rows[i].ToDomain()
	}
	return records, nil
}

var _ scanning.RecordRepository = (*GormScanRecordRepository)(nil)
