package repository

import (
	"context"

	"github.com/smallbiznis/crmfeed/internal/crmsync/domain"
	"gorm.io/gorm"
)

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) domain.Repository {
	return &repository{db: db}
}

func (r *repository) Insert(ctx context.Context, entry *domain.SyncLog) error {
	return r.db.WithContext(ctx).Exec(
		`INSERT INTO sync_logs (id, projects, test, result, http_status, message, duration_ms, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID,
		entry.Projects,
		entry.Test,
		entry.Result,
		entry.HTTPStatus,
		entry.Message,
		entry.DurationMs,
		entry.CreatedAt,
	).Error
}

func (r *repository) ListRecent(ctx context.Context, limit int, beforeID int64) ([]domain.SyncLog, error) {
	var entries []domain.SyncLog
	err := r.db.WithContext(ctx).Raw(
		`SELECT id, projects, test, result, http_status, message, duration_ms, created_at
		 FROM sync_logs
		 WHERE (? = 0 OR id < ?)
		 ORDER BY id DESC
		 LIMIT ?`,
		beforeID, beforeID,
		limit,
	).Scan(&entries).Error
	if err != nil {
		return nil, err
	}
	return entries, nil
}
