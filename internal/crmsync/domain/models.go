package domain

import (
	"errors"
	"time"
)

// Sync results as stored on the log.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

var (
	// ErrUpstream marks a CRM response other than 200.
	ErrUpstream = errors.New("crm_upstream_error")
	// ErrEmptySelection is returned when there is nothing to sync.
	ErrEmptySelection = errors.New("empty_project_selection")
	// ErrRateLimited is returned when event driven triggers come too fast.
	ErrRateLimited = errors.New("sync_rate_limited")
	// ErrSyncInProgress is returned while another full sync holds the lock.
	ErrSyncInProgress = errors.New("full_sync_in_progress")
)

// SyncLog records one trigger sent to the CRM.
type SyncLog struct {
	ID         int64     `gorm:"primaryKey;autoIncrement:false"`
	Projects   string    `gorm:"type:text;not null"`
	Test       bool      `gorm:"not null;default:false"`
	Result     string    `gorm:"not null"`
	HTTPStatus int       `gorm:"column:http_status;not null;default:0"`
	Message    string    `gorm:"type:text"`
	DurationMs int64     `gorm:"not null;default:0"`
	CreatedAt  time.Time `gorm:"not null;index"`
}

func (SyncLog) TableName() string { return "sync_logs" }
