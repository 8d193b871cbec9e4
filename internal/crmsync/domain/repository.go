package domain

import "context"

type Repository interface {
	Insert(ctx context.Context, entry *SyncLog) error
	// ListRecent returns the newest entries first. A non-zero beforeID only
	// returns entries older than that id.
	ListRecent(ctx context.Context, limit int, beforeID int64) ([]SyncLog, error)
}

// SecretStore keeps the short-lived secrets that authorize feed downloads.
type SecretStore interface {
	Create(ctx context.Context) (string, error)
	Exists(ctx context.Context, secret string) (bool, error)
}
