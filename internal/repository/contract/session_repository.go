package contract

import (
	"context"

	"docqa-be/internal/entity"
)

// SessionRepository is the durable medium behind the session store.
// FindById and Save return apperr.ErrNotFound when no record exists, so a
// Save never brings back a deleted record. Delete is idempotent. Failures
// of the medium are returned as *apperr.StorageError.
type SessionRepository interface {
	Create(ctx context.Context, session *entity.Session) error
	FindById(ctx context.Context, id string) (*entity.Session, error)
	Save(ctx context.Context, session *entity.Session) error
	Delete(ctx context.Context, id string) error
	ListIds(ctx context.Context) ([]string, error)
}
