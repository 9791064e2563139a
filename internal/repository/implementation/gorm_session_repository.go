package implementation

import (
	"context"
	"errors"
	"fmt"

	"docqa-be/internal/entity"
	"docqa-be/internal/mapper"
	"docqa-be/internal/model"
	"docqa-be/internal/repository/contract"
	"docqa-be/internal/repository/scope"
	"docqa-be/pkg/apperr"

	"gorm.io/gorm"
)

type GormSessionRepository struct {
	db     *gorm.DB
	mapper *mapper.SessionMapper
}

func NewGormSessionRepository(db *gorm.DB) contract.SessionRepository {
	return &GormSessionRepository{
		db:     db,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *GormSessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == "" {
		return fmt.Errorf("%w: empty session id", apperr.ErrInvalidInput)
	}
	m := r.mapper.SessionToModel(session)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return apperr.Storage("create", err)
	}
	return nil
}

func (r *GormSessionRepository) FindById(ctx context.Context, id string) (*entity.Session, error) {
	var m model.Session
	err := r.db.WithContext(ctx).Scopes(scope.ById(id)).First(&m).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Storage("read", err)
	}
	return r.mapper.ModelToSession(&m), nil
}

func (r *GormSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	m := r.mapper.SessionToModel(session)
	result := r.db.WithContext(ctx).Model(&model.Session{}).Scopes(scope.ById(session.Id)).Updates(map[string]interface{}{
		"session_name":  m.SessionName,
		"chat_history":  m.ChatHistory,
		"indexed_files": m.IndexedFiles,
	})
	if result.Error != nil {
		return apperr.Storage("save", result.Error)
	}
	if result.RowsAffected == 0 {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *GormSessionRepository) Delete(ctx context.Context, id string) error {
	if err := r.db.WithContext(ctx).Scopes(scope.ById(id)).Delete(&model.Session{}).Error; err != nil {
		return apperr.Storage("delete", err)
	}
	return nil
}

func (r *GormSessionRepository) ListIds(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.WithContext(ctx).Model(&model.Session{}).Scopes(scope.OrderById).Pluck("id", &ids).Error; err != nil {
		return nil, apperr.Storage("list", err)
	}
	if ids == nil {
		ids = []string{}
	}
	return ids, nil
}
