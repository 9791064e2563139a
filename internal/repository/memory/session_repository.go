package memory

import (
	"context"
	"fmt"
	"sort"

	"docqa-be/internal/entity"
	"docqa-be/internal/repository/contract"
	"docqa-be/pkg/apperr"

	"github.com/patrickmn/go-cache"
)

// SessionRepository keeps session records in process memory. Records never
// expire and are lost on restart; it backs SESSION_BACKEND=memory.
type SessionRepository struct {
	cache *cache.Cache
}

var _ contract.SessionRepository = &SessionRepository{}

func NewSessionRepository() *SessionRepository {
	return &SessionRepository{
		cache: cache.New(cache.NoExpiration, 0),
	}
}

func (r *SessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == "" {
		return fmt.Errorf("%w: empty session id", apperr.ErrInvalidInput)
	}
	r.cache.Set(session.Id, session.Clone(), cache.NoExpiration)
	return nil
}

func (r *SessionRepository) FindById(ctx context.Context, id string) (*entity.Session, error) {
	if x, found := r.cache.Get(id); found {
		return x.(*entity.Session).Clone(), nil
	}
	return nil, apperr.ErrNotFound
}

func (r *SessionRepository) Save(ctx context.Context, session *entity.Session) error {
	if err := r.cache.Replace(session.Id, session.Clone(), cache.NoExpiration); err != nil {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *SessionRepository) Delete(ctx context.Context, id string) error {
	r.cache.Delete(id)
	return nil
}

func (r *SessionRepository) ListIds(ctx context.Context) ([]string, error) {
	items := r.cache.Items()
	ids := make([]string, 0, len(items))
	for id := range items {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}
