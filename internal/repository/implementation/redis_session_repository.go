package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"docqa-be/internal/entity"
	"docqa-be/internal/mapper"
	"docqa-be/internal/model"
	"docqa-be/internal/repository/contract"
	"docqa-be/pkg/apperr"

	"github.com/redis/go-redis/v9"
)

const (
	redisSessionKeyPrefix = "docqa:session:"
	redisSessionIndexKey  = "docqa:sessions"
)

// RedisSessionRepository stores the same JSON document as the file backend
// under docqa:session:<id> and tracks ids in the docqa:sessions set.
type RedisSessionRepository struct {
	rdb    *redis.Client
	mapper *mapper.SessionMapper
}

func NewRedisSessionRepository(rdb *redis.Client) contract.SessionRepository {
	return &RedisSessionRepository{
		rdb:    rdb,
		mapper: mapper.NewSessionMapper(),
	}
}

func (r *RedisSessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if session.Id == "" {
		return fmt.Errorf("%w: empty session id", apperr.ErrInvalidInput)
	}
	return r.write(ctx, session)
}

func (r *RedisSessionRepository) FindById(ctx context.Context, id string) (*entity.Session, error) {
	data, err := r.rdb.Get(ctx, redisSessionKeyPrefix+id).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, apperr.ErrNotFound
		}
		return nil, apperr.Storage("read", err)
	}

	var record model.SessionRecord
	if err := json.Unmarshal(data, &record); err != nil {
		return nil, apperr.Storage("decode", err)
	}
	return r.mapper.RecordToSession(id, &record), nil
}

// Save only replaces an existing document (SET XX).
func (r *RedisSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	data, err := json.Marshal(r.mapper.SessionToRecord(session))
	if err != nil {
		return apperr.Storage("encode", err)
	}

	ok, err := r.rdb.SetXX(ctx, redisSessionKeyPrefix+session.Id, data, 0).Result()
	if err != nil {
		return apperr.Storage("write", err)
	}
	if !ok {
		return apperr.ErrNotFound
	}
	return nil
}

func (r *RedisSessionRepository) Delete(ctx context.Context, id string) error {
	_, err := r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, redisSessionKeyPrefix+id)
		pipe.SRem(ctx, redisSessionIndexKey, id)
		return nil
	})
	if err != nil {
		return apperr.Storage("delete", err)
	}
	return nil
}

func (r *RedisSessionRepository) ListIds(ctx context.Context) ([]string, error) {
	ids, err := r.rdb.SMembers(ctx, redisSessionIndexKey).Result()
	if err != nil {
		return nil, apperr.Storage("list", err)
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *RedisSessionRepository) write(ctx context.Context, session *entity.Session) error {
	data, err := json.Marshal(r.mapper.SessionToRecord(session))
	if err != nil {
		return apperr.Storage("encode", err)
	}

	_, err = r.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, redisSessionKeyPrefix+session.Id, data, 0)
		pipe.SAdd(ctx, redisSessionIndexKey, session.Id)
		return nil
	})
	if err != nil {
		return apperr.Storage("write", err)
	}
	return nil
}
