// Package session owns session records and the lifecycle that ties a
// record to its index artifact and its cached retrieval handle.
package session

import (
	"context"
	"errors"
	"sort"

	"docqa-be/internal/entity"
	"docqa-be/internal/repository/contract"
	"docqa-be/pkg/apperr"
	"docqa-be/pkg/keylock"
)

// Store is the durable home of session records. Mutations of one record
// are serialized through a per-session lock; different sessions never
// wait on each other.
type Store struct {
	repo  contract.SessionRepository
	locks *keylock.KeyLock
}

func NewStore(repo contract.SessionRepository, locks *keylock.KeyLock) *Store {
	if locks == nil {
		locks = keylock.New()
	}
	return &Store{repo: repo, locks: locks}
}

// Create persists an empty record. It does not check for an existing one.
func (s *Store) Create(ctx context.Context, id string, name string) (*entity.Session, error) {
	session := entity.NewSession(id, name)
	err := s.locks.WithLock(id, func() error {
		return s.repo.Create(ctx, session)
	})
	if err != nil {
		return nil, err
	}
	return session.Clone(), nil
}

func (s *Store) Load(ctx context.Context, id string) (*entity.Session, error) {
	return s.repo.FindById(ctx, id)
}

// Save overwrites the whole record.
func (s *Store) Save(ctx context.Context, session *entity.Session) error {
	return s.locks.WithLock(session.Id, func() error {
		return s.repo.Save(ctx, session)
	})
}

// Update runs fn on the current record and saves the result, all under
// the session lock. Nothing is written when fn fails.
func (s *Store) Update(ctx context.Context, id string, fn func(*entity.Session) error) (*entity.Session, error) {
	var updated *entity.Session
	err := s.locks.WithLock(id, func() error {
		session, err := s.repo.FindById(ctx, id)
		if err != nil {
			return err
		}
		if err := fn(session); err != nil {
			return err
		}
		if err := s.repo.Save(ctx, session); err != nil {
			return err
		}
		updated = session.Clone()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (s *Store) Rename(ctx context.Context, id string, name string) (*entity.Session, error) {
	return s.Update(ctx, id, func(session *entity.Session) error {
		session.Name = name
		return nil
	})
}

// Delete is idempotent.
func (s *Store) Delete(ctx context.Context, id string) error {
	return s.locks.WithLock(id, func() error {
		return s.repo.Delete(ctx, id)
	})
}

func (s *Store) ListIds(ctx context.Context) ([]string, error) {
	return s.repo.ListIds(ctx)
}

// List loads every record, sorted by name then id. Records deleted between
// listing and loading are skipped.
func (s *Store) List(ctx context.Context) ([]*entity.Session, error) {
	ids, err := s.repo.ListIds(ctx)
	if err != nil {
		return nil, err
	}

	sessions := make([]*entity.Session, 0, len(ids))
	for _, id := range ids {
		session, err := s.repo.FindById(ctx, id)
		if err != nil {
			if isNotFound(err) {
				continue
			}
			return nil, err
		}
		sessions = append(sessions, session)
	}

	sort.SliceStable(sessions, func(i, j int) bool {
		if sessions[i].Name != sessions[j].Name {
			return sessions[i].Name < sessions[j].Name
		}
		return sessions[i].Id < sessions[j].Id
	})
	return sessions, nil
}

func isNotFound(err error) bool {
	return errors.Is(err, apperr.ErrNotFound)
}
