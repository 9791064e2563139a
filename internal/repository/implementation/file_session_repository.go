package implementation

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"docqa-be/internal/entity"
	"docqa-be/internal/mapper"
	"docqa-be/internal/model"
	"docqa-be/internal/repository/contract"
	"docqa-be/pkg/apperr"
)

const sessionFileExt = ".json"

// FileSessionRepository keeps one JSON document per session under dir,
// named <session_id>.json.
type FileSessionRepository struct {
	dir    string
	mapper *mapper.SessionMapper
}

func NewFileSessionRepository(dir string) (contract.SessionRepository, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, apperr.Storage("mkdir", err)
	}
	return &FileSessionRepository{
		dir:    dir,
		mapper: mapper.NewSessionMapper(),
	}, nil
}

func (r *FileSessionRepository) Create(ctx context.Context, session *entity.Session) error {
	if !validSessionId(session.Id) {
		return fmt.Errorf("%w: session id %q", apperr.ErrInvalidInput, session.Id)
	}
	return r.write(session)
}

func (r *FileSessionRepository) FindById(ctx context.Context, id string) (*entity.Session, error) {
	if !validSessionId(id) {
		return nil, apperr.ErrNotFound
	}

	data, err := os.ReadFile(r.pathFor(id))
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
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

func (r *FileSessionRepository) Save(ctx context.Context, session *entity.Session) error {
	if !validSessionId(session.Id) {
		return apperr.ErrNotFound
	}
	if _, err := os.Stat(r.pathFor(session.Id)); err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return apperr.ErrNotFound
		}
		return apperr.Storage("stat", err)
	}
	return r.write(session)
}

func (r *FileSessionRepository) Delete(ctx context.Context, id string) error {
	if !validSessionId(id) {
		return nil
	}
	if err := os.Remove(r.pathFor(id)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return apperr.Storage("delete", err)
	}
	return nil
}

func (r *FileSessionRepository) ListIds(ctx context.Context) ([]string, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return []string{}, nil
		}
		return nil, apperr.Storage("list", err)
	}

	ids := make([]string, 0, len(entries))
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, sessionFileExt) {
			continue
		}
		ids = append(ids, strings.TrimSuffix(name, sessionFileExt))
	}
	sort.Strings(ids)
	return ids, nil
}

// write replaces the record atomically: a reader sees the old document or
// the new one, never a partial write.
func (r *FileSessionRepository) write(session *entity.Session) error {
	data, err := json.Marshal(r.mapper.SessionToRecord(session))
	if err != nil {
		return apperr.Storage("encode", err)
	}

	tmp, err := os.CreateTemp(r.dir, "."+session.Id+".*.tmp")
	if err != nil {
		return apperr.Storage("write", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return apperr.Storage("write", err)
	}
	if err := tmp.Close(); err != nil {
		return apperr.Storage("write", err)
	}
	if err := os.Rename(tmpName, r.pathFor(session.Id)); err != nil {
		return apperr.Storage("write", err)
	}
	return nil
}

func (r *FileSessionRepository) pathFor(id string) string {
	return filepath.Join(r.dir, id+sessionFileExt)
}

// validSessionId rejects ids that would escape the sessions directory.
func validSessionId(id string) bool {
	if id == "" || id == "." || id == ".." {
		return false
	}
	return !strings.ContainsAny(id, `/\`) && !strings.HasPrefix(id, ".")
}
