package service

import (
	"context"

	"docqa-be/internal/dto"
	"docqa-be/internal/mapper"
	"docqa-be/pkg/session"
)

type ISessionService interface {
	Create(ctx context.Context) (*dto.SessionResponse, error)
	List(ctx context.Context) ([]*dto.SessionSummaryResponse, error)
	Show(ctx context.Context, id string) (*dto.SessionResponse, error)
	Switch(ctx context.Context, id string) (*dto.SessionResponse, error)
	Rename(ctx context.Context, id string, req *dto.RenameSessionRequest) (*dto.SessionResponse, error)
	Delete(ctx context.Context, id string) error
	IndexedFiles(ctx context.Context, id string) (*dto.IndexedFilesResponse, error)
	History(ctx context.Context, id string) (*dto.ChatHistoryResponse, error)
}

type sessionService struct {
	lifecycle *session.Lifecycle
	mapper    *mapper.SessionMapper
}

func NewSessionService(lifecycle *session.Lifecycle) ISessionService {
	return &sessionService{
		lifecycle: lifecycle,
		mapper:    mapper.NewSessionMapper(),
	}
}

func (s *sessionService) Create(ctx context.Context) (*dto.SessionResponse, error) {
	created, err := s.lifecycle.NewSession(ctx)
	if err != nil {
		return nil, err
	}
	return s.mapper.SessionToResponse(created), nil
}

func (s *sessionService) List(ctx context.Context) ([]*dto.SessionSummaryResponse, error) {
	summaries, err := s.lifecycle.ListSessions(ctx)
	if err != nil {
		return nil, err
	}

	result := make([]*dto.SessionSummaryResponse, 0, len(summaries))
	for _, sum := range summaries {
		result = append(result, &dto.SessionSummaryResponse{
			SessionId:   sum.Id,
			SessionName: sum.Name,
			FileCount:   sum.FileCount,
			TurnCount:   sum.TurnCount,
		})
	}
	return result, nil
}

func (s *sessionService) Show(ctx context.Context, id string) (*dto.SessionResponse, error) {
	found, err := s.lifecycle.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mapper.SessionToResponse(found), nil
}

func (s *sessionService) Switch(ctx context.Context, id string) (*dto.SessionResponse, error) {
	switched, err := s.lifecycle.SwitchTo(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.mapper.SessionToResponse(switched), nil
}

func (s *sessionService) Rename(ctx context.Context, id string, req *dto.RenameSessionRequest) (*dto.SessionResponse, error) {
	renamed, err := s.lifecycle.Rename(ctx, id, req.SessionName)
	if err != nil {
		return nil, err
	}
	return s.mapper.SessionToResponse(renamed), nil
}

func (s *sessionService) Delete(ctx context.Context, id string) error {
	return s.lifecycle.Delete(ctx, id)
}

func (s *sessionService) IndexedFiles(ctx context.Context, id string) (*dto.IndexedFilesResponse, error) {
	files, err := s.lifecycle.GetIndexedFiles(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.IndexedFilesResponse{SessionId: id, IndexedFiles: files}, nil
}

func (s *sessionService) History(ctx context.Context, id string) (*dto.ChatHistoryResponse, error) {
	found, err := s.lifecycle.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return &dto.ChatHistoryResponse{
		SessionId:   id,
		ChatHistory: s.mapper.TurnsToDTO(found.ChatHistory),
	}, nil
}
