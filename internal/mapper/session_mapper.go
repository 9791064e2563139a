package mapper

import (
	"docqa-be/internal/dto"
	"docqa-be/internal/entity"
	"docqa-be/internal/model"
)

type SessionMapper struct{}

func NewSessionMapper() *SessionMapper {
	return &SessionMapper{}
}

// Record mappers (file / redis JSON documents)

func (m *SessionMapper) SessionToRecord(s *entity.Session) *model.SessionRecord {
	if s == nil {
		return nil
	}
	return &model.SessionRecord{
		SessionName:  s.Name,
		ChatHistory:  m.turnsToRecords(s.ChatHistory),
		IndexedFiles: nonNilStrings(s.IndexedFiles),
	}
}

func (m *SessionMapper) RecordToSession(id string, r *model.SessionRecord) *entity.Session {
	if r == nil {
		return nil
	}
	return &entity.Session{
		Id:           id,
		Name:         r.SessionName,
		ChatHistory:  m.recordsToTurns(r.ChatHistory),
		IndexedFiles: nonNilStrings(r.IndexedFiles),
	}
}

// Model mappers (postgres)

func (m *SessionMapper) SessionToModel(s *entity.Session) *model.Session {
	if s == nil {
		return nil
	}
	return &model.Session{
		Id:           s.Id,
		SessionName:  s.Name,
		ChatHistory:  m.turnsToRecords(s.ChatHistory),
		IndexedFiles: nonNilStrings(s.IndexedFiles),
	}
}

func (m *SessionMapper) ModelToSession(s *model.Session) *entity.Session {
	if s == nil {
		return nil
	}
	return &entity.Session{
		Id:           s.Id,
		Name:         s.SessionName,
		ChatHistory:  m.recordsToTurns(s.ChatHistory),
		IndexedFiles: nonNilStrings(s.IndexedFiles),
	}
}

// DTO mappers

func (m *SessionMapper) SessionToResponse(s *entity.Session) *dto.SessionResponse {
	if s == nil {
		return nil
	}
	return &dto.SessionResponse{
		SessionId:    s.Id,
		SessionName:  s.Name,
		ChatHistory:  m.TurnsToDTO(s.ChatHistory),
		IndexedFiles: nonNilStrings(s.IndexedFiles),
	}
}

func (m *SessionMapper) SessionToSummary(s *entity.Session) *dto.SessionSummaryResponse {
	if s == nil {
		return nil
	}
	return &dto.SessionSummaryResponse{
		SessionId:   s.Id,
		SessionName: s.Name,
		FileCount:   len(s.IndexedFiles),
		TurnCount:   len(s.ChatHistory),
	}
}

func (m *SessionMapper) TurnsToDTO(turns []entity.ChatTurn) []dto.ChatTurnDTO {
	out := make([]dto.ChatTurnDTO, 0, len(turns))
	for _, t := range turns {
		out = append(out, dto.ChatTurnDTO{Role: t.Role, Content: t.Content})
	}
	return out
}

func (m *SessionMapper) turnsToRecords(turns []entity.ChatTurn) []model.ChatTurnRecord {
	out := make([]model.ChatTurnRecord, 0, len(turns))
	for _, t := range turns {
		out = append(out, model.ChatTurnRecord{Role: t.Role, Content: t.Content})
	}
	return out
}

func (m *SessionMapper) recordsToTurns(records []model.ChatTurnRecord) []entity.ChatTurn {
	out := make([]entity.ChatTurn, 0, len(records))
	for _, r := range records {
		out = append(out, entity.ChatTurn{Role: r.Role, Content: r.Content})
	}
	return out
}

func nonNilStrings(in []string) []string {
	out := make([]string, len(in))
	copy(out, in)
	return out
}
