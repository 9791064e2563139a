package entity

const (
	ChatRoleUser      = "user"
	ChatRoleAssistant = "assistant"
)

type ChatTurn struct {
	Role    string
	Content string
}

type Session struct {
	Id           string
	Name         string
	ChatHistory  []ChatTurn
	IndexedFiles []string
}

// NewSession returns a record with empty history and no indexed files.
func NewSession(id, name string) *Session {
	return &Session{
		Id:           id,
		Name:         name,
		ChatHistory:  []ChatTurn{},
		IndexedFiles: []string{},
	}
}

// Clone returns a deep copy so callers can mutate without aliasing a stored record.
func (s *Session) Clone() *Session {
	if s == nil {
		return nil
	}
	c := &Session{
		Id:           s.Id,
		Name:         s.Name,
		ChatHistory:  make([]ChatTurn, len(s.ChatHistory)),
		IndexedFiles: make([]string, len(s.IndexedFiles)),
	}
	copy(c.ChatHistory, s.ChatHistory)
	copy(c.IndexedFiles, s.IndexedFiles)
	return c
}
