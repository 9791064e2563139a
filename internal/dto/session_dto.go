package dto

type ChatTurnDTO struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type SessionResponse struct {
	SessionId    string        `json:"session_id"`
	SessionName  string        `json:"session_name"`
	ChatHistory  []ChatTurnDTO `json:"chat_history"`
	IndexedFiles []string      `json:"indexed_files"`
}

type SessionSummaryResponse struct {
	SessionId   string `json:"session_id"`
	SessionName string `json:"session_name"`
	FileCount   int    `json:"file_count"`
	TurnCount   int    `json:"turn_count"`
}

// NewSessionResponse is returned by create and switch; Token is the same
// value set in the session_token cookie.
type NewSessionResponse struct {
	SessionId   string `json:"session_id"`
	SessionName string `json:"session_name"`
	Token       string `json:"token"`
}

type RenameSessionRequest struct {
	SessionName string `json:"session_name" validate:"required,max=200"`
}

type IndexedFilesResponse struct {
	SessionId    string   `json:"session_id"`
	IndexedFiles []string `json:"indexed_files"`
}

type ChatHistoryResponse struct {
	SessionId   string        `json:"session_id"`
	ChatHistory []ChatTurnDTO `json:"chat_history"`
}
