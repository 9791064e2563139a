package model

import (
	"time"

	"gorm.io/datatypes"
)

// SessionRecord is the JSON document stored per session by the file and
// redis backends. Field names are part of the on-disk layout.
type SessionRecord struct {
	SessionName  string           `json:"session_name"`
	ChatHistory  []ChatTurnRecord `json:"chat_history"`
	IndexedFiles []string         `json:"indexed_files"`
}

type ChatTurnRecord struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Session is the GORM model used by the postgres backend.
type Session struct {
	Id           string                              `gorm:"type:text;primaryKey"`
	SessionName  string                              `gorm:"type:text;not null"`
	ChatHistory  datatypes.JSONSlice[ChatTurnRecord] `gorm:"type:jsonb;not null;default:'[]'"`
	IndexedFiles datatypes.JSONSlice[string]         `gorm:"type:jsonb;not null;default:'[]'"`
	CreatedAt    time.Time                           `gorm:"autoCreateTime"`
	UpdatedAt    time.Time                           `gorm:"autoUpdateTime"`
}

func (Session) TableName() string {
	return "sessions"
}
