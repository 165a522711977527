package models

import "time"

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleSystem    = "system"
)

// ChatMessage is one turn of a session's conversation.
type ChatMessage struct {
	Role    string `json:"role" bson:"role"`
	Content string `json:"content" bson:"content"`
}

func UserMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleAssistant, Content: content}
}

func SystemMessage(content string) ChatMessage {
	return ChatMessage{Role: RoleSystem, Content: content}
}

type QueryRequest struct {
	Question       string `form:"question" json:"question" binding:"required,min=1,max=4000"`
	SessionID      string `form:"session_id" json:"session_id"`
	UseSessionDirs *bool  `form:"use_session_dirs" json:"use_session_dirs"`
	K              int    `form:"k" json:"k"`
}

type QueryResponse struct {
	Answer    string    `json:"answer"`
	SessionID string    `json:"session_id"`
	K         int       `json:"k"`
	Engine    string    `json:"engine"`
	Timestamp time.Time `json:"timestamp"`
}

type IndexResponse struct {
	SessionID      string   `json:"session_id"`
	K              int      `json:"k"`
	UseSessionDirs bool     `json:"use_session_dirs"`
	Added          int      `json:"added"`
	Total          int      `json:"total"`
	Skipped        []string `json:"skipped,omitempty"`
	TaskID         string   `json:"task_id,omitempty"`
	Queue          string   `json:"queue,omitempty"`
}
