package types

import "time"

type ChatRequest struct {
	SessionID string `json:"sessionId,omitempty"`
	Message   string `json:"message"`
}

type ChatResponse struct {
	Response  string    `json:"response"`
	Timestamp time.Time `json:"timestamp"`
	SessionID string    `json:"sessionId"`
	Source    string    `json:"source"`
	Intent    string    `json:"intent,omitempty"`
}

// ErrorResponse carries a user-facing Response next to the error where the chat UI
// should still show something.
type ErrorResponse struct {
	Error    string `json:"error"`
	Response string `json:"response,omitempty"`
	Message  string `json:"message,omitempty"`
}

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
}

type HistoryEntry struct {
	UserMessage string    `json:"user_message"`
	BotResponse string    `json:"bot_response"`
	Timestamp   time.Time `json:"timestamp"`
}

type HistoryResponse struct {
	SessionID string         `json:"sessionId"`
	Entries   []HistoryEntry `json:"entries"`
}
