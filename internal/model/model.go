package model

// User is an account record. Passwords are stored only as bcrypt hashes;
// Google-federated users have no hash at all.
type User struct {
	ID           string `json:"id"`
	Username     string `json:"username"`
	Email        string `json:"email,omitempty"`
	PasswordHash string `json:"-"`
	GoogleID     string `json:"-"`
	AuthProvider string `json:"auth_provider"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"-"`
	LastLogin    string `json:"-"`
}

// DefaultChatTitle is the placeholder a chat carries until its first message
// derives a real title.
const DefaultChatTitle = "New chat"

// Chat stores metadata about a conversation. Timestamps are millisecond
// epoch values, and UpdatedAt is bumped on every message mutation.
type Chat struct {
	ID        string `json:"id"`
	UserID    string `json:"-"`
	Title     string `json:"title"`
	Pinned    bool   `json:"pinned"`
	Archived  bool   `json:"archived"`
	CreatedAt int64  `json:"created_at"`
	UpdatedAt int64  `json:"updated_at"`
}

// ChatSummary is a Chat plus its message count, as returned by the list endpoint.
type ChatSummary struct {
	Chat
	MessageCount int `json:"message_count"`
}

// FullChat includes the chat metadata and all its messages.
type FullChat struct {
	Chat
	Messages []Message `json:"messages"`
}

// Message is a single turn in a chat. Messages are append-only except for
// explicit single-message deletion.
type Message struct {
	ID        string  `json:"id"`
	ChatID    string  `json:"-"`
	Role      string  `json:"role"`
	Content   Content `json:"content"`
	ImageURL  string  `json:"image_url,omitempty"`
	Timestamp int64   `json:"timestamp"`
}

// StreamEvent is one server-push event in a streaming relay: a text fragment
// while generating, or an error message when generation fails. The terminal
// marker is written by the transport layer, not modelled here.
type StreamEvent struct {
	Content string `json:"content,omitempty"`
	Error   string `json:"error,omitempty"`
}

// ChatSettings are the per-request generation settings. They are supplied by
// the client (or defaulted) and never persisted server-side.
type ChatSettings struct {
	SystemPrompt string  `json:"system_prompt"`
	Temperature  float64 `json:"temperature"`
	MaxTokens    int     `json:"max_tokens"`
	Streaming    bool    `json:"streaming"`
}

// DefaultChatSettings returns the settings used when the client supplies no
// override.
func DefaultChatSettings(systemPrompt string) ChatSettings {
	return ChatSettings{
		SystemPrompt: systemPrompt,
		Temperature:  0.7,
		MaxTokens:    2048,
		Streaming:    true,
	}
}
