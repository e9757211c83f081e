package interfaces

import (
	"context"
	"time"

	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
	"localchat/backend/internal/service"
)

// This file defines the interfaces for our core services.
// Depending on these interfaces, instead of concrete implementations, allows
// for decoupling (e.g., API layer from Service layer) and easier testing via
// mocking.

// ChatService defines the contract for chat CRUD and the relay.
type ChatService interface {
	CreateChat(ctx context.Context, userID, title string) (*model.Chat, error)
	EnsureChat(ctx context.Context, userID, chatID string) error
	ListChats(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	GetFullChat(ctx context.Context, userID, chatID string) (*model.FullChat, error)
	ListMessages(ctx context.Context, userID, chatID string) ([]model.Message, error)
	UpdateChat(ctx context.Context, userID, chatID string, patch repository.ChatPatch) error
	DeleteChat(ctx context.Context, userID, chatID string) error
	DeleteMessage(ctx context.Context, userID, chatID, messageID string) error
	StopGeneration(ctx context.Context, userID, chatID string) error
	SendMessage(ctx context.Context, userID, chatID string, req *service.SendMessageRequest, settings model.ChatSettings, events chan<- model.StreamEvent)
	SendMessageSync(ctx context.Context, userID, chatID string, req *service.SendMessageRequest, settings model.ChatSettings) (*service.SendMessageResult, error)
}

// AuthService defines the contract for account and token management.
type AuthService interface {
	Register(ctx context.Context, username, password string) (*model.User, string, error)
	Login(ctx context.Context, username, password string) (*model.User, string, error)
	LoginWithGoogle(ctx context.Context, credential string) (*model.User, string, error)
	ResolveUser(ctx context.Context, token string) (*model.User, error)
	TokenExpiry() time.Duration
}
