package repository

import (
	"context"

	"localchat/backend/internal/model"
)

// ChatRepository is the Conversation Store: durable keyed storage for chat
// metadata and ordered message lists. All single-chat reads take the owner's
// user ID so that another user's chat is indistinguishable from a missing one.
type ChatRepository interface {
	CreateChat(ctx context.Context, chat *model.Chat) error
	GetChat(ctx context.Context, chatID, userID string) (*model.Chat, error)
	ListChats(ctx context.Context, userID string) ([]*model.ChatSummary, error)
	UpdateChat(ctx context.Context, chatID string, patch ChatPatch, updatedAt int64) error
	DeleteChat(ctx context.Context, chatID, userID string) error

	AddMessage(ctx context.Context, message *model.Message) error
	ListMessages(ctx context.Context, chatID string) ([]model.Message, error)
	DeleteMessage(ctx context.Context, chatID, messageID string, updatedAt int64) error
	TouchChat(ctx context.Context, chatID string, updatedAt int64) error
	RenameChat(ctx context.Context, chatID, title string, updatedAt int64) error
}

// ChatPatch carries the optional fields of a chat metadata update. Nil fields
// are left untouched.
type ChatPatch struct {
	Title    *string
	Pinned   *bool
	Archived *bool
}

// UserRepository stores account records.
type UserRepository interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByID(ctx context.Context, id string) (*model.User, error)
	GetUserByUsername(ctx context.Context, username string) (*model.User, error)
	GetUserByGoogleID(ctx context.Context, googleID string) (*model.User, error)
	UpdateLastLogin(ctx context.Context, id, lastLogin string) error
}
