package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"localchat/backend/internal/model"
)

type sqliteChatRepository struct {
	db *sql.DB
}

func NewSQLiteChatRepository(db *sql.DB) ChatRepository {
	return &sqliteChatRepository{db: db}
}

func (r *sqliteChatRepository) CreateChat(ctx context.Context, chat *model.Chat) error {
	query := "INSERT INTO chats (id, user_id, title, pinned, archived, created_at, updated_at) VALUES (?, ?, ?, ?, ?, ?, ?)"
	_, err := r.db.ExecContext(ctx, query, chat.ID, chat.UserID, chat.Title, chat.Pinned, chat.Archived, chat.CreatedAt, chat.UpdatedAt)
	return err
}

func (r *sqliteChatRepository) GetChat(ctx context.Context, chatID, userID string) (*model.Chat, error) {
	query := "SELECT id, user_id, title, pinned, archived, created_at, updated_at FROM chats WHERE id = ? AND user_id = ?"
	row := r.db.QueryRowContext(ctx, query, chatID, userID)
	var chat model.Chat
	err := row.Scan(&chat.ID, &chat.UserID, &chat.Title, &chat.Pinned, &chat.Archived, &chat.CreatedAt, &chat.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &chat, nil
}

func (r *sqliteChatRepository) ListChats(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	query := `
		SELECT c.id, c.user_id, c.title, c.pinned, c.archived, c.created_at, c.updated_at, COUNT(m.id)
		FROM chats c
		LEFT JOIN messages m ON c.id = m.chat_id
		WHERE c.user_id = ?
		GROUP BY c.id
		ORDER BY c.pinned DESC, c.updated_at DESC
	`
	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var chats []*model.ChatSummary
	for rows.Next() {
		var c model.ChatSummary
		if err := rows.Scan(&c.ID, &c.UserID, &c.Title, &c.Pinned, &c.Archived, &c.CreatedAt, &c.UpdatedAt, &c.MessageCount); err != nil {
			return nil, err
		}
		chats = append(chats, &c)
	}
	return chats, rows.Err()
}

func (r *sqliteChatRepository) UpdateChat(ctx context.Context, chatID string, patch ChatPatch, updatedAt int64) error {
	sets := []string{}
	args := []interface{}{}
	if patch.Title != nil {
		sets = append(sets, "title = ?")
		args = append(args, *patch.Title)
	}
	if patch.Pinned != nil {
		sets = append(sets, "pinned = ?")
		args = append(args, *patch.Pinned)
	}
	if patch.Archived != nil {
		sets = append(sets, "archived = ?")
		args = append(args, *patch.Archived)
	}
	sets = append(sets, "updated_at = ?")
	args = append(args, updatedAt, chatID)

	query := fmt.Sprintf("UPDATE chats SET %s WHERE id = ?", strings.Join(sets, ", "))
	res, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *sqliteChatRepository) DeleteChat(ctx context.Context, chatID, userID string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE chat_id = ?", chatID); err != nil {
		return fmt.Errorf("could not delete messages: %w", err)
	}
	res, err := tx.ExecContext(ctx, "DELETE FROM chats WHERE id = ? AND user_id = ?", chatID, userID)
	if err != nil {
		return fmt.Errorf("could not delete chat: %w", err)
	}
	if err := requireRowsAffected(res); err != nil {
		return err
	}
	return tx.Commit()
}

// AddMessage appends a message and bumps the chat's updated_at in one
// transaction, so a visible message always comes with a bumped timestamp.
func (r *sqliteChatRepository) AddMessage(ctx context.Context, message *model.Message) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	content, err := message.Content.EncodeForStorage()
	if err != nil {
		return fmt.Errorf("could not encode message content: %w", err)
	}

	var imageURL sql.NullString
	if message.ImageURL != "" {
		imageURL = sql.NullString{String: message.ImageURL, Valid: true}
	}

	insertQuery := "INSERT INTO messages (id, chat_id, role, content, image_url, timestamp) VALUES (?, ?, ?, ?, ?, ?)"
	if _, err := tx.ExecContext(ctx, insertQuery, message.ID, message.ChatID, message.Role, content, imageURL, message.Timestamp); err != nil {
		return fmt.Errorf("could not insert message: %w", err)
	}

	if _, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", message.Timestamp, message.ChatID); err != nil {
		return fmt.Errorf("could not update chat timestamp: %w", err)
	}

	return tx.Commit()
}

// ListMessages returns the chat's messages ordered by timestamp, insertion
// order breaking ties.
func (r *sqliteChatRepository) ListMessages(ctx context.Context, chatID string) ([]model.Message, error) {
	query := "SELECT id, chat_id, role, content, image_url, timestamp FROM messages WHERE chat_id = ? ORDER BY timestamp, rowid"
	rows, err := r.db.QueryContext(ctx, query, chatID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []model.Message
	for rows.Next() {
		var msg model.Message
		var content string
		var imageURL sql.NullString
		if err := rows.Scan(&msg.ID, &msg.ChatID, &msg.Role, &content, &imageURL, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Content = model.ParseStoredContent(content)
		if imageURL.Valid {
			msg.ImageURL = imageURL.String
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (r *sqliteChatRepository) DeleteMessage(ctx context.Context, chatID, messageID string, updatedAt int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("could not begin transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, "DELETE FROM messages WHERE id = ? AND chat_id = ?", messageID, chatID)
	if err != nil {
		return fmt.Errorf("could not delete message: %w", err)
	}
	if err := requireRowsAffected(res); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", updatedAt, chatID); err != nil {
		return fmt.Errorf("could not update chat timestamp: %w", err)
	}
	return tx.Commit()
}

func (r *sqliteChatRepository) TouchChat(ctx context.Context, chatID string, updatedAt int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE chats SET updated_at = ? WHERE id = ?", updatedAt, chatID)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func (r *sqliteChatRepository) RenameChat(ctx context.Context, chatID, title string, updatedAt int64) error {
	res, err := r.db.ExecContext(ctx, "UPDATE chats SET title = ?, updated_at = ? WHERE id = ?", title, updatedAt, chatID)
	if err != nil {
		return err
	}
	return requireRowsAffected(res)
}

func requireRowsAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
