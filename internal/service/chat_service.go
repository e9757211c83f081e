package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/llm"
	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
)

// upstreamModel is the model name forwarded to the completions endpoint. The
// llama.cpp server serves whatever model it was started with, so the name is
// a fixed placeholder.
const upstreamModel = "local"

// ChatService owns the chat CRUD logic and the relay: forwarding a stored
// conversation to the inference server, pushing fragments to the caller, and
// committing the assistant's turn exactly once.
type ChatService struct {
	repo        repository.ChatRepository
	llm         llm.Provider
	locks       chatLocks
	generations *generationRegistry
}

func NewChatService(repo repository.ChatRepository, provider llm.Provider) *ChatService {
	return &ChatService{
		repo:        repo,
		llm:         provider,
		generations: newGenerationRegistry(),
	}
}

// SendMessageRequest is a new message from the client.
type SendMessageRequest struct {
	Content model.Content
}

// SendMessageResult is the non-streaming relay response.
type SendMessageResult struct {
	Message     *model.Message `json:"message"`
	UserMessage *model.Message `json:"user_message"`
}

// CreateChat creates an empty chat owned by the user.
func (s *ChatService) CreateChat(ctx context.Context, userID, title string) (*model.Chat, error) {
	if title == "" {
		title = model.DefaultChatTitle
	}
	now := time.Now().UnixMilli()
	chat := &model.Chat{
		ID:        uuid.NewString(),
		UserID:    userID,
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.CreateChat(ctx, chat); err != nil {
		return nil, fmt.Errorf("could not create chat: %w", err)
	}
	return chat, nil
}

// ListChats retrieves all chats for the user, pinned first, most recently
// updated next.
func (s *ChatService) ListChats(ctx context.Context, userID string) ([]*model.ChatSummary, error) {
	return s.repo.ListChats(ctx, userID)
}

// EnsureChat verifies that the chat exists and belongs to the user. The relay
// handler uses it before committing to a streaming response, so a missing or
// foreign chat is a plain 404 instead of an in-stream error.
func (s *ChatService) EnsureChat(ctx context.Context, userID, chatID string) error {
	if _, err := s.repo.GetChat(ctx, chatID, userID); err != nil {
		return translateRepoErr(err)
	}
	return nil
}

// GetFullChat retrieves a chat's metadata and all its messages.
func (s *ChatService) GetFullChat(ctx context.Context, userID, chatID string) (*model.FullChat, error) {
	chat, err := s.repo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, translateRepoErr(err)
	}
	messages, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, fmt.Errorf("could not get messages: %w", err)
	}
	return &model.FullChat{Chat: *chat, Messages: messages}, nil
}

// ListMessages retrieves the chat's messages in timestamp order.
func (s *ChatService) ListMessages(ctx context.Context, userID, chatID string) ([]model.Message, error) {
	if _, err := s.repo.GetChat(ctx, chatID, userID); err != nil {
		return nil, translateRepoErr(err)
	}
	return s.repo.ListMessages(ctx, chatID)
}

// UpdateChat applies a partial metadata update (title, pinned, archived).
func (s *ChatService) UpdateChat(ctx context.Context, userID, chatID string, patch repository.ChatPatch) error {
	unlock := s.locks.lock(chatID)
	defer unlock()

	if _, err := s.repo.GetChat(ctx, chatID, userID); err != nil {
		return translateRepoErr(err)
	}
	return translateRepoErr(s.repo.UpdateChat(ctx, chatID, patch, time.Now().UnixMilli()))
}

// DeleteChat removes a chat and all its messages.
func (s *ChatService) DeleteChat(ctx context.Context, userID, chatID string) error {
	unlock := s.locks.lock(chatID)
	defer unlock()
	return translateRepoErr(s.repo.DeleteChat(ctx, chatID, userID))
}

// DeleteMessage removes one message. Deleting an already-deleted message
// reports not-found rather than succeeding silently.
func (s *ChatService) DeleteMessage(ctx context.Context, userID, chatID, messageID string) error {
	unlock := s.locks.lock(chatID)
	defer unlock()

	if _, err := s.repo.GetChat(ctx, chatID, userID); err != nil {
		return translateRepoErr(err)
	}
	return translateRepoErr(s.repo.DeleteMessage(ctx, chatID, messageID, time.Now().UnixMilli()))
}

// StopGeneration cancels the upstream calls of every in-flight relay for the
// chat. The text accumulated so far is still committed by the relay itself.
func (s *ChatService) StopGeneration(ctx context.Context, userID, chatID string) error {
	if _, err := s.repo.GetChat(ctx, chatID, userID); err != nil {
		return translateRepoErr(err)
	}
	if s.generations.stop(chatID) {
		slog.Info("Stop signal delivered to in-flight generation", "chat_id", chatID)
	}
	return nil
}

// SendMessage runs one streaming relay operation: persist the caller's turn,
// forward the conversation upstream, push fragments to events in production
// order, and commit the assistant's turn when generation ends. The events
// channel is always closed; the transport layer writes the terminal marker.
//
// The work runs on a context detached from the caller's, so a client
// disconnect neither aborts generation nor the final commit.
func (s *ChatService) SendMessage(ctx context.Context, userID, chatID string, req *SendMessageRequest, settings model.ChatSettings, events chan<- model.StreamEvent) {
	defer close(events)

	ctx = context.WithoutCancel(ctx)
	_, history, err := s.acceptUserMessage(ctx, userID, chatID, req.Content)
	if err != nil {
		events <- model.StreamEvent{Error: userFacingMessage(err)}
		return
	}

	genCtx, release := s.generations.register(ctx, chatID)
	defer release()

	prompt := BuildPrompt(history, settings)
	llmReq := &llm.CompletionRequest{
		Model:       upstreamModel,
		Messages:    prompt,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Stream:      true,
	}

	var full []byte
	errorSent := false

	chunks := make(chan llm.StreamChunk)
	streamErr := make(chan error, 1)
	go func() {
		streamErr <- s.llm.CompleteStream(genCtx, llmReq, chunks)
	}()

	for chunk := range chunks {
		if chunk.Error != "" {
			events <- model.StreamEvent{Error: chunk.Error}
			errorSent = true
			continue
		}
		full = append(full, chunk.Content...)
		events <- model.StreamEvent{Content: chunk.Content}
	}

	err = <-streamErr
	if err != nil && !errors.Is(err, context.Canceled) {
		slog.Warn("Streaming generation failed", "chat_id", chatID, "error", err)
		if !errorSent {
			events <- model.StreamEvent{Error: userFacingMessage(err)}
		}
		// The caller's message stays; no assistant message for this attempt.
		return
	}

	// A cancelled stream (stop request) still commits what accumulated.
	if err := s.commitAssistantMessage(ctx, chatID, string(full)); err != nil {
		slog.Error("Failed to save assistant message", "chat_id", chatID, "error", err)
		events <- model.StreamEvent{Error: "Could not save the assistant's reply"}
	}
}

// SendMessageSync runs one non-streaming relay operation and returns both the
// assistant's message and the caller's message as persisted.
func (s *ChatService) SendMessageSync(ctx context.Context, userID, chatID string, req *SendMessageRequest, settings model.ChatSettings) (*SendMessageResult, error) {
	ctx = context.WithoutCancel(ctx)
	userMsg, history, err := s.acceptUserMessage(ctx, userID, chatID, req.Content)
	if err != nil {
		return nil, err
	}

	genCtx, release := s.generations.register(ctx, chatID)
	defer release()

	prompt := BuildPrompt(history, settings)
	llmReq := &llm.CompletionRequest{
		Model:       upstreamModel,
		Messages:    prompt,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Stream:      false,
	}

	answer, err := s.llm.Complete(genCtx, llmReq)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			// A stop request before the answer arrived. Unlike a cancelled
			// stream, nothing accumulated, so there is no assistant turn to
			// commit.
			return &SendMessageResult{UserMessage: userMsg}, nil
		}
		return nil, translateUpstreamErr(err)
	}

	assistantMsg, err := s.saveAssistantMessage(ctx, chatID, answer)
	if err != nil {
		return nil, err
	}
	return &SendMessageResult{Message: assistantMsg, UserMessage: userMsg}, nil
}

// acceptUserMessage is step one of every relay: the caller's turn is persisted
// before any upstream call so it is never lost, and it is never rolled back
// regardless of what happens downstream. Returns the saved message and the
// full history including it.
func (s *ChatService) acceptUserMessage(ctx context.Context, userID, chatID string, content model.Content) (*model.Message, []model.Message, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	chat, err := s.repo.GetChat(ctx, chatID, userID)
	if err != nil {
		return nil, nil, translateRepoErr(err)
	}

	prior, err := s.repo.ListMessages(ctx, chatID)
	if err != nil {
		return nil, nil, fmt.Errorf("could not get message history: %w", err)
	}

	now := time.Now().UnixMilli()
	userMsg := &model.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      "user",
		Content:   content,
		ImageURL:  content.FirstImageURL(),
		Timestamp: now,
	}
	if err := s.repo.AddMessage(ctx, userMsg); err != nil {
		return nil, nil, fmt.Errorf("could not save user message: %w", err)
	}

	if len(prior) == 0 && chat.Title == model.DefaultChatTitle {
		if title := deriveTitle(content); title != "" {
			if err := s.repo.RenameChat(ctx, chatID, title, now); err != nil {
				slog.Warn("Failed to auto-title chat", "chat_id", chatID, "error", err)
			}
		}
	}

	return userMsg, append(prior, *userMsg), nil
}

// commitAssistantMessage persists the accumulated answer exactly once. A
// store failure here would throw away a fully generated answer, so the write
// is retried once before giving up.
func (s *ChatService) commitAssistantMessage(ctx context.Context, chatID, content string) error {
	_, err := s.saveAssistantMessage(ctx, chatID, content)
	return err
}

func (s *ChatService) saveAssistantMessage(ctx context.Context, chatID, content string) (*model.Message, error) {
	unlock := s.locks.lock(chatID)
	defer unlock()

	msg := &model.Message{
		ID:        uuid.NewString(),
		ChatID:    chatID,
		Role:      "assistant",
		Content:   model.TextContent(content),
		Timestamp: time.Now().UnixMilli(),
	}
	err := s.repo.AddMessage(ctx, msg)
	if err != nil {
		slog.Warn("Retrying assistant message save", "chat_id", chatID, "error", err)
		err = s.repo.AddMessage(ctx, msg)
	}
	if err != nil {
		return nil, fmt.Errorf("could not save assistant message: %w", err)
	}
	return msg, nil
}

// titleLimit is the rune budget for auto-derived chat titles.
const titleLimit = 50

// deriveTitle takes the first 50 characters of the message's plain text,
// marking truncation with an ellipsis.
func deriveTitle(content model.Content) string {
	text := content.PlainText()
	if text == "" {
		return ""
	}
	runes := []rune(text)
	if len(runes) <= titleLimit {
		return text
	}
	return string(runes[:titleLimit]) + "..."
}

func translateRepoErr(err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return app_errors.ErrNotFound
	}
	return err
}

func translateUpstreamErr(err error) error {
	var statusErr *llm.StatusError
	switch {
	case errors.Is(err, llm.ErrUnreachable):
		return fmt.Errorf("%w: %v", app_errors.ErrUpstreamUnreachable, err)
	case errors.As(err, &statusErr):
		return fmt.Errorf("%w: %v", app_errors.ErrUpstream, err)
	default:
		return fmt.Errorf("%w: %v", app_errors.ErrUpstream, err)
	}
}

// userFacingMessage renders an error for the streaming channel, keeping the
// unreachable case distinct so users know to start their model server.
func userFacingMessage(err error) string {
	switch {
	case errors.Is(err, llm.ErrUnreachable), errors.Is(err, app_errors.ErrUpstreamUnreachable):
		return "Cannot connect to AI server. Make sure llama.cpp is running."
	case errors.Is(err, app_errors.ErrNotFound):
		return "Chat not found"
	default:
		return err.Error()
	}
}

// chatLocks serializes read-modify-write access to a single chat's message
// list. Operations on different chats never contend.
type chatLocks struct {
	locks sync.Map // chatID -> *sync.Mutex
}

func (c *chatLocks) lock(chatID string) func() {
	v, _ := c.locks.LoadOrStore(chatID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
