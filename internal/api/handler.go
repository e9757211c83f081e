package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/interfaces"
	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
	"localchat/backend/internal/service"
)

// settingsHeader is the out-of-band side channel for per-request generation
// settings, a JSON object merged over the server defaults.
const settingsHeader = "X-Chat-Settings"

// ChatHandler handles HTTP requests for chats, messages, and the relay.
type ChatHandler struct {
	service      interfaces.ChatService
	systemPrompt string
}

func NewChatHandler(svc interfaces.ChatService, systemPrompt string) *ChatHandler {
	return &ChatHandler{service: svc, systemPrompt: systemPrompt}
}

// CreateChatRequest is the DTO for creating an empty chat.
type CreateChatRequest struct {
	Title string `json:"title"`
}

// UpdateChatRequest is the DTO for the partial chat metadata update. Absent
// fields are left untouched.
type UpdateChatRequest struct {
	Title    *string `json:"title,omitempty" validate:"omitempty,min=1,max=100"`
	Pinned   *bool   `json:"pinned,omitempty"`
	Archived *bool   `json:"archived,omitempty"`
}

// SendMessageBody is the DTO for the send-message endpoint. Content is either
// a plain string or an ordered list of typed parts.
type SendMessageBody struct {
	Content model.Content `json:"content"`
}

// CreateChat godoc
// @Summary      Create a chat
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        request  body  CreateChatRequest  false  "Optional title"
// @Success      200  {object}  model.FullChat
// @Router       /chats [post]
func (h *ChatHandler) CreateChat(w http.ResponseWriter, r *http.Request) {
	var req CreateChatRequest
	// An empty body means default title; a malformed one is rejected.
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}

	user := userFromContext(r.Context())
	chat, err := h.service.CreateChat(r.Context(), user.ID, req.Title)
	if err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, model.FullChat{Chat: *chat, Messages: []model.Message{}})
}

// GetChats godoc
// @Summary      List the caller's chats
// @Tags         Chats
// @Produce      json
// @Success      200  {array}  model.ChatSummary
// @Router       /chats [get]
func (h *ChatHandler) GetChats(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chats, err := h.service.ListChats(r.Context(), user.ID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if chats == nil {
		chats = []*model.ChatSummary{}
	}
	respondWithJSON(w, http.StatusOK, chats)
}

// GetChat godoc
// @Summary      Get a chat with all its messages
// @Tags         Chats
// @Produce      json
// @Param        chatID  path  string  true  "Chat ID"
// @Success      200  {object}  model.FullChat
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID} [get]
func (h *ChatHandler) GetChat(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	fullChat, err := h.service.GetFullChat(r.Context(), user.ID, chatID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if fullChat.Messages == nil {
		fullChat.Messages = []model.Message{}
	}
	respondWithJSON(w, http.StatusOK, fullChat)
}

// UpdateChat godoc
// @Summary      Update chat metadata
// @Description  Partially updates title, pinned, or archived.
// @Tags         Chats
// @Accept       json
// @Produce      json
// @Param        chatID   path  string             true  "Chat ID"
// @Param        request  body  UpdateChatRequest  true  "Fields to update"
// @Success      200  {object}  StatusResponse
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID} [patch]
func (h *ChatHandler) UpdateChat(w http.ResponseWriter, r *http.Request) {
	var req UpdateChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}
	if err := validateRequest(req); err != nil {
		respondWithError(w, err)
		return
	}

	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	patch := repository.ChatPatch{Title: req.Title, Pinned: req.Pinned, Archived: req.Archived}
	if err := h.service.UpdateChat(r.Context(), user.ID, chatID, patch); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Message: "Chat updated"})
}

// DeleteChat godoc
// @Summary      Delete a chat and its messages
// @Tags         Chats
// @Produce      json
// @Param        chatID  path  string  true  "Chat ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID} [delete]
func (h *ChatHandler) DeleteChat(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	if err := h.service.DeleteChat(r.Context(), user.ID, chatID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Message: "Chat deleted"})
}

// GetMessages godoc
// @Summary      List a chat's messages
// @Tags         Messages
// @Produce      json
// @Param        chatID  path  string  true  "Chat ID"
// @Success      200  {array}  model.Message
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID}/messages [get]
func (h *ChatHandler) GetMessages(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	messages, err := h.service.ListMessages(r.Context(), user.ID, chatID)
	if err != nil {
		respondWithError(w, err)
		return
	}
	if messages == nil {
		messages = []model.Message{}
	}
	respondWithJSON(w, http.StatusOK, messages)
}

// DeleteMessage godoc
// @Summary      Delete a single message
// @Tags         Messages
// @Produce      json
// @Param        chatID     path  string  true  "Chat ID"
// @Param        messageID  path  string  true  "Message ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID}/messages/{messageID} [delete]
func (h *ChatHandler) DeleteMessage(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	messageID := chi.URLParam(r, "messageID")
	if err := h.service.DeleteMessage(r.Context(), user.ID, chatID, messageID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Message: "Message deleted"})
}

// StopGeneration godoc
// @Summary      Stop an in-flight generation
// @Tags         Messages
// @Produce      json
// @Param        chatID  path  string  true  "Chat ID"
// @Success      200  {object}  StatusResponse
// @Failure      404  {object}  ErrorResponse
// @Router       /chats/{chatID}/stop [post]
func (h *ChatHandler) StopGeneration(w http.ResponseWriter, r *http.Request) {
	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	if err := h.service.StopGeneration(r.Context(), user.ID, chatID); err != nil {
		respondWithError(w, err)
		return
	}
	respondWithJSON(w, http.StatusOK, StatusResponse{Message: "Stop signal received"})
}

// SendMessage godoc
// @Summary      Send a message and relay the model's answer
// @Description  Persists the caller's message, forwards the conversation to
// @Description  the inference server, and either streams the answer as
// @Description  server-sent events or returns it as one JSON object,
// @Description  depending on the streaming setting.
// @Tags         Messages
// @Accept       json
// @Produce      json
// @Produce      text/event-stream
// @Param        chatID          path    string           true   "Chat ID"
// @Param        request         body    SendMessageBody  true   "Message content"
// @Param        X-Chat-Settings header  string           false  "JSON settings override"
// @Success      200  {object}  service.SendMessageResult
// @Failure      400  {object}  ErrorResponse
// @Failure      404  {object}  ErrorResponse
// @Failure      503  {object}  ErrorResponse
// @Router       /chats/{chatID}/messages [post]
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var body SendMessageBody
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		respondWithError(w, fmt.Errorf("%w: invalid request body", app_errors.ErrValidation))
		return
	}
	if !body.Content.IsStructured() && body.Content.Text == "" {
		respondWithError(w, fmt.Errorf("%w: content must not be empty", app_errors.ErrValidation))
		return
	}

	user := userFromContext(r.Context())
	chatID := chi.URLParam(r, "chatID")
	settings := h.requestSettings(r)
	req := &service.SendMessageRequest{Content: body.Content}

	if !settings.Streaming {
		result, err := h.service.SendMessageSync(r.Context(), user.ID, chatID, req, settings)
		if err != nil {
			respondWithError(w, err)
			return
		}
		respondWithJSON(w, http.StatusOK, result)
		return
	}

	// Resolve the chat before committing to an event stream: once the SSE
	// headers are written the status is locked in, so a missing or foreign
	// chat has to be answered with a plain 404 here.
	if err := h.service.EnsureChat(r.Context(), user.ID, chatID); err != nil {
		respondWithError(w, err)
		return
	}

	beginStream(w)

	events := make(chan model.StreamEvent)
	go h.service.SendMessage(r.Context(), user.ID, chatID, req, settings, events)

	// The channel must be drained to completion even after the client goes
	// away: the service decides whether to keep generating and persisting,
	// and must never block on an abandoned consumer.
	clientGone := false
	for event := range events {
		if clientGone {
			continue
		}
		if err := writeStreamEvent(w, event); err != nil {
			slog.Info("Client disconnected mid-stream", "chat_id", chatID)
			clientGone = true
		}
	}
	if !clientGone {
		writeStreamDone(w)
	}
}

// requestSettings resolves the effective generation settings: server defaults
// overlaid with whatever the settings header carries. A header that fails to
// parse is ignored in favor of the defaults; the client finds out through its
// settings being ineffective rather than a failed send.
func (h *ChatHandler) requestSettings(r *http.Request) model.ChatSettings {
	settings := model.DefaultChatSettings(h.systemPrompt)
	raw := r.Header.Get(settingsHeader)
	if raw == "" {
		return settings
	}
	if err := json.Unmarshal([]byte(raw), &settings); err != nil {
		slog.Warn("Ignoring malformed settings header", "error", err)
		return model.DefaultChatSettings(h.systemPrompt)
	}
	return settings
}
