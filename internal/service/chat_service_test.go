package service_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	app_errors "localchat/backend/internal/errors"
	"localchat/backend/internal/llm"
	mock_llm "localchat/backend/internal/llm/mocks"
	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
	mock_repo "localchat/backend/internal/repository/mocks"
	"localchat/backend/internal/service"
)

func setupChatService(t *testing.T) (*service.ChatService, *mock_repo.MockChatRepository, *mock_llm.MockProvider) {
	repo := mock_repo.NewMockChatRepository(t)
	provider := mock_llm.NewMockProvider(t)
	return service.NewChatService(repo, provider), repo, provider
}

// isRole matches a persisted message by its role.
func isRole(role string) interface{} {
	return mock.MatchedBy(func(m *model.Message) bool { return m.Role == role })
}

// stubStream makes the provider mock emit the given fragments and then close
// the channel, the contract CompleteStream promises.
func stubStream(provider *mock_llm.MockProvider, result error, fragments ...string) *mock.Call {
	return provider.On("CompleteStream", mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			ch := args.Get(2).(chan<- llm.StreamChunk)
			for _, f := range fragments {
				ch <- llm.StreamChunk{Content: f}
			}
			close(ch)
		}).
		Return(result).Once()
}

// collectEvents runs SendMessage to completion and returns every event it
// produced. The channel is buffered so the service never blocks on the test.
func collectEvents(svc *service.ChatService, userID, chatID string, req *service.SendMessageRequest, settings model.ChatSettings) []model.StreamEvent {
	events := make(chan model.StreamEvent, 64)
	svc.SendMessage(context.Background(), userID, chatID, req, settings, events)

	var out []model.StreamEvent
	for event := range events {
		out = append(out, event)
	}
	return out
}

func TestChatService_CreateChat(t *testing.T) {
	ctx := context.Background()

	t.Run("Empty title falls back to the default", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("CreateChat", ctx, mock.MatchedBy(func(c *model.Chat) bool {
			return c.Title == model.DefaultChatTitle && c.ID != "" && c.UserID == "user1"
		})).Return(nil).Once()

		chat, err := svc.CreateChat(ctx, "user1", "")
		require.NoError(t, err)
		assert.Equal(t, model.DefaultChatTitle, chat.Title)
		assert.Equal(t, chat.CreatedAt, chat.UpdatedAt)
	})

	t.Run("Explicit title is kept", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("CreateChat", ctx, mock.Anything).Return(nil).Once()

		chat, err := svc.CreateChat(ctx, "user1", "My research")
		require.NoError(t, err)
		assert.Equal(t, "My research", chat.Title)
	})
}

func TestChatService_SendMessage_Streaming(t *testing.T) {
	settings := model.DefaultChatSettings("be nice")
	chat := &model.Chat{ID: "chat1", UserID: "user1", Title: "Existing title"}
	prior := []model.Message{{ID: "m1", Role: "user", Content: model.TextContent("before")}}

	t.Run("Happy path - fragments relayed and accumulation persisted", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return(prior, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, nil, "Hel", "lo", "!")

		var saved *model.Message
		repo.On("AddMessage", mock.Anything, isRole("assistant")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*model.Message) }).
			Return(nil).Once()

		events := collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		require.Len(t, events, 3)
		var streamed strings.Builder
		for _, e := range events {
			assert.Empty(t, e.Error)
			streamed.WriteString(e.Content)
		}

		// The committed message is exactly the concatenation of what was
		// pushed to the client.
		require.NotNil(t, saved)
		assert.Equal(t, streamed.String(), saved.Content.PlainText())
		assert.Equal(t, "Hello!", saved.Content.PlainText())
	})

	t.Run("First message in a default-titled chat derives the title", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)
		fresh := &model.Chat{ID: "chat1", UserID: "user1", Title: model.DefaultChatTitle}

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(fresh, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		repo.On("RenameChat", mock.Anything, "chat1", "Tell me about Go", mock.AnythingOfType("int64")).Return(nil).Once()
		stubStream(provider, nil, "Sure.")
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(nil).Once()

		collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Tell me about Go")}, settings)
	})

	t.Run("Long first message is truncated to 50 characters with ellipsis", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)
		fresh := &model.Chat{ID: "chat1", UserID: "user1", Title: model.DefaultChatTitle}
		long := strings.Repeat("a", 60)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(fresh, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		repo.On("RenameChat", mock.Anything, "chat1", strings.Repeat("a", 50)+"...", mock.AnythingOfType("int64")).Return(nil).Once()
		stubStream(provider, nil, "ok")
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(nil).Once()

		collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent(long)}, settings)
	})

	t.Run("Renamed chat keeps its title on later messages", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)
		renamed := &model.Chat{ID: "chat1", UserID: "user1", Title: "Kept"}

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(renamed, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, nil, "ok")
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(nil).Once()

		// No RenameChat expectation: the mock fails the test if it is called.
		collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("hello")}, settings)
	})

	t.Run("Unreachable upstream - user message kept, error event emitted", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return(prior, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, llm.ErrUnreachable)

		events := collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		require.Len(t, events, 1)
		assert.Contains(t, events[0].Error, "Cannot connect to AI server")
		// No assistant AddMessage expectation was set: persistence of a
		// failed generation would fail the test.
	})

	t.Run("Chat not found - single error event, nothing persisted", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", mock.Anything, "missing", "user1").Return(nil, repository.ErrNotFound).Once()

		events := collectEvents(svc, "user1", "missing", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		require.Len(t, events, 1)
		assert.Equal(t, "Chat not found", events[0].Error)
	})

	t.Run("Cancelled stream still commits the accumulated text", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return(prior, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, context.Canceled, "partial ans")

		var saved *model.Message
		repo.On("AddMessage", mock.Anything, isRole("assistant")).
			Run(func(args mock.Arguments) { saved = args.Get(1).(*model.Message) }).
			Return(nil).Once()

		events := collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		for _, e := range events {
			assert.Empty(t, e.Error)
		}
		require.NotNil(t, saved)
		assert.Equal(t, "partial ans", saved.Content.PlainText())
	})

	t.Run("Assistant save is retried once before reporting failure", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return(prior, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, nil, "answer")

		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(errors.New("disk full")).Once()
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(nil).Once()

		events := collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		// The retry succeeded, so the client saw no error.
		for _, e := range events {
			assert.Empty(t, e.Error)
		}
	})

	t.Run("Both save attempts failing surfaces an error event", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return(prior, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		stubStream(provider, nil, "answer")
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(errors.New("disk full")).Twice()

		events := collectEvents(svc, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Hi")}, settings)

		require.NotEmpty(t, events)
		last := events[len(events)-1]
		assert.Contains(t, last.Error, "Could not save")
	})
}

func TestChatService_SendMessageSync(t *testing.T) {
	ctx := context.Background()
	settings := model.DefaultChatSettings("be nice")
	settings.Streaming = false
	chat := &model.Chat{ID: "chat1", UserID: "user1", Title: "t"}

	t.Run("Success - returns both persisted messages", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{{ID: "m1"}}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		provider.On("Complete", mock.Anything, mock.MatchedBy(func(req *llm.CompletionRequest) bool {
			return !req.Stream && len(req.Messages) == 3 // system + prior + new
		})).Return("the answer", nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("assistant")).Return(nil).Once()

		result, err := svc.SendMessageSync(ctx, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Q")}, settings)
		require.NoError(t, err)
		assert.Equal(t, "the answer", result.Message.Content.PlainText())
		assert.Equal(t, "Q", result.UserMessage.Content.PlainText())
	})

	t.Run("Stop before the answer arrives persists no assistant message", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		provider.On("Complete", mock.Anything, mock.Anything).Return("", context.Canceled).Once()

		result, err := svc.SendMessageSync(ctx, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Q")}, settings)
		require.NoError(t, err)
		// The caller's turn stays, but there is no empty assistant turn: no
		// assistant AddMessage expectation was set, so one would fail the test.
		assert.Nil(t, result.Message)
		assert.Equal(t, "Q", result.UserMessage.Content.PlainText())
	})

	t.Run("Unreachable upstream maps to the service-unavailable sentinel", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		provider.On("Complete", mock.Anything, mock.Anything).Return("", llm.ErrUnreachable).Once()

		_, err := svc.SendMessageSync(ctx, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Q")}, settings)
		assert.ErrorIs(t, err, app_errors.ErrUpstreamUnreachable)
	})

	t.Run("Upstream error status maps to the bad-gateway sentinel", func(t *testing.T) {
		svc, repo, provider := setupChatService(t)

		repo.On("GetChat", mock.Anything, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", mock.Anything, "chat1").Return([]model.Message{}, nil).Once()
		repo.On("AddMessage", mock.Anything, isRole("user")).Return(nil).Once()
		provider.On("Complete", mock.Anything, mock.Anything).
			Return("", &llm.StatusError{StatusCode: 500, Body: "boom"}).Once()

		_, err := svc.SendMessageSync(ctx, "user1", "chat1", &service.SendMessageRequest{Content: model.TextContent("Q")}, settings)
		assert.ErrorIs(t, err, app_errors.ErrUpstream)
	})
}

func TestChatService_CRUD(t *testing.T) {
	ctx := context.Background()

	t.Run("EnsureChat passes for an owned chat", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "chat1", "user1").Return(&model.Chat{ID: "chat1"}, nil).Once()

		assert.NoError(t, svc.EnsureChat(ctx, "user1", "chat1"))
	})

	t.Run("EnsureChat maps a missing or foreign chat to not-found", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "chat1", "intruder").Return(nil, repository.ErrNotFound).Once()

		assert.ErrorIs(t, svc.EnsureChat(ctx, "intruder", "chat1"), app_errors.ErrNotFound)
	})

	t.Run("GetFullChat maps repo not-found", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "nope", "user1").Return(nil, repository.ErrNotFound).Once()

		_, err := svc.GetFullChat(ctx, "user1", "nope")
		assert.ErrorIs(t, err, app_errors.ErrNotFound)
	})

	t.Run("GetFullChat returns chat with messages", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		chat := &model.Chat{ID: "chat1", Title: "t"}
		messages := []model.Message{{ID: "m1"}}
		repo.On("GetChat", ctx, "chat1", "user1").Return(chat, nil).Once()
		repo.On("ListMessages", ctx, "chat1").Return(messages, nil).Once()

		full, err := svc.GetFullChat(ctx, "user1", "chat1")
		require.NoError(t, err)
		assert.Equal(t, *chat, full.Chat)
		assert.Equal(t, messages, full.Messages)
	})

	t.Run("UpdateChat checks ownership before writing", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		title := "renamed"
		patch := repository.ChatPatch{Title: &title}
		repo.On("GetChat", ctx, "chat1", "user1").Return(&model.Chat{ID: "chat1"}, nil).Once()
		repo.On("UpdateChat", ctx, "chat1", patch, mock.AnythingOfType("int64")).Return(nil).Once()

		assert.NoError(t, svc.UpdateChat(ctx, "user1", "chat1", patch))
	})

	t.Run("DeleteChat maps not-found", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("DeleteChat", ctx, "nope", "user1").Return(repository.ErrNotFound).Once()

		assert.ErrorIs(t, svc.DeleteChat(ctx, "user1", "nope"), app_errors.ErrNotFound)
	})

	t.Run("DeleteMessage on an already-deleted message reports not-found", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "chat1", "user1").Return(&model.Chat{ID: "chat1"}, nil).Once()
		repo.On("DeleteMessage", ctx, "chat1", "gone", mock.AnythingOfType("int64")).Return(repository.ErrNotFound).Once()

		assert.ErrorIs(t, svc.DeleteMessage(ctx, "user1", "chat1", "gone"), app_errors.ErrNotFound)
	})
}

func TestChatService_StopGeneration(t *testing.T) {
	ctx := context.Background()

	t.Run("No in-flight generation is still a success", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "chat1", "user1").Return(&model.Chat{ID: "chat1"}, nil).Once()

		assert.NoError(t, svc.StopGeneration(ctx, "user1", "chat1"))
	})

	t.Run("Unknown chat reports not-found", func(t *testing.T) {
		svc, repo, _ := setupChatService(t)
		repo.On("GetChat", ctx, "nope", "user1").Return(nil, repository.ErrNotFound).Once()

		assert.ErrorIs(t, svc.StopGeneration(ctx, "user1", "nope"), app_errors.ErrNotFound)
	})
}
