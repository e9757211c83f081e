// End-to-end tests: a real SQLite database, the real services and router, and
// a fake llama.cpp server. Only the inference itself is simulated.
package tests

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/backend/internal/api"
	"localchat/backend/internal/database"
	"localchat/backend/internal/llm"
	"localchat/backend/internal/model"
	"localchat/backend/internal/repository"
	"localchat/backend/internal/service"
)

type env struct {
	server   *httptest.Server
	client   *http.Client
	upstream *fakeLlama
}

// fakeLlama is a stand-in llama.cpp server. It streams a fixed answer, split
// into fragments, in the OpenAI chat-completions SSE format.
type fakeLlama struct {
	server    *httptest.Server
	fragments []string
	failWith  int // when non-zero, completions answer with this status
}

func newFakeLlama(t *testing.T) *fakeLlama {
	f := &fakeLlama{fragments: []string{"The answer ", "is 4."}}
	f.server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/health":
			fmt.Fprint(w, `{"status":"ok"}`)
		case "/v1/models":
			fmt.Fprint(w, `{"data":[{"id":"local"}]}`)
		case "/v1/chat/completions":
			if f.failWith != 0 {
				http.Error(w, "upstream failure", f.failWith)
				return
			}
			w.Header().Set("Content-Type", "text/event-stream")
			for _, frag := range f.fragments {
				payload, _ := json.Marshal(map[string]interface{}{
					"choices": []map[string]interface{}{{"delta": map[string]string{"content": frag}}},
				})
				fmt.Fprintf(w, "data: %s\n\n", payload)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(f.server.Close)
	return f
}

func setupEnv(t *testing.T) *env {
	db, err := database.InitDB(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	upstream := newFakeLlama(t)

	chatRepo := repository.NewSQLiteChatRepository(db)
	userRepo := repository.NewSQLiteUserRepository(db)
	provider := llm.NewLlamaClient(upstream.server.URL)

	limiter := service.NewRateLimiter(time.Minute, 100)
	authService := service.NewAuthService(userRepo, "integration-secret", time.Hour, "", nil)
	chatService := service.NewChatService(chatRepo, provider)

	chatHandler := api.NewChatHandler(chatService, "You are a test assistant.")
	authHandler := api.NewAuthHandler(authService, limiter)
	systemHandler := api.NewSystemHandler(provider)
	router := api.NewRouter(chatHandler, authHandler, systemHandler, authService)

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	jar, err := cookiejar.New(nil)
	require.NoError(t, err)

	return &env{
		server:   server,
		client:   &http.Client{Jar: jar, Timeout: 30 * time.Second},
		upstream: upstream,
	}
}

func (e *env) do(t *testing.T, method, path, body string) *http.Response {
	t.Helper()
	req, err := http.NewRequest(method, e.server.URL+path, strings.NewReader(body))
	require.NoError(t, err)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := e.client.Do(req)
	require.NoError(t, err)
	return resp
}

func (e *env) doJSON(t *testing.T, method, path, body string, out interface{}) int {
	t.Helper()
	resp := e.do(t, method, path, body)
	defer resp.Body.Close()
	if out != nil {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(out))
	}
	return resp.StatusCode
}

func (e *env) register(t *testing.T, username string) {
	t.Helper()
	body := fmt.Sprintf(`{"username":%q,"password":"password123"}`, username)
	code := e.doJSON(t, http.MethodPost, "/auth/register", body, nil)
	require.Equal(t, http.StatusOK, code)
}

// readStream consumes an SSE response into its data payloads, the terminal
// marker included.
func readStream(t *testing.T, resp *http.Response) []string {
	t.Helper()
	defer resp.Body.Close()
	var payloads []string
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.HasPrefix(line, "data: ") {
			payloads = append(payloads, strings.TrimPrefix(line, "data: "))
		}
	}
	require.NoError(t, scanner.Err())
	return payloads
}

func TestFullChatWorkflow(t *testing.T) {
	e := setupEnv(t)
	e.register(t, "workflow-user")

	var chatID string

	t.Run("CreateChat", func(t *testing.T) {
		var chat model.FullChat
		code := e.doJSON(t, http.MethodPost, "/chats", "", &chat)
		require.Equal(t, http.StatusOK, code)
		require.NotEmpty(t, chat.ID)
		assert.Equal(t, model.DefaultChatTitle, chat.Title)
		chatID = chat.ID
	})

	t.Run("SendFirstMessage", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/chats/"+chatID+"/messages", `{"content":"What is 2+2?"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/event-stream", resp.Header.Get("Content-Type"))

		payloads := readStream(t, resp)
		require.NotEmpty(t, payloads)
		assert.Equal(t, "[DONE]", payloads[len(payloads)-1])

		var answer strings.Builder
		for _, p := range payloads[:len(payloads)-1] {
			var event model.StreamEvent
			require.NoError(t, json.Unmarshal([]byte(p), &event))
			assert.Empty(t, event.Error)
			answer.WriteString(event.Content)
		}
		assert.Equal(t, "The answer is 4.", answer.String())
	})

	t.Run("TitleDerivedFromFirstMessage", func(t *testing.T) {
		var chats []model.ChatSummary
		code := e.doJSON(t, http.MethodGet, "/chats", "", &chats)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, chats, 1)
		assert.Equal(t, "What is 2+2?", chats[0].Title)
		assert.Equal(t, 2, chats[0].MessageCount)
	})

	t.Run("HistoryHasBothTurns", func(t *testing.T) {
		var chat model.FullChat
		code := e.doJSON(t, http.MethodGet, "/chats/"+chatID, "", &chat)
		require.Equal(t, http.StatusOK, code)
		require.Len(t, chat.Messages, 2)
		assert.Equal(t, "user", chat.Messages[0].Role)
		assert.Equal(t, "What is 2+2?", chat.Messages[0].Content.PlainText())
		assert.Equal(t, "assistant", chat.Messages[1].Role)
		assert.Equal(t, "The answer is 4.", chat.Messages[1].Content.PlainText())
	})

	t.Run("SecondMessageDoesNotRetitle", func(t *testing.T) {
		resp := e.do(t, http.MethodPost, "/chats/"+chatID+"/messages", `{"content":"And 3+3?"}`)
		require.Equal(t, http.StatusOK, resp.StatusCode)
		readStream(t, resp)

		var chats []model.ChatSummary
		e.doJSON(t, http.MethodGet, "/chats", "", &chats)
		require.Len(t, chats, 1)
		assert.Equal(t, "What is 2+2?", chats[0].Title)
		assert.Equal(t, 4, chats[0].MessageCount)
	})

	t.Run("PinAndRename", func(t *testing.T) {
		code := e.doJSON(t, http.MethodPatch, "/chats/"+chatID, `{"title":"Math","pinned":true}`, nil)
		require.Equal(t, http.StatusOK, code)

		var chat model.FullChat
		e.doJSON(t, http.MethodGet, "/chats/"+chatID, "", &chat)
		assert.Equal(t, "Math", chat.Title)
		assert.True(t, chat.Pinned)
	})

	t.Run("DeleteMessage", func(t *testing.T) {
		var chat model.FullChat
		e.doJSON(t, http.MethodGet, "/chats/"+chatID, "", &chat)
		require.NotEmpty(t, chat.Messages)
		target := chat.Messages[len(chat.Messages)-1].ID

		code := e.doJSON(t, http.MethodDelete, "/chats/"+chatID+"/messages/"+target, "", nil)
		require.Equal(t, http.StatusOK, code)

		// A second delete of the same message reports not-found.
		code = e.doJSON(t, http.MethodDelete, "/chats/"+chatID+"/messages/"+target, "", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})

	t.Run("DeleteChat", func(t *testing.T) {
		code := e.doJSON(t, http.MethodDelete, "/chats/"+chatID, "", nil)
		require.Equal(t, http.StatusOK, code)

		var chats []model.ChatSummary
		e.doJSON(t, http.MethodGet, "/chats", "", &chats)
		assert.Empty(t, chats)

		code = e.doJSON(t, http.MethodGet, "/chats/"+chatID, "", nil)
		assert.Equal(t, http.StatusNotFound, code)
	})
}

func TestLongFirstMessageTitleTruncation(t *testing.T) {
	e := setupEnv(t)
	e.register(t, "title-user")

	var chat model.FullChat
	require.Equal(t, http.StatusOK, e.doJSON(t, http.MethodPost, "/chats", "", &chat))

	long := strings.Repeat("x", 80)
	resp := e.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", fmt.Sprintf(`{"content":%q}`, long))
	require.Equal(t, http.StatusOK, resp.StatusCode)
	readStream(t, resp)

	var chats []model.ChatSummary
	e.doJSON(t, http.MethodGet, "/chats", "", &chats)
	require.Len(t, chats, 1)
	assert.Equal(t, strings.Repeat("x", 50)+"...", chats[0].Title)
}

func TestUpstreamFailureKeepsUserMessage(t *testing.T) {
	e := setupEnv(t)
	e.register(t, "failure-user")

	var chat model.FullChat
	require.Equal(t, http.StatusOK, e.doJSON(t, http.MethodPost, "/chats", "", &chat))

	// The completions endpoint fails, but the probe endpoints stay healthy.
	e.upstream.failWith = http.StatusInternalServerError

	resp := e.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", `{"content":"doomed question"}`)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	payloads := readStream(t, resp)
	require.NotEmpty(t, payloads)
	assert.Equal(t, "[DONE]", payloads[len(payloads)-1])

	var sawError bool
	for _, p := range payloads[:len(payloads)-1] {
		var event model.StreamEvent
		require.NoError(t, json.Unmarshal([]byte(p), &event))
		if event.Error != "" {
			sawError = true
		}
	}
	assert.True(t, sawError, "expected an error event in the stream")

	// The user's turn survived; no assistant turn was stored.
	var full model.FullChat
	e.doJSON(t, http.MethodGet, "/chats/"+chat.ID, "", &full)
	require.Len(t, full.Messages, 1)
	assert.Equal(t, "user", full.Messages[0].Role)
	assert.Equal(t, "doomed question", full.Messages[0].Content.PlainText())
}

func TestChatsAreIsolatedPerUser(t *testing.T) {
	e := setupEnv(t)

	e.register(t, "owner")
	var chat model.FullChat
	require.Equal(t, http.StatusOK, e.doJSON(t, http.MethodPost, "/chats", "", &chat))

	// A second client with its own cookie jar acts as another account.
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	other := &env{server: e.server, client: &http.Client{Jar: jar, Timeout: 30 * time.Second}, upstream: e.upstream}
	other.register(t, "intruder")

	// The other user cannot see, read, or delete the owner's chat.
	var chats []model.ChatSummary
	other.doJSON(t, http.MethodGet, "/chats", "", &chats)
	assert.Empty(t, chats)

	assert.Equal(t, http.StatusNotFound, other.doJSON(t, http.MethodGet, "/chats/"+chat.ID, "", nil))
	assert.Equal(t, http.StatusNotFound, other.doJSON(t, http.MethodDelete, "/chats/"+chat.ID, "", nil))

	// Sending to a foreign chat is a plain 404, never an event stream.
	resp404 := other.do(t, http.MethodPost, "/chats/"+chat.ID+"/messages", `{"content":"hi"}`)
	defer resp404.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp404.StatusCode)
	assert.Equal(t, "application/json", resp404.Header.Get("Content-Type"))

	// And without any credential the API refuses outright.
	anon := &http.Client{Timeout: 5 * time.Second}
	resp, err := anon.Get(e.server.URL + "/chats")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestNonStreamingSend(t *testing.T) {
	e := setupEnv(t)
	e.register(t, "sync-user")

	var chat model.FullChat
	require.Equal(t, http.StatusOK, e.doJSON(t, http.MethodPost, "/chats", "", &chat))

	req, err := http.NewRequest(http.MethodPost, e.server.URL+"/chats/"+chat.ID+"/messages", strings.NewReader(`{"content":"sync question"}`))
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Chat-Settings", `{"streaming":false}`)

	resp, err := e.client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "application/json", resp.Header.Get("Content-Type"))

	var result struct {
		Message     model.Message `json:"message"`
		UserMessage model.Message `json:"user_message"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&result))
	assert.Equal(t, "assistant", result.Message.Role)
	assert.Equal(t, "sync question", result.UserMessage.Content.PlainText())
}

func TestAuthSessionLifecycle(t *testing.T) {
	e := setupEnv(t)

	t.Run("RegisterAndMe", func(t *testing.T) {
		e.register(t, "session-user")

		var me model.User
		code := e.doJSON(t, http.MethodGet, "/auth/me", "", &me)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "session-user", me.Username)
	})

	t.Run("LogoutClearsTheSession", func(t *testing.T) {
		code := e.doJSON(t, http.MethodPost, "/auth/logout", "", nil)
		require.Equal(t, http.StatusOK, code)

		code = e.doJSON(t, http.MethodGet, "/auth/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("LoginRestoresAccess", func(t *testing.T) {
		code := e.doJSON(t, http.MethodPost, "/auth/login", `{"username":"session-user","password":"password123"}`, nil)
		require.Equal(t, http.StatusOK, code)

		var me model.User
		code = e.doJSON(t, http.MethodGet, "/auth/me", "", &me)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "session-user", me.Username)
	})

	t.Run("WrongPasswordIsRejected", func(t *testing.T) {
		code := e.doJSON(t, http.MethodPost, "/auth/login", `{"username":"session-user","password":"nope"}`, nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})
}

func TestSystemEndpoints(t *testing.T) {
	e := setupEnv(t)

	t.Run("BackendHealth", func(t *testing.T) {
		var body map[string]string
		code := e.doJSON(t, http.MethodGet, "/health", "", &body)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("UpstreamHealthProxy", func(t *testing.T) {
		var body map[string]string
		code := e.doJSON(t, http.MethodGet, "/api/llama/health", "", &body)
		require.Equal(t, http.StatusOK, code)
		assert.Equal(t, "ok", body["status"])
	})

	t.Run("UpstreamModelsProxy", func(t *testing.T) {
		var body map[string]interface{}
		code := e.doJSON(t, http.MethodGet, "/api/llama/models", "", &body)
		require.Equal(t, http.StatusOK, code)
		assert.NotEmpty(t, body["data"])
	})
}
