package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// StreamChunk is one incremental result from a streaming completion: either a
// text fragment or an error message. The end of the stream is signalled by the
// channel closing.
type StreamChunk struct {
	Content string
	Error   string
}

// Provider is the interface to an OpenAI-chat-completions-compatible
// inference server.
type Provider interface {
	// Complete issues one blocking request and returns the full answer text.
	// An answer with no content field resolves to "".
	Complete(ctx context.Context, req *CompletionRequest) (string, error)
	// CompleteStream opens a streaming request and sends one chunk per
	// upstream fragment to ch, in production order. It always closes ch.
	CompleteStream(ctx context.Context, req *CompletionRequest, ch chan<- StreamChunk) error
	// Health probes the upstream /health endpoint.
	Health(ctx context.Context) (json.RawMessage, error)
	// ListModels proxies the upstream /v1/models endpoint.
	ListModels(ctx context.Context) (json.RawMessage, error)
}

// ErrUnreachable wraps connection-level failures (refused, DNS, timeout
// before headers). It is distinct from a non-success HTTP status (StatusError)
// and from an undecodable body, so callers can tell the three apart.
var ErrUnreachable = errors.New("llm: server unreachable")

// StatusError is returned when the upstream answers with a non-success status.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("llm: upstream returned status %d: %s", e.StatusCode, e.Body)
}

// Message is one role/content entry of the prompt. Content is either a plain
// string or an ordered list of typed parts; both marshal to the wire shape
// the completions endpoint expects.
type Message struct {
	Role    string      `json:"role"`
	Content interface{} `json:"content"`
}

// CompletionRequest is the body of a chat-completions call.
type CompletionRequest struct {
	Model       string    `json:"model"`
	Messages    []Message `json:"messages"`
	Temperature float64   `json:"temperature"`
	MaxTokens   int       `json:"max_tokens"`
	Stream      bool      `json:"stream"`
}

type completionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// doneSentinel terminates a streamed response.
const doneSentinel = "[DONE]"

type llamaClient struct {
	client  *http.Client
	baseURL string
}

// NewLlamaClient returns a Provider talking to a llama.cpp-style server at
// baseURL. The client timeout is generous because local inference can take
// minutes on modest hardware.
func NewLlamaClient(baseURL string) Provider {
	return &llamaClient{
		client:  &http.Client{Timeout: 5 * time.Minute},
		baseURL: strings.TrimRight(baseURL, "/"),
	}
}

func (c *llamaClient) post(ctx context.Context, req *CompletionRequest) (*http.Response, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("could not marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewBuffer(body))
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(httpReq)
	if err != nil {
		// Context cancellation is the caller's doing, not an unreachable server.
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	return resp, nil
}

func (c *llamaClient) Complete(ctx context.Context, req *CompletionRequest) (string, error) {
	req.Stream = false
	resp, err := c.post(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		return "", &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("could not read response body: %w", err)
	}
	var parsed completionResponse
	if err := json.Unmarshal(bodyBytes, &parsed); err != nil {
		return "", fmt.Errorf("could not decode response: %w", err)
	}
	if len(parsed.Choices) == 0 {
		return "", nil
	}
	return parsed.Choices[0].Message.Content, nil
}

// CompleteStream reads the upstream SSE channel frame by frame. Each data
// frame is a JSON object carrying choices[0].delta.content; a frame whose
// payload is the [DONE] sentinel ends the stream. Frames that fail to decode
// are skipped rather than aborting the sequence.
func (c *llamaClient) CompleteStream(ctx context.Context, req *CompletionRequest, ch chan<- StreamChunk) error {
	defer close(ch)
	req.Stream = true

	resp, err := c.post(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		bodyBytes, _ := io.ReadAll(resp.Body)
		statusErr := &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
		select {
		case ch <- StreamChunk{Error: statusErr.Error()}:
		case <-ctx.Done():
		}
		return statusErr
	}

	scanner := bufio.NewScanner(resp.Body)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data: ") {
			continue
		}
		data := strings.TrimSpace(line[6:])
		if data == doneSentinel {
			return nil
		}

		var parsed completionResponse
		if err := json.Unmarshal([]byte(data), &parsed); err != nil {
			// Malformed frame; skip it and keep reading.
			continue
		}
		if len(parsed.Choices) == 0 || parsed.Choices[0].Delta.Content == "" {
			continue
		}

		select {
		case ch <- StreamChunk{Content: parsed.Choices[0].Delta.Content}:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err := scanner.Err(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("error reading stream: %w", err)
	}
	return nil
}

func (c *llamaClient) Health(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/health")
}

func (c *llamaClient) ListModels(ctx context.Context) (json.RawMessage, error) {
	return c.getJSON(ctx, "/v1/models")
}

func (c *llamaClient) getJSON(ctx context.Context, path string) (json.RawMessage, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", err)
	}
	resp, err := c.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnreachable, err)
	}
	defer resp.Body.Close()

	bodyBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("could not read response body: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: string(bodyBytes)}
	}
	if !json.Valid(bodyBytes) {
		return nil, fmt.Errorf("could not decode response: %s", string(bodyBytes))
	}
	return json.RawMessage(bodyBytes), nil
}
