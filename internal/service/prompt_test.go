package service_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"localchat/backend/internal/model"
	"localchat/backend/internal/service"
)

func TestBuildPrompt(t *testing.T) {
	settings := model.DefaultChatSettings("You are a helpful assistant.")

	t.Run("System entry comes first, history follows in order", func(t *testing.T) {
		history := []model.Message{
			{Role: "user", Content: model.TextContent("Hi")},
			{Role: "assistant", Content: model.TextContent("Hello!")},
			{Role: "user", Content: model.TextContent("How are you?")},
		}

		prompt := service.BuildPrompt(history, settings)
		require.Len(t, prompt, 4)
		assert.Equal(t, "system", prompt[0].Role)
		assert.Equal(t, "You are a helpful assistant.", prompt[0].Content)
		assert.Equal(t, "user", prompt[1].Role)
		assert.Equal(t, "Hi", prompt[1].Content)
		assert.Equal(t, "assistant", prompt[2].Role)
		assert.Equal(t, "user", prompt[3].Role)
	})

	t.Run("Empty history still yields the system entry", func(t *testing.T) {
		prompt := service.BuildPrompt(nil, settings)
		require.Len(t, prompt, 1)
		assert.Equal(t, "system", prompt[0].Role)
	})

	t.Run("Structured content keeps text and image parts, drops unknown", func(t *testing.T) {
		history := []model.Message{
			{Role: "user", Content: model.PartsContent([]model.ContentPart{
				{Type: model.PartTypeText, Text: "what is this?"},
				{Type: "audio", Text: "nope"},
				{Type: model.PartTypeImageURL, ImageURL: &model.ImageRef{URL: "data:image/png;base64,AA"}},
			})},
		}

		prompt := service.BuildPrompt(history, settings)
		require.Len(t, prompt, 2)

		parts, ok := prompt[1].Content.([]model.ContentPart)
		require.True(t, ok)
		require.Len(t, parts, 2)
		assert.Equal(t, model.PartTypeText, parts[0].Type)
		assert.Equal(t, "what is this?", parts[0].Text)
		assert.Equal(t, model.PartTypeImageURL, parts[1].Type)
		require.NotNil(t, parts[1].ImageURL)
		assert.Equal(t, "data:image/png;base64,AA", parts[1].ImageURL.URL)
	})

	t.Run("Plain text content is forwarded as a string", func(t *testing.T) {
		history := []model.Message{{Role: "user", Content: model.TextContent("plain")}}
		prompt := service.BuildPrompt(history, settings)
		assert.Equal(t, "plain", prompt[1].Content)
	})
}
