package service

import (
	"localchat/backend/internal/llm"
	"localchat/backend/internal/model"
)

// BuildPrompt converts a chat's ordered message history plus settings into
// the role/content sequence the completions endpoint expects: a synthetic
// system entry first, then one entry per stored message in timestamp order.
//
// Plain-text content is forwarded unchanged. Structured content is filtered
// down to text and image_url parts; parts of unrecognized type are dropped.
// Content that failed to parse as structured data has already fallen back to
// opaque text at the storage layer, so assembly never fails.
func BuildPrompt(history []model.Message, settings model.ChatSettings) []llm.Message {
	prompt := make([]llm.Message, 0, len(history)+1)
	prompt = append(prompt, llm.Message{Role: "system", Content: settings.SystemPrompt})

	for _, msg := range history {
		prompt = append(prompt, llm.Message{
			Role:    msg.Role,
			Content: normalizeContent(msg.Content),
		})
	}
	return prompt
}

func normalizeContent(c model.Content) interface{} {
	if !c.IsStructured() {
		return c.Text
	}
	parts := make([]model.ContentPart, 0, len(c.Parts))
	for _, p := range c.Parts {
		switch p.Type {
		case model.PartTypeText:
			parts = append(parts, model.ContentPart{Type: model.PartTypeText, Text: p.Text})
		case model.PartTypeImageURL:
			if p.ImageURL != nil {
				parts = append(parts, model.ContentPart{Type: model.PartTypeImageURL, ImageURL: &model.ImageRef{URL: p.ImageURL.URL}})
			}
		}
	}
	return parts
}
