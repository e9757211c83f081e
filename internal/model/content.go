package model

import (
	"encoding/json"
	"strings"
)

// Content is a tagged variant for message content: either plain text or an
// ordered list of typed parts (text and image references). The two cases are
// mutually exclusive; Parts == nil means the plain-text case.
type Content struct {
	Text  string
	Parts []ContentPart
}

// ContentPart is one element of structured message content.
type ContentPart struct {
	Type     string    `json:"type"`
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageRef `json:"image_url,omitempty"`
}

// ImageRef wraps an image URL or data URI.
type ImageRef struct {
	URL string `json:"url"`
}

const (
	PartTypeText     = "text"
	PartTypeImageURL = "image_url"
)

// TextContent returns a plain-text Content.
func TextContent(s string) Content {
	return Content{Text: s}
}

// PartsContent returns a structured Content.
func PartsContent(parts []ContentPart) Content {
	return Content{Parts: parts}
}

// IsStructured reports whether the content is the parts case.
func (c Content) IsStructured() bool {
	return c.Parts != nil
}

// PlainText resolves the content to display text: the string itself for the
// plain case, or the first text part for the structured case. An empty string
// means no text part was present.
func (c Content) PlainText() string {
	if !c.IsStructured() {
		return c.Text
	}
	for _, p := range c.Parts {
		if p.Type == PartTypeText && p.Text != "" {
			return p.Text
		}
	}
	return ""
}

// FirstImageURL returns the URL of the first image part, or "".
func (c Content) FirstImageURL() string {
	for _, p := range c.Parts {
		if p.Type == PartTypeImageURL && p.ImageURL != nil {
			return p.ImageURL.URL
		}
	}
	return ""
}

// MarshalJSON emits a bare string for plain content and a part array for
// structured content, matching the wire shape clients send.
func (c Content) MarshalJSON() ([]byte, error) {
	if c.IsStructured() {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either a JSON string or an array of typed parts.
// Anything else is rejected so malformed input is caught at the API boundary.
func (c *Content) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if strings.HasPrefix(trimmed, "[") {
		var parts []ContentPart
		if err := json.Unmarshal(data, &parts); err != nil {
			return err
		}
		c.Text = ""
		c.Parts = parts
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	c.Text = s
	c.Parts = nil
	return nil
}

// ParseStoredContent decodes the content column of a message row. Stored
// structured content is a JSON part array; everything that does not parse as
// one is treated as opaque plain text. The fallback is deliberate: the read
// path must never fail because of a malformed stored value.
func ParseStoredContent(raw string) Content {
	trimmed := strings.TrimSpace(raw)
	if strings.HasPrefix(trimmed, "[") {
		var parts []ContentPart
		if err := json.Unmarshal([]byte(raw), &parts); err == nil {
			return PartsContent(parts)
		}
	}
	return TextContent(raw)
}

// EncodeForStorage renders the content as the string stored in the content
// column: the raw text for the plain case, JSON for the parts case.
func (c Content) EncodeForStorage() (string, error) {
	if !c.IsStructured() {
		return c.Text, nil
	}
	b, err := json.Marshal(c.Parts)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
