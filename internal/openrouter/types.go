// Soul Bloom Diary - Journaling Companion API
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/soulbloom

package openrouter

import (
	"github.com/goccy/go-json"
)

// Message roles.
const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat message. Content is either plain text or a list of
// multimodal parts.
type Message struct {
	Role    string  `json:"role"`
	Content Content `json:"content"`
}

// Content holds message content. When Parts is set it is sent as an array,
// otherwise Text is sent as a string.
type Content struct {
	Text  string
	Parts []ContentPart
}

// MarshalJSON encodes Content as a string or an array of parts.
func (c Content) MarshalJSON() ([]byte, error) {
	if len(c.Parts) > 0 {
		return json.Marshal(c.Parts)
	}
	return json.Marshal(c.Text)
}

// UnmarshalJSON accepts either form.
func (c *Content) UnmarshalJSON(data []byte) error {
	if len(data) > 0 && data[0] == '[' {
		c.Text = ""
		return json.Unmarshal(data, &c.Parts)
	}
	c.Parts = nil
	return json.Unmarshal(data, &c.Text)
}

// String returns the text content, joining text parts.
func (c Content) String() string {
	if len(c.Parts) == 0 {
		return c.Text
	}
	var out string
	for _, p := range c.Parts {
		if p.Type == "text" {
			if out != "" {
				out += "\n"
			}
			out += p.Text
		}
	}
	return out
}

// ContentPart is a multimodal content element.
type ContentPart struct {
	Type     string    `json:"type"` // "text" or "image_url"
	Text     string    `json:"text,omitempty"`
	ImageURL *ImageURL `json:"image_url,omitempty"`
}

// ImageURL references an image by URL or data URL.
type ImageURL struct {
	URL    string `json:"url"`
	Detail string `json:"detail,omitempty"`
}

// TextMessage builds a plain text message.
func TextMessage(role, text string) Message {
	return Message{Role: role, Content: Content{Text: text}}
}

// ImageMessage builds a user message carrying an instruction and one image.
func ImageMessage(text, imageURL string) Message {
	return Message{
		Role: RoleUser,
		Content: Content{Parts: []ContentPart{
			{Type: "text", Text: text},
			{Type: "image_url", ImageURL: &ImageURL{URL: imageURL}},
		}},
	}
}

// ResponseFormat requests structured output from models that support it.
type ResponseFormat struct {
	Type string `json:"type"` // "json_object"
}

// Request is a chat completion request.
type Request struct {
	Model          string          `json:"model"`
	Messages       []Message       `json:"messages"`
	Temperature    *float64        `json:"temperature,omitempty"`
	TopP           *float64        `json:"top_p,omitempty"`
	MaxTokens      int             `json:"max_tokens,omitempty"`
	Stream         bool            `json:"stream,omitempty"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Stop           []string        `json:"stop,omitempty"`
}

// WithModel returns a shallow copy of r targeting model.
func (r Request) WithModel(model string) Request {
	r.Model = model
	return r
}

// Float returns a pointer to f for the optional sampling fields.
func Float(f float64) *float64 { return &f }

// Usage is token accounting reported by the gateway.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// Completion is a non-streaming result.
type Completion struct {
	ID           string
	Model        string // model that actually served the request
	Content      string
	FinishReason string
	Usage        Usage
}

type chatResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Choices []struct {
		Message struct {
			Role    string  `json:"role"`
			Content Content `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
	Usage Usage `json:"usage"`
}
