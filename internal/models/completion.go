// Package models defines the completion wire contract shared by the gateway
// client and the diagnostic endpoint.
package models

import "strings"

// Message roles for completion requests.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ContentBlockTypeText marks content blocks that carry text. Blocks of any
// other type are ignored downstream, not treated as errors.
const ContentBlockTypeText = "text"

// CompletionMessage is a single entry in a completion request.
type CompletionMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// CompletionRequest is the outbound payload of the diagnostic endpoint:
// a system instruction plus an ordered list of messages.
type CompletionRequest struct {
	System   string              `json:"system"`
	Messages []CompletionMessage `json:"messages"`
}

// Validate checks the request invariants at the endpoint boundary.
func (r CompletionRequest) Validate() error {
	if strings.TrimSpace(r.System) == "" {
		return ErrEmptySystemInstruction
	}
	if len(r.Messages) == 0 {
		return ErrEmptyUserMessage
	}
	for _, m := range r.Messages {
		if strings.TrimSpace(m.Content) == "" {
			return ErrEmptyUserMessage
		}
	}
	return nil
}

// ContentBlock is one typed block in a completion envelope.
type ContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

// CompletionEnvelope is the structured response returned by the completion
// service: an ordered list of typed content blocks.
type CompletionEnvelope struct {
	Content []ContentBlock `json:"content"`
}

// JoinedText concatenates the text of all text-kind blocks in order, joined
// by newline. Non-text blocks contribute nothing.
func (e CompletionEnvelope) JoinedText() string {
	var parts []string
	for _, block := range e.Content {
		if block.Type == ContentBlockTypeText && block.Text != "" {
			parts = append(parts, block.Text)
		}
	}
	return strings.Join(parts, "\n")
}
