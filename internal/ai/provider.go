package ai

import (
	"context"
	"errors"
)

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// ErrNotConfigured means the completion gateway has no usable credential.
var ErrNotConfigured = errors.New("completion gateway credential is not configured")

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Provider interface {
	Chat(ctx context.Context, messages []Message) (string, error)
}

// JSONProvider is an optional interface for providers that can constrain
// their output to a single JSON object.
type JSONProvider interface {
	ChatJSON(ctx context.Context, messages []Message) (string, error)
}

// ChatJSON uses the provider's JSON mode when it has one and plain Chat otherwise.
func ChatJSON(ctx context.Context, p Provider, messages []Message) (string, error) {
	if jp, ok := p.(JSONProvider); ok {
		return jp.ChatJSON(ctx, messages)
	}
	return p.Chat(ctx, messages)
}
