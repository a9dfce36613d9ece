package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"truthlens-api/config"

	openai "github.com/sashabaranov/go-openai"
)

var ErrModelUnavailable = errors.New("language model not configured")

type CompletionRequest struct {
	System      string
	Prompt      string
	MaxTokens   int
	Temperature float32
}

// ModelClient is the chat completion backend used by claim extraction and
// verdict synthesis.
type ModelClient interface {
	Available() bool
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

type LLMClient struct {
	client    *openai.Client
	model     string
	timeout   time.Duration
	available bool
}

func NewLLMClient(cfg config.LLMConfig) *LLMClient {
	l := &LLMClient{
		model:     cfg.Model,
		timeout:   time.Duration(cfg.TimeoutSeconds) * time.Second,
		available: cfg.Available(),
	}
	if !l.available {
		return l
	}
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	l.client = openai.NewClientWithConfig(clientCfg)
	return l
}

func (l *LLMClient) Available() bool {
	return l != nil && l.available
}

// Complete sends one chat completion and returns the assistant text. Transport
// failures, non-2xx replies and undecodable bodies all surface as errors.
func (l *LLMClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if !l.Available() {
		return "", ErrModelUnavailable
	}
	if l.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, l.timeout)
		defer cancel()
	}

	messages := make([]openai.ChatCompletionMessage, 0, 2)
	if req.System != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: req.System,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Prompt,
	})

	resp, err := l.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       l.model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion: empty choices")
	}
	return resp.Choices[0].Message.Content, nil
}
