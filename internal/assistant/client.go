// ABOUTME: AI backend adapter over the OpenAI Chat Completions API
// ABOUTME: Owns thread references and the bounded per-thread AI context

package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/google/uuid"
	openai "github.com/sashabaranov/go-openai"
)

// ChatClient captures the subset of the go-openai client used by the adapter.
type ChatClient interface {
	CreateChatCompletion(ctx context.Context, request openai.ChatCompletionRequest) (
		openai.ChatCompletionResponse, error)
}

// Options configures the assistant adapter.
type Options struct {
	Client       ChatClient
	Model        string
	SystemPrompt string
	HistoryLimit int // messages of AI context kept per thread
}

// Client implements the AI backend contract: opaque thread references with
// a bounded conversation context per thread, answered via chat completions.
// Session history is a separate concern owned by the store; the context
// here is what the model actually sees.
type Client struct {
	chat         ChatClient
	model        string
	systemPrompt string
	historyLimit int
	logger       *slog.Logger

	mu       sync.Mutex
	byUser   map[string]string // userID -> threadRef
	contexts map[string][]openai.ChatCompletionMessage
}

// New builds an assistant client from the provided options.
func New(opts Options) (*Client, error) {
	if opts.Client == nil {
		return nil, errors.New("chat client is required")
	}
	if opts.Model == "" {
		return nil, errors.New("model is required")
	}
	limit := opts.HistoryLimit
	if limit <= 0 {
		limit = 10
	}
	return &Client{
		chat:         opts.Client,
		model:        opts.Model,
		systemPrompt: opts.SystemPrompt,
		historyLimit: limit,
		logger:       slog.Default().With("component", "assistant"),
		byUser:       make(map[string]string),
		contexts:     make(map[string][]openai.ChatCompletionMessage),
	}, nil
}

// NewFromAPIKey constructs a client using the default go-openai HTTP client.
func NewFromAPIKey(apiKey string, opts Options) (*Client, error) {
	if apiKey == "" {
		return nil, errors.New("api key is required")
	}
	opts.Client = openai.NewClient(apiKey)
	return New(opts)
}

// GetOrCreateThread returns the thread reference for userID, creating one
// lazily on first use. References are opaque to callers.
func (c *Client) GetOrCreateThread(ctx context.Context, userID string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ref, ok := c.byUser[userID]; ok {
		return ref, nil
	}

	ref := uuid.New().String()
	c.byUser[userID] = ref
	c.contexts[ref] = nil
	c.logger.Debug("thread created", "user_id", userID, "thread_ref", ref)
	return ref, nil
}

// Ask sends content on the given thread and returns the assistant's reply.
// The thread context is only extended after a successful exchange, so a
// failed call leaves the context unchanged. Unknown thread references
// (e.g. after a restart) start from an empty context.
func (c *Client) Ask(ctx context.Context, threadRef, content string) (string, error) {
	if threadRef == "" {
		return "", errors.New("thread reference is required")
	}

	c.mu.Lock()
	history := make([]openai.ChatCompletionMessage, len(c.contexts[threadRef]))
	copy(history, c.contexts[threadRef])
	c.mu.Unlock()

	messages := make([]openai.ChatCompletionMessage, 0, len(history)+2)
	if c.systemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: c.systemPrompt,
		})
	}
	messages = append(messages, history...)
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: content,
	})

	resp, err := c.chat.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    c.model,
		Messages: messages,
	})
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", errors.New("chat completion returned no choices")
	}

	reply := strings.TrimSpace(resp.Choices[0].Message.Content)

	c.mu.Lock()
	turn := append(c.contexts[threadRef],
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleUser, Content: content},
		openai.ChatCompletionMessage{Role: openai.ChatMessageRoleAssistant, Content: reply},
	)
	if len(turn) > c.historyLimit {
		turn = turn[len(turn)-c.historyLimit:]
	}
	c.contexts[threadRef] = turn
	c.mu.Unlock()

	return reply, nil
}
