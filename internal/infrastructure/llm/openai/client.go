package openai

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/infrastructure/resilience"
)

const (
	// maxInputChars is the silent truncation bound applied to every
	// embedding input before it leaves the process.
	maxInputChars = 8000

	// embedBatchSize caps how many inputs go into one provider call.
	embedBatchSize = 100
)

type Config struct {
	BaseURL    string
	APIKey     string
	EmbedModel string

	// EmbedRatePerSecond throttles embedding calls on the ingestion path.
	// Zero disables the limiter.
	EmbedRatePerSecond float64
	EmbedBurst         int

	Timeout time.Duration
}

// Client talks to the OpenAI HTTP API and implements both the embedding and
// the completion provider contracts. All outbound calls run through the
// resilience executor.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	httpClient *http.Client
	exec       *resilience.Executor
	limiter    *rate.Limiter
}

func New(cfg Config, exec *resilience.Executor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	var limiter *rate.Limiter
	if cfg.EmbedRatePerSecond > 0 {
		burst := cfg.EmbedBurst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.EmbedRatePerSecond), burst)
	}

	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		embedModel: cfg.EmbedModel,
		httpClient: &http.Client{Timeout: timeout},
		exec:       exec,
		limiter:    limiter,
	}
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingResponse struct {
	Data []embeddingData `json:"data"`
}

func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("openai embed: empty embedding result")
	}
	return vectors[0], nil
}

// EmbedBatch embeds texts in provider-sized sub-batches and concatenates the
// results in input order. A failed sub-batch fails the whole call.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	inputs := make([]string, len(texts))
	for i, t := range texts {
		inputs[i] = truncateInput(t)
	}

	out := make([][]float32, 0, len(inputs))
	for start := 0; start < len(inputs); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(inputs) {
			end = len(inputs)
		}

		vectors, err := c.embedBatch(ctx, inputs[start:end])
		if err != nil {
			return nil, wrapTemporaryIfNeeded("embed", err)
		}
		out = append(out, vectors...)
	}
	return out, nil
}

func (c *Client) embedBatch(ctx context.Context, inputs []string) ([][]float32, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	request := map[string]any{
		"model": c.embedModel,
		"input": inputs,
	}

	var response embeddingResponse
	err := c.exec.Execute(ctx, "openai.embeddings", func(ctx context.Context) error {
		response = embeddingResponse{}
		return c.postJSON(ctx, "/v1/embeddings", request, &response, "embed")
	}, classifyOpenAIError)
	if err != nil {
		return nil, err
	}

	if len(response.Data) != len(inputs) {
		return nil, fmt.Errorf("openai embed: got %d vectors for %d inputs", len(response.Data), len(inputs))
	}

	// The provider documents data as input-ordered; index makes it explicit.
	vectors := make([][]float32, len(inputs))
	for _, item := range response.Data {
		if item.Index < 0 || item.Index >= len(vectors) {
			return nil, fmt.Errorf("openai embed: vector index %d out of range", item.Index)
		}
		vectors[item.Index] = item.Embedding
	}
	return vectors, nil
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Stream      bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

func (c *Client) Complete(ctx context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (*domain.Completion, error) {
	request := chatRequest{
		Model:       opts.Model,
		Messages:    toMessages(turns),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
	}

	var response chatResponse
	err := c.exec.Execute(ctx, "openai.chat", func(ctx context.Context) error {
		response = chatResponse{}
		return c.postJSON(ctx, "/v1/chat/completions", request, &response, "chat")
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("chat", err)
	}

	if len(response.Choices) == 0 {
		return nil, fmt.Errorf("openai chat: response carries no choices")
	}

	return &domain.Completion{
		Content:          response.Choices[0].Message.Content,
		PromptTokens:     response.Usage.PromptTokens,
		CompletionTokens: response.Usage.CompletionTokens,
	}, nil
}

func toMessages(turns []domain.ChatTurn) []chatMessage {
	messages := make([]chatMessage, len(turns))
	for i, turn := range turns {
		messages[i] = chatMessage{Role: string(turn.Role), Content: turn.Content}
	}
	return messages
}

func truncateInput(text string) string {
	runes := []rune(text)
	if len(runes) <= maxInputChars {
		return text
	}
	return string(runes[:maxInputChars])
}
