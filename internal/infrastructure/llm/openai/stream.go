package openai

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/alphaintel/knowledge-core/internal/core/domain"
	"github.com/alphaintel/knowledge-core/internal/core/ports"
)

// CompleteStream opens a server-sent-events completion. The stream yields
// content increments; the resilience executor only guards the connection
// attempt, not the body read, so a broken stream surfaces to the consumer.
func (c *Client) CompleteStream(ctx context.Context, turns []domain.ChatTurn, opts domain.CompletionOptions) (ports.CompletionStream, error) {
	request := chatRequest{
		Model:       opts.Model,
		Messages:    toMessages(turns),
		Temperature: opts.Temperature,
		MaxTokens:   opts.MaxTokens,
		Stream:      true,
	}

	var resp *http.Response
	err := c.exec.Execute(ctx, "openai.chat", func(ctx context.Context) error {
		var postErr error
		resp, postErr = c.post(ctx, "/v1/chat/completions", request, "chat stream")
		return postErr
	}, classifyOpenAIError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded("chat stream", err)
	}

	return &sseStream{
		body:    resp.Body,
		scanner: bufio.NewScanner(resp.Body),
	}, nil
}

type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
}

// sseStream decodes "data:" lines until the [DONE] sentinel. It is not safe
// for concurrent use.
type sseStream struct {
	body    io.ReadCloser
	scanner *bufio.Scanner
	done    bool
}

func (s *sseStream) Recv() (string, error) {
	if s.done {
		return "", io.EOF
	}

	for s.scanner.Scan() {
		line := strings.TrimSpace(s.scanner.Text())
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
		if payload == "[DONE]" {
			s.done = true
			return "", io.EOF
		}

		var chunk streamChunk
		if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
			return "", fmt.Errorf("decode stream chunk: %w", err)
		}
		if len(chunk.Choices) == 0 || chunk.Choices[0].Delta.Content == "" {
			continue
		}
		return chunk.Choices[0].Delta.Content, nil
	}

	if err := s.scanner.Err(); err != nil {
		return "", fmt.Errorf("read stream: %w", err)
	}
	s.done = true
	return "", io.EOF
}

func (s *sseStream) Close() error {
	return s.body.Close()
}
