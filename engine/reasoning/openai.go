package reasoning

import (
	"context"
	"encoding/json"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sashabaranov/go-openai"
)

// OpenAIConfig configures the OpenAI-compatible backend. Any provider that
// speaks the chat-completions protocol works through BaseURL.
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int // seconds, default 60
}

type openAIService struct {
	client  *openai.Client
	model   string
	timeout int
}

// NewOpenAI creates a reasoning service backed by an OpenAI-compatible API.
func NewOpenAI(cfg OpenAIConfig) (Service, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("api key required")
	}
	if cfg.Model == "" {
		return nil, errors.New("model required")
	}

	clientConfig := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientConfig.BaseURL = cfg.BaseURL
	}
	clientConfig.HTTPClient = &http.Client{
		Transport: &http.Transport{
			DialContext: (&net.Dialer{
				Timeout:   10 * time.Second,
				KeepAlive: 30 * time.Second,
			}).DialContext,
			MaxIdleConns:        8,
			IdleConnTimeout:     90 * time.Second,
			TLSHandshakeTimeout: 10 * time.Second,
		},
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 60
	}

	return &openAIService{
		client:  openai.NewClientWithConfig(clientConfig),
		model:   cfg.Model,
		timeout: timeout,
	}, nil
}

func (s *openAIService) Name() string {
	return "openai:" + s.model
}

func (s *openAIService) Reason(ctx context.Context, req Request) (*Answer, error) {
	ctx, cancel := context.WithTimeout(ctx, time.Duration(s.timeout)*time.Second)
	defer cancel()

	startTime := time.Now()

	resp, err := s.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: s.model,
		// Low temperature keeps votes stable across consensus rounds.
		Temperature: 0.1,
		MaxTokens:   512,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: req.System},
			{Role: openai.ChatMessageRoleUser, Content: req.Prompt},
		},
	})
	if err != nil {
		return nil, errors.Wrap(err, "reasoning request failed")
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("empty response from reasoning backend")
	}

	answer, err := parseAnswer(resp.Choices[0].Message.Content)
	if err != nil {
		return nil, err
	}

	slog.Debug("reasoning: answer received",
		"model", s.model,
		"action", answer.Action,
		"confidence", answer.Confidence,
		"duration_ms", time.Since(startTime).Milliseconds())

	return answer, nil
}

// parseAnswer extracts the structured answer from the model output. Models
// occasionally wrap JSON in a fenced code block; strip it before decoding.
func parseAnswer(content string) (*Answer, error) {
	content = strings.TrimSpace(content)
	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(content, "```")
		content = strings.TrimSpace(content)
	}

	answer := &Answer{}
	if err := json.Unmarshal([]byte(content), answer); err != nil {
		return nil, errors.Wrap(err, "malformed reasoning answer")
	}
	return answer, nil
}
