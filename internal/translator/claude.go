package translator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/valpere/perekladach/internal/postprocess"
)

const (
	DefaultClaudeURL   = "https://api.anthropic.com/v1/messages"
	DefaultClaudeModel = "claude-3-haiku-20240307"

	anthropicVersion = "2023-06-01"
	claudeMaxTokens  = 1024
)

// ClaudeService talks to the Anthropic messages API, which keeps the system
// instruction outside the message list and streams typed events.
type ClaudeService struct {
	client       *resty.Client
	streamClient *resty.Client
}

func NewClaudeService() *ClaudeService {
	return &ClaudeService{
		client:       newRESTClient(30 * time.Second),
		streamClient: newRESTClient(60 * time.Second),
	}
}

func (s *ClaudeService) Name() string {
	return "Claude"
}

type claudeRequest struct {
	Model     string        `json:"model"`
	MaxTokens int           `json:"max_tokens"`
	System    string        `json:"system"`
	Messages  []chatMessage `json:"messages"`
	Stream    bool          `json:"stream,omitempty"`
}

type claudeEvent struct {
	Type  string `json:"type"`
	Delta struct {
		Text string `json:"text"`
	} `json:"delta"`
}

func (s *ClaudeService) request(ctx context.Context, client *resty.Client, cfg ProviderConfig, req TranslateRequest, stream bool) *resty.Request {
	return client.R().
		SetContext(ctx).
		SetHeader("x-api-key", cfg.APIKey).
		SetHeader("anthropic-version", anthropicVersion).
		SetHeader("Content-Type", "application/json").
		SetBody(claudeRequest{
			Model:     firstNonEmpty(cfg.Model, DefaultClaudeModel),
			MaxTokens: claudeMaxTokens,
			System:    translationInstruction(req.TargetLang),
			Messages:  []chatMessage{{Role: "user", Content: req.Text}},
			Stream:    stream,
		})
}

func (s *ClaudeService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if cfg.APIKey == "" {
		return fail(result, MissingConfig(s.Name(), MsgNoAPIKey))
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := s.request(ctx, s.client, cfg, req, false).Post(firstNonEmpty(cfg.APIURL, DefaultClaudeURL))
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return fail(result, err)
	}

	var msg struct {
		Content []struct {
			Text string `json:"text"`
		} `json:"content"`
	}
	if err := json.Unmarshal(resp.Body(), &msg); err != nil {
		return fail(result, Malformed(s.Name(), "failed to decode response", err))
	}
	if len(msg.Content) == 0 {
		return fail(result, Malformed(s.Name(), "", nil))
	}

	text := postprocess.Clean(msg.Content[0].Text)
	if text == "" {
		return fail(result, Malformed(s.Name(), "", nil))
	}
	result.Text = text
	return result, nil
}

func (s *ClaudeService) TranslateStream(ctx context.Context, cfg ProviderConfig, req TranslateRequest, onDelta func(string)) (string, error) {
	if cfg.APIKey == "" {
		return "", MissingConfig(s.Name(), MsgNoAPIKey)
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := s.request(ctx, s.streamClient, cfg, req, true).
		SetHeader("Accept", "text/event-stream").
		SetDoNotParseResponse(true).
		Post(firstNonEmpty(cfg.APIURL, DefaultClaudeURL))
	if err != nil {
		return "", TransportFailure(s.Name(), err)
	}

	return consumeStream(s.Name(), resp, onDelta, func(data string) (string, bool) {
		if data == chatDoneMark {
			return "", true
		}
		var ev claudeEvent
		if json.Unmarshal([]byte(data), &ev) != nil {
			return "", false
		}
		switch ev.Type {
		case "message_stop":
			return "", true
		case "content_block_delta":
			return ev.Delta.Text, false
		}
		return "", false
	})
}
