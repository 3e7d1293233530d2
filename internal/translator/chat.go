package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/valpere/perekladach/internal/postprocess"
)

const (
	DefaultOpenAIURL   = "https://api.openai.com/v1/chat/completions"
	DefaultOpenAIModel = "gpt-3.5-turbo"

	chatMaxTokens = 1000
	chatDoneMark  = "[DONE]"
)

// ChatService speaks the OpenAI chat-completions shape. One instance serves
// every OpenAI-compatible provider; only the display name and the fallback
// endpoint differ.
type ChatService struct {
	name         string
	defaultURL   string
	defaultModel string
	client       *resty.Client
	streamClient *resty.Client
}

func NewChatService(name, defaultURL, defaultModel string) *ChatService {
	if defaultURL == "" {
		defaultURL = DefaultOpenAIURL
	}
	if defaultModel == "" {
		defaultModel = DefaultOpenAIModel
	}
	return &ChatService{
		name:         name,
		defaultURL:   defaultURL,
		defaultModel: defaultModel,
		client:       newRESTClient(15 * time.Second),
		streamClient: newRESTClient(60 * time.Second),
	}
}

func (s *ChatService) Name() string {
	return s.name
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens"`
	Stream    bool          `json:"stream,omitempty"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

type chatStreamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (c chatStreamChunk) fragment() string {
	if len(c.Choices) == 0 {
		return ""
	}
	if c.Choices[0].Delta.Content != "" {
		return c.Choices[0].Delta.Content
	}
	return c.Choices[0].Message.Content
}

func translationInstruction(targetLang string) string {
	return fmt.Sprintf("You are a translation engine. Translate the following text to %s. Output ONLY the translated text, no explanations.", targetLang)
}

func (s *ChatService) newRequest(cfg ProviderConfig, req TranslateRequest, stream bool) (string, chatRequest) {
	url := firstNonEmpty(cfg.APIURL, s.defaultURL)
	return url, chatRequest{
		Model: firstNonEmpty(cfg.Model, s.defaultModel),
		Messages: []chatMessage{
			{Role: "system", Content: translationInstruction(req.TargetLang)},
			{Role: "user", Content: req.Text},
		},
		MaxTokens: chatMaxTokens,
		Stream:    stream,
	}
}

func (s *ChatService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	if cfg.APIKey == "" {
		return fail(result, MissingConfig(s.name, MsgNoAPIKey))
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	url, body := s.newRequest(cfg, req, false)
	resp, err := s.client.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetBody(body).
		Post(url)
	if err := checkResponse(s.name, resp, err); err != nil {
		return fail(result, err)
	}

	var chatResp chatResponse
	if err := json.Unmarshal(resp.Body(), &chatResp); err != nil {
		return fail(result, Malformed(s.name, "failed to decode response", err))
	}
	if len(chatResp.Choices) == 0 {
		return fail(result, Malformed(s.name, "", nil))
	}

	text := postprocess.Clean(chatResp.Choices[0].Message.Content)
	if text == "" {
		return fail(result, Malformed(s.name, "", nil))
	}
	result.Text = text
	return result, nil
}

func (s *ChatService) TranslateStream(ctx context.Context, cfg ProviderConfig, req TranslateRequest, onDelta func(string)) (string, error) {
	if cfg.APIKey == "" {
		return "", MissingConfig(s.name, MsgNoAPIKey)
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	url, body := s.newRequest(cfg, req, true)
	resp, err := s.streamClient.R().
		SetContext(ctx).
		SetAuthToken(cfg.APIKey).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "text/event-stream").
		SetBody(body).
		SetDoNotParseResponse(true).
		Post(url)
	if err != nil {
		return "", TransportFailure(s.name, err)
	}

	return consumeStream(s.name, resp, onDelta, func(data string) (string, bool) {
		if data == chatDoneMark {
			return "", true
		}
		var chunk chatStreamChunk
		if json.Unmarshal([]byte(data), &chunk) != nil {
			return "", false
		}
		return chunk.fragment(), false
	})
}

// consumeStream drains an event-stream response. parse turns one data
// payload into a fragment and reports whether the end marker was reached.
func consumeStream(service string, resp *resty.Response, onDelta func(string), parse func(data string) (string, bool)) (string, error) {
	raw := resp.RawBody()
	defer raw.Close()

	if !resp.IsSuccess() {
		detail, _ := io.ReadAll(raw)
		return "", Rejected(service, resp.StatusCode(), string(detail))
	}

	var full strings.Builder
	err := readEventStream(raw, func(data string) bool {
		fragment, done := parse(data)
		if fragment != "" {
			onDelta(fragment)
			full.WriteString(fragment)
		}
		return done
	})
	if err != nil {
		return "", TransportFailure(service, fmt.Errorf("stream interrupted: %w", err))
	}
	if full.Len() == 0 {
		return "", Malformed(service, "", nil)
	}
	return full.String(), nil
}
