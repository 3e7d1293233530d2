package translator

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/valpere/perekladach/internal/postprocess"
)

const (
	DefaultErnieURL   = "https://aip.baidubce.com"
	DefaultErnieModel = "ernie-4.0-8k"
)

var ernieEndpoints = map[string]string{
	"ernie-4.0-8k":   "completions_pro",
	"ernie-3.5-8k":   "completions",
	"ernie-speed-8k": "ernie_speed",
	"ernie-lite-8k":  "ernie_lite",
}

// ErnieService exchanges the API key / secret key pair for an access token on
// every call, then calls the wenxinworkshop chat endpoint for the model.
type ErnieService struct {
	client       *resty.Client
	streamClient *resty.Client
}

func NewErnieService() *ErnieService {
	return &ErnieService{
		client:       newRESTClient(30 * time.Second),
		streamClient: newRESTClient(60 * time.Second),
	}
}

func (s *ErnieService) Name() string {
	return "Ernie"
}

type ernieChunk struct {
	Result    string `json:"result"`
	IsEnd     bool   `json:"is_end"`
	ErrorCode int    `json:"error_code"`
	ErrorMsg  string `json:"error_msg"`
}

func ernieEndpoint(model string) string {
	if ep, ok := ernieEndpoints[model]; ok {
		return ep
	}
	return ernieEndpoints[DefaultErnieModel]
}

func (s *ErnieService) accessToken(ctx context.Context, base string, cfg ProviderConfig) (string, error) {
	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"grant_type":    "client_credentials",
			"client_id":     cfg.APIKey,
			"client_secret": cfg.SecretKey,
		}).
		Get(base + "/oauth/2.0/token")
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return "", err
	}

	var token struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(resp.Body(), &token); err != nil || token.AccessToken == "" {
		return "", Malformed(s.Name(), "no access token in response", err)
	}
	return token.AccessToken, nil
}

func (s *ErnieService) chatRequest(ctx context.Context, client *resty.Client, cfg ProviderConfig, req TranslateRequest, stream bool) (*resty.Request, string, error) {
	if cfg.APIKey == "" || cfg.SecretKey == "" {
		return nil, "", MissingConfig(s.Name(), MsgKeyPairRequired)
	}

	base := strings.TrimRight(firstNonEmpty(cfg.APIURL, DefaultErnieURL), "/")
	token, err := s.accessToken(ctx, base, cfg)
	if err != nil {
		return nil, "", err
	}

	prompt := fmt.Sprintf("Translate the following text to %s. Output ONLY the translated text, no explanations:\n\n%s", req.TargetLang, req.Text)
	body := map[string]any{
		"messages": []chatMessage{{Role: "user", Content: prompt}},
	}
	if stream {
		body["stream"] = true
	}

	url := fmt.Sprintf("%s/rpc/2.0/ai_custom/v1/wenxinworkshop/chat/%s", base, ernieEndpoint(firstNonEmpty(cfg.Model, DefaultErnieModel)))
	r := client.R().
		SetContext(ctx).
		SetQueryParam("access_token", token).
		SetHeader("Content-Type", "application/json").
		SetBody(body)
	return r, url, nil
}

func (s *ErnieService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	r, url, err := s.chatRequest(ctx, s.client, cfg, req, false)
	if err != nil {
		return fail(result, err)
	}
	resp, err := r.Post(url)
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return fail(result, err)
	}

	var chunk ernieChunk
	if err := json.Unmarshal(resp.Body(), &chunk); err != nil {
		return fail(result, Malformed(s.Name(), "failed to decode response", err))
	}
	if chunk.ErrorMsg != "" {
		return fail(result, Malformed(s.Name(), fmt.Sprintf("Ernie error %d: %s", chunk.ErrorCode, chunk.ErrorMsg), nil))
	}

	text := postprocess.Clean(chunk.Result)
	if text == "" {
		return fail(result, Malformed(s.Name(), "", nil))
	}
	result.Text = text
	return result, nil
}

func (s *ErnieService) TranslateStream(ctx context.Context, cfg ProviderConfig, req TranslateRequest, onDelta func(string)) (string, error) {
	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	r, url, err := s.chatRequest(ctx, s.streamClient, cfg, req, true)
	if err != nil {
		return "", err
	}
	resp, err := r.SetDoNotParseResponse(true).Post(url)
	if err != nil {
		return "", TransportFailure(s.Name(), err)
	}

	return consumeStream(s.Name(), resp, onDelta, func(data string) (string, bool) {
		if data == chatDoneMark {
			return "", true
		}
		var chunk ernieChunk
		if json.Unmarshal([]byte(data), &chunk) != nil {
			return "", false
		}
		return chunk.Result, chunk.IsEnd
	})
}
