package translator

import (
	"context"
	"encoding/json"
	"time"

	"github.com/go-resty/resty/v2"
)

const DefaultGoogleFreeURL = "https://translate.googleapis.com/translate_a/single"

// GoogleFreeService uses the keyless web endpoint behind translate.google.com.
type GoogleFreeService struct {
	client *resty.Client
}

func NewGoogleFreeService() *GoogleFreeService {
	client := newRESTClient(10*time.Second).
		SetHeader("User-Agent", browserUserAgent).
		SetHeader("Accept", "*/*").
		SetHeader("Accept-Language", "en-US,en;q=0.9").
		SetHeader("Referer", "https://translate.google.com/")
	return &GoogleFreeService{client: client}
}

func (s *GoogleFreeService) Name() string {
	return "GoogleFree"
}

func (s *GoogleFreeService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	sourceLang := req.SourceLang
	if sourceLang == "" {
		sourceLang = "auto"
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	resp, err := s.client.R().
		SetContext(ctx).
		SetQueryParams(map[string]string{
			"client": "gtx",
			"sl":     sourceLang,
			"tl":     req.TargetLang,
			"dt":     "t",
			"q":      req.Text,
		}).
		Get(firstNonEmpty(cfg.APIURL, DefaultGoogleFreeURL))
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return fail(result, err)
	}

	text, err := joinSentences(resp.Body())
	if err != nil {
		return fail(result, Malformed(s.Name(), "invalid response format from Google Free API", err))
	}
	if text == "" {
		return fail(result, Malformed(s.Name(), "No translation found in response", nil))
	}

	result.Text = text
	return result, nil
}

// joinSentences concatenates the translated segment of every sentence in
// the first element of a translate_a/single payload:
// [[["translated","original",...],...],...]
func joinSentences(body []byte) (string, error) {
	var payload []json.RawMessage
	if err := json.Unmarshal(body, &payload); err != nil {
		return "", err
	}
	if len(payload) == 0 {
		return "", nil
	}

	var sentences []json.RawMessage
	if err := json.Unmarshal(payload[0], &sentences); err != nil {
		return "", err
	}

	var out string
	for _, raw := range sentences {
		var parts []any
		if err := json.Unmarshal(raw, &parts); err != nil || len(parts) == 0 {
			continue
		}
		if s, ok := parts[0].(string); ok {
			out += s
		}
	}
	return out, nil
}
