package translator

import (
	"context"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"golang.org/x/text/language"
)

const (
	DefaultDeepLURL = "https://api-free.deepl.com/v2/translate"
	deeplEnvKey     = "DEEPL_API_KEY"
	deeplFallback   = "EN-US"
)

var deeplTargets = map[string]string{
	"zh": "ZH",
	"en": "EN-US",
	"ja": "JA",
	"ko": "KO",
	"fr": "FR",
	"de": "DE",
	"es": "ES",
	"ru": "RU",
}

// DeepLService is the classical MT adapter. It has no credential
// precondition at resolution time: the key comes from the provider config,
// DEEPL_API_KEY or the .env file, in that order.
type DeepLService struct {
	dotenvPath string
	client     *resty.Client
}

func NewDeepLService() *DeepLService {
	return &DeepLService{
		dotenvPath: defaultDotenv,
		client:     newRESTClient(10 * time.Second),
	}
}

func (s *DeepLService) Name() string {
	return "DeepL"
}

// DeepLTargetCode maps a language identifier onto DeepL's target table,
// falling back to EN-US for anything it does not list.
func DeepLTargetCode(lang string) string {
	tag, err := language.Parse(strings.TrimSpace(lang))
	if err != nil {
		return deeplFallback
	}
	base, _ := tag.Base()
	if code, ok := deeplTargets[base.String()]; ok {
		return code
	}
	return deeplFallback
}

func (s *DeepLService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	apiKey := lookupCredential(cfg.APIKey, deeplEnvKey, s.dotenvPath)
	if apiKey == "" {
		return fail(result, MissingConfig(s.Name(), deeplEnvKey+" not found"))
	}

	ctx, cancel := withTimeout(ctx, cfg.Timeout)
	defer cancel()

	form := map[string]string{
		"text":        req.Text,
		"target_lang": DeepLTargetCode(req.TargetLang),
	}
	if src := strings.TrimSpace(req.SourceLang); src != "" && !strings.EqualFold(src, "auto") {
		if tag, err := language.Parse(src); err == nil {
			base, _ := tag.Base()
			form["source_lang"] = strings.ToUpper(base.String())
		}
	}

	resp, err := s.client.R().
		SetContext(ctx).
		SetHeader("Authorization", "DeepL-Auth-Key "+apiKey).
		SetFormData(form).
		Post(firstNonEmpty(cfg.APIURL, DefaultDeepLURL))
	if err := checkResponse(s.Name(), resp, err); err != nil {
		return fail(result, err)
	}

	var deeplResp struct {
		Translations []struct {
			Text string `json:"text"`
		} `json:"translations"`
	}
	if err := json.Unmarshal(resp.Body(), &deeplResp); err != nil {
		return fail(result, Malformed(s.Name(), "failed to decode response", err))
	}
	if len(deeplResp.Translations) == 0 || deeplResp.Translations[0].Text == "" {
		return fail(result, Malformed(s.Name(), "", nil))
	}

	result.Text = deeplResp.Translations[0].Text
	return result, nil
}
