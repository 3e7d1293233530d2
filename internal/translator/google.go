package translator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	translate "cloud.google.com/go/translate"
	"golang.org/x/text/language"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
)

const (
	googleEnvKey         = "GOOGLE_TRANSLATE_API_KEY"
	googleDefaultTimeout = 10 * time.Second
)

// GoogleService calls the paid Cloud Translation API through the official
// client. An API key is looked up like DeepL's; a service-account file in
// the "credentials" config key takes precedence over it.
type GoogleService struct {
	dotenvPath string
}

func NewGoogleService() *GoogleService {
	return &GoogleService{dotenvPath: defaultDotenv}
}

func (s *GoogleService) Name() string {
	return "Google"
}

func (s *GoogleService) clientOptions(cfg ProviderConfig) ([]option.ClientOption, error) {
	var opts []option.ClientOption
	if credentials := cfg.ExtraString("credentials"); credentials != "" {
		opts = append(opts, option.WithCredentialsFile(credentials))
	} else {
		apiKey := lookupCredential(cfg.APIKey, googleEnvKey, s.dotenvPath)
		if apiKey == "" {
			return nil, MissingConfig(s.Name(), "Google Translate API key not configured")
		}
		opts = append(opts, option.WithAPIKey(apiKey))
	}
	if cfg.APIURL != "" {
		opts = append(opts, option.WithEndpoint(cfg.APIURL))
	}
	return opts, nil
}

func (s *GoogleService) Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error) {
	result := &Result{Name: s.Name()}
	start := time.Now()
	defer func() { result.Latency = time.Since(start) }()

	target, err := language.Parse(req.TargetLang)
	if err != nil {
		return fail(result, Malformed(s.Name(), "invalid target language", err))
	}

	opts, err := s.clientOptions(cfg)
	if err != nil {
		return fail(result, err)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = googleDefaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	client, err := translate.NewClient(ctx, opts...)
	if err != nil {
		return fail(result, TransportFailure(s.Name(), fmt.Errorf("failed to create client: %w", err)))
	}
	defer client.Close()

	callOpts := &translate.Options{Format: translate.Text}
	if src := strings.TrimSpace(req.SourceLang); src != "" && !strings.EqualFold(src, "auto") {
		if tag, err := language.Parse(src); err == nil {
			callOpts.Source = tag
		}
	}

	translations, err := client.Translate(ctx, []string{req.Text}, target, callOpts)
	if err != nil {
		var apiErr *googleapi.Error
		if errors.As(err, &apiErr) {
			return fail(result, Rejected(s.Name(), apiErr.Code, firstNonEmpty(apiErr.Body, apiErr.Message)))
		}
		return fail(result, TransportFailure(s.Name(), err))
	}
	if len(translations) == 0 || translations[0].Text == "" {
		return fail(result, Malformed(s.Name(), "", nil))
	}

	result.Text = translations[0].Text
	return result, nil
}
