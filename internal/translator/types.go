package translator

import (
	"context"
	"time"
)

// Request is one caller-level translation job. Config is keyed by the
// lower-cased provider name; each value is that provider's raw settings.
type Request struct {
	Text       string                    `json:"text"`
	SourceLang string                    `json:"source_lang"`
	TargetLang string                    `json:"target_lang"`
	Services   []string                  `json:"services,omitempty"`
	Config     map[string]map[string]any `json:"config,omitempty"`
}

// Clone returns a deep copy so that in-flight provider tasks never observe
// later mutations made by the caller.
func (r Request) Clone() Request {
	out := Request{
		Text:       r.Text,
		SourceLang: r.SourceLang,
		TargetLang: r.TargetLang,
	}
	if r.Services != nil {
		out.Services = append([]string(nil), r.Services...)
	}
	if r.Config != nil {
		out.Config = make(map[string]map[string]any, len(r.Config))
		for name, slice := range r.Config {
			cp := make(map[string]any, len(slice))
			for k, v := range slice {
				cp[k] = v
			}
			out.Config[name] = cp
		}
	}
	return out
}

// ProviderConfig is the typed per-provider slice of Request.Config after
// registry defaults have been merged in.
type ProviderConfig struct {
	APIKey    string         `mapstructure:"apikey" json:"apiKey,omitempty"`
	SecretKey string         `mapstructure:"secretkey" json:"secretKey,omitempty"`
	APIURL    string         `mapstructure:"apiurl" json:"apiUrl,omitempty"`
	Model     string         `mapstructure:"model" json:"model,omitempty"`
	Timeout   time.Duration  `mapstructure:"timeout" json:"timeout,omitempty"`
	Extra     map[string]any `mapstructure:",remain" json:"-"`
}

// ExtraString returns a string value from the unrecognised keys, if any.
func (c ProviderConfig) ExtraString(key string) string {
	if c.Extra == nil {
		return ""
	}
	s, _ := c.Extra[key].(string)
	return s
}

type TranslateRequest struct {
	Text       string `json:"text"`
	SourceLang string `json:"source_lang"`
	TargetLang string `json:"target_lang"`
}

// Result is the outcome of one provider. Error is set only when Text is not
// a usable translation.
type Result struct {
	Name    string        `json:"name"`
	Text    string        `json:"text"`
	Error   string        `json:"error,omitempty"`
	Latency time.Duration `json:"-"`
}

func (r Result) Failed() bool {
	return r.Error != "" || r.Text == ""
}

// Response lists provider results in completion order.
type Response struct {
	Results []Result `json:"results"`
}

func (r *Response) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if !res.Failed() {
			n++
		}
	}
	return n
}

// StreamEvent is one unit delivered to a streaming sink. The final event for
// a request has an empty Service and AllDone set.
type StreamEvent struct {
	RequestID string `json:"request_id"`
	Service   string `json:"service"`
	Delta     string `json:"delta,omitempty"`
	Text      string `json:"text,omitempty"`
	Error     string `json:"error,omitempty"`
	Done      bool   `json:"done"`
	AllDone   bool   `json:"all_done"`
}

// Translator converts text through one provider's wire protocol.
type Translator interface {
	Name() string
	Translate(ctx context.Context, cfg ProviderConfig, req TranslateRequest) (*Result, error)
}

// StreamTranslator is implemented by providers that can emit partial output.
// onDelta receives non-empty fragments in arrival order before
// TranslateStream returns; the returned text is their concatenation.
type StreamTranslator interface {
	Translator
	TranslateStream(ctx context.Context, cfg ProviderConfig, req TranslateRequest, onDelta func(string)) (string, error)
}
