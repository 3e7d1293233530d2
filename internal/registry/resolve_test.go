package registry

import (
	"errors"
	"testing"
	"time"

	"github.com/valpere/perekladach/internal/translator"
)

func lookup(t *testing.T, name string) Entry {
	t.Helper()
	e, ok := Default().Lookup(name)
	if !ok {
		t.Fatalf("Lookup(%q) not found", name)
	}
	return e
}

func TestResolve_APIKeyRequired(t *testing.T) {
	e := lookup(t, "openai")

	_, ready, err := Resolve(nil, "OpenAI", e)
	if ready {
		t.Fatal("expected not ready without apiKey")
	}
	var te *translator.Error
	if !errors.As(err, &te) {
		t.Fatalf("expected *translator.Error, got %T", err)
	}
	if te.Kind != translator.KindConfigurationMissing {
		t.Errorf("Kind = %v, want %v", te.Kind, translator.KindConfigurationMissing)
	}
	if err.Error() != "No API key configured" {
		t.Errorf("Error() = %q", err.Error())
	}

	_, ready, _ = Resolve(map[string]map[string]any{"openai": {"apiKey": ""}}, "OpenAI", e)
	if ready {
		t.Error("empty apiKey must not be ready")
	}

	cfg, ready, err := Resolve(map[string]map[string]any{"openai": {"apiKey": "sk-1"}}, "OpenAI", e)
	if !ready || err != nil {
		t.Fatalf("expected ready, got ready=%v err=%v", ready, err)
	}
	if cfg.APIKey != "sk-1" {
		t.Errorf("APIKey = %q, want sk-1", cfg.APIKey)
	}
}

func TestResolve_KeyPairRequired(t *testing.T) {
	e := lookup(t, "alibaba")

	tests := []struct {
		name   string
		config map[string]any
		ready  bool
	}{
		{"nothing", nil, false},
		{"key only", map[string]any{"apiKey": "id"}, false},
		{"secret only", map[string]any{"secretKey": "secret"}, false},
		{"both", map[string]any{"apiKey": "id", "secretKey": "secret"}, true},
		{"console names", map[string]any{"accessKeyId": "id", "accessKeySecret": "secret"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := map[string]map[string]any{"alibaba": tt.config}
			_, ready, err := Resolve(config, "Alibaba", e)
			if ready != tt.ready {
				t.Fatalf("ready = %v, want %v (err %v)", ready, tt.ready, err)
			}
			if !tt.ready && err.Error() != "API key and secret key required" {
				t.Errorf("Error() = %q", err.Error())
			}
		})
	}
}

func TestResolve_CanonicalKeyWinsOverAlias(t *testing.T) {
	config := map[string]map[string]any{"alibaba": {
		"apiKey":          "canonical",
		"accessKeyId":     "console",
		"secretKey":       "s",
		"accessKeySecret": "ignored",
	}}
	cfg, _, err := Resolve(config, "alibaba", lookup(t, "alibaba"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIKey != "canonical" || cfg.SecretKey != "s" {
		t.Errorf("got APIKey=%q SecretKey=%q", cfg.APIKey, cfg.SecretKey)
	}
	if _, leaked := cfg.Extra["accesskeyid"]; leaked {
		t.Error("alias key must not land in Extra")
	}
}

func TestResolve_NoCredentialRequirement(t *testing.T) {
	for _, name := range []string{"DeepL", "Google", "GoogleFree"} {
		t.Run(name, func(t *testing.T) {
			_, ready, err := Resolve(nil, name, lookup(t, name))
			if !ready || err != nil {
				t.Errorf("expected ready, got ready=%v err=%v", ready, err)
			}
		})
	}
}

func TestResolve_Defaults(t *testing.T) {
	e := lookup(t, "zhipu")

	cfg, _, err := Resolve(map[string]map[string]any{"zhipu": {"apiKey": "k"}}, "zhipu", e)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.APIURL != ZhipuURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, ZhipuURL)
	}
	if cfg.Model != ZhipuModel {
		t.Errorf("Model = %q, want %q", cfg.Model, ZhipuModel)
	}

	cfg, _, _ = Resolve(map[string]map[string]any{"zhipu": {
		"apiKey": "k",
		"apiUrl": "http://localhost:9000/v1/chat/completions",
		"model":  "glm-4-plus",
	}}, "zhipu", e)
	if cfg.APIURL != "http://localhost:9000/v1/chat/completions" {
		t.Errorf("caller apiUrl overwritten: %q", cfg.APIURL)
	}
	if cfg.Model != "glm-4-plus" {
		t.Errorf("caller model overwritten: %q", cfg.Model)
	}

	cfg, _, _ = Resolve(map[string]map[string]any{"zhipu": {"apiKey": "k", "model": ""}}, "zhipu", e)
	if cfg.Model != "" {
		t.Errorf("present empty model must be kept, got %q", cfg.Model)
	}
}

func TestResolve_CredentialsNeverDefaulted(t *testing.T) {
	cfg, _, _ := Resolve(nil, "deepl", lookup(t, "deepl"))
	if cfg.APIKey != "" || cfg.SecretKey != "" {
		t.Errorf("credentials defaulted: %+v", cfg)
	}
}

func TestResolve_SliceLookup(t *testing.T) {
	e := lookup(t, "googlefree")

	tests := []struct {
		name      string
		requested string
		key       string
	}{
		{"requested name lower-cased", "GoogleFree", "googlefree"},
		{"alias slice", "Google Native", "google native"},
		{"entry key for alias request", "google native", "googlefree"},
		{"case-insensitive slice key", "googlefree", "GoogleFree"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := map[string]map[string]any{tt.key: {"apiUrl": "http://stub"}}
			cfg, _, err := Resolve(config, tt.requested, e)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.APIURL != "http://stub" {
				t.Errorf("APIURL = %q, want http://stub", cfg.APIURL)
			}
		})
	}
}

func TestResolve_DuplicateSliceKeys(t *testing.T) {
	e := lookup(t, "deepl")

	tests := []struct {
		name   string
		config map[string]map[string]any
		want   string
	}{
		{
			name:   "exact lower-case key wins",
			config: map[string]map[string]any{"deepl": {"apiKey": "a"}, "DeepL": {"apiKey": "b"}},
			want:   "a",
		},
		{
			name:   "variants resolve in sorted order",
			config: map[string]map[string]any{"Deep-L": {"apiKey": "a"}, "DEEPL": {"apiKey": "b"}},
			want:   "b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				cfg, _, _ := Resolve(tt.config, "DeepL", e)
				if cfg.APIKey != tt.want {
					t.Fatalf("run %d: APIKey = %q, want %q", i, cfg.APIKey, tt.want)
				}
			}
		})
	}
}

func TestResolve_NullValuesAbsent(t *testing.T) {
	e := lookup(t, "zhipu")

	cfg, ready, err := Resolve(map[string]map[string]any{"zhipu": {
		"apiKey": "k",
		"apiUrl": nil,
		"model":  nil,
	}}, "zhipu", e)
	if !ready || err != nil {
		t.Fatalf("expected ready, got ready=%v err=%v", ready, err)
	}
	if cfg.APIURL != ZhipuURL {
		t.Errorf("APIURL = %q, want %q", cfg.APIURL, ZhipuURL)
	}
	if cfg.Model != ZhipuModel {
		t.Errorf("Model = %q, want %q", cfg.Model, ZhipuModel)
	}

	e = lookup(t, "alibaba")
	cfg, _, _ = Resolve(map[string]map[string]any{"alibaba": {
		"apiKey":      nil,
		"accessKeyId": "id",
		"secretKey":   "s",
	}}, "alibaba", e)
	if cfg.APIKey != "id" {
		t.Errorf("null apiKey must fall back to alias, got %q", cfg.APIKey)
	}
}

func TestResolve_KeysCaseInsensitive(t *testing.T) {
	config := map[string]map[string]any{"openai": {"APIKEY": "k", "api_url": "http://x", "Model": "m"}}
	cfg, ready, _ := Resolve(config, "openai", lookup(t, "openai"))
	if !ready {
		t.Fatal("expected ready")
	}
	if cfg.APIKey != "k" || cfg.APIURL != "http://x" || cfg.Model != "m" {
		t.Errorf("got %+v", cfg)
	}
}

func TestResolve_TimeoutAndExtra(t *testing.T) {
	tests := []struct {
		name  string
		value any
		want  time.Duration
	}{
		{"string duration", "1500ms", 1500 * time.Millisecond},
		{"integer seconds", 30, 30 * time.Second},
		{"float seconds", 2.5, 2500 * time.Millisecond},
		{"duration value", 3 * time.Second, 3 * time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			config := map[string]map[string]any{"google": {"timeout": tt.value, "credentials": "/tmp/sa.json"}}
			cfg, _, err := Resolve(config, "google", lookup(t, "google"))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if cfg.Timeout != tt.want {
				t.Errorf("Timeout = %v, want %v", cfg.Timeout, tt.want)
			}
			if cfg.ExtraString("credentials") != "/tmp/sa.json" {
				t.Errorf("Extra credentials = %q", cfg.ExtraString("credentials"))
			}
		})
	}
}

func TestResolve_InvalidConfig(t *testing.T) {
	config := map[string]map[string]any{"deepl": {"timeout": "soon"}}
	_, ready, err := Resolve(config, "deepl", lookup(t, "deepl"))
	if ready || err == nil {
		t.Fatalf("expected invalid configuration error, got ready=%v err=%v", ready, err)
	}
	if translator.KindOf(err) != translator.KindConfigurationMissing {
		t.Errorf("KindOf = %v", translator.KindOf(err))
	}
}

func TestMergeConfig(t *testing.T) {
	tests := []struct {
		name    string
		base    map[string]map[string]any
		overlay map[string]map[string]any
		want    string
	}{
		{"overlay replaces base spelled differently", map[string]map[string]any{"keyed": {"apiKey": "server"}}, map[string]map[string]any{"Keyed": {"apiKey": "client"}}, "client"},
		{"overlay replaces base with separators", map[string]map[string]any{"Ke Yed": {"apiKey": "server"}}, map[string]map[string]any{"ke_yed": {"apiKey": "client"}}, "client"},
		{"base kept without overlay", map[string]map[string]any{"KEYED": {"apiKey": "server"}}, nil, "server"},
		{"normalized spelling wins within one map", nil, map[string]map[string]any{"Keyed": {"apiKey": "a"}, "keyed": {"apiKey": "b"}}, "b"},
	}

	e := Entry{Key: "keyed", Name: "Keyed", Credentials: RequiresAPIKey}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for i := 0; i < 50; i++ {
				merged := MergeConfig(tt.base, tt.overlay)
				cfg, _, _ := Resolve(merged, "keyed", e)
				if cfg.APIKey != tt.want {
					t.Fatalf("run %d: APIKey = %q, want %q", i, cfg.APIKey, tt.want)
				}
			}
		})
	}
}
