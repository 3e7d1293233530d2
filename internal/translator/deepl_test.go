package translator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
)

func TestDeepLTargetCode(t *testing.T) {
	tests := []struct {
		lang string
		want string
	}{
		{"zh", "ZH"},
		{"ZH", "ZH"},
		{"zh-Hans", "ZH"},
		{"ZH-HANS", "ZH"},
		{"en", "EN-US"},
		{"EN", "EN-US"},
		{"ja", "JA"},
		{"ko", "KO"},
		{"fr", "FR"},
		{"de", "DE"},
		{"es", "ES"},
		{"ru", "RU"},
		{"uk", "EN-US"},
		{"", "EN-US"},
		{"not a language", "EN-US"},
	}

	for _, tt := range tests {
		t.Run(tt.lang, func(t *testing.T) {
			if got := DeepLTargetCode(tt.lang); got != tt.want {
				t.Errorf("DeepLTargetCode(%q) = %q, want %q", tt.lang, got, tt.want)
			}
		})
	}
}

func newDeepLStub(t *testing.T, wantKey string, form map[string]string) *httptest.Server {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("Authorization"); got != "DeepL-Auth-Key "+wantKey {
			t.Errorf("Authorization = %q", got)
		}
		if err := r.ParseForm(); err != nil {
			t.Errorf("parse form: %v", err)
		}
		for k := range r.PostForm {
			form[k] = r.PostForm.Get(k)
		}
		w.Write([]byte(`{"translations":[{"detected_source_language":"EN","text":"你好"}]}`))
	}))
	t.Cleanup(server.Close)
	return server
}

func TestDeepLService_Translate(t *testing.T) {
	form := map[string]string{}
	server := newDeepLStub(t, "k", form)

	svc := &DeepLService{client: newRESTClient(0)}
	result, err := svc.Translate(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{
		Text:       "hello",
		SourceLang: "en",
		TargetLang: "zh",
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "DeepL" || result.Text != "你好" || result.Error != "" {
		t.Errorf("got %+v", result)
	}
	if form["text"] != "hello" || form["target_lang"] != "ZH" || form["source_lang"] != "EN" {
		t.Errorf("form = %v", form)
	}
}

func TestDeepLService_Translate_AutoSourceOmitted(t *testing.T) {
	form := map[string]string{}
	server := newDeepLStub(t, "k", form)

	svc := &DeepLService{client: newRESTClient(0)}
	if _, err := svc.Translate(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{Text: "hello", SourceLang: "auto", TargetLang: "zh"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := form["source_lang"]; ok {
		t.Errorf("source_lang must be omitted for auto, form = %v", form)
	}
}

func TestDeepLService_CredentialFallback(t *testing.T) {
	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("DEEPL_API_KEY=from-dotenv\n"), 0o600); err != nil {
		t.Fatal(err)
	}

	t.Run("environment", func(t *testing.T) {
		t.Setenv(deeplEnvKey, "from-env")
		server := newDeepLStub(t, "from-env", map[string]string{})
		svc := &DeepLService{dotenvPath: dotenv, client: newRESTClient(0)}
		if _, err := svc.Translate(context.Background(), ProviderConfig{APIURL: server.URL}, TranslateRequest{Text: "hello", TargetLang: "zh"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("dotenv", func(t *testing.T) {
		t.Setenv(deeplEnvKey, "")
		server := newDeepLStub(t, "from-dotenv", map[string]string{})
		svc := &DeepLService{dotenvPath: dotenv, client: newRESTClient(0)}
		if _, err := svc.Translate(context.Background(), ProviderConfig{APIURL: server.URL}, TranslateRequest{Text: "hello", TargetLang: "zh"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("config wins", func(t *testing.T) {
		t.Setenv(deeplEnvKey, "from-env")
		server := newDeepLStub(t, "from-config", map[string]string{})
		svc := &DeepLService{dotenvPath: dotenv, client: newRESTClient(0)}
		if _, err := svc.Translate(context.Background(), ProviderConfig{APIKey: "from-config", APIURL: server.URL}, TranslateRequest{Text: "hello", TargetLang: "zh"}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("missing", func(t *testing.T) {
		t.Setenv(deeplEnvKey, "")
		svc := &DeepLService{dotenvPath: filepath.Join(dir, "absent.env"), client: newRESTClient(0)}
		result, err := svc.Translate(context.Background(), ProviderConfig{}, TranslateRequest{Text: "hello", TargetLang: "zh"})
		if KindOf(err) != KindConfigurationMissing {
			t.Fatalf("KindOf = %v, want %v", KindOf(err), KindConfigurationMissing)
		}
		if result.Error != "DEEPL_API_KEY not found" {
			t.Errorf("Error = %q", result.Error)
		}
	})
}

func TestDeepLService_Translate_Errors(t *testing.T) {
	tests := []struct {
		name     string
		status   int
		body     string
		wantKind ErrorKind
	}{
		{"quota exceeded", 456, `{"message":"Quota exceeded"}`, KindRejected},
		{"forbidden", http.StatusForbidden, ``, KindRejected},
		{"no translations", http.StatusOK, `{"translations":[]}`, KindMalformed},
		{"bad json", http.StatusOK, `{`, KindMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			svc := &DeepLService{client: newRESTClient(0)}
			result, err := svc.Translate(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{Text: "hello", TargetLang: "zh"})
			if KindOf(err) != tt.wantKind {
				t.Errorf("KindOf = %v, want %v (%v)", KindOf(err), tt.wantKind, err)
			}
			if result.Text != "" || result.Error == "" {
				t.Errorf("got %+v", result)
			}
		})
	}
}
