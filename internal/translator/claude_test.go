package translator

import (
	"context"
	"errors"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestClaudeService_Translate(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("x-api-key") != "ant-key" {
			t.Errorf("x-api-key = %q", r.Header.Get("x-api-key"))
		}
		if r.Header.Get("anthropic-version") != anthropicVersion {
			t.Errorf("anthropic-version = %q", r.Header.Get("anthropic-version"))
		}
		var req claudeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if req.Model != DefaultClaudeModel {
			t.Errorf("model = %q", req.Model)
		}
		if !strings.Contains(req.System, "to uk.") {
			t.Errorf("system = %q", req.System)
		}
		w.Write([]byte(`{"content":[{"type":"text","text":"Привіт"}]}`))
	}))
	defer server.Close()

	result, err := NewClaudeService().Translate(context.Background(), ProviderConfig{APIKey: "ant-key", APIURL: server.URL}, TranslateRequest{Text: "Hello", TargetLang: "uk"})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.Name != "Claude" || result.Text != "Привіт" {
		t.Errorf("got %+v", result)
	}
}

func TestClaudeService_Translate_Errors(t *testing.T) {
	t.Run("no api key", func(t *testing.T) {
		result, err := NewClaudeService().Translate(context.Background(), ProviderConfig{}, TranslateRequest{Text: "Hello"})
		if KindOf(err) != KindConfigurationMissing || result.Error != MsgNoAPIKey {
			t.Errorf("got err=%v result=%+v", err, result)
		}
	})

	t.Run("empty content", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte(`{"content":[]}`))
		}))
		defer server.Close()

		_, err := NewClaudeService().Translate(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{Text: "Hello"})
		if KindOf(err) != KindMalformed {
			t.Errorf("KindOf = %v, want %v", KindOf(err), KindMalformed)
		}
	})

	t.Run("overloaded", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(529)
			w.Write([]byte(`{"type":"error","error":{"type":"overloaded_error"}}`))
		}))
		defer server.Close()

		_, err := NewClaudeService().Translate(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{Text: "Hello"})
		var te *Error
		if KindOf(err) != KindRejected {
			t.Fatalf("KindOf = %v, want %v", KindOf(err), KindRejected)
		}
		if !errors.As(err, &te) || te.Status != 529 {
			t.Errorf("status not captured: %+v", te)
		}
	})
}

func TestClaudeService_TranslateStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		fmt.Fprint(w, "event: message_start\ndata: {\"type\":\"message_start\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"При\"}}\n\n")
		fmt.Fprint(w, "event: ping\ndata: {\"type\":\"ping\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"type\":\"text_delta\",\"text\":\"віт\"}}\n\n")
		fmt.Fprint(w, "event: message_stop\ndata: {\"type\":\"message_stop\"}\n\n")
		fmt.Fprint(w, "event: content_block_delta\ndata: {\"type\":\"content_block_delta\",\"delta\":{\"text\":\"late\"}}\n\n")
	}))
	defer server.Close()

	var deltas []string
	text, err := NewClaudeService().TranslateStream(context.Background(), ProviderConfig{APIKey: "k", APIURL: server.URL}, TranslateRequest{Text: "Hello", TargetLang: "uk"}, func(d string) {
		deltas = append(deltas, d)
	})

	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Привіт" || strings.Join(deltas, "") != text {
		t.Errorf("text = %q, deltas = %v", text, deltas)
	}
}
