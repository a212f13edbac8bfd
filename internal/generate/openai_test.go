package generate

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hpungsan/muse/internal/creation"
)

func newOpenAITestServer(t *testing.T, handler http.HandlerFunc) *OpenAIProvider {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client := srv.Client()
	t.Cleanup(client.CloseIdleConnections)

	p, err := NewOpenAIProvider(OpenAIOptions{
		APIKey:     "sk-test",
		BaseURL:    srv.URL + "/v1/",
		HTTPClient: client,
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider() error = %v", err)
	}
	return p
}

func TestOpenAI_GenerateText(t *testing.T) {
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer sk-test" {
			t.Errorf("Authorization = %q", got)
		}

		var req chatRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Model != "gpt-4o" || req.MaxTokens != 300 {
			t.Errorf("request = %+v", req)
		}
		if len(req.Messages) != 2 || req.Messages[0].Role != "system" || req.Messages[1].Role != "user" {
			t.Errorf("messages = %+v", req.Messages)
		}

		w.Write([]byte(`{"choices":[{"message":{"role":"assistant","content":"  A poem\n"}}]}`))
	})

	got, err := p.GenerateText(context.Background(), TextRequest{
		System: PoemSystemPrompt, Prompt: "write", MaxTokens: 300,
	})
	if err != nil {
		t.Fatalf("GenerateText() error = %v", err)
	}
	if got != "A poem" {
		t.Errorf("GenerateText() = %q", got)
	}
}

func TestOpenAI_GenerateImage(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{"url", `{"data":[{"url":"https://cdn.example/p.png"}]}`, "https://cdn.example/p.png"},
		{"b64", `{"data":[{"b64_json":"iVBOR"}]}`, "data:image/png;base64,iVBOR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
				if r.URL.Path != "/v1/images/generations" {
					t.Errorf("path = %s", r.URL.Path)
				}
				var req imageGenRequest
				if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
					t.Fatalf("decode request: %v", err)
				}
				if req.Model != "dall-e-3" || req.N != 1 || req.Size != "1024x1024" || req.Prompt != "portrait" {
					t.Errorf("request = %+v", req)
				}
				w.Write([]byte(tt.body))
			})

			got, err := p.GenerateImage(context.Background(), ImageRequest{
				Prompt: "portrait", Style: creation.StyleGTA, Main: testImage,
			})
			if err != nil {
				t.Fatalf("GenerateImage() error = %v", err)
			}
			if got != tt.want {
				t.Errorf("GenerateImage() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestOpenAI_StatusError(t *testing.T) {
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error":{"message":"Incorrect API key provided"}}`))
	})

	_, err := p.GenerateText(context.Background(), TextRequest{Prompt: "x"})
	var sErr *StatusError
	if !stderrors.As(err, &sErr) {
		t.Fatalf("error = %v, want *StatusError", err)
	}
	if sErr.StatusCode != 401 || sErr.Message != "Incorrect API key provided" {
		t.Errorf("StatusError = %+v", sErr)
	}
}

func TestOpenAI_EmptyChoices(t *testing.T) {
	p := newOpenAITestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"choices":[]}`))
	})

	if _, err := p.GenerateText(context.Background(), TextRequest{Prompt: "x"}); err == nil {
		t.Error("GenerateText() with no choices should fail")
	}
}

func TestOpenAI_RequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(OpenAIOptions{}); err == nil {
		t.Error("NewOpenAIProvider() without key should fail")
	}
}
