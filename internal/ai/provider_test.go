package ai

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func collect(t *testing.T, chunks <-chan string, errs <-chan error) (string, error) {
	t.Helper()
	var b strings.Builder
	for c := range chunks {
		b.WriteString(c)
	}
	return b.String(), <-errs
}

func TestRegistry_DefaultAndLookup(t *testing.T) {
	reg := NewRegistry()
	_, err := reg.Default(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)

	var gotModel string
	reg.Register(" Fake ", func(ctx context.Context, model string) (Provider, error) {
		gotModel = model
		return nil, nil
	})
	reg.SetDefault("FAKE", "m-1")

	_, err = reg.Default(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "m-1", gotModel)

	_, err = reg.Get(context.Background(), "nope", "")
	require.Error(t, err)
}

func TestNewOpenAIProvider_RequiresKey(t *testing.T) {
	_, err := NewOpenAIProvider("  ", "", "")
	require.ErrorIs(t, err, ErrNotConfigured)
}

func newOpenAIServer(t *testing.T, lastBody *map[string]any) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))

		raw, _ := io.ReadAll(r.Body)
		var body map[string]any
		assert.NoError(t, json.Unmarshal(raw, &body))
		if lastBody != nil {
			*lastBody = body
		}

		if stream, _ := body["stream"].(bool); stream {
			w.Header().Set("Content-Type", "text/event-stream")
			for _, part := range []string{"Hel", "lo ", "there"} {
				fmt.Fprintf(w, "data: {\"id\":\"x\",\"object\":\"chat.completion.chunk\",\"choices\":[{\"index\":0,\"delta\":{\"content\":%q}}]}\n\n", part)
			}
			fmt.Fprint(w, "data: [DONE]\n\n")
			return
		}

		w.Header().Set("Content-Type", "application/json")
		fmt.Fprint(w, `{"id":"x","object":"chat.completion","choices":[{"index":0,"message":{"role":"assistant","content":"{\"ok\":true}"}}]}`)
	}))
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, &body)
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", srv.URL+"/v1", "")
	require.NoError(t, err)

	out, err := p.Chat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	require.NoError(t, err)
	assert.Equal(t, `{"ok":true}`, out)
	assert.Equal(t, DefaultOpenAIModel, body["model"])
	assert.Nil(t, body["response_format"])
}

func TestOpenAIProvider_ChatJSON_SetsResponseFormat(t *testing.T) {
	var body map[string]any
	srv := newOpenAIServer(t, &body)
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", srv.URL+"/v1", "gpt-test")
	require.NoError(t, err)

	_, err = ChatJSON(context.Background(), p, []Message{{Role: RoleUser, Content: "json please"}})
	require.NoError(t, err)

	rf, ok := body["response_format"].(map[string]any)
	require.True(t, ok, "response_format missing: %v", body)
	assert.Equal(t, "json_object", rf["type"])
	assert.Equal(t, "gpt-test", body["model"])
}

func TestOpenAIProvider_StreamChat(t *testing.T) {
	srv := newOpenAIServer(t, nil)
	defer srv.Close()

	p, err := NewOpenAIProvider("sk-test", srv.URL+"/v1", "")
	require.NoError(t, err)

	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "hi"}})
	text, err := collect(t, chunks, errs)
	require.NoError(t, err)
	assert.Equal(t, "Hello there", text)
}

func TestOllamaProvider_StreamChatAndJSON(t *testing.T) {
	var lastFormat string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		var req ollamaChatReq
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		lastFormat = req.Format

		if req.Stream {
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":"Pho"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":"tons"},"done":false}`)
			fmt.Fprintln(w, `{"message":{"role":"assistant","content":""},"done":true}`)
			return
		}
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"{}"},"done":true}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL+"/", "tiny")

	chunks, errs := p.StreamChat(context.Background(), []Message{{Role: RoleUser, Content: "light?"}})
	text, err := collect(t, chunks, errs)
	require.NoError(t, err)
	assert.Equal(t, "Photons", text)

	out, err := ChatJSON(context.Background(), p, []Message{{Role: RoleUser, Content: "json"}})
	require.NoError(t, err)
	assert.Equal(t, "{}", out)
	assert.Equal(t, "json", lastFormat)
}

func TestOllamaProvider_StreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintln(w, `{"error":"model not found"}`)
	}))
	defer srv.Close()

	p := NewOllamaProvider(srv.URL, "missing")
	chunks, errs := p.StreamChat(context.Background(), nil)
	_, err := collect(t, chunks, errs)
	require.EqualError(t, err, "model not found")
}

func TestNewRegistryFromSettings(t *testing.T) {
	reg := NewRegistryFromSettings(Settings{Provider: "openai"})
	_, err := reg.Default(context.Background())
	require.ErrorIs(t, err, ErrNotConfigured)

	reg = NewRegistryFromSettings(Settings{Provider: "openai", OpenAIAPIKey: "sk-test"})
	p, err := reg.Default(context.Background())
	require.NoError(t, err)
	require.IsType(t, &OpenAIProvider{}, p)

	reg = NewRegistryFromSettings(Settings{Provider: " Ollama ", OllamaModel: "llama3.2"})
	p, err = reg.Default(context.Background())
	require.NoError(t, err)
	op, ok := p.(*OllamaProvider)
	require.True(t, ok)
	require.Equal(t, "llama3.2", op.Model)
}
