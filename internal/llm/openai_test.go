package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rustmentor/internal/config"
)

func testConfig() *config.Config {
	return config.Default()
}

func TestMapMessages(t *testing.T) {
	messages := []ChatMessage{
		{Role: "user", Content: "Frage"},
		{Role: "model", Content: "Antwort"},
		{Role: "user", Content: "Nachfrage"},
	}

	mapped := mapMessages(messages, "Du bist ein Mentor")

	require.Len(t, mapped, 4)
	assert.Equal(t, "system", mapped[0].Role)
	assert.Equal(t, "user", mapped[1].Role)
	assert.Equal(t, "assistant", mapped[2].Role)
	assert.Equal(t, "user", mapped[3].Role)
}

func TestOpenAIProvider_Chat(t *testing.T) {
	var gotBody map[string]interface{}

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/chat/completions", r.URL.Path)
		require.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))

		json.NewEncoder(w).Encode(map[string]interface{}{
			"model": "gpt-4o",
			"choices": []map[string]interface{}{
				{"message": map[string]string{"content": "Hallo zurück"}},
			},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("OpenAI", server.URL+"/v1", "test-key", "gpt-4o")
	resp, err := p.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "Hallo"}}, &GenerateOptions{
		System:      "Mentor",
		Temperature: 0.7,
	})

	require.NoError(t, err)
	assert.Equal(t, "Hallo zurück", resp.Content)
	assert.Equal(t, "gpt-4o", resp.Model)
	assert.Equal(t, "gpt-4o", gotBody["model"])
	assert.Equal(t, 0.7, gotBody["temperature"])
}

func TestOpenAIProvider_ChatStream(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		for _, delta := range []string{"Hel", "lo"} {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", delta)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	defer server.Close()

	p := NewOpenAIProvider("OpenAI", server.URL, "key", "gpt-4o")
	chunks, err := p.ChatStream(context.Background(), []ChatMessage{{Role: "user", Content: "Hi"}}, nil)
	require.NoError(t, err)

	var content string
	var done bool
	for chunk := range chunks {
		require.NoError(t, chunk.Error)
		content += chunk.Content
		done = chunk.Done
	}
	assert.Equal(t, "Hello", content)
	assert.True(t, done)
}

func TestOpenAIProvider_HTTPFehler(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"error": "invalid key"}`))
	}))
	defer server.Close()

	p := NewOpenAIProvider("OpenAI", server.URL, "falsch", "gpt-4o")

	_, err := p.Chat(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "401")

	_, err = p.ChatStream(context.Background(), []ChatMessage{{Role: "user", Content: "x"}}, nil)
	assert.Error(t, err)
}

func TestFromConfig_UnbekannterProvider(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "gibtsnicht"

	_, err := FromConfig(cfg)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestFromConfig_FehlenderSchluessel(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "openai"
	cfg.OpenAIAPIKey = ""

	_, err := FromConfig(cfg)
	assert.ErrorIs(t, err, ErrNoAPIKey)
}

func TestFromConfig_CustomBrauchtBasisURL(t *testing.T) {
	cfg := testConfig()
	cfg.Provider = "custom"
	cfg.CustomBaseURL = ""

	_, err := FromConfig(cfg)
	assert.Error(t, err)

	cfg.CustomBaseURL = "http://localhost:11434/v1"
	p, err := FromConfig(cfg)
	require.NoError(t, err)
	assert.Equal(t, "Custom", p.GetName())
}
