package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"rustmentor/internal/config"
)

func init() {
	Register(config.ProviderOpenAI, func(cfg *config.Config) (Provider, error) {
		if cfg.OpenAIAPIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAIProvider("OpenAI", "https://api.openai.com/v1", cfg.OpenAIAPIKey, cfg.Model), nil
	})
	// Grok spricht dieselbe Chat-Completions-API
	Register(config.ProviderGrok, func(cfg *config.Config) (Provider, error) {
		if cfg.GrokAPIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewOpenAIProvider("Grok", "https://api.x.ai/v1", cfg.GrokAPIKey, cfg.Model), nil
	})
	// Eigener Endpunkt mit OpenAI-kompatibler API (z.B. Ollama, vLLM)
	Register(config.ProviderCustom, func(cfg *config.Config) (Provider, error) {
		if cfg.CustomBaseURL == "" {
			return nil, fmt.Errorf("custom-provider: keine Basis-URL konfiguriert")
		}
		return NewOpenAIProvider("Custom", cfg.CustomBaseURL, cfg.CustomAPIKey, cfg.Model), nil
	})
}

// OpenAIProvider implementiert den Provider für alle Backends mit
// OpenAI-kompatibler Chat-Completions-API (OpenAI, xAI Grok, eigene
// Endpunkte)
type OpenAIProvider struct {
	name    string
	baseURL string
	apiKey  string
	model   string
	client  *http.Client
}

// NewOpenAIProvider erstellt einen Provider für einen
// OpenAI-kompatiblen Endpunkt
func NewOpenAIProvider(name, baseURL, apiKey, model string) *OpenAIProvider {
	if model == "" {
		model = "gpt-4o"
	}
	return &OpenAIProvider{
		name:    name,
		baseURL: strings.TrimSuffix(baseURL, "/"),
		apiKey:  apiKey,
		model:   model,
		client:  newHTTPClient(),
	}
}

func (o *OpenAIProvider) GetName() string {
	return o.name
}

func (o *OpenAIProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", o.baseURL+"/models", nil)
	if err != nil {
		return false
	}
	o.setAuth(req)
	resp, err := o.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (o *OpenAIProvider) setAuth(req *http.Request) {
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// mapMessages übersetzt den internen Verlauf ins OpenAI-Rollenschema
// (model -> assistant) und stellt den System-Prompt voran
func mapMessages(messages []ChatMessage, system string) []openaiMessage {
	out := make([]openaiMessage, 0, len(messages)+1)
	if system != "" {
		out = append(out, openaiMessage{Role: "system", Content: system})
	}
	for _, m := range messages {
		role := m.Role
		if role == "model" {
			role = "assistant"
		} else if role != "system" {
			role = "user"
		}
		out = append(out, openaiMessage{Role: role, Content: m.Content})
	}
	return out
}

func (o *OpenAIProvider) Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error) {
	reqBody := map[string]interface{}{
		"model": o.model,
	}
	system := ""
	if options != nil {
		system = options.System
		if options.Temperature > 0 {
			reqBody["temperature"] = options.Temperature
		}
		if options.MaxTokens > 0 {
			reqBody["max_tokens"] = options.MaxTokens
		}
	}
	reqBody["messages"] = mapMessages(messages, system)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	o.setAuth(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s-anfrage fehlgeschlagen: %w", strings.ToLower(o.name), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("%s-fehler (%d): %s", strings.ToLower(o.name), resp.StatusCode, string(data))
	}

	var result struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if len(result.Choices) == 0 {
		return nil, fmt.Errorf("%s: leere Antwort", strings.ToLower(o.name))
	}

	return &GenerateResponse{Content: result.Choices[0].Message.Content, Model: result.Model}, nil
}

func (o *OpenAIProvider) ChatStream(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (<-chan StreamChunk, error) {
	reqBody := map[string]interface{}{
		"model":  o.model,
		"stream": true,
	}
	system := ""
	if options != nil {
		system = options.System
		if options.Temperature > 0 {
			reqBody["temperature"] = options.Temperature
		}
	}
	reqBody["messages"] = mapMessages(messages, system)

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", o.baseURL+"/chat/completions", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	o.setAuth(req)

	resp, err := o.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%s-stream fehlgeschlagen: %w", strings.ToLower(o.name), err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("%s-fehler (%d): %s", strings.ToLower(o.name), resp.StatusCode, string(data))
	}

	ch := make(chan StreamChunk, 100)

	go func() {
		defer close(ch)
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 64*1024), 1024*1024)

		for scanner.Scan() {
			line := scanner.Text()
			if !strings.HasPrefix(line, "data:") {
				continue
			}
			payload := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if payload == "" {
				continue
			}
			if payload == "[DONE]" {
				ch <- StreamChunk{Done: true}
				return
			}

			var chunk struct {
				Choices []struct {
					Delta struct {
						Content string `json:"content"`
					} `json:"delta"`
				} `json:"choices"`
			}
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				ch <- StreamChunk{Error: err}
				return
			}
			if len(chunk.Choices) > 0 && chunk.Choices[0].Delta.Content != "" {
				ch <- StreamChunk{Content: chunk.Choices[0].Delta.Content}
			}
		}

		if err := scanner.Err(); err != nil {
			ch <- StreamChunk{Error: err}
			return
		}
		ch <- StreamChunk{Done: true}
	}()

	return ch, nil
}
