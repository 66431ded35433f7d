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

const anthropicBaseURL = "https://api.anthropic.com/v1"

func init() {
	Register(config.ProviderAnthropic, func(cfg *config.Config) (Provider, error) {
		if cfg.AnthropicAPIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewAnthropicProvider(cfg.AnthropicAPIKey, cfg.Model), nil
	})
}

// AnthropicProvider spricht die Anthropic-Messages-API
type AnthropicProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewAnthropicProvider erstellt einen neuen Anthropic-Provider
func NewAnthropicProvider(apiKey, model string) *AnthropicProvider {
	if model == "" {
		model = "claude-sonnet-4-20250514"
	}
	return &AnthropicProvider{
		apiKey: apiKey,
		model:  model,
		client: newHTTPClient(),
	}
}

func (a *AnthropicProvider) GetName() string {
	return "Claude"
}

func (a *AnthropicProvider) IsAvailable(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", anthropicBaseURL+"/models", nil)
	if err != nil {
		return false
	}
	a.setAuth(req)
	resp, err := a.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

func (a *AnthropicProvider) setAuth(req *http.Request) {
	req.Header.Set("x-api-key", a.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")
}

// Die Messages-API nimmt den System-Prompt als eigenes Feld und kennt
// nur user/assistant im Verlauf
func (a *AnthropicProvider) buildBody(messages []ChatMessage, options *GenerateOptions, stream bool) map[string]interface{} {
	msgs := make([]openaiMessage, 0, len(messages))
	for _, m := range messages {
		role := "user"
		if m.Role == "model" {
			role = "assistant"
		}
		if m.Role == "system" {
			continue
		}
		msgs = append(msgs, openaiMessage{Role: role, Content: m.Content})
	}

	body := map[string]interface{}{
		"model":      a.model,
		"messages":   msgs,
		"max_tokens": 4096,
	}
	if stream {
		body["stream"] = true
	}
	if options != nil {
		if options.System != "" {
			body["system"] = options.System
		}
		if options.Temperature > 0 {
			body["temperature"] = options.Temperature
		}
		if options.MaxTokens > 0 {
			body["max_tokens"] = options.MaxTokens
		}
	}
	return body
}

func (a *AnthropicProvider) Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error) {
	jsonData, err := json.Marshal(a.buildBody(messages, options, false))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.setAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claude-anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("claude-fehler (%d): %s", resp.StatusCode, string(data))
	}

	var result struct {
		Content []struct {
			Type string `json:"type"`
			Text string `json:"text"`
		} `json:"content"`
		Model string `json:"model"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}

	var text strings.Builder
	for _, c := range result.Content {
		if c.Type == "text" {
			text.WriteString(c.Text)
		}
	}
	if text.Len() == 0 {
		return nil, fmt.Errorf("claude: leere Antwort")
	}

	return &GenerateResponse{Content: text.String(), Model: result.Model}, nil
}

func (a *AnthropicProvider) ChatStream(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (<-chan StreamChunk, error) {
	jsonData, err := json.Marshal(a.buildBody(messages, options, true))
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, "POST", anthropicBaseURL+"/messages", bytes.NewReader(jsonData))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	a.setAuth(req)

	resp, err := a.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("claude-stream fehlgeschlagen: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("claude-fehler (%d): %s", resp.StatusCode, string(data))
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

			var event struct {
				Type  string `json:"type"`
				Delta struct {
					Type string `json:"type"`
					Text string `json:"text"`
				} `json:"delta"`
			}
			if err := json.Unmarshal([]byte(payload), &event); err != nil {
				ch <- StreamChunk{Error: err}
				return
			}

			switch event.Type {
			case "content_block_delta":
				if event.Delta.Text != "" {
					ch <- StreamChunk{Content: event.Delta.Text}
				}
			case "message_stop":
				ch <- StreamChunk{Done: true}
				return
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
