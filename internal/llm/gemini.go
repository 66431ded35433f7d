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

const geminiBaseURL = "https://generativelanguage.googleapis.com/v1beta"

func init() {
	Register(config.ProviderGemini, func(cfg *config.Config) (Provider, error) {
		if cfg.GeminiAPIKey == "" {
			return nil, ErrNoAPIKey
		}
		return NewGeminiProvider(cfg.GeminiAPIKey, cfg.Model), nil
	})
}

// GeminiProvider spricht die Google-Generative-Language-REST-API
type GeminiProvider struct {
	apiKey string
	model  string
	client *http.Client
}

// NewGeminiProvider erstellt einen neuen Gemini-Provider
func NewGeminiProvider(apiKey, model string) *GeminiProvider {
	if model == "" {
		model = "gemini-3-pro-preview"
	}
	return &GeminiProvider{
		apiKey: apiKey,
		model:  model,
		client: newHTTPClient(),
	}
}

func (g *GeminiProvider) GetName() string {
	return "Gemini"
}

func (g *GeminiProvider) IsAvailable(ctx context.Context) bool {
	url := fmt.Sprintf("%s/models?key=%s&pageSize=1", geminiBaseURL, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return false
	}
	resp, err := g.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Wire-Strukturen der Gemini-API

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *geminiGenConfig  `json:"generationConfig,omitempty"`
}

type geminiGenConfig struct {
	Temperature      float64         `json:"temperature,omitempty"`
	MaxOutputTokens  int             `json:"maxOutputTokens,omitempty"`
	ResponseMimeType string          `json:"responseMimeType,omitempty"`
	ResponseSchema   json.RawMessage `json:"responseSchema,omitempty"`
}

type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []geminiPart `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (g *GeminiProvider) buildRequest(messages []ChatMessage, options *GenerateOptions) geminiRequest {
	req := geminiRequest{}

	for _, m := range messages {
		role := "user"
		if m.Role == "model" {
			role = "model"
		}
		req.Contents = append(req.Contents, geminiContent{
			Role:  role,
			Parts: []geminiPart{{Text: m.Content}},
		})
	}

	if options != nil {
		if options.System != "" {
			req.SystemInstruction = &geminiContent{Parts: []geminiPart{{Text: options.System}}}
		}
		gc := &geminiGenConfig{
			Temperature:     options.Temperature,
			MaxOutputTokens: options.MaxTokens,
		}
		if options.ResponseSchema != nil {
			gc.ResponseMimeType = "application/json"
			gc.ResponseSchema = options.ResponseSchema
		}
		req.GenerationConfig = gc
	}

	return req
}

func (g *GeminiProvider) Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error) {
	body, err := json.Marshal(g.buildRequest(messages, options))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", geminiBaseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini-anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gemini-fehler (%d): %s", resp.StatusCode, string(data))
	}

	var result geminiResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	if result.Error != nil {
		return nil, fmt.Errorf("gemini-fehler (%d): %s", result.Error.Code, result.Error.Message)
	}
	if len(result.Candidates) == 0 {
		return nil, fmt.Errorf("gemini: leere Antwort")
	}

	var text strings.Builder
	for _, p := range result.Candidates[0].Content.Parts {
		text.WriteString(p.Text)
	}

	return &GenerateResponse{Content: text.String(), Model: g.model}, nil
}

func (g *GeminiProvider) ChatStream(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (<-chan StreamChunk, error) {
	body, err := json.Marshal(g.buildRequest(messages, options))
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/models/%s:streamGenerateContent?alt=sse&key=%s", geminiBaseURL, g.model, g.apiKey)
	req, err := http.NewRequestWithContext(ctx, "POST", url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gemini-stream fehlgeschlagen: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		data, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		return nil, fmt.Errorf("gemini-fehler (%d): %s", resp.StatusCode, string(data))
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

			var chunk geminiResponse
			if err := json.Unmarshal([]byte(payload), &chunk); err != nil {
				ch <- StreamChunk{Error: err}
				return
			}
			if len(chunk.Candidates) == 0 {
				continue
			}
			for _, p := range chunk.Candidates[0].Content.Parts {
				if p.Text != "" {
					ch <- StreamChunk{Content: p.Text}
				}
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
