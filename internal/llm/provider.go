package llm

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"rustmentor/internal/config"
)

// ErrUnknownProvider wird zurückgegeben, wenn die Konfiguration einen
// nicht registrierten Provider nennt
var ErrUnknownProvider = errors.New("unbekannter LLM-Provider")

// ErrNoAPIKey: Provider ist konfiguriert, aber kein Schlüssel vorhanden
var ErrNoAPIKey = errors.New("kein API-Schlüssel konfiguriert")

// Provider definiert das Interface für LLM-Backends
type Provider interface {
	// Chat führt einen Chat mit Nachrichtenverlauf und liefert den
	// vollständigen Antworttext
	Chat(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (*GenerateResponse, error)

	// ChatStream liefert die Antwort als geordneten Strom von Chunks.
	// Der Kanal wird nach dem letzten Chunk geschlossen; ein Fehler
	// erscheint als Chunk mit gesetztem Error-Feld.
	ChatStream(ctx context.Context, messages []ChatMessage, options *GenerateOptions) (<-chan StreamChunk, error)

	// IsAvailable prüft, ob das Backend erreichbar ist
	IsAvailable(ctx context.Context) bool

	// GetName gibt den Namen des Providers zurück
	GetName() string
}

// GenerateOptions enthält optionale Parameter für die Generierung
type GenerateOptions struct {
	Temperature float64 `json:"temperature,omitempty"`
	MaxTokens   int     `json:"max_tokens,omitempty"`
	System      string  `json:"system,omitempty"`

	// ResponseSchema erzwingt strukturiertes JSON (nur Gemini).
	// Andere Provider bekommen die JSON-Anweisung im Prompt und die
	// Antwort wird per extractJSON* geborgen.
	ResponseSchema json.RawMessage `json:"-"`
}

// GenerateResponse enthält die Antwort des LLM
type GenerateResponse struct {
	Content string `json:"content"`
	Model   string `json:"model"`
}

// ChatMessage repräsentiert eine Chat-Nachricht.
// Role ist user, model oder system; Provider mappen selbst.
type ChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// StreamChunk repräsentiert einen Chunk im Streaming-Modus
type StreamChunk struct {
	Content string `json:"content"`
	Done    bool   `json:"done"`
	Error   error  `json:"error,omitempty"`
}

// Factory baut einen Provider aus der aktuellen Konfiguration
type Factory func(cfg *config.Config) (Provider, error)

var factories = map[string]Factory{}

// Register registriert eine Provider-Factory unter ihrem Namen
func Register(name string, factory Factory) {
	factories[name] = factory
}

// FromConfig baut den in der Konfiguration gewählten Provider.
// Wird pro Aufruf neu gelesen: ein Provider-Wechsel in den
// Einstellungen greift beim nächsten Request, ohne Neustart.
func FromConfig(cfg *config.Config) (Provider, error) {
	factory, ok := factories[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownProvider, cfg.Provider)
	}
	return factory(cfg)
}

// IsRegistered prüft, ob ein Provider-Name bekannt ist
func IsRegistered(name string) bool {
	_, ok := factories[name]
	return ok
}

// ListProviders gibt alle registrierten Provider-Namen zurück
func ListProviders() []string {
	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	return names
}

// newHTTPClient: großzügiges Timeout, große Prompts können dauern
func newHTTPClient() *http.Client {
	return &http.Client{Timeout: 5 * time.Minute}
}
