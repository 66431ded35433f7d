package config

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
)

// Unterstützte LLM-Provider
const (
	ProviderGemini    = "gemini"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGrok      = "grok"
	ProviderCustom    = "custom"
)

// Config enthält alle Konfigurationseinstellungen. Jedes Feld wird
// unabhängig persistiert; ein fehlender Wert bedeutet "Feature
// deaktiviert", niemals ein Fehler.
type Config struct {
	// Server-Einstellungen
	ServerPort string `json:"server_port"`

	// Pfade
	DatabasePath string `json:"database_path"`
	StaticPath   string `json:"static_path"`

	// LLM-Einstellungen
	Provider string `json:"provider"`
	Model    string `json:"model"`
	// API-Schlüssel kommen aus der Umgebung (.env), nicht aus der Datei
	GeminiAPIKey    string `json:"-"`
	OpenAIAPIKey    string `json:"-"`
	AnthropicAPIKey string `json:"-"`
	GrokAPIKey      string `json:"-"`
	CustomAPIKey    string `json:"-"`
	CustomBaseURL   string `json:"custom_base_url,omitempty"`

	// UI-Sprache für Prompts und Antworten: "en" oder "zh"
	Language string `json:"language"`

	// Lokaler Artefakt-Sync
	SyncDir  string `json:"sync_dir,omitempty"`
	AutoSync bool   `json:"auto_sync"`

	// Cloud-Sync (GitHub Gist)
	GistEnabled bool   `json:"gist_enabled"`
	GistToken   string `json:"-"`
	GistID      string `json:"gist_id,omitempty"` // zuletzt verwendete Gist-ID

	// Vorlesen (Text-to-Speech)
	TTSEnabled bool   `json:"tts_enabled"`
	TTSVoice   string `json:"tts_voice,omitempty"`

	path string
	mu   sync.Mutex
}

// Default gibt die Standardkonfiguration zurück
func Default() *Config {
	homeDir, _ := os.UserHomeDir()
	return &Config{
		ServerPort:   "8080",
		DatabasePath: "rustmentor.db",
		StaticPath:   "./web/static",
		Provider:     ProviderGemini,
		Model:        "gemini-3-pro-preview",
		Language:     "en",
		SyncDir:      filepath.Join(homeDir, "RustMentor"),
		AutoSync:     false,
		TTSVoice:     "en-US-Standard-F",
	}
}

// Load lädt die Konfiguration aus einer Datei und ergänzt
// API-Schlüssel aus der Umgebung
func Load(path string) (*Config, error) {
	cfg := Default()
	cfg.path = path
	cfg.loadEnvKeys()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, err
	}

	// Korrupte Datei = kein gespeicherter Zustand
	if err := json.Unmarshal(data, cfg); err != nil {
		return cfg, err
	}

	return cfg, nil
}

func (c *Config) loadEnvKeys() {
	c.GeminiAPIKey = os.Getenv("GEMINI_API_KEY")
	c.OpenAIAPIKey = os.Getenv("OPENAI_API_KEY")
	c.AnthropicAPIKey = os.Getenv("ANTHROPIC_API_KEY")
	c.GrokAPIKey = os.Getenv("GROK_API_KEY")
	c.CustomAPIKey = os.Getenv("CUSTOM_API_KEY")
	c.GistToken = os.Getenv("GITHUB_GIST_TOKEN")
}

// APIKey gibt den Schlüssel für den aktiven Provider zurück
func (c *Config) APIKey() string {
	switch c.Provider {
	case ProviderGemini:
		return c.GeminiAPIKey
	case ProviderOpenAI:
		return c.OpenAIAPIKey
	case ProviderAnthropic:
		return c.AnthropicAPIKey
	case ProviderGrok:
		return c.GrokAPIKey
	case ProviderCustom:
		return c.CustomAPIKey
	}
	return ""
}

// Save speichert die Konfiguration in eine Datei
func (c *Config) Save(path string) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Persist schreibt die Konfiguration zurück an ihren Ladepfad.
// Wird u.a. vom Artefakt-Sync genutzt, um die Gist-ID zu merken.
func (c *Config) Persist() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.path == "" {
		c.path = "config.json"
	}
	return c.Save(c.path)
}
