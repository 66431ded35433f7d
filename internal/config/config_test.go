package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8080", cfg.ServerPort)
	assert.Equal(t, ProviderGemini, cfg.Provider)
	assert.Equal(t, "en", cfg.Language)
	assert.False(t, cfg.AutoSync)
	assert.False(t, cfg.GistEnabled)
	assert.False(t, cfg.TTSEnabled)
}

func TestLoad_FehlendeDateiLiefertStandardwerte(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "gibtsnicht.json"))
	assert.Error(t, err)
	require.NotNil(t, cfg)
	assert.Equal(t, ProviderGemini, cfg.Provider)
}

func TestLoad_UndSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")

	cfg := Default()
	cfg.Provider = ProviderAnthropic
	cfg.Language = "zh"
	cfg.GistID = "abc"
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, ProviderAnthropic, loaded.Provider)
	assert.Equal(t, "zh", loaded.Language)
	assert.Equal(t, "abc", loaded.GistID)
}

func TestLoad_SchluesselKommenAusUmgebung(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "gem-123")
	t.Setenv("GITHUB_GIST_TOKEN", "gist-456")

	path := filepath.Join(t.TempDir(), "config.json")
	cfg := Default()
	cfg.GeminiAPIKey = "soll-nicht-gespeichert-werden"
	require.NoError(t, cfg.Save(path))

	// Schlüssel stehen nicht in der Datei
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.NotContains(t, string(data), "soll-nicht-gespeichert-werden")

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gem-123", loaded.GeminiAPIKey)
	assert.Equal(t, "gist-456", loaded.GistToken)
}

func TestAPIKey_ProProvider(t *testing.T) {
	cfg := Default()
	cfg.GeminiAPIKey = "gem"
	cfg.OpenAIAPIKey = "oai"
	cfg.AnthropicAPIKey = "ant"
	cfg.GrokAPIKey = "grk"
	cfg.CustomAPIKey = "cst"

	for provider, want := range map[string]string{
		ProviderGemini:    "gem",
		ProviderOpenAI:    "oai",
		ProviderAnthropic: "ant",
		ProviderGrok:      "grk",
		ProviderCustom:    "cst",
	} {
		cfg.Provider = provider
		assert.Equal(t, want, cfg.APIKey(), provider)
	}

	cfg.Provider = "unbekannt"
	assert.Equal(t, "", cfg.APIKey())
}

func TestPersist_SchreibtAnLadepfad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, Default().Save(path))

	cfg, err := Load(path)
	require.NoError(t, err)

	cfg.GistID = "gemerkt"
	require.NoError(t, cfg.Persist())

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "gemerkt", loaded.GistID)
}
