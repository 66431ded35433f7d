package artifact

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rustmentor/internal/config"
	"rustmentor/internal/llm"
	"rustmentor/internal/models"
	"rustmentor/internal/progress"
	"rustmentor/internal/storage"
)

// fakeProvider liefert für jeden Chat-Aufruf denselben Artefakt-Text
type fakeProvider struct {
	content string
	err     error
}

func (f *fakeProvider) Chat(ctx context.Context, messages []llm.ChatMessage, options *llm.GenerateOptions) (*llm.GenerateResponse, error) {
	if f.err != nil {
		return nil, f.err
	}
	return &llm.GenerateResponse{Content: f.content, Model: "fake"}, nil
}

func (f *fakeProvider) ChatStream(ctx context.Context, messages []llm.ChatMessage, options *llm.GenerateOptions) (<-chan llm.StreamChunk, error) {
	out := make(chan llm.StreamChunk, 2)
	out <- llm.StreamChunk{Content: f.content}
	out <- llm.StreamChunk{Done: true}
	close(out)
	return out, nil
}

func (f *fakeProvider) IsAvailable(ctx context.Context) bool { return true }
func (f *fakeProvider) GetName() string                      { return "fake" }

func newTestPipeline(t *testing.T, provider *fakeProvider) (*Pipeline, storage.Storage, *config.Config) {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(filepath.Join(dir, "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	// Load merkt sich den Pfad, damit Persist() nicht ins
	// Arbeitsverzeichnis schreibt
	cfg, _ := config.Load(filepath.Join(dir, "config.json"))
	cfg.Provider = "fake"
	cfg.SyncDir = filepath.Join(dir, "artefakte")
	cfg.AutoSync = true

	llm.Register("fake", func(cfg *config.Config) (llm.Provider, error) {
		return provider, nil
	})

	mentor := llm.NewMentor(cfg)
	tracker := progress.NewTracker(store, cfg)
	return NewPipeline(store, cfg, mentor, tracker), store, cfg
}

func seedChat(t *testing.T, store storage.Storage, mode models.ChatMode, count int) {
	t.Helper()
	for i := 0; i < count; i++ {
		role := models.RoleUser
		if i%2 == 1 {
			role = models.RoleModel
		}
		require.NoError(t, store.SaveChatMessage(&models.Message{
			ID:        fmt.Sprintf("msg_%d", i),
			Mode:      mode,
			Role:      role,
			Text:      fmt.Sprintf("Nachricht %d", i),
			Timestamp: time.Now(),
		}))
	}
}

func TestGenerate_ZuWenigVerlauf(t *testing.T) {
	pipeline, store, _ := newTestPipeline(t, &fakeProvider{content: "## Summary"})
	seedChat(t, store, models.ModeCoach, 1)

	_, err := pipeline.Generate(context.Background(), models.ModeCoach)
	assert.ErrorIs(t, err, ErrNotEnoughMessages)
}

func TestGenerate_SpeichertUndSpiegelt(t *testing.T) {
	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "## Summary\n\nOwnership."})
	seedChat(t, store, models.ModeCoach, 4)

	art, err := pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)

	today := time.Now().Format("2006-01-02")
	assert.Equal(t, "Learning Session: "+today, art.Title)
	assert.Equal(t, []string{"Rust", "Session", "Mentorship"}, art.Tags)
	assert.Equal(t, "## Summary\n\nOwnership.", art.Content)

	// Persistiert
	saved, err := store.GetArtifact(art.ID)
	require.NoError(t, err)
	assert.Equal(t, art.Title, saved.Title)

	// In den lokalen Ordner gespiegelt
	data, err := os.ReadFile(filepath.Join(cfg.SyncDir, today+"-Learning Session_ "+today+".md"))
	require.NoError(t, err)
	assert.Contains(t, string(data), "## Summary")
	assert.Contains(t, string(data), "Tags: Rust, Session, Mentorship")

	// Sitzungszähler erhöht
	p, err := store.GetProgress()
	require.NoError(t, err)
	assert.Equal(t, 1, p.TotalSessions)
}

func TestGenerate_FeynmanTagUndSprache(t *testing.T) {
	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "x"})
	cfg.Language = "zh"
	seedChat(t, store, models.ModeFeynman, 2)

	art, err := pipeline.Generate(context.Background(), models.ModeFeynman)
	require.NoError(t, err)

	assert.Contains(t, art.Title, "学习成果")
	assert.Equal(t, []string{"Rust", "Session", "Feynman"}, art.Tags)
}

func TestGenerate_OhneAutoSyncKeineDatei(t *testing.T) {
	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "x"})
	cfg.AutoSync = false
	seedChat(t, store, models.ModeCoach, 2)

	_, err := pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)

	_, err = os.Stat(cfg.SyncDir)
	assert.True(t, os.IsNotExist(err))
}

func TestGenerate_GistAnlageMerktID(t *testing.T) {
	var patchCalls, postCalls int

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "POST":
			postCalls++
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "neu42", "html_url": "https://gist.github.com/u/neu42"})
		case "PATCH":
			patchCalls++
			json.NewEncoder(w).Encode(map[string]string{"id": "neu42", "html_url": "https://gist.github.com/u/neu42"})
		}
	}))
	defer server.Close()

	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "x"})
	pipeline.GistBaseURL = server.URL
	cfg.GistEnabled = true
	cfg.GistToken = "token"
	seedChat(t, store, models.ModeCoach, 2)

	// Erste Generierung: noch keine ID, also anlegen
	art, err := pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)
	assert.Equal(t, 1, postCalls)
	assert.Equal(t, "neu42", cfg.GistID)
	assert.Equal(t, "https://gist.github.com/u/neu42", art.GistURL)

	saved, err := store.GetArtifact(art.ID)
	require.NoError(t, err)
	assert.Equal(t, "https://gist.github.com/u/neu42", saved.GistURL)

	// Zweite Generierung: gemerkte ID wird aktualisiert
	time.Sleep(2 * time.Millisecond) // Artefakt-IDs sind millisekundengenau
	_, err = pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)
	assert.Equal(t, 1, postCalls)
	assert.Equal(t, 1, patchCalls)
}

func TestGenerate_VeralteteGistIDHeiltSichSelbst(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case "PATCH":
			// Die gemerkte Gist wurde extern gelöscht
			w.WriteHeader(http.StatusNotFound)
		case "POST":
			w.WriteHeader(http.StatusCreated)
			json.NewEncoder(w).Encode(map[string]string{"id": "frisch", "html_url": "https://gist.github.com/u/frisch"})
		}
	}))
	defer server.Close()

	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "x"})
	pipeline.GistBaseURL = server.URL
	cfg.GistEnabled = true
	cfg.GistToken = "token"
	cfg.GistID = "veraltet"
	seedChat(t, store, models.ModeCoach, 2)

	art, err := pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)
	assert.Equal(t, "frisch", cfg.GistID)
	assert.Equal(t, "https://gist.github.com/u/frisch", art.GistURL)
}

func TestGenerate_GistFehlerIstNichtFatal(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	pipeline, store, cfg := newTestPipeline(t, &fakeProvider{content: "x"})
	pipeline.GistBaseURL = server.URL
	cfg.GistEnabled = true
	cfg.GistToken = "token"
	seedChat(t, store, models.ModeCoach, 2)

	// Das Artefakt bleibt trotz Gist-Fehler bestehen
	art, err := pipeline.Generate(context.Background(), models.ModeCoach)
	require.NoError(t, err)
	assert.Empty(t, art.GistURL)

	saved, err := store.GetArtifact(art.ID)
	require.NoError(t, err)
	assert.Empty(t, saved.GistURL)
}
