package artifact

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"rustmentor/internal/config"
	"rustmentor/internal/llm"
	"rustmentor/internal/models"
	"rustmentor/internal/progress"
	"rustmentor/internal/storage"
	filesync "rustmentor/internal/sync"
)

// ErrNotEnoughMessages: ein Artefakt braucht mindestens zwei
// vorangegangene Nachrichten
var ErrNotEnoughMessages = errors.New("zu wenig Nachrichten für ein Artefakt (mindestens 2)")

const gistDescription = "Rust Mentor Knowledge Artifacts"

// Pipeline macht aus einer abgeschlossenen Lernsitzung ein
// persistiertes Markdown-Artefakt und spiegelt es optional in den
// lokalen Sync-Ordner und in eine GitHub-Gist. Die drei Seiteneffekte
// sind unabhängig: scheitert ein Spiegel, bleibt das gespeicherte
// Artefakt trotzdem bestehen (best-effort, at-least-once).
type Pipeline struct {
	store   storage.Storage
	cfg     *config.Config
	mentor  *llm.Mentor
	tracker *progress.Tracker

	// GistBaseURL überschreibt den API-Endpunkt (Tests)
	GistBaseURL string
}

// NewPipeline erstellt eine neue Artefakt-Pipeline
func NewPipeline(store storage.Storage, cfg *config.Config, mentor *llm.Mentor, tracker *progress.Tracker) *Pipeline {
	return &Pipeline{store: store, cfg: cfg, mentor: mentor, tracker: tracker}
}

func (p *Pipeline) gistClient() *filesync.GistClient {
	if p.GistBaseURL != "" {
		return filesync.NewGistClientWithBaseURL(p.cfg.GistToken, p.GistBaseURL)
	}
	return filesync.NewGistClient(p.cfg.GistToken)
}

// Generate erzeugt aus dem Chat-Verlauf des Modus ein neues Artefakt.
// Reihenfolge der Seiteneffekte: (a) speichern, (b) lokaler Ordner,
// (c) Gist. (b) und (c) sind best-effort.
func (p *Pipeline) Generate(ctx context.Context, mode models.ChatMode) (*models.LearningArtifact, error) {
	history, err := p.store.GetChatHistory(mode)
	if err != nil {
		return nil, err
	}
	if len(history) < 2 {
		return nil, ErrNotEnoughMessages
	}

	log.Printf("📝 Erzeuge Artefakt aus %d Nachrichten (%s)", len(history), mode)

	content, err := p.mentor.GenerateArtifact(ctx, history)
	if err != nil {
		return nil, fmt.Errorf("artefakt-generierung fehlgeschlagen: %w", err)
	}

	now := time.Now()
	title := fmt.Sprintf("Learning Session: %s", now.Format("2006-01-02"))
	if p.cfg.Language == "zh" {
		title = fmt.Sprintf("学习成果: %s", now.Format("2006-01-02"))
	}

	tag := "Mentorship"
	if mode == models.ModeFeynman {
		tag = "Feynman"
	}

	art := &models.LearningArtifact{
		ID:        fmt.Sprintf("%d", now.UnixMilli()),
		Title:     title,
		Date:      now.Format("2006-01-02"),
		Content:   content,
		Tags:      []string{"Rust", "Session", tag},
		CreatedAt: now,
	}

	// (a) Persistieren — der einzige Schritt, der scheitern darf
	if err := p.store.SaveArtifact(art); err != nil {
		return nil, err
	}

	// (b) Lokaler Ordner
	p.syncToFolder(art)

	// (c) Gist
	p.syncToGist(ctx, art)

	if err := p.tracker.IncrementSessions(); err != nil {
		log.Printf("⚠️  Konnte Sitzungszähler nicht erhöhen: %v", err)
	}

	return art, nil
}

func (p *Pipeline) syncToFolder(art *models.LearningArtifact) {
	if !p.cfg.AutoSync {
		return
	}
	sink := filesync.NewFolderSink(p.cfg.SyncDir)
	if !sink.Available() {
		return
	}

	name := filesync.ArtifactFileName(art)
	status, err := sink.Write(name, filesync.RenderArtifact(art))
	switch status {
	case filesync.WriteOK:
		log.Printf("   ✓ Lokal gespiegelt: %s", name)
	case filesync.WriteDenied:
		log.Printf("   ⚠️  Keine Berechtigung für Sync-Ordner, übersprungen: %v", err)
	default:
		log.Printf("   ⚠️  Lokaler Sync fehlgeschlagen: %v", err)
	}
}

// syncToGist aktualisiert die gemerkte Gist oder legt eine neue an.
// Eine 404 auf eine veraltete ID heilt sich selbst: ID verwerfen,
// frisch anlegen, neue ID merken.
func (p *Pipeline) syncToGist(ctx context.Context, art *models.LearningArtifact) {
	if !p.cfg.GistEnabled || p.cfg.GistToken == "" {
		return
	}

	client := p.gistClient()
	name := filesync.ArtifactFileName(art)
	content := filesync.RenderArtifact(art)

	var url string
	var err error

	if p.cfg.GistID != "" {
		url, err = client.Update(ctx, p.cfg.GistID, name, content)
		if errors.Is(err, filesync.ErrGistNotFound) {
			log.Printf("   ⚠️  Gemerkte Gist %s existiert nicht mehr, lege neu an", p.cfg.GistID)
			p.cfg.GistID = ""
			err = nil
		} else if err != nil {
			log.Printf("   ⚠️  Gist-Sync fehlgeschlagen: %v", err)
			return
		}
	}

	if p.cfg.GistID == "" {
		var id string
		id, url, err = client.Create(ctx, gistDescription, name, content)
		if err != nil {
			log.Printf("   ⚠️  Gist-Anlage fehlgeschlagen: %v", err)
			return
		}
		p.cfg.GistID = id
	}

	if err := p.cfg.Persist(); err != nil {
		log.Printf("   ⚠️  Konnte Gist-ID nicht persistieren: %v", err)
	}

	art.GistURL = url
	if err := p.store.SetArtifactGistURL(art.ID, url); err != nil {
		log.Printf("   ⚠️  Konnte Gist-URL nicht speichern: %v", err)
		return
	}
	log.Printf("   ✓ In Gist gespiegelt: %s", url)
}
