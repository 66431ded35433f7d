package session

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"rustmentor/internal/config"
	"rustmentor/internal/llm"
	"rustmentor/internal/models"
	"rustmentor/internal/progress"
	"rustmentor/internal/storage"
)

// ErrBusy: pro Chat-Modus ist höchstens eine Generierung gleichzeitig
// erlaubt
var ErrBusy = errors.New("es läuft bereits eine Generierung für diesen Chat")

// ErrEmptyMessage: leere Eingaben werden nicht gesendet
var ErrEmptyMessage = errors.New("leere Nachricht")

// Engine verwaltet die beiden Chat-Verläufe (Coach und Feynman).
// Jeder Verlauf ist append-only; während des Streamings wird nur die
// letzte Model-Nachricht fortgeschrieben, in Ankunftsreihenfolge.
type Engine struct {
	mu       sync.Mutex
	inFlight map[models.ChatMode]bool

	store   storage.Storage
	cfg     *config.Config
	tracker *progress.Tracker
}

// NewEngine erstellt eine neue Chat-Engine
func NewEngine(store storage.Storage, cfg *config.Config, tracker *progress.Tracker) *Engine {
	return &Engine{
		inFlight: make(map[models.ChatMode]bool),
		store:    store,
		cfg:      cfg,
		tracker:  tracker,
	}
}

// History gibt den Verlauf eines Chat-Modus zurück
func (e *Engine) History(mode models.ChatMode) ([]models.Message, error) {
	return e.store.GetChatHistory(mode)
}

// Busy meldet, ob für den Modus gerade eine Generierung läuft
func (e *Engine) Busy(mode models.ChatMode) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.inFlight[mode]
}

func (e *Engine) acquire(mode models.ChatMode) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.inFlight[mode] {
		return ErrBusy
	}
	e.inFlight[mode] = true
	return nil
}

func (e *Engine) release(mode models.ChatMode) {
	e.mu.Lock()
	e.inFlight[mode] = false
	e.mu.Unlock()
}

func newMessageID() string {
	return fmt.Sprintf("msg_%d", time.Now().UnixNano())
}

// Send hängt die Nutzer-Nachricht an den Verlauf, streamt die Antwort
// des Mentors in eine neue Model-Nachricht und ruft onChunk für jeden
// eintreffenden Textbaustein auf. Der Aufruf ist synchron; die
// Abbruch-Prüfung über ctx greift zwischen den Chunks. Ein Transport-
// oder Provider-Fehler erzeugt genau eine abschließende
// System-Nachricht; bereits empfangener Teiltext bleibt erhalten.
func (e *Engine) Send(ctx context.Context, mode models.ChatMode, text string, onChunk func(delta string)) (*models.Message, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyMessage
	}
	if err := e.acquire(mode); err != nil {
		return nil, err
	}
	defer e.release(mode)

	userMsg := &models.Message{
		ID:        newMessageID(),
		Mode:      mode,
		Role:      models.RoleUser,
		Text:      text,
		Timestamp: time.Now(),
	}
	if err := e.store.SaveChatMessage(userMsg); err != nil {
		return nil, err
	}

	history, err := e.store.GetChatHistory(mode)
	if err != nil {
		return nil, err
	}

	chapterFocus := ""
	if mode == models.ModeCoach {
		chapterFocus = e.tracker.CurrentChapter()
	}
	system := llm.SystemPrompt(e.cfg.Language, chapterFocus, mode)

	chatHistory := make([]llm.ChatMessage, 0, len(history))
	for _, m := range history {
		// System-Fehlermeldungen gehören nicht in den Prompt
		if m.Role == models.RoleSystem {
			continue
		}
		chatHistory = append(chatHistory, llm.ChatMessage{Role: m.Role, Content: m.Text})
	}

	provider, err := llm.FromConfig(e.cfg)
	if err != nil {
		return e.appendFailure(mode, err)
	}

	chunks, err := provider.ChatStream(ctx, chatHistory, &llm.GenerateOptions{
		Temperature: 0.7,
		System:      system,
	})
	if err != nil {
		return e.appendFailure(mode, err)
	}

	// Leere Model-Nachricht anlegen und während des Streamings füllen
	modelMsg := &models.Message{
		ID:        newMessageID(),
		Mode:      mode,
		Role:      models.RoleModel,
		Timestamp: time.Now(),
	}
	if err := e.store.SaveChatMessage(modelMsg); err != nil {
		return nil, err
	}

	var full strings.Builder
	var streamErr error

loop:
	for {
		select {
		case <-ctx.Done():
			streamErr = ctx.Err()
			break loop
		case chunk, ok := <-chunks:
			if !ok {
				break loop
			}
			if chunk.Error != nil {
				streamErr = chunk.Error
				break loop
			}
			if chunk.Content != "" {
				full.WriteString(chunk.Content)
				if onChunk != nil {
					onChunk(chunk.Content)
				}
			}
			if chunk.Done {
				break loop
			}
		}
	}

	// Teiltext behalten, auch bei Fehler oder Abbruch
	modelMsg.Text = full.String()
	if err := e.store.UpdateChatMessageText(modelMsg.ID, modelMsg.Text); err != nil {
		log.Printf("⚠️  Konnte Model-Nachricht nicht speichern: %v", err)
	}

	if streamErr != nil {
		if _, err := e.appendFailure(mode, streamErr); err != nil {
			return nil, err
		}
		return modelMsg, streamErr
	}

	return modelMsg, nil
}

// appendFailure hängt genau eine abschließende System-Nachricht an
// den Verlauf und gibt sie zurück
func (e *Engine) appendFailure(mode models.ChatMode, cause error) (*models.Message, error) {
	log.Printf("❌ Mentor-Fehler (%s): %v", mode, cause)

	text := "Error connecting to mentor. Please check your connection or configuration."
	if e.cfg.Language == "zh" {
		text = "连接导师失败，请检查网络或配置。"
	}

	sysMsg := &models.Message{
		ID:        newMessageID(),
		Mode:      mode,
		Role:      models.RoleSystem,
		Text:      text,
		Timestamp: time.Now(),
	}
	if err := e.store.SaveChatMessage(sysMsg); err != nil {
		return nil, err
	}
	return sysMsg, cause
}
