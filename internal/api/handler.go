package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"rustmentor/internal/artifact"
	"rustmentor/internal/config"
	"rustmentor/internal/llm"
	"rustmentor/internal/models"
	"rustmentor/internal/pdf"
	"rustmentor/internal/progress"
	"rustmentor/internal/quiz"
	"rustmentor/internal/session"
	"rustmentor/internal/storage"
	"rustmentor/internal/tts"
)

// Handler verwaltet alle API-Endpunkte
type Handler struct {
	store    storage.Storage
	config   *config.Config
	mentor   *llm.Mentor
	tracker  *progress.Tracker
	engine   *session.Engine
	pipeline *artifact.Pipeline
	quiz     *quiz.Flow
	speaker  *tts.Speaker
	upgrader websocket.Upgrader
}

// NewHandler erstellt einen neuen API-Handler
func NewHandler(store storage.Storage, cfg *config.Config) *Handler {
	mentor := llm.NewMentor(cfg)
	tracker := progress.NewTracker(store, cfg)

	return &Handler{
		store:    store,
		config:   cfg,
		mentor:   mentor,
		tracker:  tracker,
		engine:   session.NewEngine(store, cfg, tracker),
		pipeline: artifact.NewPipeline(store, cfg, mentor, tracker),
		quiz:     quiz.NewFlow(mentor, tracker),
		speaker:  tts.NewSpeaker(cfg),
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// Response-Helper
func jsonResponse(w http.ResponseWriter, data interface{}, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func errorResponse(w http.ResponseWriter, message string, status int) {
	jsonResponse(w, map[string]string{"error": message}, status)
}

// parseMode liest den Chat-Modus aus der URL
func parseMode(r *http.Request) (models.ChatMode, error) {
	switch mux.Vars(r)["mode"] {
	case string(models.ModeCoach):
		return models.ModeCoach, nil
	case string(models.ModeFeynman):
		return models.ModeFeynman, nil
	}
	return "", fmt.Errorf("unbekannter Chat-Modus %q", mux.Vars(r)["mode"])
}

// === System Endpoints ===

func (h *Handler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 5*time.Second)
	defer cancel()

	available := false
	name := h.config.Provider
	if provider, err := h.mentor.Provider(); err == nil {
		available = provider.IsAvailable(ctx)
		name = provider.GetName()
	}

	jsonResponse(w, map[string]interface{}{
		"status":        "ok",
		"llm_available": available,
		"llm_provider":  name,
		"timestamp":     time.Now(),
	}, http.StatusOK)
}

func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	prog, err := h.tracker.Progress()
	if err != nil {
		errorResponse(w, "Fehler beim Laden des Fortschritts", http.StatusInternalServerError)
		return
	}
	artifacts, _ := h.store.GetAllArtifacts()

	jsonResponse(w, map[string]interface{}{
		"provider":        h.config.Provider,
		"model":           h.config.Model,
		"language":        h.config.Language,
		"level":           h.tracker.Level(),
		"coverage":        h.tracker.Coverage(),
		"total_sessions":  prog.TotalSessions,
		"artifacts_count": len(artifacts),
	}, http.StatusOK)
}

// === Fortschritt Endpoints ===

func (h *Handler) GetProgress(w http.ResponseWriter, r *http.Request) {
	prog, err := h.tracker.Progress()
	if err != nil {
		errorResponse(w, "Fehler beim Laden des Fortschritts", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"progress":        prog,
		"topics":          h.tracker.Topics(),
		"current_chapter": h.tracker.CurrentChapter(),
		"coverage":        h.tracker.Coverage(),
		"level":           h.tracker.Level(),
	}, http.StatusOK)
}

// StartChapter setzt das aktive Kapitel per Index
func (h *Handler) StartChapter(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Index int `json:"index"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	if err := h.tracker.StartChapter(req.Index); err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	log.Printf("📖 Kapitel %d gestartet: %s", req.Index, h.tracker.CurrentChapter())
	h.GetProgress(w, r)
}

// === Curriculum Endpoints ===

func (h *Handler) GetCurriculum(w http.ResponseWriter, r *http.Request) {
	cur, err := h.store.GetCurriculum()
	custom := err == nil && cur != nil && cur.Custom

	jsonResponse(w, map[string]interface{}{
		"topics": h.tracker.Topics(),
		"custom": custom,
	}, http.StatusOK)
}

// ReplaceCurriculum ersetzt die Themenliste. Eine leere Liste stellt
// die Standardliste wieder her; beide Wege setzen den Fortschritt
// zurück und leeren die Chat-Verläufe.
func (h *Handler) ReplaceCurriculum(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Topics []string `json:"topics"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	if err := h.tracker.ReplaceCurriculum(req.Topics); err != nil {
		errorResponse(w, "Fehler beim Ersetzen des Curriculums", http.StatusInternalServerError)
		return
	}
	h.quiz.Abandon()

	jsonResponse(w, map[string]interface{}{
		"message": "Curriculum ersetzt",
		"topics":  h.tracker.Topics(),
	}, http.StatusOK)
}

// UploadCurriculum extrahiert ein Curriculum aus einem PDF
func (h *Handler) UploadCurriculum(w http.ResponseWriter, r *http.Request) {
	// Max 50MB
	r.ParseMultipartForm(50 << 20)

	file, header, err := r.FormFile("file")
	if err != nil {
		errorResponse(w, "Keine Datei gefunden", http.StatusBadRequest)
		return
	}
	defer file.Close()

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("📄 CURRICULUM AUS PDF - %s", header.Filename)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	doc, err := pdf.ParseFromReader(file, header.Filename)
	if err != nil {
		errorResponse(w, fmt.Sprintf("Fehler beim Parsen: %v", err), http.StatusBadRequest)
		return
	}
	log.Printf("   ✓ %d Seiten, %d Zeichen extrahiert", doc.PageCount, len(doc.Content))

	// Eigener Context mit langem Timeout (nicht abhängig vom HTTP-Request)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	log.Println("🤖 Analysiere Dokument mit KI...")
	topics, err := h.mentor.ExtractCurriculum(ctx, doc.Content)
	if err != nil {
		log.Printf("❌ Fehler bei der Analyse: %v", err)
		errorResponse(w, fmt.Sprintf("Fehler bei der Analyse: %v", err), http.StatusInternalServerError)
		return
	}
	log.Printf("   ✓ %d Themen gefunden", len(topics))

	if err := h.tracker.ReplaceCurriculum(topics); err != nil {
		errorResponse(w, "Fehler beim Speichern des Curriculums", http.StatusInternalServerError)
		return
	}
	h.quiz.Abandon()

	log.Println("✅ Curriculum ersetzt, Fortschritt zurückgesetzt")
	jsonResponse(w, map[string]interface{}{
		"message": "Curriculum aus PDF übernommen",
		"topics":  topics,
	}, http.StatusCreated)
}

// === Chat Endpoints ===

func (h *Handler) GetChatHistory(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	messages, err := h.engine.History(mode)
	if err != nil {
		errorResponse(w, "Fehler beim Laden", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"messages": messages,
		"busy":     h.engine.Busy(mode),
	}, http.StatusOK)
}

func (h *Handler) ClearChatHistory(w http.ResponseWriter, r *http.Request) {
	mode, err := parseMode(r)
	if err != nil {
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	}

	if err := h.store.ClearChatHistory(mode); err != nil {
		errorResponse(w, "Fehler beim Löschen", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{"message": "Verlauf gelöscht"}, http.StatusOK)
}

// ChatStream streamt eine Mentor-Antwort über WebSocket. Der Client
// schickt eine JSON-Nachricht {mode, message}; der Server antwortet
// mit Chunks {content, done} in Ankunftsreihenfolge.
func (h *Handler) ChatStream(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	var req struct {
		Mode    string `json:"mode"`
		Message string `json:"message"`
	}
	if err := conn.ReadJSON(&req); err != nil {
		return
	}

	mode := models.ChatMode(req.Mode)
	if mode != models.ModeCoach && mode != models.ModeFeynman {
		conn.WriteJSON(map[string]string{"error": "unbekannter Chat-Modus"})
		return
	}

	msg, err := h.engine.Send(r.Context(), mode, req.Message, func(delta string) {
		conn.WriteJSON(map[string]interface{}{
			"content": delta,
			"done":    false,
		})
	})

	switch {
	case errors.Is(err, session.ErrBusy):
		conn.WriteJSON(map[string]string{"error": "Es läuft bereits eine Antwort, bitte warten"})
		return
	case errors.Is(err, session.ErrEmptyMessage):
		conn.WriteJSON(map[string]string{"error": "Leere Nachricht"})
		return
	}

	// Bei einem Stream-Fehler steht die Fehlernachricht bereits im
	// Verlauf; dem Client wird sie als letzte Nachricht mitgegeben.
	resp := map[string]interface{}{"done": true}
	if msg != nil {
		resp["message"] = msg
	}
	if err != nil {
		resp["error"] = err.Error()
	}
	conn.WriteJSON(resp)
}

// === Artefakt Endpoints ===

func (h *Handler) GetArtifacts(w http.ResponseWriter, r *http.Request) {
	artifacts, err := h.store.GetAllArtifacts()
	if err != nil {
		errorResponse(w, "Fehler beim Laden", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]interface{}{
		"artifacts": artifacts,
		"count":     len(artifacts),
	}, http.StatusOK)
}

func (h *Handler) GetArtifact(w http.ResponseWriter, r *http.Request) {
	art, err := h.store.GetArtifact(mux.Vars(r)["id"])
	if err != nil {
		errorResponse(w, "Artefakt nicht gefunden", http.StatusNotFound)
		return
	}

	jsonResponse(w, art, http.StatusOK)
}

func (h *Handler) GenerateArtifact(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Mode string `json:"mode"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	mode := models.ChatMode(req.Mode)
	if mode != models.ModeCoach && mode != models.ModeFeynman {
		errorResponse(w, "Unbekannter Chat-Modus", http.StatusBadRequest)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	art, err := h.pipeline.Generate(ctx, mode)
	if errors.Is(err, artifact.ErrNotEnoughMessages) {
		errorResponse(w, "Zu wenig Gesprächsverlauf für ein Artefakt", http.StatusBadRequest)
		return
	}
	if err != nil {
		errorResponse(w, fmt.Sprintf("Fehler bei der Generierung: %v", err), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, art, http.StatusCreated)
}

// === Quiz Endpoints ===

func (h *Handler) StartQuiz(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	attempt, err := h.quiz.Start(ctx)
	if errors.Is(err, quiz.ErrCurriculumDone) {
		errorResponse(w, "Curriculum abgeschlossen, kein Kapitel für ein Quiz", http.StatusConflict)
		return
	}
	if err != nil {
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, attempt, http.StatusOK)
}

func (h *Handler) GetQuiz(w http.ResponseWriter, r *http.Request) {
	attempt, err := h.quiz.Current()
	if err != nil {
		errorResponse(w, "Kein aktives Quiz", http.StatusNotFound)
		return
	}
	jsonResponse(w, attempt, http.StatusOK)
}

func (h *Handler) SubmitQuiz(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Answers []int `json:"answers"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	attempt, err := h.quiz.Submit(req.Answers)
	switch {
	case errors.Is(err, quiz.ErrNoAttempt):
		errorResponse(w, "Kein aktives Quiz", http.StatusNotFound)
		return
	case errors.Is(err, quiz.ErrNotPresented), errors.Is(err, quiz.ErrIncomplete):
		errorResponse(w, err.Error(), http.StatusBadRequest)
		return
	case err != nil:
		errorResponse(w, err.Error(), http.StatusInternalServerError)
		return
	}

	jsonResponse(w, attempt, http.StatusOK)
}

func (h *Handler) AbandonQuiz(w http.ResponseWriter, r *http.Request) {
	h.quiz.Abandon()
	jsonResponse(w, map[string]string{"message": "Quiz verworfen"}, http.StatusOK)
}

// === Einstellungen Endpoints ===

func (h *Handler) GetSettings(w http.ResponseWriter, r *http.Request) {
	// API-Schlüssel tragen json:"-" und bleiben draußen
	jsonResponse(w, h.config, http.StatusOK)
}

func (h *Handler) UpdateSettings(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Provider      *string `json:"provider"`
		Model         *string `json:"model"`
		CustomBaseURL *string `json:"custom_base_url"`
		Language      *string `json:"language"`
		SyncDir       *string `json:"sync_dir"`
		AutoSync      *bool   `json:"auto_sync"`
		GistEnabled   *bool   `json:"gist_enabled"`
		TTSEnabled    *bool   `json:"tts_enabled"`
		TTSVoice      *string `json:"tts_voice"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	if req.Provider != nil {
		if !llm.IsRegistered(*req.Provider) {
			errorResponse(w, fmt.Sprintf("Unbekannter Provider '%s'", *req.Provider), http.StatusBadRequest)
			return
		}
		h.config.Provider = *req.Provider
	}
	if req.Model != nil {
		h.config.Model = *req.Model
	}
	if req.CustomBaseURL != nil {
		h.config.CustomBaseURL = *req.CustomBaseURL
	}
	if req.Language != nil {
		if *req.Language != "en" && *req.Language != "zh" {
			errorResponse(w, "Sprache muss 'en' oder 'zh' sein", http.StatusBadRequest)
			return
		}
		h.config.Language = *req.Language
	}
	if req.SyncDir != nil {
		h.config.SyncDir = *req.SyncDir
	}
	if req.AutoSync != nil {
		h.config.AutoSync = *req.AutoSync
	}
	if req.GistEnabled != nil {
		h.config.GistEnabled = *req.GistEnabled
	}
	if req.TTSEnabled != nil {
		h.config.TTSEnabled = *req.TTSEnabled
	}
	if req.TTSVoice != nil {
		h.config.TTSVoice = *req.TTSVoice
	}

	if err := h.config.Persist(); err != nil {
		errorResponse(w, "Fehler beim Speichern der Einstellungen", http.StatusInternalServerError)
		return
	}

	log.Printf("⚙️ Einstellungen aktualisiert (Provider: %s, Modell: %s)", h.config.Provider, h.config.Model)
	jsonResponse(w, h.config, http.StatusOK)
}

// === Sprachausgabe ===

// Synthesize liest einen Text vor und liefert rohe PCM-Daten
// (LINEAR16, 24 kHz, mono)
func (h *Handler) Synthesize(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text string `json:"text"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, "Ungültige Anfrage", http.StatusBadRequest)
		return
	}

	audio, err := h.speaker.Synthesize(r.Context(), req.Text)
	if errors.Is(err, tts.ErrDisabled) {
		errorResponse(w, "Sprachausgabe ist deaktiviert", http.StatusConflict)
		return
	}
	if err != nil {
		errorResponse(w, fmt.Sprintf("Fehler bei der Sprachausgabe: %v", err), http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "audio/L16; rate="+strconv.Itoa(tts.SampleRate))
	w.WriteHeader(http.StatusOK)
	w.Write(audio)
}

// === Reset ===

// Reset löscht alle Nutzerdaten: Fortschritt, Curriculum, Chats und
// Artefakte
func (h *Handler) Reset(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Reset(); err != nil {
		errorResponse(w, "Fehler beim Zurücksetzen", http.StatusInternalServerError)
		return
	}
	h.quiz.Abandon()

	log.Println("🗑️ Alle Nutzerdaten zurückgesetzt")
	jsonResponse(w, map[string]string{"message": "Alle Daten zurückgesetzt"}, http.StatusOK)
}
