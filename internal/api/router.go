package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/cors"
)

// NewRouter erstellt den HTTP-Router mit allen Endpoints
func NewRouter(h *Handler) http.Handler {
	r := mux.NewRouter()

	// API-Version
	api := r.PathPrefix("/api/v1").Subrouter()

	// System
	api.HandleFunc("/health", h.HealthCheck).Methods("GET")
	api.HandleFunc("/status", h.GetStatus).Methods("GET")

	// Fortschritt
	api.HandleFunc("/progress", h.GetProgress).Methods("GET")
	api.HandleFunc("/progress/chapter", h.StartChapter).Methods("POST")

	// Curriculum
	api.HandleFunc("/curriculum", h.GetCurriculum).Methods("GET")
	api.HandleFunc("/curriculum", h.ReplaceCurriculum).Methods("PUT")
	api.HandleFunc("/curriculum/upload", h.UploadCurriculum).Methods("POST")

	// Chat
	api.HandleFunc("/chat/stream", h.ChatStream)
	api.HandleFunc("/chat/{mode}/history", h.GetChatHistory).Methods("GET")
	api.HandleFunc("/chat/{mode}/history", h.ClearChatHistory).Methods("DELETE")

	// Artefakte
	api.HandleFunc("/artifacts", h.GetArtifacts).Methods("GET")
	api.HandleFunc("/artifacts/generate", h.GenerateArtifact).Methods("POST")
	api.HandleFunc("/artifacts/{id}", h.GetArtifact).Methods("GET")

	// Quiz
	api.HandleFunc("/quiz", h.GetQuiz).Methods("GET")
	api.HandleFunc("/quiz", h.AbandonQuiz).Methods("DELETE")
	api.HandleFunc("/quiz/start", h.StartQuiz).Methods("POST")
	api.HandleFunc("/quiz/submit", h.SubmitQuiz).Methods("POST")

	// Einstellungen
	api.HandleFunc("/settings", h.GetSettings).Methods("GET")
	api.HandleFunc("/settings", h.UpdateSettings).Methods("PUT")

	// Sprachausgabe
	api.HandleFunc("/speech", h.Synthesize).Methods("POST")

	// Reset
	api.HandleFunc("/reset", h.Reset).Methods("POST")

	// Statische Dateien (Frontend)
	r.PathPrefix("/").Handler(http.FileServer(http.Dir(h.config.StaticPath)))

	// CORS für lokale Entwicklung
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Content-Type", "Authorization"},
		AllowCredentials: true,
	})

	return c.Handler(r)
}
