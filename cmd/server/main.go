package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"rustmentor/internal/api"
	"rustmentor/internal/config"
	"rustmentor/internal/llm"
	"rustmentor/internal/storage"
)

func main() {
	log.SetFlags(log.Ltime | log.Lmsgprefix)
	log.SetPrefix("")

	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("🦀 RUST MENTOR - Start")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")

	// API-Schlüssel aus .env (optional)
	if err := godotenv.Load(); err == nil {
		log.Println("🔑 .env geladen")
	}

	// Kommandozeilen-Flags
	configPath := flag.String("config", "config.json", "Pfad zur Konfigurationsdatei")
	port := flag.String("port", "", "Server-Port (überschreibt Konfiguration)")
	flag.Parse()

	// Konfiguration laden
	log.Println("📋 Lade Konfiguration...")
	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Printf("⚠️  Konnte Konfiguration nicht laden, verwende Standardwerte: %v", err)
	} else {
		log.Printf("   ✓ Konfiguration geladen: %s", *configPath)
	}
	if *port != "" {
		cfg.ServerPort = *port
	}

	// Storage initialisieren
	log.Println("💾 Initialisiere Datenbank...")
	store, err := storage.NewSQLiteStorage(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("❌ Fehler beim Initialisieren der Datenbank: %v", err)
	}
	defer store.Close()
	log.Printf("   ✓ Datenbank: %s", cfg.DatabasePath)

	// LLM-Provider prüfen
	log.Println("🤖 Prüfe LLM-Provider...")
	provider, err := llm.FromConfig(cfg)
	if err != nil {
		log.Printf("   ⚠️  Provider '%s' nicht nutzbar: %v", cfg.Provider, err)
		log.Println("      API-Schlüssel in .env eintragen, z.B. GEMINI_API_KEY=...")
	} else {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if provider.IsAvailable(ctx) {
			log.Printf("   ✓ Provider erreichbar: %s (Modell: %s)", provider.GetName(), cfg.Model)
		} else {
			log.Printf("   ⚠️  Provider '%s' NICHT erreichbar", provider.GetName())
		}
		cancel()
	}

	// API-Handler und Router erstellen
	handler := api.NewHandler(store, cfg)
	router := api.NewRouter(handler)

	// Server starten
	server := &http.Server{
		Addr:    ":" + cfg.ServerPort,
		Handler: router,
	}

	// Graceful Shutdown
	go func() {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
		<-sigChan
		log.Println("")
		log.Println("⏹️  Server wird heruntergefahren...")
		server.Close()
	}()

	log.Println("")
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Printf("✅ Server läuft auf: http://localhost:%s", cfg.ServerPort)
	log.Println("━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━")
	log.Println("📁 Artefakt-Ordner:", cfg.SyncDir)
	log.Println("💡 Drücke Strg+C zum Beenden")
	log.Println("")

	if err := server.ListenAndServe(); err != http.ErrServerClosed {
		log.Fatalf("Server-Fehler: %v", err)
	}
}
