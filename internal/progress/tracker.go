package progress

import (
	"fmt"
	"log"
	"math"
	"sync"

	"rustmentor/internal/config"
	"rustmentor/internal/models"
	"rustmentor/internal/storage"
)

// Eingebaute Standard-Curricula. Beide Listen sind parallele
// Übersetzungen: gleiche Länge, damit Kapitelindizes beim
// Sprachwechsel stabil bleiben.
var defaultTopicsEN = []string{
	"Getting Started & Cargo",
	"Variables & Mutability",
	"Ownership",
	"Borrowing & References",
	"Lifetimes",
	"Structs & Enums",
	"Pattern Matching",
	"Error Handling",
	"Generics & Traits",
	"Collections & Iterators",
	"Smart Pointers",
	"Concurrency & Async",
}

var defaultTopicsZH = []string{
	"入门与 Cargo",
	"变量与可变性",
	"所有权",
	"借用与引用",
	"生命周期",
	"结构体与枚举",
	"模式匹配",
	"错误处理",
	"泛型与 Trait",
	"集合与迭代器",
	"智能指针",
	"并发与异步",
}

// Tracker verwaltet Curriculum und Lernfortschritt. Alle Übergänge
// sind reine lokale Zustandsänderungen ohne Retry-Logik.
type Tracker struct {
	mu    sync.Mutex
	store storage.Storage
	cfg   *config.Config
}

// NewTracker erstellt einen neuen Fortschritts-Tracker
func NewTracker(store storage.Storage, cfg *config.Config) *Tracker {
	return &Tracker{store: store, cfg: cfg}
}

// Topics gibt die aktive Kapitelliste zurück: das hochgeladene
// Curriculum, falls vorhanden, sonst die Standardliste zur Sprache
func (t *Tracker) Topics() []string {
	c, err := t.store.GetCurriculum()
	if err == nil && c != nil && len(c.Topics) > 0 {
		return c.Topics
	}
	if t.cfg.Language == "zh" {
		return defaultTopicsZH
	}
	return defaultTopicsEN
}

// Progress gibt den gespeicherten Fortschritt zurück
func (t *Tracker) Progress() (*models.UserProgress, error) {
	return t.store.GetProgress()
}

// CurrentChapter gibt den Titel des aktiven Kapitels zurück, leer
// wenn das Curriculum abgeschlossen ist
func (t *Tracker) CurrentChapter() string {
	p, err := t.store.GetProgress()
	if err != nil {
		return ""
	}
	topics := t.Topics()
	if p.CurrentChapterIndex < 0 || p.CurrentChapterIndex >= len(topics) {
		return ""
	}
	return topics[p.CurrentChapterIndex]
}

// StartChapter setzt das aktive Kapitel auf den gegebenen Index
func (t *Tracker) StartChapter(index int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	topics := t.Topics()
	if index < 0 || index >= len(topics) {
		return fmt.Errorf("ungültiger Kapitelindex %d (Curriculum hat %d Kapitel)", index, len(topics))
	}

	p, err := t.store.GetProgress()
	if err != nil {
		return err
	}
	p.CurrentChapterIndex = index
	return t.store.SaveProgress(p)
}

// CompleteChapter markiert das aktive Kapitel als bestanden und
// rückt um eins vor. Darf nur nach einem perfekten Quiz aufgerufen
// werden; das erzwingt der Quiz-Flow. Bereits bestandene Kapitel
// bleiben bestanden.
func (t *Tracker) CompleteChapter() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.store.GetProgress()
	if err != nil {
		return err
	}

	already := false
	for _, idx := range p.CompletedChapters {
		if idx == p.CurrentChapterIndex {
			already = true
			break
		}
	}
	if !already {
		p.CompletedChapters = append(p.CompletedChapters, p.CurrentChapterIndex)
	}
	p.CurrentChapterIndex++

	return t.store.SaveProgress(p)
}

// ReplaceCurriculum ersetzt die Kapitelliste vollständig und setzt
// den Fortschritt zurück. Die Chat-Verläufe beider Modi werden
// geleert, da sie sich auf das alte Curriculum beziehen. Eine leere
// Liste reaktiviert die Standardliste.
func (t *Tracker) ReplaceCurriculum(topics []string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(topics) == 0 {
		if err := t.store.DeleteCurriculum(); err != nil {
			return err
		}
	} else {
		if err := t.store.SaveCurriculum(&models.Curriculum{Topics: topics, Custom: true}); err != nil {
			return err
		}
	}

	p, err := t.store.GetProgress()
	if err != nil {
		return err
	}
	p.CurrentChapterIndex = 0
	p.CompletedChapters = []int{}
	if err := t.store.SaveProgress(p); err != nil {
		return err
	}

	for _, mode := range []models.ChatMode{models.ModeCoach, models.ModeFeynman} {
		if err := t.store.ClearChatHistory(mode); err != nil {
			log.Printf("⚠️  Konnte Chat-Verlauf (%s) nicht leeren: %v", mode, err)
		}
	}

	return nil
}

// IncrementSessions zählt eine abgeschlossene Lernsitzung
func (t *Tracker) IncrementSessions() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	p, err := t.store.GetProgress()
	if err != nil {
		return err
	}
	p.TotalSessions++
	return t.store.SaveProgress(p)
}

// Coverage berechnet den Abdeckungsgrad in Prozent, gerundet.
// Leere Curricula zählen als 0%, nie Division durch null.
func (t *Tracker) Coverage() int {
	p, err := t.store.GetProgress()
	if err != nil {
		return 0
	}
	total := len(t.Topics())
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(len(p.CompletedChapters)) / float64(total)))
}

// Level leitet das Niveau-Label aus der Anzahl bestandener Kapitel ab
func (t *Tracker) Level() string {
	p, err := t.store.GetProgress()
	if err != nil {
		return "Beginner"
	}
	if len(p.CompletedChapters) > 5 {
		return "Intermediate"
	}
	return "Beginner"
}
