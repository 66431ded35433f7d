package quiz

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	"rustmentor/internal/llm"
	"rustmentor/internal/models"
	"rustmentor/internal/progress"
)

// State ist der Zustand eines Quiz-Versuchs
type State string

const (
	StateLoading   State = "loading"
	StatePresented State = "presented"
	StateSubmitted State = "submitted" // terminal, nur noch Review
	StateFailed    State = "failed"    // Laden fehlgeschlagen, Retry möglich
)

var (
	// ErrNoAttempt: es läuft kein Quiz-Versuch
	ErrNoAttempt = errors.New("kein aktiver Quiz-Versuch")
	// ErrNotPresented: Operation passt nicht zum Zustand
	ErrNotPresented = errors.New("quiz ist nicht im Zustand 'presented'")
	// ErrIncomplete: erst abgeben, wenn jede Frage beantwortet ist
	ErrIncomplete = errors.New("nicht alle Fragen beantwortet")
	// ErrCurriculumDone: kein aktives Kapitel mehr
	ErrCurriculumDone = errors.New("curriculum abgeschlossen, kein Kapitel für ein Quiz")
)

// Attempt ist ein einzelner Quiz-Versuch. Fragen werden pro Versuch
// frisch generiert und nie persistiert; ein Retry verwirft den
// Versuch vollständig.
type Attempt struct {
	State     State                 `json:"state"`
	Chapter   string                `json:"chapter"`
	Questions []models.QuizQuestion `json:"questions,omitempty"`
	Answers   []int                 `json:"answers,omitempty"`
	Score     int                   `json:"score"`
	Passed    bool                  `json:"passed"`
	Error     string                `json:"error,omitempty"`
}

// Flow steuert den Quiz-Ablauf für das aktive Kapitel:
// Loading -> Presented -> Submitted, mit explizitem Failed-Zustand
// beim Laden. Ein perfektes Ergebnis schaltet das nächste Kapitel
// frei; alles darunter lässt den Fortschritt unangetastet.
type Flow struct {
	mu      sync.Mutex
	mentor  *llm.Mentor
	tracker *progress.Tracker
	attempt *Attempt
}

// NewFlow erstellt einen neuen Quiz-Flow
func NewFlow(mentor *llm.Mentor, tracker *progress.Tracker) *Flow {
	return &Flow{mentor: mentor, tracker: tracker}
}

// Start beginnt einen frischen Versuch für das aktive Kapitel.
// Scheitert die Generierung, landet der Versuch im Zustand Failed
// statt unendlich zu laden; Start kann dann erneut gerufen werden.
func (f *Flow) Start(ctx context.Context) (*Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	chapter := f.tracker.CurrentChapter()
	if chapter == "" {
		return nil, ErrCurriculumDone
	}

	f.attempt = &Attempt{State: StateLoading, Chapter: chapter}

	questions, err := f.mentor.GenerateQuiz(ctx, chapter)
	if err != nil {
		log.Printf("❌ Quiz-Generierung fehlgeschlagen (%s): %v", chapter, err)
		f.attempt.State = StateFailed
		f.attempt.Error = err.Error()
		return f.snapshot(), nil
	}

	answers := make([]int, len(questions))
	for i := range answers {
		answers[i] = -1
	}

	f.attempt.State = StatePresented
	f.attempt.Questions = questions
	f.attempt.Answers = answers
	log.Printf("🧪 Quiz bereit: %d Fragen zu %q", len(questions), chapter)

	return f.snapshot(), nil
}

// Current gibt den aktuellen Versuch zurück
func (f *Flow) Current() (*Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.attempt == nil {
		return nil, ErrNoAttempt
	}
	return f.snapshot(), nil
}

// Submit wertet die Antworten aus. Die Abgabe ist terminal für den
// Versuch; bei voller Punktzahl wird das Kapitel abgeschlossen und
// der Fortschritt rückt vor.
func (f *Flow) Submit(answers []int) (*Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.attempt == nil {
		return nil, ErrNoAttempt
	}
	if f.attempt.State != StatePresented {
		return nil, ErrNotPresented
	}
	if len(answers) != len(f.attempt.Questions) {
		return nil, fmt.Errorf("erwarte %d Antworten, habe %d", len(f.attempt.Questions), len(answers))
	}
	for _, a := range answers {
		if a < 0 || a > 3 {
			return nil, ErrIncomplete
		}
	}

	score := 0
	for i, q := range f.attempt.Questions {
		if answers[i] == q.CorrectAnswerIndex {
			score++
		}
	}

	f.attempt.Answers = answers
	f.attempt.Score = score
	f.attempt.State = StateSubmitted
	f.attempt.Passed = score == len(f.attempt.Questions)

	if f.attempt.Passed {
		log.Printf("✅ Quiz bestanden (%d/%d): %q abgeschlossen", score, len(f.attempt.Questions), f.attempt.Chapter)
		if err := f.tracker.CompleteChapter(); err != nil {
			return nil, err
		}
	} else {
		log.Printf("📉 Quiz nicht bestanden (%d/%d), Fortschritt unverändert", score, len(f.attempt.Questions))
	}

	return f.snapshot(), nil
}

// Abandon verwirft den aktuellen Versuch (zurück zum Dashboard)
func (f *Flow) Abandon() {
	f.mu.Lock()
	f.attempt = nil
	f.mu.Unlock()
}

// snapshot kopiert den Versuch, damit Aufrufer nicht in den
// gesperrten Zustand hineinschreiben
func (f *Flow) snapshot() *Attempt {
	cp := *f.attempt
	cp.Questions = append([]models.QuizQuestion(nil), f.attempt.Questions...)
	cp.Answers = append([]int(nil), f.attempt.Answers...)
	return &cp
}
