package models

import "time"

// ChatMode unterscheidet die beiden Lern-Chats
type ChatMode string

const (
	ModeCoach   ChatMode = "coach"   // Mentor beantwortet Fragen zum aktuellen Kapitel
	ModeFeynman ChatMode = "feynman" // Nutzer erklärt, Mentor findet Lücken
)

// Rollen einer Chat-Nachricht
const (
	RoleUser   = "user"
	RoleModel  = "model"
	RoleSystem = "system"
)

// Message repräsentiert eine Nachricht im Lern-Chat.
// Pro Modus ein append-only Verlauf; nur die letzte Model-Nachricht
// wird während des Streamings fortgeschrieben.
type Message struct {
	ID        string    `json:"id"`
	Mode      ChatMode  `json:"mode"`
	Role      string    `json:"role"` // user, model, system
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// LearningArtifact ist eine persistierte Markdown-Zusammenfassung
// einer Lernsitzung. Nach der Erstellung unveränderlich, bis auf die
// GistURL, die nach erfolgreichem Cloud-Sync gesetzt wird.
type LearningArtifact struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Date      string    `json:"date"` // YYYY-MM-DD, Teil des Dateinamens
	Content   string    `json:"content"`
	Tags      []string  `json:"tags"`
	GistURL   string    `json:"gist_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// QuizQuestion ist eine Multiple-Choice-Frage mit genau 4 Optionen.
// Fragen werden pro Versuch frisch generiert und nie gespeichert.
type QuizQuestion struct {
	Question           string   `json:"question"`
	Options            []string `json:"options"`
	CorrectAnswerIndex int      `json:"correctAnswerIndex"`
	Explanation        string   `json:"explanation"`
}

// UserProgress hält den Lernfortschritt durch das aktive Curriculum.
type UserProgress struct {
	CurrentChapterIndex int   `json:"current_chapter_index"`
	CompletedChapters   []int `json:"completed_chapters"`
	TotalSessions       int   `json:"total_sessions"`
}

// Curriculum ist die geordnete Kapitelliste: entweder die eingebaute
// Standardliste oder eine vom Nutzer hochgeladene (ersetzt vollständig,
// kein Merge). Kapitelindizes sind stabile Positionen in der aktiven Liste.
type Curriculum struct {
	Topics []string `json:"topics"`
	Custom bool     `json:"custom"`
}
