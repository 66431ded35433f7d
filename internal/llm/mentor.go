package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"rustmentor/internal/config"
	"rustmentor/internal/models"
)

// Anzahl Fragen pro Quiz-Versuch
const QuizQuestionCount = 3

// Mentor verwaltet die didaktische KI-Logik: System-Prompts,
// Quiz-Generierung, Curriculum-Extraktion und Artefakt-Erstellung.
// Der Provider wird bei jedem Aufruf frisch aus der Konfiguration
// gewählt, damit ein Wechsel in den Einstellungen sofort greift.
type Mentor struct {
	cfg *config.Config
}

// NewMentor erstellt einen neuen Mentor
func NewMentor(cfg *config.Config) *Mentor {
	return &Mentor{cfg: cfg}
}

func (m *Mentor) provider() (Provider, error) {
	return FromConfig(m.cfg)
}

// Provider gibt den aktuell konfigurierten Provider zurück
func (m *Mentor) Provider() (Provider, error) {
	return m.provider()
}

func langText(language string) string {
	if language == "zh" {
		return "Chinese"
	}
	return "English"
}

// SystemPrompt baut die System-Anweisung für den Lern-Chat aus
// Sprache, optionalem Kapitel-Fokus und Chat-Modus
func SystemPrompt(language string, chapterFocus string, mode models.ChatMode) string {
	chapterLine := ""
	if chapterFocus != "" {
		chapterLine = fmt.Sprintf("\nCURRENT CHAPTER FOCUS: %q. Keep explanations and exercises strictly related to this topic.", chapterFocus)
	}

	modeLine := "The user will ask questions or request a curriculum."
	if mode == models.ModeFeynman {
		modeLine = "Wait for the user to explain a concept and then critique it."
	}

	return fmt.Sprintf(`You are a world-class Rust Programming Mentor.
Your goal is to help the user master Rust using the Feynman Technique.
IMPORTANT: Please respond primarily in %s.%s

Key principles:
1. Encourage deep understanding over rote memorization.
2. Focus on core Rust concepts: Ownership, Borrowing, Lifetimes, Safety.
3. If the user is explaining a concept (Feynman Mode), listen carefully, then identify gaps or misunderstandings.
4. Be concise but technically accurate.
5. Provide high-quality Rust code examples using Markdown.
6. Always check if the user is ready for the next level or needs more practice on current topics.

Currently in %s mode. %s`, langText(language), chapterLine, strings.ToUpper(string(mode)), modeLine)
}

// quizSchema beschreibt das erwartete JSON für Gemini
// (responseSchema); andere Provider bekommen die Anweisung im Prompt
var quizSchema = json.RawMessage(`{
  "type": "ARRAY",
  "items": {
    "type": "OBJECT",
    "properties": {
      "question": {"type": "STRING"},
      "options": {"type": "ARRAY", "items": {"type": "STRING"}},
      "correctAnswerIndex": {"type": "NUMBER"},
      "explanation": {"type": "STRING"}
    },
    "required": ["question", "options", "correctAnswerIndex", "explanation"]
  }
}`)

var curriculumSchema = json.RawMessage(`{
  "type": "ARRAY",
  "items": {"type": "STRING"}
}`)

// GenerateQuiz erzeugt ein Quiz mit 3 Multiple-Choice-Fragen zum
// Kapitel. Fragen werden pro Versuch frisch generiert.
func (m *Mentor) GenerateQuiz(ctx context.Context, chapterTitle string) ([]models.QuizQuestion, error) {
	provider, err := m.provider()
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Generate a %d-question multiple choice quiz for the Rust programming topic: %q.
For each question, provide 4 options, the correct answer index (0-3), and a brief explanation.
Language: %s.
Return ONLY a JSON array, no prose.`, QuizQuestionCount, chapterTitle, langText(m.cfg.Language))

	resp, err := provider.Chat(ctx, []ChatMessage{{Role: "user", Content: prompt}}, &GenerateOptions{
		Temperature:    0.4,
		System:         "You are a quiz generator. Answer ONLY with valid JSON.",
		ResponseSchema: quizSchema,
	})
	if err != nil {
		return nil, err
	}

	questions, err := parseQuizFromResponse(resp.Content)
	if err != nil {
		log.Printf("   [Mentor] ❌ Quiz-JSON unbrauchbar: %v", err)
		return nil, fmt.Errorf("konnte Quiz nicht parsen: %w", err)
	}

	return questions, nil
}

// ExtractCurriculum extrahiert aus dem Text eines hochgeladenen
// Dokuments eine geordnete Liste von Kapiteltiteln
func (m *Mentor) ExtractCurriculum(ctx context.Context, documentText string) ([]string, error) {
	provider, err := m.provider()
	if err != nil {
		return nil, err
	}

	prompt := fmt.Sprintf(`Analyze this document and extract its main chapters or learning sections to create a structured Rust programming curriculum.
Return a JSON array of strings, where each string is a chapter title.
The output should be primarily in %s.
Ensure the chapters follow the logical order of the document.

Document:
%s`, langText(m.cfg.Language), limitContent(documentText, 30000))

	resp, err := provider.Chat(ctx, []ChatMessage{{Role: "user", Content: prompt}}, &GenerateOptions{
		Temperature:    0.3,
		System:         "You extract curricula from documents. Answer ONLY with a valid JSON array of strings.",
		ResponseSchema: curriculumSchema,
	})
	if err != nil {
		return nil, err
	}

	topics, err := parseTopicsFromResponse(resp.Content)
	if err != nil {
		log.Printf("   [Mentor] ❌ Curriculum-JSON unbrauchbar: %v", err)
		return nil, fmt.Errorf("konnte Kapitel nicht parsen: %w", err)
	}
	if len(topics) == 0 {
		return nil, fmt.Errorf("keine Kapitel im Dokument gefunden")
	}

	return topics, nil
}

// GenerateArtifact fasst eine Lernsitzung als strukturiertes
// Markdown-Dokument zusammen (ein einzelner, nicht-streamender Aufruf)
func (m *Mentor) GenerateArtifact(ctx context.Context, messages []models.Message) (string, error) {
	provider, err := m.provider()
	if err != nil {
		return "", err
	}

	var transcript strings.Builder
	for _, msg := range messages {
		transcript.WriteString(fmt.Sprintf("**%s**: %s\n\n", strings.ToUpper(msg.Role), msg.Text))
	}

	resp, err := provider.Chat(ctx, []ChatMessage{{Role: "user", Content: transcript.String()}}, &GenerateOptions{
		Temperature: 0.5,
		System: `Based on the learning session provided, generate a structured markdown "Knowledge Artifact".
Include:
- Summary of concepts discussed.
- Key code snippets learned.
- Critical insights or common pitfalls identified.
- Areas that need more review (Gap Analysis).
Output ONLY the markdown content.`,
	})
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(resp.Content), nil
}

// Helper-Funktionen

func limitContent(content string, maxLen int) string {
	if len(content) <= maxLen {
		return content
	}
	return content[:maxLen] + "\n[... gekürzt ...]"
}

// extractJSONArray borgt das erste JSON-Array aus einer Antwort, auch
// wenn der Provider es in Prosa oder Code-Fences verpackt hat
func extractJSONArray(text string) string {
	text = stripCodeFences(text)
	start := strings.Index(text, "[")
	end := strings.LastIndex(text, "]")
	if start == -1 || end == -1 || start >= end {
		return "[]"
	}
	return text[start : end+1]
}

func stripCodeFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if idx := strings.Index(text, "\n"); idx != -1 {
		text = text[idx+1:]
	}
	if idx := strings.LastIndex(text, "```"); idx != -1 {
		text = text[:idx]
	}
	return strings.TrimSpace(text)
}

func parseQuizFromResponse(response string) ([]models.QuizQuestion, error) {
	jsonStr := extractJSONArray(response)

	var questions []models.QuizQuestion
	if err := json.Unmarshal([]byte(jsonStr), &questions); err != nil {
		return nil, err
	}

	// Nur wohlgeformte Fragen durchlassen: 4 Optionen, Index 0-3
	var valid []models.QuizQuestion
	for _, q := range questions {
		if q.Question == "" || len(q.Options) != 4 {
			continue
		}
		if q.CorrectAnswerIndex < 0 || q.CorrectAnswerIndex > 3 {
			continue
		}
		valid = append(valid, q)
	}
	if len(valid) == 0 {
		return nil, fmt.Errorf("keine gültigen Fragen in der Antwort")
	}

	return valid, nil
}

func parseTopicsFromResponse(response string) ([]string, error) {
	jsonStr := extractJSONArray(response)

	var topics []string
	if err := json.Unmarshal([]byte(jsonStr), &topics); err != nil {
		return nil, err
	}

	var clean []string
	for _, t := range topics {
		t = strings.TrimSpace(t)
		if t != "" {
			clean = append(clean, t)
		}
	}
	return clean, nil
}
