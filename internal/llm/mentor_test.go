package llm

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"rustmentor/internal/models"
)

func TestSystemPrompt(t *testing.T) {
	t.Run("Coach mit Kapitel-Fokus", func(t *testing.T) {
		prompt := SystemPrompt("en", "Ownership", models.ModeCoach)
		assert.Contains(t, prompt, "world-class Rust Programming Mentor")
		assert.Contains(t, prompt, "respond primarily in English")
		assert.Contains(t, prompt, `CURRENT CHAPTER FOCUS: "Ownership"`)
		assert.Contains(t, prompt, "Currently in COACH mode")
	})

	t.Run("Feynman ohne Kapitel-Fokus", func(t *testing.T) {
		prompt := SystemPrompt("zh", "", models.ModeFeynman)
		assert.Contains(t, prompt, "respond primarily in Chinese")
		assert.NotContains(t, prompt, "CURRENT CHAPTER FOCUS")
		assert.Contains(t, prompt, "Currently in FEYNMAN mode")
		assert.Contains(t, prompt, "critique")
	})
}

func TestStripCodeFences(t *testing.T) {
	assert.Equal(t, `["a"]`, stripCodeFences("```json\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, stripCodeFences("```\n[\"a\"]\n```"))
	assert.Equal(t, `["a"]`, stripCodeFences(`["a"]`))
}

func TestExtractJSONArray(t *testing.T) {
	t.Run("mit Prosa drumherum", func(t *testing.T) {
		text := "Here is your quiz:\n[1, 2, 3]\nHave fun!"
		assert.Equal(t, "[1, 2, 3]", extractJSONArray(text))
	})

	t.Run("kein Array", func(t *testing.T) {
		assert.Equal(t, "[]", extractJSONArray("keine Klammern hier"))
	})
}

func TestParseQuizFromResponse(t *testing.T) {
	valid := `[
		{"question": "What does ownership mean?", "options": ["a", "b", "c", "d"], "correctAnswerIndex": 1, "explanation": "because"},
		{"question": "What is borrowing?", "options": ["a", "b", "c", "d"], "correctAnswerIndex": 0, "explanation": "because"}
	]`

	t.Run("gültige Fragen", func(t *testing.T) {
		questions, err := parseQuizFromResponse(valid)
		require.NoError(t, err)
		require.Len(t, questions, 2)
		assert.Equal(t, 1, questions[0].CorrectAnswerIndex)
		assert.Len(t, questions[0].Options, 4)
	})

	t.Run("in Code-Fences verpackt", func(t *testing.T) {
		questions, err := parseQuizFromResponse("```json\n" + valid + "\n```")
		require.NoError(t, err)
		assert.Len(t, questions, 2)
	})

	t.Run("kaputte Fragen werden gefiltert", func(t *testing.T) {
		mixed := `[
			{"question": "ok", "options": ["a", "b", "c", "d"], "correctAnswerIndex": 2, "explanation": "x"},
			{"question": "nur drei Optionen", "options": ["a", "b", "c"], "correctAnswerIndex": 0, "explanation": "x"},
			{"question": "Index ausserhalb", "options": ["a", "b", "c", "d"], "correctAnswerIndex": 7, "explanation": "x"},
			{"question": "", "options": ["a", "b", "c", "d"], "correctAnswerIndex": 0, "explanation": "x"}
		]`
		questions, err := parseQuizFromResponse(mixed)
		require.NoError(t, err)
		require.Len(t, questions, 1)
		assert.Equal(t, "ok", questions[0].Question)
	})

	t.Run("nichts Brauchbares", func(t *testing.T) {
		_, err := parseQuizFromResponse("[]")
		assert.Error(t, err)
	})
}

func TestParseTopicsFromResponse(t *testing.T) {
	topics, err := parseTopicsFromResponse(`Sure! ["Ownership", "  Borrowing  ", "", "Lifetimes"]`)
	require.NoError(t, err)
	assert.Equal(t, []string{"Ownership", "Borrowing", "Lifetimes"}, topics)
}

func TestLimitContent(t *testing.T) {
	assert.Equal(t, "kurz", limitContent("kurz", 10))

	long := limitContent("0123456789ABCDEF", 10)
	assert.Contains(t, long, "0123456789")
	assert.Contains(t, long, "gekürzt")
	assert.NotContains(t, long, "ABCDEF")
}
