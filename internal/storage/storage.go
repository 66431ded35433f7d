package storage

import (
	"database/sql"
	"encoding/json"

	"rustmentor/internal/models"

	_ "modernc.org/sqlite"
)

// Storage definiert das Interface für Datenpersistenz
type Storage interface {
	// Fortschritt
	GetProgress() (*models.UserProgress, error)
	SaveProgress(p *models.UserProgress) error

	// Curriculum (nil = Standardliste aktiv)
	GetCurriculum() (*models.Curriculum, error)
	SaveCurriculum(c *models.Curriculum) error
	DeleteCurriculum() error

	// Chat
	SaveChatMessage(msg *models.Message) error
	UpdateChatMessageText(id string, text string) error
	GetChatHistory(mode models.ChatMode) ([]models.Message, error)
	ClearChatHistory(mode models.ChatMode) error

	// Artefakte
	SaveArtifact(a *models.LearningArtifact) error
	GetArtifact(id string) (*models.LearningArtifact, error)
	GetAllArtifacts() ([]models.LearningArtifact, error)
	SetArtifactGistURL(id string, url string) error

	// Reset löscht alle Nutzerdaten (einzige Möglichkeit, Artefakte
	// zu entfernen)
	Reset() error

	Close() error
}

// SQLiteStorage implementiert Storage mit SQLite
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage erstellt eine neue SQLite-Storage-Instanz
func NewSQLiteStorage(dbPath string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}

	storage := &SQLiteStorage{db: db}
	if err := storage.initSchema(); err != nil {
		return nil, err
	}

	return storage, nil
}

func (s *SQLiteStorage) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS progress (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		current_chapter_index INTEGER NOT NULL DEFAULT 0,
		completed_chapters TEXT NOT NULL DEFAULT '[]',
		total_sessions INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS curriculum (
		id INTEGER PRIMARY KEY CHECK (id = 1),
		topics TEXT NOT NULL,
		custom INTEGER NOT NULL DEFAULT 0
	);

	CREATE TABLE IF NOT EXISTS chat_messages (
		id TEXT PRIMARY KEY,
		mode TEXT NOT NULL,
		role TEXT NOT NULL,
		content TEXT NOT NULL,
		timestamp DATETIME NOT NULL
	);

	CREATE TABLE IF NOT EXISTS artifacts (
		id TEXT PRIMARY KEY,
		title TEXT NOT NULL,
		date TEXT NOT NULL,
		content TEXT NOT NULL,
		tags TEXT,
		gist_url TEXT,
		created_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chat_mode ON chat_messages(mode);
	CREATE INDEX IF NOT EXISTS idx_artifacts_created ON artifacts(created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// Fortschritt

func (s *SQLiteStorage) GetProgress() (*models.UserProgress, error) {
	var p models.UserProgress
	var completed string
	err := s.db.QueryRow(`
		SELECT current_chapter_index, completed_chapters, total_sessions
		FROM progress WHERE id = 1
	`).Scan(&p.CurrentChapterIndex, &completed, &p.TotalSessions)
	if err == sql.ErrNoRows {
		// Kein gespeicherter Zustand: Neuanfang
		return &models.UserProgress{CompletedChapters: []int{}}, nil
	}
	if err != nil {
		return nil, err
	}

	// Korruptes JSON zählt als leerer Zustand, kein Fehler
	if err := json.Unmarshal([]byte(completed), &p.CompletedChapters); err != nil {
		p.CompletedChapters = []int{}
	}
	if p.CompletedChapters == nil {
		p.CompletedChapters = []int{}
	}
	return &p, nil
}

func (s *SQLiteStorage) SaveProgress(p *models.UserProgress) error {
	completed, _ := json.Marshal(p.CompletedChapters)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO progress (id, current_chapter_index, completed_chapters, total_sessions)
		VALUES (1, ?, ?, ?)
	`, p.CurrentChapterIndex, string(completed), p.TotalSessions)
	return err
}

// Curriculum

func (s *SQLiteStorage) GetCurriculum() (*models.Curriculum, error) {
	var topics string
	var custom int
	err := s.db.QueryRow(`SELECT topics, custom FROM curriculum WHERE id = 1`).Scan(&topics, &custom)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	var c models.Curriculum
	c.Custom = custom == 1
	if err := json.Unmarshal([]byte(topics), &c.Topics); err != nil {
		// Unlesbare Liste = Standardliste aktiv
		return nil, nil
	}
	return &c, nil
}

func (s *SQLiteStorage) SaveCurriculum(c *models.Curriculum) error {
	topics, _ := json.Marshal(c.Topics)
	custom := 0
	if c.Custom {
		custom = 1
	}
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO curriculum (id, topics, custom) VALUES (1, ?, ?)
	`, string(topics), custom)
	return err
}

func (s *SQLiteStorage) DeleteCurriculum() error {
	_, err := s.db.Exec(`DELETE FROM curriculum WHERE id = 1`)
	return err
}

// Chat

func (s *SQLiteStorage) SaveChatMessage(msg *models.Message) error {
	_, err := s.db.Exec(`
		INSERT INTO chat_messages (id, mode, role, content, timestamp)
		VALUES (?, ?, ?, ?, ?)
	`, msg.ID, string(msg.Mode), msg.Role, msg.Text, msg.Timestamp)
	return err
}

// UpdateChatMessageText schreibt den fertigen Text der letzten
// Model-Nachricht nach Abschluss des Streamings
func (s *SQLiteStorage) UpdateChatMessageText(id string, text string) error {
	_, err := s.db.Exec(`UPDATE chat_messages SET content = ? WHERE id = ?`, text, id)
	return err
}

func (s *SQLiteStorage) GetChatHistory(mode models.ChatMode) ([]models.Message, error) {
	rows, err := s.db.Query(`
		SELECT id, mode, role, content, timestamp
		FROM chat_messages WHERE mode = ? ORDER BY timestamp, id
	`, string(mode))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages []models.Message
	for rows.Next() {
		var msg models.Message
		var m string
		if err := rows.Scan(&msg.ID, &m, &msg.Role, &msg.Text, &msg.Timestamp); err != nil {
			return nil, err
		}
		msg.Mode = models.ChatMode(m)
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}

func (s *SQLiteStorage) ClearChatHistory(mode models.ChatMode) error {
	_, err := s.db.Exec(`DELETE FROM chat_messages WHERE mode = ?`, string(mode))
	return err
}

// Artefakte

func (s *SQLiteStorage) SaveArtifact(a *models.LearningArtifact) error {
	tags, _ := json.Marshal(a.Tags)
	_, err := s.db.Exec(`
		INSERT OR REPLACE INTO artifacts (id, title, date, content, tags, gist_url, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, a.ID, a.Title, a.Date, a.Content, string(tags), a.GistURL, a.CreatedAt)
	return err
}

func (s *SQLiteStorage) GetArtifact(id string) (*models.LearningArtifact, error) {
	var a models.LearningArtifact
	var tags string
	err := s.db.QueryRow(`
		SELECT id, title, date, content, tags, gist_url, created_at
		FROM artifacts WHERE id = ?
	`, id).Scan(&a.ID, &a.Title, &a.Date, &a.Content, &tags, &a.GistURL, &a.CreatedAt)
	if err != nil {
		return nil, err
	}
	json.Unmarshal([]byte(tags), &a.Tags)
	return &a, nil
}

func (s *SQLiteStorage) GetAllArtifacts() ([]models.LearningArtifact, error) {
	rows, err := s.db.Query(`
		SELECT id, title, date, content, tags, gist_url, created_at
		FROM artifacts ORDER BY created_at DESC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var artifacts []models.LearningArtifact
	for rows.Next() {
		var a models.LearningArtifact
		var tags string
		if err := rows.Scan(&a.ID, &a.Title, &a.Date, &a.Content, &tags, &a.GistURL, &a.CreatedAt); err != nil {
			return nil, err
		}
		json.Unmarshal([]byte(tags), &a.Tags)
		artifacts = append(artifacts, a)
	}
	return artifacts, rows.Err()
}

// SetArtifactGistURL ist die einzige erlaubte Mutation eines
// gespeicherten Artefakts
func (s *SQLiteStorage) SetArtifactGistURL(id string, url string) error {
	_, err := s.db.Exec(`UPDATE artifacts SET gist_url = ? WHERE id = ?`, url, id)
	return err
}

// Reset

func (s *SQLiteStorage) Reset() error {
	for _, table := range []string{"progress", "curriculum", "chat_messages", "artifacts"} {
		if _, err := s.db.Exec(`DELETE FROM ` + table); err != nil {
			return err
		}
	}
	return nil
}
