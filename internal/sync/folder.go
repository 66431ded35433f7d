package sync

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"rustmentor/internal/models"
)

// WriteStatus ist das Ergebnis eines Schreibversuchs in den
// Sync-Ordner
type WriteStatus int

const (
	WriteOK     WriteStatus = iota
	WriteDenied             // Berechtigung fehlt; Feature wird für diese Aktion übersprungen
	WriteError
)

// FolderSink spiegelt Artefakte als Markdown-Dateien in einen vom
// Nutzer konfigurierten Ordner. Die Fähigkeit ist bewusst schmal:
// Write(name, content) und sonst nichts, damit die Artefakt-Pipeline
// nichts über das Dateisystem wissen muss.
type FolderSink struct {
	dir string
}

// NewFolderSink erstellt eine Sink für den gegebenen Ordner.
// Ein leerer Pfad bedeutet: lokaler Sync deaktiviert.
func NewFolderSink(dir string) *FolderSink {
	return &FolderSink{dir: dir}
}

// Available meldet, ob ein Zielordner konfiguriert ist
func (f *FolderSink) Available() bool {
	return f.dir != ""
}

// Write legt die Datei im Sync-Ordner an (Ordner wird bei Bedarf
// erstellt). Berechtigungsfehler werden als WriteDenied gemeldet und
// vom Aufrufer toleriert, nicht als Fehlschlag der Gesamtoperation.
func (f *FolderSink) Write(name, content string) (WriteStatus, error) {
	if f.dir == "" {
		return WriteDenied, fmt.Errorf("kein Sync-Ordner konfiguriert")
	}

	if err := os.MkdirAll(f.dir, 0755); err != nil {
		if os.IsPermission(err) {
			return WriteDenied, err
		}
		return WriteError, err
	}

	path := filepath.Join(f.dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		if os.IsPermission(err) {
			return WriteDenied, err
		}
		return WriteError, err
	}

	return WriteOK, nil
}

// SanitizeTitle ersetzt Zeichen, die in Dateinamen Probleme machen
func SanitizeTitle(title string) string {
	return strings.Map(func(r rune) rune {
		switch r {
		case '<', '>', ':', '"', '/', '\\', '|', '?', '*':
			return '_'
		}
		return r
	}, title)
}

// ArtifactFileName baut den Dateinamen <datum>-<titel>.md
func ArtifactFileName(a *models.LearningArtifact) string {
	return fmt.Sprintf("%s-%s.md", a.Date, SanitizeTitle(a.Title))
}

// RenderArtifact baut den Markdown-Inhalt der Sync-Datei
func RenderArtifact(a *models.LearningArtifact) string {
	return fmt.Sprintf("# %s\n\nDate: %s\nTags: %s\n\n---\n\n%s",
		a.Title, a.Date, strings.Join(a.Tags, ", "), a.Content)
}
