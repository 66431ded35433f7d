package pdf

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/ledongthuc/pdf"
)

// Document ist das Ergebnis einer PDF-Extraktion: der reine Text
// (Quelle für die Curriculum-Extraktion) plus Metadaten
type Document struct {
	Name      string
	Content   string
	PageCount int
}

// ParseFromReader parst eine hochgeladene PDF und extrahiert den Text
func ParseFromReader(reader io.Reader, filename string) (*Document, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, err
	}

	r, err := pdf.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("fehler beim Lesen der PDF: %w", err)
	}

	var content strings.Builder
	totalPages := r.NumPage()

	for pageNum := 1; pageNum <= totalPages; pageNum++ {
		page := r.Page(pageNum)
		if page.V.IsNull() {
			continue
		}

		text, err := page.GetPlainText(nil)
		if err != nil {
			// Einzelne kaputte Seiten überspringen
			continue
		}

		content.WriteString(fmt.Sprintf("\n--- Page %d ---\n", pageNum))
		content.WriteString(text)
	}

	if strings.TrimSpace(content.String()) == "" {
		return nil, fmt.Errorf("PDF enthält keinen extrahierbaren Text")
	}

	return &Document{
		Name:      filename,
		Content:   content.String(),
		PageCount: totalPages,
	}, nil
}
