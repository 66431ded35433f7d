package sync

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ErrGistNotFound: die gemerkte Gist-ID existiert nicht mehr (404).
// Der Aufrufer verwirft die ID und legt eine neue Gist an.
var ErrGistNotFound = errors.New("gist nicht gefunden")

// GistClient spricht die GitHub-Gist-REST-API. Jedes Artefakt wird
// als Datei in einer einzigen privaten Gist gespiegelt; Schreiben ist
// über die gemerkte Gist-ID idempotent.
type GistClient struct {
	baseURL string
	token   string
	client  *http.Client
}

// NewGistClient erstellt einen neuen Gist-Client
func NewGistClient(token string) *GistClient {
	return &GistClient{
		baseURL: "https://api.github.com",
		token:   token,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

// NewGistClientWithBaseURL erlaubt Tests gegen einen lokalen Server
func NewGistClientWithBaseURL(token, baseURL string) *GistClient {
	c := NewGistClient(token)
	c.baseURL = baseURL
	return c
}

type gistFile struct {
	Content string `json:"content"`
}

type gistPayload struct {
	Description string              `json:"description,omitempty"`
	Public      *bool               `json:"public,omitempty"`
	Files       map[string]gistFile `json:"files"`
}

type gistResponse struct {
	ID      string `json:"id"`
	HTMLURL string `json:"html_url"`
}

func (g *GistClient) do(ctx context.Context, method, url string, payload gistPayload) (*gistResponse, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/vnd.github+json")
	req.Header.Set("Authorization", "Bearer "+g.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("gist-anfrage fehlgeschlagen: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return nil, ErrGistNotFound
	}
	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		data, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("gist-fehler (%d): %s", resp.StatusCode, string(data))
	}

	var result gistResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

// Create legt eine neue private Gist mit einer Datei an und gibt
// ID und URL zurück
func (g *GistClient) Create(ctx context.Context, description, filename, content string) (id, url string, err error) {
	public := false
	result, err := g.do(ctx, "POST", g.baseURL+"/gists", gistPayload{
		Description: description,
		Public:      &public,
		Files:       map[string]gistFile{filename: {Content: content}},
	})
	if err != nil {
		return "", "", err
	}
	return result.ID, result.HTMLURL, nil
}

// Update fügt der bestehenden Gist eine Datei hinzu bzw. überschreibt
// sie. Eine verschwundene Gist meldet ErrGistNotFound.
func (g *GistClient) Update(ctx context.Context, gistID, filename, content string) (url string, err error) {
	result, err := g.do(ctx, "PATCH", g.baseURL+"/gists/"+gistID, gistPayload{
		Files: map[string]gistFile{filename: {Content: content}},
	})
	if err != nil {
		return "", err
	}
	return result.HTMLURL, nil
}
