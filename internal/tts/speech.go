package tts

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sync"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	texttospeechpb "google.golang.org/genproto/googleapis/cloud/texttospeech/v1"

	"rustmentor/internal/config"
)

// SampleRate der gelieferten PCM-Daten (LINEAR16, mono)
const SampleRate = 24000

// ErrDisabled: Sprachausgabe ist in den Einstellungen deaktiviert
var ErrDisabled = errors.New("sprachausgabe ist deaktiviert")

// Speaker liest Mentor-Antworten über die Google Cloud
// Text-to-Speech API vor. Der Client wird lazy erstellt und findet
// seinen Schlüssel über GOOGLE_APPLICATION_CREDENTIALS.
type Speaker struct {
	mu     sync.Mutex
	cfg    *config.Config
	client *texttospeech.Client
}

// NewSpeaker erstellt einen neuen Speaker
func NewSpeaker(cfg *config.Config) *Speaker {
	return &Speaker{cfg: cfg}
}

// Synthesize wandelt Text in rohe PCM-Bytes (LINEAR16, 24 kHz) um
func (s *Speaker) Synthesize(ctx context.Context, text string) ([]byte, error) {
	if !s.cfg.TTSEnabled {
		return nil, ErrDisabled
	}
	if text == "" {
		return nil, fmt.Errorf("kein Text zum Vorlesen")
	}

	client, err := s.ensureClient(ctx)
	if err != nil {
		return nil, err
	}

	req := &texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: s.languageCode(),
			Name:         s.voiceName(),
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
			SampleRateHertz: SampleRate,
		},
	}

	resp, err := client.SynthesizeSpeech(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("SynthesizeSpeech fehlgeschlagen: %w", err)
	}

	return resp.AudioContent, nil
}

// Close gibt den TTS-Client frei
func (s *Speaker) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client == nil {
		return nil
	}
	err := s.client.Close()
	s.client = nil
	return err
}

// ensureClient erstellt den Client beim ersten Aufruf
func (s *Speaker) ensureClient(ctx context.Context) (*texttospeech.Client, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		return s.client, nil
	}
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		return nil, fmt.Errorf("TTS-Client konnte nicht erstellt werden: %w", err)
	}
	log.Println("🔊 Google TTS verbunden")
	s.client = client
	return client, nil
}

func (s *Speaker) languageCode() string {
	if s.cfg.Language == "zh" {
		return "cmn-CN"
	}
	return "en-US"
}

func (s *Speaker) voiceName() string {
	if s.cfg.TTSVoice != "" {
		return s.cfg.TTSVoice
	}
	if s.cfg.Language == "zh" {
		return "cmn-CN-Standard-A"
	}
	return "en-US-Standard-F"
}
