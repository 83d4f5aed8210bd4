// Package speech converts between audio files and text.
package speech

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/casualjim/roost/provider"
)

// ToText transcribes the recording at path.
func ToText(ctx context.Context, t provider.Transcriber, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("speech to text: %w", err)
	}
	defer f.Close()

	text, err := t.Transcribe(ctx, filepath.Base(path), f)
	if err != nil {
		return "", fmt.Errorf("speech to text: %w", err)
	}
	return text, nil
}

// ToSpeech synthesizes text and writes the audio to path.
func ToSpeech(ctx context.Context, s provider.Speaker, text, path string) (string, error) {
	audio, err := s.Speak(ctx, text)
	if err != nil {
		return "", fmt.Errorf("text to speech: %w", err)
	}
	if err := os.WriteFile(path, audio, 0o600); err != nil {
		return "", fmt.Errorf("text to speech: %w", err)
	}
	return path, nil
}
