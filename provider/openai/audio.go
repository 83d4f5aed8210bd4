package openai

import (
	"context"
	"fmt"
	"io"
	"mime"
	"path/filepath"

	"github.com/openai/openai-go"
)

// Transcribe converts speech to text with whisper.
func (p *Provider) Transcribe(ctx context.Context, name string, audio io.Reader) (string, error) {
	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	transcription, err := p.client.Audio.Transcriptions.New(ctx, openai.AudioTranscriptionNewParams{
		File:  openai.FileParam(audio, filepath.Base(name), contentType),
		Model: openai.F(openai.AudioModelWhisper1),
	})
	if err != nil {
		return "", fmt.Errorf("transcribe %s: %w", name, err)
	}
	return transcription.Text, nil
}

// Speak synthesizes mp3 audio for text.
func (p *Provider) Speak(ctx context.Context, text string) ([]byte, error) {
	resp, err := p.client.Audio.Speech.New(ctx, openai.AudioSpeechNewParams{
		Input:          openai.F(text),
		Model:          openai.F(openai.SpeechModelTTS1),
		Voice:          openai.F(openai.AudioSpeechNewParamsVoiceAlloy),
		ResponseFormat: openai.F(openai.AudioSpeechNewParamsResponseFormatMP3),
	})
	if err != nil {
		return nil, fmt.Errorf("speech: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read speech: %w", err)
	}
	return data, nil
}
