package tutor

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/casualjim/roost/history"
	"github.com/casualjim/roost/provider/providertest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTutor(t *testing.T, fake *providertest.Provider, store history.Store) *Tutor {
	t.Helper()
	options := []Option{
		Model(providertest.Model{Backend: fake}),
		Transcriber(fake),
		Speaker(fake),
	}
	if store != nil {
		options = append(options, History(store))
	}
	tt, err := New(options...)
	require.NoError(t, err)
	return tt
}

func TestTutor_ReplyVoice(t *testing.T) {
	fake := providertest.New(providertest.Text("Oh nice, what did you cook?"), providertest.Text("Yum!"))
	fake.Transcript = "I cooked dinner yesterday"
	fake.Audio = []byte("mp3")
	store := history.NewMemory(history.DefaultLimit)
	tutor := newTutor(t, fake, store)

	in := filepath.Join(t.TempDir(), "voice_1.ogg")
	require.NoError(t, os.WriteFile(in, []byte("ogg"), 0o600))

	out, err := tutor.ReplyVoice(context.Background(), in)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(filepath.Dir(in), "voice_1_reply.mp3"), out)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Equal(t, []byte("mp3"), data)
	assert.Equal(t, [][]byte{[]byte("ogg")}, fake.Heard)
	assert.Equal(t, []string{"Oh nice, what did you cook?"}, fake.Spoken)

	fake.Transcript = "Kimchi stew"
	_, err = tutor.ReplyVoice(context.Background(), in)
	require.NoError(t, err)

	reqs := fake.Requests()
	require.Len(t, reqs, 2)
	assert.Contains(t, reqs[0].Instructions, "No previous conversation")
	assert.Contains(t, reqs[0].Thread[0].Content, "Message to respond to: I cooked dinner yesterday")
	assert.Contains(t, reqs[1].Instructions, "1. User: I cooked dinner yesterday\n   You: Oh nice, what did you cook?")

	turns, err := store.Recent(context.Background())
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}

func TestTutor_NotUnderstood(t *testing.T) {
	fake := providertest.New()
	tutor := newTutor(t, fake, nil)

	in := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(in, []byte("noise"), 0o600))

	_, err := tutor.ReplyVoice(context.Background(), in)
	assert.ErrorIs(t, err, ErrNotUnderstood)

	_, err = tutor.ReplyVoice(context.Background(), filepath.Join(t.TempDir(), "missing.ogg"))
	assert.ErrorIs(t, err, ErrNotUnderstood)
	assert.Empty(t, fake.Requests())
}

func TestTutor_AnswerFailure(t *testing.T) {
	fake := providertest.New(providertest.Fail(errors.New("quota")))
	fake.Transcript = "hello"
	tutor := newTutor(t, fake, nil)

	in := filepath.Join(t.TempDir(), "voice.ogg")
	require.NoError(t, os.WriteFile(in, []byte("ogg"), 0o600))

	_, err := tutor.ReplyVoice(context.Background(), in)
	assert.ErrorContains(t, err, "quota")
	assert.Empty(t, fake.Spoken)
}

func TestTutor_TextIsRejected(t *testing.T) {
	tutor := newTutor(t, providertest.New(), nil)
	answer, err := tutor.Reply(context.Background(), "hi there")
	require.NoError(t, err)
	assert.Equal(t, VoiceOnly, answer)
}

func TestNew_Requirements(t *testing.T) {
	_, err := New()
	require.Error(t, err)
	assert.ErrorContains(t, err, "a model is required")
	assert.ErrorContains(t, err, "a transcriber is required")
	assert.ErrorContains(t, err, "a speaker is required")
}
