// Package tutor is a voice only English conversation partner.
package tutor

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/casualjim/roost"
	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/crew"
	"github.com/casualjim/roost/history"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/speech"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
)

// VoiceOnly is the answer to text messages.
const VoiceOnly = "Please send me a voice message. I only communicate through voice!"

// VoiceAck is sent while a voice message is being processed.
const VoiceAck = "Processing your voice message... Please wait a moment!"

var ErrNotUnderstood = errors.New("tutor: could not understand the voice message")

var (
	_ roost.Handler      = (*Tutor)(nil)
	_ roost.VoiceHandler = (*Tutor)(nil)
)

type Tutor struct {
	model       api.Model
	transcriber provider.Transcriber
	speaker     provider.Speaker
	history     history.Store
	tools       []tool.Definition
	crew        *crew.Crew
}

type Option = opts.Option[Tutor]

var (
	Model       = opts.ForName[Tutor, api.Model]("model")
	Transcriber = opts.ForName[Tutor, provider.Transcriber]("transcriber")
	Speaker     = opts.ForName[Tutor, provider.Speaker]("speaker")
	History     = opts.ForName[Tutor, history.Store]("history")
)

func Tools(tools ...tool.Definition) Option {
	return opts.Type[Tutor](func(t *Tutor) error {
		t.tools = append(t.tools, tools...)
		return nil
	})
}

func New(options ...Option) (*Tutor, error) {
	t := &Tutor{}
	if err := opts.Apply(t, options); err != nil {
		return nil, err
	}

	var errs []error
	if t.model == nil {
		errs = append(errs, errors.New("a model is required"))
	}
	if t.transcriber == nil {
		errs = append(errs, errors.New("a transcriber is required"))
	}
	if t.speaker == nil {
		errs = append(errs, errors.New("a speaker is required"))
	}
	if err := errors.Join(errs...); err != nil {
		return nil, fmt.Errorf("tutor: %w", err)
	}
	if t.history == nil {
		t.history = history.NewMemory(history.DefaultLimit)
	}

	agentOptions := []agent.Option{
		agent.Name("english_tutor"),
		agent.Model(t.model),
		agent.Role("Friendly English Conversation Partner"),
		agent.Goal("Have natural, casual conversations in English while helping Korean learners improve their speaking skills through everyday dialogue"),
		agent.Backstory(backstory),
	}
	if len(t.tools) > 0 {
		agentOptions = append(agentOptions, agent.Tools(t.tools[0], t.tools[1:]...))
	}
	t.crew = crew.New(
		crew.Name("tutor"),
		crew.Agents(agent.New(agentOptions...)),
		crew.Tasks(crew.Step("english_tutor", task, expectedOutput)),
	)
	return t, nil
}

// Reply answers text messages: the tutor only talks through voice.
func (t *Tutor) Reply(context.Context, string) (string, error) {
	return VoiceOnly, nil
}

// ReplyVoice transcribes the recording, answers it and writes the spoken
// answer next to the recording.
func (t *Tutor) ReplyVoice(ctx context.Context, audioPath string) (string, error) {
	message, err := speech.ToText(ctx, t.transcriber, audioPath)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrNotUnderstood, err)
	}
	if strings.TrimSpace(message) == "" {
		return "", ErrNotUnderstood
	}

	answer, err := t.Answer(ctx, message)
	if err != nil {
		return "", err
	}

	out := strings.TrimSuffix(audioPath, filepath.Ext(audioPath)) + "_reply.mp3"
	return speech.ToSpeech(ctx, t.speaker, answer, out)
}

// Answer replies to a transcribed message and records the exchange.
func (t *Tutor) Answer(ctx context.Context, message string) (string, error) {
	past, err := history.Context(ctx, t.history)
	if err != nil {
		return "", fmt.Errorf("tutor: load history: %w", err)
	}
	out, err := t.crew.Kickoff(ctx, map[string]any{"message": message, "history": past})
	if err != nil {
		return "", err
	}
	if err := t.history.Add(ctx, history.Turn{User: message, Bot: out.Raw, Timestamp: strfmt.DateTime(time.Now())}); err != nil {
		slog.WarnContext(ctx, "failed to store conversation", slogx.LoggerName("tutor"), slogx.Error(err))
	}
	return out.Raw, nil
}

const backstory = `You're Lina, a friendly American English teacher who's been living in Korea for 10 years.
You love having casual conversations and naturally help people improve their English through relaxed, fun interactions.

Your conversation style is:
- Natural and friendly, like talking to a good friend
- You respond to what people actually say, not in a structured teaching format
- You occasionally give helpful tips when it feels natural in conversation
- You're encouraging and make people feel comfortable making mistakes
- You keep conversations flowing by asking follow-up questions

Most importantly: you talk like a real person, not like a textbook.

{{.history}}

Remember the conversation history above and reference previous topics when relevant.`

const task = `Respond naturally to what the user actually said in their message.
Address what they mentioned specifically, ask follow-up questions about their topic
and keep it conversational, like texting with a friend.

Message to respond to: {{.message}}`

const expectedOutput = `A natural, conversational English response that flows like a real conversation between friends.
Avoid structured formats, bullet points or formal teaching language.`
