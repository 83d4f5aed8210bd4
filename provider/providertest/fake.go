// Package providertest has in-memory providers for tests.
package providertest

import (
	"context"
	"errors"
	"io"
	"slices"
	"sync"

	"github.com/casualjim/roost/provider"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.Transcriber = (*Provider)(nil)
	_ provider.Speaker     = (*Provider)(nil)
)

// ErrExhausted is returned once a scripted provider ran out of replies.
var ErrExhausted = errors.New("providertest: no more replies")

// ReplyFunc produces a completion for a request.
type ReplyFunc func(context.Context, provider.CompletionParams) (provider.Completion, error)

// Provider replays a script and records every request it sees.
type Provider struct {
	mu      sync.Mutex
	replies []ReplyFunc
	calls   []provider.CompletionParams

	// Transcript is returned by Transcribe.
	Transcript string
	// Audio is returned by Speak.
	Audio []byte
	// Heard collects the audio passed to Transcribe.
	Heard [][]byte
	// Spoken collects the texts passed to Speak.
	Spoken []string
}

// New returns a provider that answers with the given replies in order.
func New(replies ...ReplyFunc) *Provider {
	return &Provider{replies: replies}
}

// Text replies with assistant content.
func Text(content string) ReplyFunc {
	return func(_ context.Context, p provider.CompletionParams) (provider.Completion, error) {
		return provider.Completion{RunID: p.RunID, Content: content}, nil
	}
}

// Calls replies with tool calls.
func Calls(calls ...provider.ToolCall) ReplyFunc {
	return func(_ context.Context, p provider.CompletionParams) (provider.Completion, error) {
		return provider.Completion{RunID: p.RunID, ToolCalls: calls}, nil
	}
}

// Fail replies with an error.
func Fail(err error) ReplyFunc {
	return func(context.Context, provider.CompletionParams) (provider.Completion, error) {
		return provider.Completion{}, err
	}
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	p.mu.Lock()
	p.calls = append(p.calls, params)
	if len(p.replies) == 0 {
		p.mu.Unlock()
		return provider.Completion{}, ErrExhausted
	}
	next := p.replies[0]
	p.replies = p.replies[1:]
	p.mu.Unlock()
	return next(ctx, params)
}

// Requests returns the requests seen so far.
func (p *Provider) Requests() []provider.CompletionParams {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.calls)
}

func (p *Provider) Transcribe(_ context.Context, _ string, audio io.Reader) (string, error) {
	data, err := io.ReadAll(audio)
	if err != nil {
		return "", err
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Heard = append(p.Heard, data)
	return p.Transcript, nil
}

func (p *Provider) Speak(_ context.Context, text string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Spoken = append(p.Spoken, text)
	return p.Audio, nil
}

// Model adapts a provider to api.Model.
type Model struct {
	ModelName string
	Backend   provider.Provider
}

func (m Model) Name() string {
	if m.ModelName == "" {
		return "test-model"
	}
	return m.ModelName
}

func (m Model) Provider() provider.Provider { return m.Backend }
