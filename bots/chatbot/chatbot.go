// Package chatbot answers chat messages through a two step flow: the query is
// turned into a prompt, then the model answers it.
package chatbot

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/casualjim/roost"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/provider"
)

const FlowName = "chatbot"

const (
	stepAnalyzeQuery     = "analyze_query"
	stepGenerateResponse = "generate_response"
)

// DefaultInstructions is the system prompt used for every query.
const DefaultInstructions = `You are a professional AI assistant.
Give accurate and friendly answers to the user's questions.`

var _ roost.Handler = (*Bot)(nil)

type Bot struct {
	graph *flow.Graph
	model api.Model
}

// New builds the chatbot flow for the given model. Extra flow options, such
// as hooks, are passed through to the flow.
func New(model api.Model, options ...flow.Option) (*Bot, error) {
	if model == nil {
		return nil, errors.New("chatbot: a model is required")
	}
	b := &Bot{model: model}

	options = append([]flow.Option{flow.Fields(
		flow.Field("user_query", ""),
		flow.Field("instructions", ""),
		flow.Field("messages", []provider.Message(nil)),
	)}, options...)

	g, err := flow.New(FlowName, options...).
		Start(stepAnalyzeQuery, b.analyzeQuery).
		Step(stepGenerateResponse, b.generateResponse, stepAnalyzeQuery).
		Build()
	if err != nil {
		return nil, err
	}
	b.graph = g
	return b, nil
}

// Graph exposes the flow so it can be registered or inspected.
func (b *Bot) Graph() *flow.Graph { return b.graph }

func (b *Bot) analyzeQuery(_ context.Context, s flow.Snapshot) (flow.Delta, error) {
	query := strings.TrimSpace(flow.Value[string](s, "user_query"))
	if query == "" {
		return nil, errors.New("empty query")
	}
	return flow.Delta{
		"instructions": DefaultInstructions,
		"messages":     []provider.Message{provider.UserMessage(query)},
	}, nil
}

func (b *Bot) generateResponse(ctx context.Context, s flow.Snapshot) (flow.Delta, error) {
	runID, _ := flow.RunIDFromContext(ctx)
	completion, err := b.model.Provider().ChatCompletion(ctx, provider.CompletionParams{
		RunID:        runID,
		Model:        b.model,
		Instructions: flow.Value[string](s, "instructions"),
		Thread:       flow.Value[[]provider.Message](s, "messages"),
	})
	if err != nil {
		return nil, err
	}
	if completion.Content == "" && completion.Refusal != "" {
		return nil, fmt.Errorf("model refused: %s", completion.Refusal)
	}
	return flow.Delta{"messages": []provider.Message{completion.Message()}}, nil
}

// Reply runs the flow for one message and returns the model's answer.
func (b *Bot) Reply(ctx context.Context, text string) (string, error) {
	final, err := b.graph.Kickoff(ctx, map[string]any{"user_query": text})
	if err != nil {
		return "", err
	}
	messages := flow.Value[[]provider.Message](final, "messages")
	if len(messages) == 0 {
		return "", errors.New("chatbot: no answer")
	}
	return messages[0].Content, nil
}
