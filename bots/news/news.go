// Package news answers chat messages with a single researcher agent that can
// search the web and remembers the last few exchanges.
package news

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/casualjim/roost"
	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/crew"
	"github.com/casualjim/roost/history"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/tool"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
)

const researcherName = "news_researcher"

const taskDescription = `Answer the user's message: {{.message}}

Use the search tools for anything that needs current information and cite
the sources you used.

{{.history}}`

var _ roost.Handler = (*Bot)(nil)

type Bot struct {
	model   api.Model
	history history.Store
	tools   []tool.Definition
	crew    *crew.Crew
}

type Option = opts.Option[Bot]

var (
	Model   = opts.ForName[Bot, api.Model]("model")
	History = opts.ForName[Bot, history.Store]("history")
)

// Tools gives the researcher extra tools, usually the search tools.
func Tools(tools ...tool.Definition) Option {
	return opts.Type[Bot](func(b *Bot) error {
		b.tools = append(b.tools, tools...)
		return nil
	})
}

func New(options ...Option) (*Bot, error) {
	b := &Bot{}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if b.model == nil {
		return nil, errors.New("news: a model is required")
	}
	if b.history == nil {
		b.history = history.NewMemory(history.DefaultLimit)
	}

	agentOptions := []agent.Option{
		agent.Name(researcherName),
		agent.Model(b.model),
		agent.Role("News Researcher"),
		agent.Goal("Find and explain the latest news the user asks about"),
		agent.Backstory("You are a seasoned journalist who checks every claim against current sources and answers in plain language."),
	}
	if len(b.tools) > 0 {
		agentOptions = append(agentOptions, agent.Tools(b.tools[0], b.tools[1:]...))
	}

	b.crew = crew.New(
		crew.Name("news"),
		crew.Agents(agent.New(agentOptions...)),
		crew.Tasks(crew.Step(researcherName, taskDescription, "A concise, sourced answer to the user's message")),
	)
	return b, nil
}

// Reply answers a message and records the exchange in the history.
func (b *Bot) Reply(ctx context.Context, text string) (string, error) {
	past, err := history.Context(ctx, b.history)
	if err != nil {
		return "", fmt.Errorf("news: load history: %w", err)
	}

	out, err := b.crew.Kickoff(ctx, map[string]any{
		"message": text,
		"history": past,
	})
	if err != nil {
		return "", err
	}

	if err := b.history.Add(ctx, history.Turn{User: text, Bot: out.Raw, Timestamp: strfmt.DateTime(time.Now())}); err != nil {
		// the answer is still good
		slog.WarnContext(ctx, "failed to store conversation", slogx.LoggerName("news"), slogx.Error(err))
	}
	return out.Raw, nil
}
