package crew

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/alphadose/haxmap"
	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/types"
	"github.com/fogfish/opts"
)

// Crew runs a fixed sequence of tasks, each handled by one of its agents.
type Crew struct {
	name     string
	agents   *haxmap.Map[string, api.Agent]
	tasks    []Task
	maxTurns int
}

type Option = opts.Option[Crew]

var (
	Name     = opts.ForName[Crew, string]("name")
	MaxTurns = opts.ForName[Crew, int]("maxTurns")
)

func Agents(agent api.Agent, extraAgents ...api.Agent) Option {
	return opts.Type[Crew](func(o *Crew) error {
		o.agents.Set(agent.Name(), agent)
		for elem := range slices.Values(extraAgents) {
			o.agents.Set(elem.Name(), elem)
		}
		return nil
	})
}

func Tasks(task Task, extraTasks ...Task) Option {
	return opts.Type[Crew](func(o *Crew) error {
		o.tasks = append(o.tasks, task)
		o.tasks = append(o.tasks, extraTasks...)
		return nil
	})
}

// New builds a crew. It panics when a task names an agent the crew doesn't
// have.
func New(options ...Option) *Crew {
	c := &Crew{
		name:     "User",
		agents:   haxmap.New[string, api.Agent](),
		maxTurns: 10,
	}
	if err := opts.Apply(c, options); err != nil {
		panic(err)
	}
	for _, t := range c.tasks {
		if _, ok := c.agents.Get(t.agentName); !ok {
			panic(fmt.Sprintf("crew %s: agent %s not found", c.name, t.agentName))
		}
	}
	return c
}

// TaskOutput is what one agent produced for one task.
type TaskOutput struct {
	Agent       string `json:"agent"`
	Description string `json:"description"`
	Raw         string `json:"raw"`
}

// Output is the result of a kickoff. Raw is the answer of the last task.
type Output struct {
	Raw   string       `json:"raw"`
	Tasks []TaskOutput `json:"tasks_output"`
}

func (o Output) String() string { return o.Raw }

// Kickoff runs the tasks in order. Inputs are available to task descriptions
// and agent instructions as template variables.
func (c *Crew) Kickoff(ctx context.Context, inputs map[string]any) (Output, error) {
	return c.kickoff(ctx, inputs, nil)
}

func (c *Crew) kickoff(ctx context.Context, inputs map[string]any, schema *provider.StructuredOutput) (Output, error) {
	if len(c.tasks) == 0 {
		return Output{}, errors.New("crew has no tasks")
	}

	runID := uuidx.New()
	log := slog.With(slogx.LoggerName("crew"), slog.String("crew", c.name), slogx.RunID(runID))
	cv := types.ContextVars(inputs).Merge(nil)

	var out Output
	last := len(c.tasks) - 1
	for i, task := range c.tasks {
		a, _ := c.agents.Get(task.agentName)

		prompt, err := task.prompt(cv, out.Tasks)
		if err != nil {
			return out, fmt.Errorf("crew %s: task %d: %w", c.name, i+1, err)
		}

		options := []agent.RunOption{
			agent.WithRunID(runID),
			agent.WithContextVars(cv),
			agent.MaxTurns(c.maxTurns),
		}
		if i == last && schema != nil {
			options = append(options, agent.WithResponseSchema(schema))
		}

		log.DebugContext(ctx, "running task", slog.Int("task", i+1), slog.String("agent", a.Name()))
		msg := provider.UserMessage(prompt)
		msg.Sender = c.name
		res, err := agent.Run(ctx, a, []provider.Message{msg}, options...)
		if err != nil {
			return out, fmt.Errorf("crew %s: task %d (%s): %w", c.name, i+1, a.Name(), err)
		}
		cv = res.ContextVars

		out.Tasks = append(out.Tasks, TaskOutput{
			Agent:       a.Name(),
			Description: prompt,
			Raw:         res.Content,
		})
		out.Raw = res.Content
	}
	return out, nil
}
