package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/tool"
	"github.com/casualjim/roost/types"
	"github.com/fogfish/opts"
	"github.com/google/uuid"
)

// ErrMaxTurns is returned when the model keeps calling tools past the turn limit.
var ErrMaxTurns = errors.New("max turns exceeded")

const defaultMaxTurns = 10

type runConfig struct {
	runID          uuid.UUID
	maxTurns       int
	contextVars    types.ContextVars
	responseSchema *provider.StructuredOutput
}

type RunOption = opts.Option[runConfig]

var (
	WithRunID          = opts.ForName[runConfig, uuid.UUID]("runID")
	MaxTurns           = opts.ForName[runConfig, int]("maxTurns")
	WithContextVars    = opts.ForName[runConfig, types.ContextVars]("contextVars")
	WithResponseSchema = opts.ForName[runConfig, *provider.StructuredOutput]("responseSchema")
)

// Result is the outcome of a Run.
type Result struct {
	// Content is the final assistant answer.
	Content string
	// Messages holds what the run appended to the thread: tool calls, tool
	// responses and the final answer.
	Messages []provider.Message
	// ContextVars are the variables after tool updates.
	ContextVars types.ContextVars
	Turns       int
}

// Run talks to the agent's model until it answers with text. Tool calls are
// executed in order and their results fed back. Each completion counts as a
// turn.
func Run(ctx context.Context, a api.Agent, thread []provider.Message, options ...RunOption) (Result, error) {
	rc := runConfig{maxTurns: defaultMaxTurns}
	if err := opts.Apply(&rc, options); err != nil {
		return Result{}, err
	}
	if a == nil {
		return Result{}, errors.New("agent cannot be nil")
	}
	model := a.Model()
	if model == nil {
		return Result{}, errors.New("agent model cannot be nil")
	}
	prov := model.Provider()
	if prov == nil {
		return Result{}, errors.New("model provider cannot be nil")
	}

	tools := make(map[string]tool.Definition, len(a.Tools()))
	for _, def := range a.Tools() {
		tools[def.Name] = def
	}

	log := slog.With(slogx.LoggerName("agent"), slog.String("agent", a.Name()))
	cv := types.ContextVars{}.Merge(rc.contextVars)
	msgs := append([]provider.Message(nil), thread...)
	added := 0

	for turn := 1; turn <= rc.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		instructions, err := a.RenderInstructions(cv)
		if err != nil {
			return Result{}, fmt.Errorf("failed to render instructions: %w", err)
		}

		completion, err := prov.ChatCompletion(ctx, provider.CompletionParams{
			RunID:          rc.runID,
			Instructions:   instructions,
			Thread:         msgs,
			ResponseSchema: rc.responseSchema,
			Model:          model,
			Tools:          a.Tools(),
		})
		if err != nil {
			return Result{}, fmt.Errorf("failed to get chat completion: %w", err)
		}
		msgs = append(msgs, completion.Message())
		added++

		if !completion.HasToolCalls() {
			if completion.Refusal != "" && completion.Content == "" {
				return Result{}, fmt.Errorf("agent %s refused: %s", a.Name(), completion.Refusal)
			}
			return Result{
				Content:     completion.Content,
				Messages:    msgs[len(msgs)-added:],
				ContextVars: cv,
				Turns:       turn,
			}, nil
		}

		for _, call := range completion.ToolCalls {
			def, ok := tools[call.Name]
			if !ok {
				return Result{}, fmt.Errorf("unknown tool %s", call.Name)
			}
			log.DebugContext(ctx, "calling tool", slog.String("tool", call.Name), slog.String("arguments", call.Arguments))

			content := ""
			res, err := tool.Call(ctx, def, call.Arguments, cv)
			if err != nil {
				// tool failures are reported back to the model
				log.WarnContext(ctx, "tool failed", slog.String("tool", call.Name), slogx.Error(err))
				content = "error: " + err.Error()
			} else {
				content = res.Value
				if res.ContextVariables != nil {
					cv = cv.Merge(res.ContextVariables)
				}
			}
			msgs = append(msgs, provider.ToolResponse(call.ID, content))
			added++
		}
	}

	return Result{}, fmt.Errorf("agent %s: %w after %d turns", a.Name(), ErrMaxTurns, rc.maxTurns)
}
