package api

import (
	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/tool"
	"github.com/casualjim/roost/types"
)

// Agent is a persona backed by a model: a role, a goal and the tools it may
// call while working on a task.
type Agent interface {
	// Name identifies the agent in logs and registries.
	Name() string

	// Model is the chat model the agent talks to.
	Model() Model

	// Tools returns the functions the model may call.
	Tools() []tool.Definition

	// RenderInstructions builds the system prompt, substituting context
	// variables into the instruction template.
	RenderInstructions(types.ContextVars) (string, error)
}

// Model names a chat model and the provider that serves it.
type Model interface {
	Name() string
	Provider() provider.Provider
}
