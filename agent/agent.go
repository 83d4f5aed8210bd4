package agent

import (
	"strings"
	"text/template"

	"github.com/casualjim/roost/api"
	"github.com/casualjim/roost/provider/openai"
	"github.com/casualjim/roost/tool"
	"github.com/casualjim/roost/types"
	"github.com/fogfish/opts"
)

var _ api.Agent = (*defaultAgent)(nil)

// defaultAgent is a persona: a role with a goal and a backstory, the model
// it talks to and the tools it may call.
type defaultAgent struct {
	name         string
	model        api.Model
	role         string
	goal         string
	backstory    string
	instructions string
	tools        []tool.Definition
}

func (a *defaultAgent) Name() string {
	return a.name
}

func (a *defaultAgent) Model() api.Model {
	return a.model
}

func (a *defaultAgent) Tools() []tool.Definition {
	return a.tools
}

func (a *defaultAgent) Role() string { return a.role }
func (a *defaultAgent) Goal() string { return a.goal }

// RenderInstructions renders the system prompt with the provided context
// variables. Explicit instructions win over the role/goal/backstory persona.
func (a *defaultAgent) RenderInstructions(cv types.ContextVars) (string, error) {
	text := a.instructions
	if text == "" {
		text = a.persona()
	}
	if !strings.Contains(text, "{{") {
		return text, nil
	}
	return RenderTemplate(a.name, text, cv)
}

func (a *defaultAgent) persona() string {
	var b strings.Builder
	if a.role != "" {
		b.WriteString("You are ")
		b.WriteString(a.role)
		b.WriteString(".\n")
	}
	if a.backstory != "" {
		b.WriteString(strings.TrimSpace(a.backstory))
		b.WriteString("\n")
	}
	if a.goal != "" {
		b.WriteString("\nYour personal goal is: ")
		b.WriteString(a.goal)
		b.WriteString("\n")
	}
	return b.String()
}

// RenderTemplate executes a text/template against the context variables.
// Missing keys are an error.
func RenderTemplate(name, templateStr string, cv types.ContextVars) (string, error) {
	tmpl, err := template.New(name).Option("missingkey=error").Parse(templateStr)
	if err != nil {
		return "", err
	}

	var buf strings.Builder
	if err := tmpl.Execute(&buf, cv); err != nil {
		return "", err
	}

	return buf.String(), nil
}

type Option = opts.Option[defaultAgent]

var (
	Name         = opts.ForName[defaultAgent, string]("name")
	Model        = opts.ForName[defaultAgent, api.Model]("model")
	Role         = opts.ForName[defaultAgent, string]("role")
	Goal         = opts.ForName[defaultAgent, string]("goal")
	Backstory    = opts.ForName[defaultAgent, string]("backstory")
	Instructions = opts.ForName[defaultAgent, string]("instructions")
)

func Tools(tool tool.Definition, extraTools ...tool.Definition) Option {
	return opts.Type[defaultAgent](func(o *defaultAgent) error {
		o.tools = append(o.tools, tool)
		o.tools = append(o.tools, extraTools...)
		return nil
	})
}

// New creates an agent. It talks to gpt-4o-mini unless a model is given.
func New(options ...Option) api.Agent {
	agent := &defaultAgent{
		model: openai.GPT4oMini(),
	}
	if err := opts.Apply(agent, options); err != nil {
		panic(err)
	}
	if agent.name == "" {
		agent.name = agent.role
	}
	return agent
}
