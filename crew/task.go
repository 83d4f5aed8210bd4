package crew

import (
	"strings"

	"github.com/casualjim/roost/agent"
	"github.com/casualjim/roost/types"
)

// Task is one unit of work in a crew: what to do, what a good answer looks
// like, and which agent does it.
type Task struct {
	agentName      string
	description    string
	expectedOutput string
}

// Step assigns a task to the named agent. The description is a template
// rendered with the kickoff inputs.
func Step(agentName, description, expectedOutput string) Task {
	return Task{
		agentName:      agentName,
		description:    description,
		expectedOutput: expectedOutput,
	}
}

func (t Task) Agent() string { return t.agentName }

// prompt renders the message the agent receives for this task. Earlier task
// outputs are passed along as context.
func (t Task) prompt(cv types.ContextVars, context []TaskOutput) (string, error) {
	description, err := agent.RenderTemplate(t.agentName, strings.TrimSpace(t.description), cv)
	if err != nil {
		return "", err
	}

	var b strings.Builder
	b.WriteString(description)
	if expected := strings.TrimSpace(t.expectedOutput); expected != "" {
		b.WriteString("\n\nThis is the expected criteria for your final answer: ")
		b.WriteString(expected)
		b.WriteString("\nYou MUST return the actual complete content as the final answer, not a summary.")
	}
	if len(context) > 0 {
		b.WriteString("\n\nThis is the context you're working with:\n")
		for i, out := range context {
			if i > 0 {
				b.WriteString("\n\n----------\n\n")
			}
			b.WriteString(out.Raw)
		}
	}
	return b.String(), nil
}
