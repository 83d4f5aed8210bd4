package agent

import (
	"testing"

	"github.com/casualjim/roost/provider/providertest"
	"github.com/casualjim/roost/tool"
	"github.com/casualjim/roost/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultAgent(t *testing.T) {
	t.Run("basic properties", func(t *testing.T) {
		agent := &defaultAgent{
			name:         "test-agent",
			model:        providertest.Model{},
			instructions: "test instructions",
		}

		assert.Equal(t, "test-agent", agent.Name())
		assert.Equal(t, providertest.Model{}, agent.Model())
		assert.Empty(t, agent.Tools())
	})
}

func TestNewAgent(t *testing.T) {
	agent := New(Name("test"), Model(providertest.Model{}), Instructions("instructions"))

	assert.Equal(t, "test", agent.Name())
	assert.Equal(t, providertest.Model{}, agent.Model())
	assert.Empty(t, agent.Tools())

	def := tool.Must(func(q string) string { return q }, tool.Name("echo"))
	withTools := New(Role("Researcher"), Tools(def))
	assert.Equal(t, "Researcher", withTools.Name(), "name falls back to the role")
	assert.Equal(t, "gpt-4o-mini", withTools.Model().Name())
	require.Len(t, withTools.Tools(), 1)
	assert.Equal(t, "echo", withTools.Tools()[0].Name)
}

func TestRenderInstructions(t *testing.T) {
	t.Run("no template variables", func(t *testing.T) {
		agent := New(Name("test"), Model(providertest.Model{}), Instructions("simple instructions"))
		result, err := agent.RenderInstructions(types.ContextVars{})
		require.NoError(t, err)
		assert.Equal(t, "simple instructions", result)
	})

	t.Run("with template variables", func(t *testing.T) {
		agent := New(Name("test"), Model(providertest.Model{}), Instructions("Hello {{.Name}}"))
		result, err := agent.RenderInstructions(types.ContextVars{"Name": "World"})
		require.NoError(t, err)
		assert.Equal(t, "Hello World", result)
	})

	t.Run("persona", func(t *testing.T) {
		agent := New(
			Model(providertest.Model{}),
			Role("English Conversation Partner"),
			Goal("keep the conversation going"),
			Backstory("You're Lina.\n{{.history}}"),
		)
		result, err := agent.RenderInstructions(types.ContextVars{"history": "No previous conversation"})
		require.NoError(t, err)
		assert.Equal(t, "You are English Conversation Partner.\nYou're Lina.\nNo previous conversation\n\nYour personal goal is: keep the conversation going\n", result)
	})

	t.Run("with invalid template", func(t *testing.T) {
		agent := New(Name("test"), Model(providertest.Model{}), Instructions("Hello {{.Name"))
		_, err := agent.RenderInstructions(types.ContextVars{"Name": "World"})
		require.Error(t, err)
	})

	t.Run("with missing variable", func(t *testing.T) {
		agent := New(Name("test"), Model(providertest.Model{}), Instructions("Hello {{.Name}}"))
		_, err := agent.RenderInstructions(types.ContextVars{})
		require.Error(t, err)
	})
}
