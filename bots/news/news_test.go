package news

import (
	"context"
	"errors"
	"testing"

	"github.com/casualjim/roost/history"
	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/provider/providertest"
	"github.com/casualjim/roost/tool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBot_Reply(t *testing.T) {
	fake := providertest.New(
		providertest.Calls(provider.ToolCall{ID: "c1", Name: "lookup", Arguments: `{"query":"elections"}`}),
		providertest.Text("The elections are next week."),
		providertest.Text("Turnout is expected to be high."),
	)
	var queries []string
	lookup := tool.Must(func(query string) string {
		queries = append(queries, query)
		return "elections next week"
	}, tool.Name("lookup"), tool.Parameters("query"))

	store := history.NewMemory(2)
	bot, err := New(Model(providertest.Model{Backend: fake}), History(store), Tools(lookup))
	require.NoError(t, err)

	answer, err := bot.Reply(context.Background(), "When are the elections?")
	require.NoError(t, err)
	assert.Equal(t, "The elections are next week.", answer)
	assert.Equal(t, []string{"elections"}, queries)

	answer, err = bot.Reply(context.Background(), "And turnout?")
	require.NoError(t, err)
	assert.Equal(t, "Turnout is expected to be high.", answer)

	reqs := fake.Requests()
	require.Len(t, reqs, 3)
	assert.Contains(t, reqs[0].Thread[0].Content, "No previous conversation")
	assert.Contains(t, reqs[2].Thread[0].Content, "1. User: When are the elections?\n   You: The elections are next week.")
	require.Len(t, reqs[0].Tools, 1)

	turns, err := store.Recent(context.Background())
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, "And turnout?", turns[1].User)
}

func TestBot_ReplyFailureKeepsHistory(t *testing.T) {
	store := history.NewMemory(history.DefaultLimit)
	bot, err := New(Model(providertest.Model{Backend: providertest.New(providertest.Fail(errors.New("boom")))}), History(store))
	require.NoError(t, err)

	_, err = bot.Reply(context.Background(), "hello")
	require.ErrorContains(t, err, "boom")

	turns, err := store.Recent(context.Background())
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestNew_RequiresModel(t *testing.T) {
	_, err := New()
	assert.ErrorContains(t, err, "a model is required")
}
