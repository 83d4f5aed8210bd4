/*
Package roost builds chat bots out of small conditional flows.

The engine lives in package flow: steps read a snapshot of a typed state and
return partial updates, routers pick the next step by label, and joins fire
as soon as any of their predecessors completes. Agents (package agent) and
crews (package crew) give steps an LLM to talk to, tools under tools/ give
agents something to do, and package telegram puts the result in front of
users.

A two step chat flow:

	g := flow.New("chatbot", flow.Fields(
		flow.Field("user_query", ""),
		flow.Field("messages", []provider.Message(nil)),
	)).
		Start("analyze_query", analyzeQuery).
		Step("generate_response", generateResponse, "analyze_query").
		MustBuild()

	final, err := g.Kickoff(ctx, map[string]any{"user_query": "hello"})

Handlers adapt a flow or crew to a chat transport:

	bot, err := telegram.New(token, telegram.Text(roost.HandlerFunc(reply)))
	if err != nil {
		return err
	}
	return bot.Run(ctx)

The bots package tree has the complete examples: a chatbot, a news agent
with web search, a fund manager with a growth/value router, a blog writer
that loops until its SEO score is good enough and a voice English tutor.
*/
package roost
