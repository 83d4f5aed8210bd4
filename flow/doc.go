// Package flow is a conditional flow engine: a graph of named steps that share
// one typed state record.
//
// Steps come in four kinds. Entry steps run first. Plain steps run once all of
// their predecessors have completed. Join steps run as soon as any one of
// their predecessors completes. Router steps return a label that selects the
// next step, which may loop back to an earlier one, or ends the flow.
//
//	g, err := flow.New("counter", flow.Fields(flow.Field("counter", 0))).
//		Start("increment", increment).
//		Router("check", check, flow.Routes{"loop": flow.To("increment"), "done": flow.Terminate}, "increment").
//		Build()
//
//	final, err := g.Kickoff(ctx, nil)
//
// The scheduler works in passes. All steps that are ready at the start of a
// pass see the same snapshot of the state. Their deltas are merged after the
// pass in registration order, so when two steps write the same field the one
// registered last wins.
package flow
