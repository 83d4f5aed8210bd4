/*
Package tool turns plain Go functions into tools an agent can call.

A Definition pairs a function with the name, description and parameter names
the model sees. The JSON schema of the arguments is reflected from the
function signature, so a tool is an ordinary function:

	quote := tool.Must(yahoo.Company,
		tool.Name("company_financials"),
		tool.Description("Price history and key figures of a listed company"),
		tool.Parameters("ticker", "period"),
	)

Parameters are positional. Without tool.Parameters the model sees param0,
param1 and so on. A context.Context or types.ContextVars parameter is not
shown to the model; Call injects them:

	func lookup(ctx context.Context, vars types.ContextVars, query string) (string, error)

Call decodes the model's JSON arguments with gjson, converts them to the
parameter types and invokes the function. A non-nil error return fails the
call. Other return values are rendered as text for the model: strings and
numbers as is, anything else as JSON. A function may also return
types.ContextVars to update the variables of the running agent.
*/
package tool
