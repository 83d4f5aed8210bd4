// Package types holds small value types shared by agents, tools and crews.
package types

import (
	"maps"

	"github.com/goccy/go-json"
)

// ContextVars are the variables available to instruction and task templates.
// Tools can return updated variables, which are merged into the set used for
// the following turns. Not safe for concurrent modification.
type ContextVars map[string]any

// Merge returns a copy of cv with the entries of other layered on top.
func (cv ContextVars) Merge(other ContextVars) ContextVars {
	out := make(ContextVars, len(cv)+len(other))
	maps.Copy(out, cv)
	maps.Copy(out, other)
	return out
}

// String renders the variables as JSON, or an empty string when they can't
// be marshalled.
func (cv ContextVars) String() string {
	jsonData, err := json.Marshal(cv)
	if err != nil {
		return ""
	}
	return string(jsonData)
}
