package flow

import (
	"iter"
	"maps"
	"slices"

	"github.com/casualjim/roost/internal/registry"
)

// Graph is a validated, immutable flow definition. A Graph can be kicked off
// any number of times, concurrently; every invocation owns its own state.
type Graph struct {
	name       string
	steps      []*stepDef
	byName     map[string]*stepDef
	successors map[string][]*stepDef
	schema     *schema
	cfg        config
}

// StepInfo is the read-only view of a registered step.
type StepInfo struct {
	Name         string
	Kind         Kind
	Predecessors []string
	Routes       Routes
}

func (g *Graph) Name() string { return g.name }

// Fields lists the declared state fields in declaration order.
func (g *Graph) Fields() []string { return g.schema.names() }

func (g *Graph) Step(name string) (StepInfo, bool) {
	s, ok := g.byName[name]
	if !ok {
		return StepInfo{}, false
	}
	return s.info(), true
}

// Steps iterates over the registered steps in registration order.
func (g *Graph) Steps() iter.Seq[StepInfo] {
	return func(yield func(StepInfo) bool) {
		for _, s := range g.steps {
			if !yield(s.info()) {
				return
			}
		}
	}
}

func (s *stepDef) info() StepInfo {
	return StepInfo{
		Name:         s.name,
		Kind:         s.kind,
		Predecessors: slices.Clone(s.preds),
		Routes:       maps.Clone(s.routes),
	}
}

// Global holds graphs by name so they can be started by name, e.g. from a
// durable workflow activity.
var Global = registry.New[*Graph]()

func Add(g *Graph) {
	Global.Add(g.Name(), g)
}

func Get(name string) (*Graph, bool) {
	return Global.Get(name)
}

func Del(name string) {
	Global.Del(name)
}
