package flow

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"

	"github.com/fogfish/opts"
	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Func is the body of a regular step. It reads the state snapshot taken at
// the start of its pass and returns the fields it wants to change.
type Func func(ctx context.Context, s Snapshot) (Delta, error)

// RouteFunc is the body of a router step. The returned label is resolved
// against the router's Routes. Routers do not change state.
type RouteFunc func(ctx context.Context, s Snapshot) (string, error)

// GuardFunc is consulted before a step runs again. runs counts the invocations
// including the one about to start.
type GuardFunc func(step string, runs int) error

type Kind uint8

const (
	KindEntry Kind = iota
	KindPlain
	KindJoin
	KindRouter
)

func (k Kind) String() string {
	switch k {
	case KindEntry:
		return "entry"
	case KindPlain:
		return "plain"
	case KindJoin:
		return "join"
	case KindRouter:
		return "router"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Option configures a flow at build time.
type Option = opts.Option[config]

type config struct {
	fields       []FieldDef
	maxReentries int
	guard        GuardFunc
	concurrency  int
	hooks        Hooks
	logger       *slog.Logger
}

var (
	// MaxReentries bounds how many times a single step may run in one
	// invocation. Zero means unbounded.
	MaxReentries = opts.ForName[config, int]("maxReentries")
	ReentryGuard = opts.ForName[config, GuardFunc]("guard")
	// Concurrency is the number of steps of one pass that may run in parallel.
	Concurrency = opts.ForName[config, int]("concurrency")
	WithLogger  = opts.ForName[config, *slog.Logger]("logger")
)

// Fields declares the fields of the flow state.
func Fields(fields ...FieldDef) Option {
	return opts.Type[config](func(c *config) error {
		c.fields = append(c.fields, fields...)
		return nil
	})
}

func WithHook(hooks ...Hook) Option {
	return opts.Type[config](func(c *config) error {
		c.hooks = append(c.hooks, hooks...)
		return nil
	})
}

type stepDef struct {
	name   string
	kind   Kind
	index  int
	preds  []string
	run    Func
	route  RouteFunc
	routes Routes
}

// Builder collects step registrations. Registration problems are recorded and
// reported together by Build.
type Builder struct {
	name  string
	cfg   config
	steps *orderedmap.OrderedMap[string, *stepDef]
	errs  []error
}

func New(name string, options ...Option) *Builder {
	b := &Builder{
		name:  name,
		cfg:   config{concurrency: 1},
		steps: orderedmap.New[string, *stepDef](),
	}
	if err := opts.Apply(&b.cfg, options); err != nil {
		b.errs = append(b.errs, &ConfigurationError{Err: err})
	}
	return b
}

// Start registers an entry step. Entry steps run in the first pass.
func (b *Builder) Start(name string, fn Func) *Builder {
	return b.register(&stepDef{name: name, kind: KindEntry, run: fn})
}

// Step registers a step that runs once every predecessor has completed since
// its own last run.
func (b *Builder) Step(name string, fn Func, after ...string) *Builder {
	return b.register(&stepDef{name: name, kind: KindPlain, run: fn, preds: after})
}

// Join registers a step that runs as soon as any one of its predecessors
// completes, at most once per round of predecessor completions.
func (b *Builder) Join(name string, fn Func, anyOf ...string) *Builder {
	return b.register(&stepDef{name: name, kind: KindJoin, run: fn, preds: anyOf})
}

// Router registers a routing step. It is triggered like a plain step and its
// label selects the next step from routes.
func (b *Builder) Router(name string, fn RouteFunc, routes Routes, after ...string) *Builder {
	return b.register(&stepDef{name: name, kind: KindRouter, route: fn, routes: routes, preds: after})
}

// Register is the generic registration entry point. body must be a Func for
// entry, plain and join steps and a RouteFunc for routers.
func (b *Builder) Register(name string, kind Kind, preds []string, body any, routes Routes) *Builder {
	def := &stepDef{name: name, kind: kind, preds: preds, routes: routes}
	switch fn := body.(type) {
	case Func:
		def.run = fn
	case func(context.Context, Snapshot) (Delta, error):
		def.run = fn
	case RouteFunc:
		def.route = fn
	case func(context.Context, Snapshot) (string, error):
		def.route = fn
	}
	return b.register(def)
}

func (b *Builder) register(def *stepDef) *Builder {
	if def.name == "" {
		b.errs = append(b.errs, &ConfigurationError{Err: errors.New("step name is required")})
		return b
	}
	if _, exists := b.steps.Get(def.name); exists {
		b.errs = append(b.errs, &DuplicateStepError{Step: def.name})
		return b
	}
	// the graph owns its routes and predecessors once registered
	def.routes = maps.Clone(def.routes)
	def.preds = slices.Clone(def.preds)

	switch def.kind {
	case KindRouter:
		if def.route == nil {
			b.errs = append(b.errs, &ConfigurationError{Step: def.name, Err: errors.New("router needs a route function")})
			return b
		}
	case KindEntry, KindPlain, KindJoin:
		if def.run == nil {
			b.errs = append(b.errs, &ConfigurationError{Step: def.name, Err: errors.New("step needs a body")})
			return b
		}
	default:
		b.errs = append(b.errs, &ConfigurationError{Step: def.name, Err: fmt.Errorf("unknown step kind %s", def.kind)})
		return b
	}

	preds := make([]string, 0, len(def.preds))
	for _, p := range def.preds {
		if !slices.Contains(preds, p) {
			preds = append(preds, p)
		}
	}
	def.preds = preds
	def.index = b.steps.Len()
	b.steps.Set(def.name, def)
	return b
}

// Build validates the registrations and returns an immutable graph.
func (b *Builder) Build() (*Graph, error) {
	errs := slices.Clone(b.errs)

	sc := newSchema()
	for _, f := range b.cfg.fields {
		if err := sc.add(f); err != nil {
			errs = append(errs, err)
		}
	}

	if b.cfg.concurrency < 1 {
		errs = append(errs, &ConfigurationError{Err: fmt.Errorf("concurrency must be at least 1, got %d", b.cfg.concurrency)})
	}
	if b.cfg.maxReentries < 0 {
		errs = append(errs, &ConfigurationError{Err: fmt.Errorf("max re-entries must not be negative, got %d", b.cfg.maxReentries)})
	}

	steps := make([]*stepDef, 0, b.steps.Len())
	for pair := b.steps.Oldest(); pair != nil; pair = pair.Next() {
		steps = append(steps, pair.Value)
	}
	errs = append(errs, validate(b.steps, steps)...)

	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}

	g := &Graph{
		name:       b.name,
		steps:      steps,
		byName:     make(map[string]*stepDef, len(steps)),
		successors: make(map[string][]*stepDef, len(steps)),
		schema:     sc,
		cfg:        b.cfg,
	}
	if g.cfg.logger == nil {
		g.cfg.logger = slog.Default()
	}
	for _, s := range steps {
		g.byName[s.name] = s
		for _, p := range s.preds {
			g.successors[p] = append(g.successors[p], s)
		}
	}
	return g, nil
}

// MustBuild is Build for flows declared at package level.
func (b *Builder) MustBuild() *Graph {
	g, err := b.Build()
	if err != nil {
		panic(err)
	}
	return g
}

func validate(index *orderedmap.OrderedMap[string, *stepDef], steps []*stepDef) []error {
	var errs []error
	if len(steps) == 0 {
		return []error{&ConfigurationError{Err: errors.New("flow has no steps")}}
	}

	targeted := make(map[string]bool)
	hasEntry := false
	for _, s := range steps {
		if s.kind == KindEntry {
			hasEntry = true
		}
		for label, dest := range s.routes {
			if dest.IsTerminate() {
				continue
			}
			if _, ok := index.Get(dest.Step()); !ok {
				errs = append(errs, &ConfigurationError{Step: s.name, Err: fmt.Errorf("route %q points at unknown step %q", label, dest.Step())})
				continue
			}
			targeted[dest.Step()] = true
		}
	}
	if !hasEntry {
		errs = append(errs, &ConfigurationError{Err: errors.New("flow has no entry step")})
	}

	for _, s := range steps {
		if s.kind == KindEntry && len(s.preds) > 0 {
			errs = append(errs, &ConfigurationError{Step: s.name, Err: errors.New("entry steps cannot have predecessors")})
		}
		if s.kind == KindJoin && len(s.preds) == 0 {
			errs = append(errs, &ConfigurationError{Step: s.name, Err: errors.New("join needs at least one predecessor")})
		}
		if s.kind != KindEntry && len(s.preds) == 0 && !targeted[s.name] {
			errs = append(errs, &ConfigurationError{Step: s.name, Err: errors.New("step is unreachable: no predecessors and no route targets it")})
		}
		for _, p := range s.preds {
			if p == s.name {
				errs = append(errs, &ConfigurationError{Step: s.name, Err: errors.New("step cannot depend on itself")})
				continue
			}
			pred, ok := index.Get(p)
			if !ok {
				errs = append(errs, &UnknownPredecessorError{Step: s.name, Predecessor: p})
				continue
			}
			if pred.kind == KindRouter {
				errs = append(errs, &ConfigurationError{Step: s.name, Err: fmt.Errorf("router %q cannot be a predecessor, add a route instead", p)})
			}
		}
	}
	return errs
}
