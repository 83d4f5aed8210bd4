package flow

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/fogfish/opts"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

type runConfig struct {
	runID uuid.UUID
	hooks Hooks
}

// RunOption configures a single Kickoff.
type RunOption = opts.Option[runConfig]

var WithRunID = opts.ForName[runConfig, uuid.UUID]("runID")

// WithRunHook adds hooks for a single invocation, on top of the graph hooks.
func WithRunHook(hooks ...Hook) RunOption {
	return opts.Type[runConfig](func(c *runConfig) error {
		c.hooks = append(c.hooks, hooks...)
		return nil
	})
}

type runIDKey struct{}

// RunIDFromContext returns the id of the invocation a step body runs in.
func RunIDFromContext(ctx context.Context) (uuid.UUID, bool) {
	id, ok := ctx.Value(runIDKey{}).(uuid.UUID)
	return id, ok
}

// invocation is the scheduler state of one Kickoff.
type invocation struct {
	graph *Graph
	runID uuid.UUID
	hook  Hook
	state *State

	passes int
	runs   map[string]int
	// satisfied tracks, per plain or router step, which predecessors have
	// completed since the step last ran.
	satisfied map[string]map[string]bool
	// seen tracks the predecessors that reported in the current join round.
	seen map[string]map[string]bool
}

type outcome struct {
	step   *stepDef
	delta  Delta
	label  string
	dest   Destination
	err    error
	invNum int
}

// Kickoff runs the flow to completion. It returns the state as of the last
// successful merge, also when it fails.
func (g *Graph) Kickoff(ctx context.Context, inputs map[string]any, options ...RunOption) (Snapshot, error) {
	var rc runConfig
	if err := opts.Apply(&rc, options); err != nil {
		return Snapshot{}, &ConfigurationError{Err: err}
	}
	if rc.runID == uuid.Nil {
		rc.runID = uuidx.New()
	}

	hooks := slices.Clone(g.cfg.hooks)
	hooks = append(hooks, rc.hooks...)

	inv := &invocation{
		graph:     g,
		runID:     rc.runID,
		hook:      hooks,
		runs:      make(map[string]int, len(g.steps)),
		satisfied: make(map[string]map[string]bool),
		seen:      make(map[string]map[string]bool),
	}
	ctx = context.WithValue(ctx, runIDKey{}, rc.runID)

	inv.emit(ctx, FlowStarted{RunID: inv.runID, Flow: g.name, Inputs: inputs, Timestamp: now()})

	st, err := newState(g.schema, inputs)
	if err != nil {
		inv.emit(ctx, FlowFailed{RunID: inv.runID, Flow: g.name, Error: err.Error(), Timestamp: now()})
		return Snapshot{}, err
	}
	inv.state = st

	final, err := inv.run(ctx)
	if err != nil {
		var failedStep string
		var se *StepExecutionError
		if errors.As(err, &se) {
			failedStep = se.Step
		}
		inv.emit(ctx, FlowFailed{RunID: inv.runID, Flow: g.name, Step: failedStep, Error: err.Error(), State: final.Map(), Timestamp: now()})
		return final, err
	}
	inv.emit(ctx, FlowFinished{RunID: inv.runID, Flow: g.name, Passes: inv.passes, State: final.Map(), Timestamp: now()})
	return final, nil
}

func (inv *invocation) run(ctx context.Context) (Snapshot, error) {
	var ready []*stepDef
	for _, s := range inv.graph.steps {
		if s.kind == KindEntry {
			ready = append(ready, s)
		}
	}

	for len(ready) > 0 {
		if err := ctx.Err(); err != nil {
			return inv.state.Snapshot(), fmt.Errorf("flow %q cancelled: %w", inv.graph.name, err)
		}
		if err := inv.checkReentry(ready); err != nil {
			return inv.state.Snapshot(), err
		}
		inv.passes++

		snap := inv.state.Snapshot()
		outcomes, failed := inv.execute(ctx, ready, snap)
		if failed >= 0 {
			o := outcomes[failed]
			return snap, &StepExecutionError{Flow: inv.graph.name, Step: o.step.name, Err: o.err, State: snap}
		}
		if err := ctx.Err(); err != nil {
			return snap, fmt.Errorf("flow %q cancelled: %w", inv.graph.name, err)
		}

		for i := range outcomes {
			o := &outcomes[i]
			if o.step.kind != KindRouter {
				continue
			}
			dest, err := Resolve(o.step.name, o.label, o.step.routes)
			if err != nil {
				return snap, err
			}
			o.dest = dest
			ev := Routed{RunID: inv.runID, Flow: inv.graph.name, Router: o.step.name, Label: o.label, Terminate: dest.IsTerminate(), Timestamp: now()}
			if !dest.IsTerminate() {
				ev.Destination = dest.Step()
			}
			inv.emit(ctx, ev)
		}

		// Deltas merge in registration order, so on a shared field the step
		// registered last wins. A bad delta rejects the whole pass.
		merged := make([]map[string]any, 0, len(outcomes))
		for _, o := range outcomes {
			values, err := inv.state.convert(o.delta)
			if err != nil {
				return snap, &StepExecutionError{Flow: inv.graph.name, Step: o.step.name, Err: err, State: snap}
			}
			merged = append(merged, values)
		}
		inv.state.commit(merged...)

		ready = inv.next(outcomes)
	}

	return inv.state.Snapshot(), nil
}

func (inv *invocation) checkReentry(ready []*stepDef) error {
	limit := inv.graph.cfg.maxReentries
	guard := inv.graph.cfg.guard
	for _, s := range ready {
		runs := inv.runs[s.name] + 1
		if limit > 0 && runs-1 > limit {
			return &LoopLimitError{Step: s.name, Runs: runs, Limit: limit}
		}
		if guard != nil {
			if err := guard(s.name, runs); err != nil {
				return &LoopLimitError{Step: s.name, Runs: runs, Err: err}
			}
		}
	}
	return nil
}

// execute runs one pass. Every step sees the same snapshot. Outcomes are
// returned in registration order regardless of completion order, with the
// index of the step that failed first, or -1.
func (inv *invocation) execute(ctx context.Context, ready []*stepDef, snap Snapshot) ([]outcome, int) {
	outcomes := make([]outcome, len(ready))
	for i, s := range ready {
		inv.runs[s.name]++
		outcomes[i] = outcome{step: s, invNum: inv.runs[s.name]}
	}

	if inv.graph.cfg.concurrency <= 1 || len(ready) == 1 {
		for i := range outcomes {
			if ctx.Err() != nil {
				break
			}
			inv.invoke(ctx, &outcomes[i], snap)
			if outcomes[i].err != nil {
				return outcomes, i
			}
		}
		return outcomes, -1
	}

	// siblings cancelled by the first failure also report an error; only the
	// first one is the cause
	failed := -1
	var first sync.Once
	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(inv.graph.cfg.concurrency)
	for i := range outcomes {
		o := &outcomes[i]
		grp.Go(func() error {
			if gctx.Err() != nil {
				return nil
			}
			inv.invoke(gctx, o, snap)
			if o.err != nil {
				first.Do(func() { failed = i })
			}
			return o.err
		})
	}
	_ = grp.Wait()
	return outcomes, failed
}

func (inv *invocation) invoke(ctx context.Context, o *outcome, snap Snapshot) {
	s := o.step
	inv.emit(ctx, StepStarted{RunID: inv.runID, Flow: inv.graph.name, Step: s.name, Invocation: o.invNum, Timestamp: now()})
	start := time.Now()

	func() {
		defer func() {
			if r := recover(); r != nil {
				o.err = fmt.Errorf("panic: %v", r)
			}
		}()
		if s.kind == KindRouter {
			o.label, o.err = s.route(ctx, snap)
			return
		}
		o.delta, o.err = s.run(ctx, snap)
	}()

	elapsed := time.Since(start)
	if o.err != nil {
		inv.emit(ctx, StepFailed{RunID: inv.runID, Flow: inv.graph.name, Step: s.name, Invocation: o.invNum, Error: o.err.Error(), Elapsed: elapsed, Timestamp: now()})
		return
	}
	inv.emit(ctx, StepCompleted{RunID: inv.runID, Flow: inv.graph.name, Step: s.name, Invocation: o.invNum, Delta: o.delta, Elapsed: elapsed, Timestamp: now()})
}

// next computes the ready set for the following pass from the outcomes of
// the pass that just merged.
func (inv *invocation) next(outcomes []outcome) []*stepDef {
	ready := make(map[string]*stepDef)
	terminated := false

	for _, o := range outcomes {
		if o.step.kind == KindRouter && o.dest.IsTerminate() {
			terminated = true
		}
	}

	for _, o := range outcomes {
		delete(inv.satisfied, o.step.name)
	}

	for _, o := range outcomes {
		if o.step.kind == KindRouter {
			if !o.dest.IsTerminate() {
				target := inv.graph.byName[o.dest.Step()]
				delete(inv.satisfied, target.name)
				delete(inv.seen, target.name)
				ready[target.name] = target
			}
			continue
		}
		if terminated {
			continue
		}
		for _, succ := range inv.graph.successors[o.step.name] {
			if inv.completed(succ, o.step.name) {
				ready[succ.name] = succ
			}
		}
	}

	out := make([]*stepDef, 0, len(ready))
	for _, s := range ready {
		out = append(out, s)
	}
	slices.SortFunc(out, func(a, b *stepDef) int { return a.index - b.index })
	return out
}

// completed records that pred completed and reports whether succ became ready.
func (inv *invocation) completed(succ *stepDef, pred string) bool {
	if succ.kind == KindJoin {
		seen := inv.seen[succ.name]
		if seen == nil || seen[pred] {
			// first arrival of a round, or a predecessor reporting again
			inv.seen[succ.name] = map[string]bool{pred: true}
			inv.closeRound(succ)
			return true
		}
		seen[pred] = true
		inv.closeRound(succ)
		return false
	}

	sat := inv.satisfied[succ.name]
	if sat == nil {
		sat = make(map[string]bool, len(succ.preds))
		inv.satisfied[succ.name] = sat
	}
	sat[pred] = true
	for _, p := range succ.preds {
		if !sat[p] {
			return false
		}
	}
	return true
}

func (inv *invocation) closeRound(join *stepDef) {
	seen := inv.seen[join.name]
	for _, p := range join.preds {
		if !seen[p] {
			return
		}
	}
	delete(inv.seen, join.name)
}

func (inv *invocation) emit(ctx context.Context, ev Event) {
	inv.hook.OnEvent(ctx, ev)
}

func now() strfmt.DateTime { return strfmt.DateTime(time.Now().UTC()) }
