// Package durable runs registered flows as Temporal workflows. A workflow
// executes a single activity that kicks the flow off on a worker, so retries
// and timeouts are handled by Temporal while the flow itself stays in-process
// on the worker.
package durable

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/casualjim/roost/flow"
	"github.com/casualjim/roost/internal/broker"
	"github.com/casualjim/roost/pkg/uuidx"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"
)

const (
	TaskQueue = "roost-flows"

	// ErrTypeConfiguration marks activity failures that are never retried.
	ErrTypeConfiguration = "FlowConfigurationError"
	ErrTypeUnknownFlow   = "UnknownFlowError"
	// ErrTypeLoopLimit marks runs stopped by the re-entry limit; a retry
	// replays the same loop.
	ErrTypeLoopLimit = "FlowLoopLimitError"
)

type KickoffRequest struct {
	Flow   string         `json:"flow"`
	RunID  uuid.UUID      `json:"run_id"`
	Inputs map[string]any `json:"inputs,omitempty"`
}

type KickoffResult struct {
	RunID uuid.UUID       `json:"run_id"`
	Flow  string          `json:"flow"`
	State json.RawMessage `json:"state"`
}

// Decode unmarshals the final flow state into v.
func (r KickoffResult) Decode(v any) error {
	if err := json.Unmarshal(r.State, v); err != nil {
		return fmt.Errorf("decode state of %s: %w", r.Flow, err)
	}
	return nil
}

// Runner hosts the workflow and its activity.
type Runner struct {
	broker              broker.Broker
	startToCloseTimeout time.Duration
	maximumAttempts     int32
}

type Option = opts.Option[Runner]

var (
	// Broker publishes the events of every run to the topic named after its
	// run id.
	Broker              = opts.ForName[Runner, broker.Broker]("broker")
	StartToCloseTimeout = opts.ForName[Runner, time.Duration]("startToCloseTimeout")
	MaximumAttempts     = opts.ForName[Runner, int32]("maximumAttempts")
)

func New(options ...Option) (*Runner, error) {
	r := &Runner{
		startToCloseTimeout: 10 * time.Minute,
		maximumAttempts:     3,
	}
	if err := opts.Apply(r, options); err != nil {
		return nil, err
	}
	return r, nil
}

// Registry is satisfied by worker.Worker and the Temporal test environment.
type Registry interface {
	RegisterWorkflow(w any)
	RegisterActivity(a any)
}

// Register adds the workflow and activity to a worker.
func (r *Runner) Register(w Registry) {
	w.RegisterWorkflow(r.KickoffWorkflow)
	w.RegisterActivity(r.Kickoff)
}

// KickoffWorkflow runs one flow invocation as an activity.
func (r *Runner) KickoffWorkflow(ctx workflow.Context, req KickoffRequest) (KickoffResult, error) {
	log := workflow.GetLogger(ctx)

	if req.RunID == uuid.Nil {
		var id uuid.UUID
		if err := workflow.SideEffect(ctx, func(workflow.Context) any { return uuidx.New() }).Get(&id); err != nil {
			return KickoffResult{}, fmt.Errorf("generate run id: %w", err)
		}
		req.RunID = id
	}
	log.Info("kicking off flow", "flow", req.Flow, "run_id", req.RunID.String())

	actx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: r.startToCloseTimeout,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:        time.Second,
			MaximumInterval:        30 * time.Second,
			BackoffCoefficient:     2.0,
			MaximumAttempts:        r.maximumAttempts,
			NonRetryableErrorTypes: []string{ErrTypeConfiguration, ErrTypeUnknownFlow, ErrTypeLoopLimit},
		},
	})

	var result KickoffResult
	if err := workflow.ExecuteActivity(actx, r.Kickoff, req).Get(ctx, &result); err != nil {
		return KickoffResult{}, err
	}
	return result, nil
}

// Kickoff is the activity: it looks the flow up in flow.Global and runs it.
func (r *Runner) Kickoff(ctx context.Context, req KickoffRequest) (KickoffResult, error) {
	log := activity.GetLogger(ctx)

	g, ok := flow.Get(req.Flow)
	if !ok {
		return KickoffResult{}, temporal.NewNonRetryableApplicationError(
			fmt.Sprintf("flow %q is not registered", req.Flow), ErrTypeUnknownFlow, nil)
	}

	options := []flow.RunOption{flow.WithRunID(req.RunID)}
	if r.broker != nil {
		options = append(options, flow.WithRunHook(broker.Publisher(r.broker)))
	}

	final, err := g.Kickoff(ctx, req.Inputs, options...)
	if err != nil {
		log.Error("flow failed", "flow", req.Flow, "run_id", req.RunID.String(), "error", err)
		if errors.Is(err, flow.ErrConfiguration) {
			return KickoffResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeConfiguration, err)
		}
		if errors.Is(err, flow.ErrLoopLimit) {
			return KickoffResult{}, temporal.NewNonRetryableApplicationError(err.Error(), ErrTypeLoopLimit, err)
		}
		return KickoffResult{}, err
	}

	state, err := final.MarshalJSON()
	if err != nil {
		return KickoffResult{}, fmt.Errorf("encode state: %w", err)
	}
	return KickoffResult{RunID: req.RunID, Flow: req.Flow, State: state}, nil
}

// Start executes the workflow and waits for its result. When a broker and a
// hook are given, the hook receives the run's events while it executes.
func Start(ctx context.Context, c client.Client, req KickoffRequest, b broker.Broker, hook flow.Hook) (KickoffResult, error) {
	if req.RunID == uuid.Nil {
		req.RunID = uuidx.New()
	}

	if b != nil && hook != nil {
		sub, err := b.Topic(ctx, req.RunID.String()).Subscribe(ctx, hook)
		if err != nil {
			return KickoffResult{}, fmt.Errorf("subscribe to run %s: %w", req.RunID, err)
		}
		defer sub.Unsubscribe()
	}

	run, err := c.ExecuteWorkflow(ctx, client.StartWorkflowOptions{
		ID:        fmt.Sprintf("%s-%s", req.Flow, req.RunID),
		TaskQueue: TaskQueue,
	}, "KickoffWorkflow", req)
	if err != nil {
		return KickoffResult{}, fmt.Errorf("start flow %s: %w", req.Flow, err)
	}

	var result KickoffResult
	if err := run.Get(ctx, &result); err != nil {
		return KickoffResult{}, fmt.Errorf("flow %s: %w", req.Flow, err)
	}
	return result, nil
}
