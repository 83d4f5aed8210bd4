package flow

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	KindFlowStarted   = "flow_started"
	KindStepStarted   = "step_started"
	KindStepCompleted = "step_completed"
	KindStepFailed    = "step_failed"
	KindRouted        = "routed"
	KindFlowFinished  = "flow_finished"
	KindFlowFailed    = "flow_failed"
)

// Event is a lifecycle notification emitted while a flow runs.
type Event interface {
	EventKind() string
	Run() uuid.UUID
	flowEvent()
}

type FlowStarted struct {
	RunID     uuid.UUID       `json:"run_id"`
	Flow      string          `json:"flow"`
	Inputs    map[string]any  `json:"inputs,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

type StepStarted struct {
	RunID      uuid.UUID       `json:"run_id"`
	Flow       string          `json:"flow"`
	Step       string          `json:"step"`
	Invocation int             `json:"invocation"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
}

type StepCompleted struct {
	RunID      uuid.UUID       `json:"run_id"`
	Flow       string          `json:"flow"`
	Step       string          `json:"step"`
	Invocation int             `json:"invocation"`
	Delta      map[string]any  `json:"delta,omitempty"`
	Elapsed    time.Duration   `json:"elapsed"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
}

type StepFailed struct {
	RunID      uuid.UUID       `json:"run_id"`
	Flow       string          `json:"flow"`
	Step       string          `json:"step"`
	Invocation int             `json:"invocation"`
	Error      string          `json:"error"`
	Elapsed    time.Duration   `json:"elapsed"`
	Timestamp  strfmt.DateTime `json:"timestamp"`
}

type Routed struct {
	RunID       uuid.UUID       `json:"run_id"`
	Flow        string          `json:"flow"`
	Router      string          `json:"router"`
	Label       string          `json:"label"`
	Destination string          `json:"destination,omitempty"`
	Terminate   bool            `json:"terminate,omitempty"`
	Timestamp   strfmt.DateTime `json:"timestamp"`
}

type FlowFinished struct {
	RunID     uuid.UUID       `json:"run_id"`
	Flow      string          `json:"flow"`
	Passes    int             `json:"passes"`
	State     map[string]any  `json:"state,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

type FlowFailed struct {
	RunID     uuid.UUID       `json:"run_id"`
	Flow      string          `json:"flow"`
	Step      string          `json:"step,omitempty"`
	Error     string          `json:"error"`
	State     map[string]any  `json:"state,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (FlowStarted) EventKind() string   { return KindFlowStarted }
func (StepStarted) EventKind() string   { return KindStepStarted }
func (StepCompleted) EventKind() string { return KindStepCompleted }
func (StepFailed) EventKind() string    { return KindStepFailed }
func (Routed) EventKind() string        { return KindRouted }
func (FlowFinished) EventKind() string  { return KindFlowFinished }
func (FlowFailed) EventKind() string    { return KindFlowFailed }

func (e FlowStarted) Run() uuid.UUID   { return e.RunID }
func (e StepStarted) Run() uuid.UUID   { return e.RunID }
func (e StepCompleted) Run() uuid.UUID { return e.RunID }
func (e StepFailed) Run() uuid.UUID    { return e.RunID }
func (e Routed) Run() uuid.UUID        { return e.RunID }
func (e FlowFinished) Run() uuid.UUID  { return e.RunID }
func (e FlowFailed) Run() uuid.UUID    { return e.RunID }

func (FlowStarted) flowEvent()   {}
func (StepStarted) flowEvent()   {}
func (StepCompleted) flowEvent() {}
func (StepFailed) flowEvent()    {}
func (Routed) flowEvent()        {}
func (FlowFinished) flowEvent()  {}
func (FlowFailed) flowEvent()    {}

// MarshalEvent encodes an event as JSON with a "type" discriminator so it can
// travel over a broker and be decoded by UnmarshalEvent.
func MarshalEvent(ev Event) ([]byte, error) {
	data, err := json.Marshal(ev)
	if err != nil {
		return nil, fmt.Errorf("marshal %s event: %w", ev.EventKind(), err)
	}
	return sjson.SetBytes(data, "type", ev.EventKind())
}

func UnmarshalEvent(data []byte) (Event, error) {
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("invalid json: %s", data)
	}

	kind := gjson.GetBytes(data, "type")
	if !kind.Exists() {
		return nil, fmt.Errorf("missing required field 'type'")
	}

	switch kind.String() {
	case KindFlowStarted:
		return decodeEvent[FlowStarted](data)
	case KindStepStarted:
		return decodeEvent[StepStarted](data)
	case KindStepCompleted:
		return decodeEvent[StepCompleted](data)
	case KindStepFailed:
		return decodeEvent[StepFailed](data)
	case KindRouted:
		return decodeEvent[Routed](data)
	case KindFlowFinished:
		return decodeEvent[FlowFinished](data)
	case KindFlowFailed:
		return decodeEvent[FlowFailed](data)
	default:
		return nil, fmt.Errorf("unknown event type %q", kind.String())
	}
}

func decodeEvent[T Event](data []byte) (Event, error) {
	var ev T
	if err := json.Unmarshal(data, &ev); err != nil {
		return nil, fmt.Errorf("unmarshal %s event: %w", ev.EventKind(), err)
	}
	return ev, nil
}
