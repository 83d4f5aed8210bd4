package provider

import (
	"context"
	"io"

	"github.com/casualjim/roost/tool"
	"github.com/go-openapi/strfmt"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
)

// Provider defines the interface for chat model providers.
type Provider interface {
	ChatCompletion(context.Context, CompletionParams) (Completion, error)
}

// Transcriber turns recorded speech into text. name is the file name of the
// recording; providers use its extension to detect the audio format.
type Transcriber interface {
	Transcribe(ctx context.Context, name string, audio io.Reader) (string, error)
}

// Speaker synthesizes speech for a text and returns the encoded audio.
type Speaker interface {
	Speak(ctx context.Context, text string) ([]byte, error)
}

// CompletionParams encapsulates all parameters needed for a chat completion request.
type CompletionParams struct {
	RunID uuid.UUID

	// Instructions are sent as the system prompt.
	Instructions string

	// Thread is the conversation so far, oldest first.
	Thread []Message

	// ResponseSchema asks the model to answer with JSON matching the schema.
	ResponseSchema *StructuredOutput

	Model interface {
		Name() string
		Provider() Provider
	}

	Tools []tool.Definition

	// Prevents unkeyed literals
	_ struct{}
}

// StructuredOutput defines a schema for formatted responses.
type StructuredOutput struct {
	Name        string
	Description string
	Schema      *jsonschema.Schema
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of a conversation thread.
type Message struct {
	Role    Role   `json:"role"`
	Sender  string `json:"sender,omitempty"`
	Content string `json:"content,omitempty"`
	// ToolCalls is set on assistant messages that request tool invocations.
	ToolCalls []ToolCall `json:"tool_calls,omitempty"`
	// ToolCallID links a tool message to the call it answers.
	ToolCallID string `json:"tool_call_id,omitempty"`
}

type ToolCall struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Arguments string `json:"arguments"`
}

func UserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content}
}

func AssistantMessage(content string) Message {
	return Message{Role: RoleAssistant, Content: content}
}

func ToolCallMessage(calls ...ToolCall) Message {
	return Message{Role: RoleAssistant, ToolCalls: calls}
}

func ToolResponse(callID, content string) Message {
	return Message{Role: RoleTool, ToolCallID: callID, Content: content}
}

// Completion is a model answer: either text or a set of tool calls.
type Completion struct {
	RunID     uuid.UUID       `json:"run_id"`
	Content   string          `json:"content,omitempty"`
	ToolCalls []ToolCall      `json:"tool_calls,omitempty"`
	Refusal   string          `json:"refusal,omitempty"`
	Timestamp strfmt.DateTime `json:"timestamp,omitempty"`
}

func (c Completion) HasToolCalls() bool { return len(c.ToolCalls) > 0 }

// Message converts the completion into a thread entry.
func (c Completion) Message() Message {
	if c.HasToolCalls() {
		return ToolCallMessage(c.ToolCalls...)
	}
	return AssistantMessage(c.Content)
}
