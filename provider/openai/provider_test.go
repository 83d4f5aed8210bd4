package openai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/casualjim/roost/provider"
	"github.com/casualjim/roost/tool"
	"github.com/google/uuid"
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	p := New()
	assert.NotNil(t, p)
	assert.NotNil(t, p.client)
}

func TestProvider_buildRequest_Error(t *testing.T) {
	p := New()

	invalidTool := tool.Definition{
		Name:        "invalid_tool",
		Description: "A test tool",
		Parameters:  map[string]string{"param1": "value1"},
		Function:    nil,
	}

	params := &provider.CompletionParams{
		RunID:        uuid.New(),
		Instructions: "Test instructions",
		Model:        GPT4oMini(),
		Tools:        []tool.Definition{invalidTool},
	}

	_, err := p.buildRequest(context.Background(), params)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "tool invalid_tool has nil function")

	_, err = p.buildRequest(context.Background(), &provider.CompletionParams{Instructions: "no model"})
	assert.ErrorContains(t, err, "a model is required")
}

func TestProvider_buildRequest(t *testing.T) {
	p := New()

	toolDef := tool.Definition{
		Name:        "test_tool",
		Description: "A test tool",
		Parameters: map[string]string{
			"param0": "query",
		},
		Function: func(s string) string { return s },
	}

	params := &provider.CompletionParams{
		RunID:        uuid.New(),
		Instructions: "Test instructions",
		Thread: []provider.Message{
			{Role: provider.RoleUser, Sender: "testUser", Content: "Hello"},
		},
		Model: GPT4oMini(),
		Tools: []tool.Definition{toolDef},
	}

	chatParams, err := p.buildRequest(context.Background(), params)
	require.NoError(t, err)

	assert.Equal(t, GPT4oMini().Name(), string(chatParams.Model.Value))
	assert.Equal(t, int64(1), chatParams.N.Value)
	assert.True(t, chatParams.ParallelToolCalls.Value)
	assert.Equal(t, 0.1, chatParams.Temperature.Value)
	assert.Equal(t, "testUser", chatParams.User.Value)
	assert.Nil(t, chatParams.ResponseFormat.Value)

	msgs := chatParams.Messages.Value
	require.Len(t, msgs, 2)

	systemMsg := msgs[0].(openai.ChatCompletionSystemMessageParam)
	assert.Equal(t, "Test instructions", systemMsg.Content.Value[0].Text.Value)

	userMsg := msgs[1].(openai.ChatCompletionUserMessageParam)
	assert.Equal(t, "Hello", userMsg.Content.Value[0].(openai.ChatCompletionContentPartTextParam).Text.Value)

	tools := chatParams.Tools.Value
	require.Len(t, tools, 1)
	assert.Equal(t, openai.ChatCompletionToolTypeFunction, tools[0].Type.Value)
	assert.Equal(t, "test_tool", tools[0].Function.Value.Name.Value)
	assert.Equal(t, "A test tool", tools[0].Function.Value.Description.Value)

	props := tools[0].Function.Value.Parameters.Value["properties"].(map[string]any)
	assert.Contains(t, props, "query")
}

func TestProvider_buildRequest_NoToolsLeavesToolFieldsUnset(t *testing.T) {
	p := New()
	chatParams, err := p.buildRequest(context.Background(), &provider.CompletionParams{
		Instructions: "plain",
		Model:        GPT4oMini(),
	})
	require.NoError(t, err)
	assert.False(t, chatParams.Tools.Present)
	assert.False(t, chatParams.ParallelToolCalls.Present)
	assert.False(t, chatParams.User.Present)
}

func TestProvider_buildRequest_ResponseSchema(t *testing.T) {
	type verdict struct {
		Score  int    `json:"score"`
		Reason string `json:"reason"`
	}
	r := jsonschema.Reflector{DoNotReference: true, ExpandedStruct: true}

	p := New()
	chatParams, err := p.buildRequest(context.Background(), &provider.CompletionParams{
		Instructions: "grade it",
		Model:        GPT4oMini(),
		ResponseSchema: &provider.StructuredOutput{
			Name:        "verdict",
			Description: "the grade",
			Schema:      r.Reflect(verdict{}),
		},
	})
	require.NoError(t, err)

	format, ok := chatParams.ResponseFormat.Value.(openai.ResponseFormatJSONSchemaParam)
	require.True(t, ok)
	assert.Equal(t, openai.ResponseFormatJSONSchemaTypeJSONSchema, format.Type.Value)
	assert.Equal(t, "verdict", format.JSONSchema.Value.Name.Value)
	assert.Equal(t, "the grade", format.JSONSchema.Value.Description.Value)

	schema := format.JSONSchema.Value.Schema.Value.(map[string]any)
	assert.Contains(t, schema["properties"], "score")
}

func setupTestServer(t *testing.T, handler http.HandlerFunc) *Provider {
	server := httptest.NewServer(handler)
	t.Cleanup(func() {
		server.Close()
	})

	p := New(option.WithBaseURL(server.URL+"/v1/"), option.WithAPIKey("test"), option.WithMaxRetries(0))
	return p
}

func TestProvider_ChatCompletion(t *testing.T) {
	mockResp := openai.ChatCompletion{
		ID: "test-id",
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					Content: "Test response",
				},
			},
		},
	}

	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mockResp)
	})

	runID := uuid.New()
	completion, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		RunID:        runID,
		Instructions: "Test instructions",
		Thread:       []provider.Message{provider.UserMessage("hi")},
		Model:        GPT4oMini(),
	})
	require.NoError(t, err)

	assert.Equal(t, runID, completion.RunID)
	assert.Equal(t, "Test response", completion.Content)
	assert.False(t, completion.HasToolCalls())
	assert.False(t, time.Time(completion.Timestamp).IsZero())
}

func TestProvider_ChatCompletion_ToolCalls(t *testing.T) {
	mockResp := openai.ChatCompletion{
		ID: "test-id",
		Choices: []openai.ChatCompletionChoice{
			{
				Message: openai.ChatCompletionMessage{
					ToolCalls: []openai.ChatCompletionMessageToolCall{
						{
							ID:       "call_1",
							Type:     openai.ChatCompletionMessageToolCallTypeFunction,
							Function: openai.ChatCompletionMessageToolCallFunction{Name: "search", Arguments: `{"query":"go"}`},
						},
						{
							ID:       "call_2",
							Type:     openai.ChatCompletionMessageToolCallTypeFunction,
							Function: openai.ChatCompletionMessageToolCallFunction{Name: "quote", Arguments: `{"ticker":"NVDA"}`},
						},
					},
				},
			},
		},
	}

	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(mockResp)
	})

	completion, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Instructions: "Test instructions",
		Model:        GPT4oMini(),
	})
	require.NoError(t, err)
	require.True(t, completion.HasToolCalls())
	assert.Equal(t, []provider.ToolCall{
		{ID: "call_1", Name: "search", Arguments: `{"query":"go"}`},
		{ID: "call_2", Name: "quote", Arguments: `{"ticker":"NVDA"}`},
	}, completion.ToolCalls)
	assert.Empty(t, completion.Content)
}

func TestProvider_ChatCompletion_HTTPError(t *testing.T) {
	p := setupTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = io.WriteString(w, `{"error":{"message":"bad things","type":"invalid_request_error"}}`)
	})

	_, err := p.ChatCompletion(context.Background(), provider.CompletionParams{
		Instructions: "Test instructions",
		Model:        GPT4oMini(),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat completion")
}

func TestMessagesToOpenAI_EmptyMessages(t *testing.T) {
	result, user := messagesToOpenAI("Test instructions", nil)

	assert.Len(t, result, 1)
	systemMsg := result[0].(openai.ChatCompletionSystemMessageParam)
	assert.Equal(t, "Test instructions", systemMsg.Content.Value[0].Text.Value)
	assert.Empty(t, user)
}

func TestMessagesToOpenAI(t *testing.T) {
	thread := []provider.Message{
		{Role: provider.RoleUser, Sender: "user1", Content: "Hello"},
		provider.AssistantMessage("Hi there"),
		provider.ToolCallMessage(provider.ToolCall{ID: "tool1", Name: "test_tool", Arguments: `{"param": "value"}`}),
		provider.ToolResponse("tool1", "Tool response"),
	}

	result, user := messagesToOpenAI("Test instructions", thread)

	assert.Equal(t, "user1", user)
	require.Len(t, result, 5)

	assistant := result[2].(openai.ChatCompletionAssistantMessageParam)
	assert.Equal(t, "Hi there", assistant.Content.Value[0].(openai.ChatCompletionContentPartTextParam).Text.Value)

	calls := result[3].(openai.ChatCompletionMessageParam)
	assert.Equal(t, openai.ChatCompletionMessageParamRoleAssistant, calls.Role.Value)
	tcd := calls.ToolCalls.Value.([]openai.ChatCompletionMessageToolCallParam)
	require.Len(t, tcd, 1)
	assert.Equal(t, "tool1", tcd[0].ID.Value)
	assert.Equal(t, "test_tool", tcd[0].Function.Value.Name.Value)

	toolMsg := result[4].(openai.ChatCompletionToolMessageParam)
	assert.Equal(t, "tool1", toolMsg.ToolCallID.Value)
}

func TestToCompletion_NoChoices(t *testing.T) {
	runID := uuid.New()
	c := toCompletion(&openai.ChatCompletion{}, &provider.CompletionParams{RunID: runID})
	assert.Equal(t, runID, c.RunID)
	assert.Empty(t, c.Content)
	assert.False(t, c.HasToolCalls())
}
