package openai

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/casualjim/roost/pkg/jsonx"
	"github.com/casualjim/roost/provider"
	"github.com/go-openapi/strfmt"
	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"github.com/openai/openai-go/shared"
)

var (
	_ provider.Provider    = (*Provider)(nil)
	_ provider.Transcriber = (*Provider)(nil)
	_ provider.Speaker     = (*Provider)(nil)
)

type Provider struct {
	client *openai.Client
}

func New(options ...option.RequestOption) *Provider {
	client := openai.NewClient(options...)
	return &Provider{
		client: client,
	}
}

func (p *Provider) buildRequest(_ context.Context, params *provider.CompletionParams) (openai.ChatCompletionNewParams, error) {
	if params.Model == nil {
		return openai.ChatCompletionNewParams{}, fmt.Errorf("a model is required")
	}
	result, user := messagesToOpenAI(params.Instructions, params.Thread)

	tools := make([]openai.ChatCompletionToolParam, len(params.Tools))
	for i, tool := range params.Tools {
		if tool.Function == nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("tool %s has nil function", tool.Name)
		}

		name, parameters := tool.ToNameAndSchema()

		jv, err := jsonx.ToDynamicJSON(parameters)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert tool to name and schema: %w", err)
		}

		def := openai.FunctionDefinitionParam{
			Name:       openai.String(name),
			Parameters: openai.F(shared.FunctionParameters(jv)),
		}
		if strings.TrimSpace(tool.Description) != "" {
			def.Description = openai.String(tool.Description)
		}

		tools[i] = openai.ChatCompletionToolParam{
			Type:     openai.F(openai.ChatCompletionToolTypeFunction),
			Function: openai.F(def),
		}
	}

	oaiParams := openai.ChatCompletionNewParams{
		Messages:    openai.F(result),
		Model:       openai.F(params.Model.Name()),
		N:           openai.Int(1),
		Temperature: openai.Float(0.1),
	}
	if len(tools) > 0 {
		oaiParams.Tools = openai.F(tools)
		oaiParams.ParallelToolCalls = openai.Bool(true)
	}
	if strings.TrimSpace(user) != "" {
		oaiParams.User = openai.String(user)
	}

	if rs := params.ResponseSchema; rs != nil && rs.Schema != nil {
		schema, err := jsonx.ToDynamicJSON(rs.Schema)
		if err != nil {
			return openai.ChatCompletionNewParams{}, fmt.Errorf("failed to convert response schema: %w", err)
		}
		js := openai.ResponseFormatJSONSchemaJSONSchemaParam{
			Name:   openai.F(rs.Name),
			Schema: openai.F[any](schema),
		}
		if strings.TrimSpace(rs.Description) != "" {
			js.Description = openai.F(rs.Description)
		}
		oaiParams.ResponseFormat = openai.F[openai.ChatCompletionNewParamsResponseFormatUnion](
			openai.ResponseFormatJSONSchemaParam{
				Type:       openai.F(openai.ResponseFormatJSONSchemaTypeJSONSchema),
				JSONSchema: openai.F(js),
			},
		)
	}

	return oaiParams, nil
}

func (p *Provider) ChatCompletion(ctx context.Context, params provider.CompletionParams) (provider.Completion, error) {
	chatParams, err := p.buildRequest(ctx, &params)
	if err != nil {
		return provider.Completion{}, fmt.Errorf("failed to build request: %w", err)
	}

	chat, err := p.client.Chat.Completions.New(ctx, chatParams)
	if err != nil {
		return provider.Completion{}, fmt.Errorf("chat completion: %w", err)
	}
	return toCompletion(chat, &params), nil
}

func messagesToOpenAI(instructions string, thread []provider.Message) ([]openai.ChatCompletionMessageParamUnion, string) {
	result := []openai.ChatCompletionMessageParamUnion{
		openai.SystemMessage(instructions),
	}
	var user string
	for _, msg := range thread {
		switch msg.Role {
		case provider.RoleTool:
			result = append(result, openai.ToolMessage(msg.ToolCallID, msg.Content))
		case provider.RoleUser:
			if msg.Sender != "" {
				user = msg.Sender
			}
			if msg.Content != "" {
				result = append(result, openai.UserMessageParts(openai.TextPart(msg.Content)))
			}
		case provider.RoleAssistant:
			if len(msg.ToolCalls) > 0 {
				tcd := make([]openai.ChatCompletionMessageToolCallParam, len(msg.ToolCalls))
				for i, tc := range msg.ToolCalls {
					tcd[i] = openai.ChatCompletionMessageToolCallParam{
						ID:   openai.String(tc.ID),
						Type: openai.F(openai.ChatCompletionMessageToolCallTypeFunction),
						Function: openai.F(openai.ChatCompletionMessageToolCallFunctionParam{
							Name:      openai.String(tc.Name),
							Arguments: openai.String(tc.Arguments),
						}),
					}
				}
				result = append(result, openai.ChatCompletionMessageParam{
					Role:      openai.F(openai.ChatCompletionMessageParamRoleAssistant),
					ToolCalls: openai.F[any](tcd),
				})
				continue
			}
			am := openai.ChatCompletionAssistantMessageParam{
				Role: openai.F(openai.ChatCompletionAssistantMessageParamRoleAssistant),
			}
			if msg.Content != "" {
				am.Content.Value = append(am.Content.Value, openai.TextPart(msg.Content))
			}
			result = append(result, am)
		}
	}
	return result, user
}

func toCompletion(chat *openai.ChatCompletion, command *provider.CompletionParams) provider.Completion {
	out := provider.Completion{
		RunID:     command.RunID,
		Timestamp: strfmt.DateTime(time.Now()),
	}
	if len(chat.Choices) == 0 {
		return out
	}

	choice := chat.Choices[0].Message
	if len(choice.ToolCalls) > 0 {
		out.ToolCalls = make([]provider.ToolCall, len(choice.ToolCalls))
		for i, tc := range choice.ToolCalls {
			out.ToolCalls[i] = provider.ToolCall{
				ID:        tc.ID,
				Name:      tc.Function.Name,
				Arguments: tc.Function.Arguments,
			}
		}
		return out
	}

	out.Content = choice.Content
	out.Refusal = choice.Refusal
	return out
}
