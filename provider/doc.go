// Package provider is the abstraction over model vendors. A Provider answers
// chat completions, with optional tools and structured output; Transcriber
// and Speaker cover speech-to-text and text-to-speech.
//
// Models bind a name to a provider and are looked up through the models
// registry:
//
//	params := provider.CompletionParams{
//	    RunID:        uuidx.New(),
//	    Instructions: "You are a helpful assistant",
//	    Thread:       []provider.Message{provider.UserMessage("hi")},
//	    Model:        openai.GPT4oMini(),
//	}
//	completion, err := params.Model.Provider().ChatCompletion(ctx, params)
package provider
