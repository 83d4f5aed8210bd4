/*
Package openai implements the provider interfaces on top of the OpenAI API.

Chat completions go through [Provider.ChatCompletion]. A completion carries
either text or the tool calls the model asked for, never both. When
CompletionParams.ResponseSchema is set the request asks for strict JSON output
matching the schema.

The same provider also implements speech: [Provider.Transcribe] uses whisper
and [Provider.Speak] uses tts-1 with the alloy voice, producing mp3.

Models are cached by name and initialize their provider on first use:

	model := openai.Model("gpt-4o-mini", option.WithAPIKey(key))
	answer, err := model.Provider().ChatCompletion(ctx, provider.CompletionParams{
		Instructions: "You are a helpful assistant",
		Thread:       []provider.Message{provider.UserMessage("hello")},
		Model:        model,
	})
*/
package openai
