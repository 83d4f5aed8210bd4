package roost

import "context"

// Handler answers a chat message with text.
type Handler interface {
	Reply(ctx context.Context, text string) (string, error)
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, text string) (string, error)

func (f HandlerFunc) Reply(ctx context.Context, text string) (string, error) {
	return f(ctx, text)
}

// VoiceHandler answers a voice message. It receives the path of the
// downloaded recording and returns the path of an audio file to send back.
type VoiceHandler interface {
	ReplyVoice(ctx context.Context, audioPath string) (string, error)
}

// VoiceHandlerFunc adapts a function to VoiceHandler.
type VoiceHandlerFunc func(ctx context.Context, audioPath string) (string, error)

func (f VoiceHandlerFunc) ReplyVoice(ctx context.Context, audioPath string) (string, error) {
	return f(ctx, audioPath)
}
