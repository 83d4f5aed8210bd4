// Package telegram connects chat handlers to a Telegram bot.
package telegram

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"time"
	"unicode/utf16"

	"github.com/casualjim/roost"
	"github.com/casualjim/roost/pkg/slogx"
	"github.com/fogfish/opts"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/sync/errgroup"
)

const (
	// DefaultFailureText is sent when a handler fails.
	DefaultFailureText = "Sorry, something went wrong while answering. Please try again."

	maxMessageLength = 4096
)

// Bot long-polls Telegram for updates and answers them with its handlers.
type Bot struct {
	api *tgbotapi.BotAPI
	log *slog.Logger

	text  roost.Handler
	voice roost.VoiceHandler

	voiceAck     string
	failureText  string
	workDir      string
	pollTimeout  int
	concurrency  int
	endpoint     string
	fileEndpoint string
	client       *http.Client
}

type Option = opts.Option[Bot]

var (
	// VoiceAck is sent before a voice message is processed.
	VoiceAck     = opts.ForName[Bot, string]("voiceAck")
	FailureText  = opts.ForName[Bot, string]("failureText")
	WorkDir      = opts.ForName[Bot, string]("workDir")
	PollTimeout  = opts.ForName[Bot, int]("pollTimeout")
	Concurrency  = opts.ForName[Bot, int]("concurrency")
	Endpoint     = opts.ForName[Bot, string]("endpoint")
	FileEndpoint = opts.ForName[Bot, string]("fileEndpoint")
	HTTPClient   = opts.ForName[Bot, *http.Client]("client")
)

// Text answers text messages with h.
func Text(h roost.Handler) Option {
	return opts.Type[Bot](func(b *Bot) error {
		b.text = h
		return nil
	})
}

// Voice answers voice messages with h.
func Voice(h roost.VoiceHandler) Option {
	return opts.Type[Bot](func(b *Bot) error {
		b.voice = h
		return nil
	})
}

// New connects to the bot API. It fails when the token is rejected.
func New(token string, options ...Option) (*Bot, error) {
	b := &Bot{
		failureText:  DefaultFailureText,
		workDir:      os.TempDir(),
		pollTimeout:  60,
		concurrency:  4,
		endpoint:     tgbotapi.APIEndpoint,
		fileEndpoint: tgbotapi.FileEndpoint,
		client:       &http.Client{},
	}
	if err := opts.Apply(b, options); err != nil {
		return nil, err
	}
	if b.text == nil && b.voice == nil {
		return nil, errors.New("telegram: a text or voice handler is required")
	}
	if b.concurrency < 1 {
		b.concurrency = 1
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, b.endpoint, b.client)
	if err != nil {
		return nil, fmt.Errorf("telegram: connect: %w", err)
	}
	b.api = api
	b.log = slog.With(slogx.LoggerName("telegram"), slog.String("bot", api.Self.UserName))
	return b, nil
}

// Run polls for updates until ctx is cancelled. Updates are handled
// concurrently; Run waits for handlers in flight before returning.
func (b *Bot) Run(ctx context.Context) error {
	b.log.InfoContext(ctx, "polling for updates")

	grp, gctx := errgroup.WithContext(ctx)
	grp.SetLimit(b.concurrency)

	cfg := tgbotapi.NewUpdate(0)
	cfg.Timeout = b.pollTimeout
	backoff := time.Second

	for gctx.Err() == nil {
		updates, err := b.api.GetUpdates(cfg)
		if err != nil {
			b.log.ErrorContext(ctx, "failed to get updates", slogx.Error(err))
			select {
			case <-gctx.Done():
			case <-time.After(backoff):
			}
			backoff = min(backoff*2, time.Minute)
			continue
		}
		backoff = time.Second

		for _, update := range updates {
			if update.UpdateID >= cfg.Offset {
				cfg.Offset = update.UpdateID + 1
			}
			grp.Go(func() error {
				b.handle(gctx, update)
				return nil
			})
		}
	}

	_ = grp.Wait()
	return nil
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	log := b.log.With(slog.Int64("chat", msg.Chat.ID), slog.Int("message", msg.MessageID))

	switch {
	case msg.Voice != nil && b.voice != nil:
		if err := b.answerVoice(ctx, msg); err != nil {
			log.ErrorContext(ctx, "failed to answer voice message", slogx.Error(err))
			b.sendText(ctx, msg.Chat.ID, b.failureText)
		}
	case msg.Text != "" && b.text != nil:
		reply, err := b.text.Reply(ctx, msg.Text)
		if err != nil {
			log.ErrorContext(ctx, "failed to answer message", slogx.Error(err))
			reply = b.failureText
		}
		b.sendText(ctx, msg.Chat.ID, reply)
	}
}

func (b *Bot) answerVoice(ctx context.Context, msg *tgbotapi.Message) error {
	if b.voiceAck != "" {
		b.sendText(ctx, msg.Chat.ID, b.voiceAck)
	}

	in := filepath.Join(b.workDir, fmt.Sprintf("voice_%d_%d.ogg", msg.Chat.ID, msg.MessageID))
	if err := b.download(ctx, msg.Voice.FileID, in); err != nil {
		return err
	}
	defer os.Remove(in)

	out, err := b.voice.ReplyVoice(ctx, in)
	if err != nil {
		return err
	}
	defer os.Remove(out)

	if _, err := b.api.Send(tgbotapi.NewVoice(msg.Chat.ID, tgbotapi.FilePath(out))); err != nil {
		return fmt.Errorf("send voice: %w", err)
	}
	return nil
}

func (b *Bot) download(ctx context.Context, fileID, dst string) error {
	file, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return fmt.Errorf("get file %s: %w", fileID, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, fmt.Sprintf(b.fileEndpoint, b.api.Token, file.FilePath), nil)
	if err != nil {
		return err
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("download %s: %s", fileID, resp.Status)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(f, resp.Body); err != nil {
		f.Close()
		return fmt.Errorf("download %s: %w", fileID, err)
	}
	return f.Close()
}

func (b *Bot) sendText(ctx context.Context, chatID int64, text string) {
	for _, part := range split(text, maxMessageLength) {
		if _, err := b.api.Send(tgbotapi.NewMessage(chatID, part)); err != nil {
			b.log.ErrorContext(ctx, "failed to send message", slog.Int64("chat", chatID), slogx.Error(err))
			return
		}
	}
}

// split cuts text into chunks of at most n UTF-16 code units, the unit
// Telegram measures message length in. Runes are never cut in half.
func split(text string, n int) []string {
	if text == "" {
		return nil
	}
	var parts []string
	start, units := 0, 0
	for i, r := range text {
		w := utf16.RuneLen(r)
		if w < 0 {
			w = 1
		}
		if units+w > n && i > start {
			parts = append(parts, text[start:i])
			start, units = i, 0
		}
		units += w
	}
	return append(parts, text[start:])
}
