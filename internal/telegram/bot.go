// Package telegram adapts the booking engine to a Telegram bot. Each chat
// maps to one engine user, so the same conversation rules apply as in the
// mobile app.
package telegram

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"github.com/keanulaw/NeoCare-App/internal/dialog"
	"github.com/keanulaw/NeoCare-App/internal/models"
)

// Sender sends Telegram messages. Satisfied by *tgbotapi.BotAPI.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// ChatEngine processes one utterance per call.
type ChatEngine interface {
	HandleUtterance(ctx context.Context, userID, fullName, text string) dialog.Result
}

// Recorder persists transcript entries. Optional.
type Recorder interface {
	SaveMessage(ctx context.Context, m *models.Message) error
}

// Bot bridges Telegram updates to the engine.
type Bot struct {
	api      *tgbotapi.BotAPI
	sender   Sender
	engine   ChatEngine
	recorder Recorder
	logger   *zerolog.Logger
}

// New connects to Telegram with the given token.
func New(token string, debug bool, engine ChatEngine, recorder Recorder, logger *zerolog.Logger) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connect to telegram: %w", err)
	}
	api.Debug = debug

	logger.Info().Str("username", api.Self.UserName).Msg("telegram bot authorized")
	return &Bot{api: api, sender: api, engine: engine, recorder: recorder, logger: logger}, nil
}

// Run consumes updates until ctx is cancelled.
func (b *Bot) Run(ctx context.Context) error {
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 30
	updates := b.api.GetUpdatesChan(updateConfig)

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handleUpdate(ctx, update)
		}
	}
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	if update.Message == nil || update.Message.Text == "" {
		return
	}

	msg := update.Message
	userID := fmt.Sprintf("tg:%d", msg.From.ID)
	fullName := fullNameOf(msg.From)
	text := msg.Text
	if text == "/start" {
		reply := tgbotapi.NewMessage(msg.Chat.ID,
			"Hi! Tell me what you're experiencing and I'll help you book a consultation.")
		if _, err := b.sender.Send(reply); err != nil {
			b.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("send greeting")
		}
		return
	}

	b.record(ctx, userID, models.SpeakerUser, text)
	result := b.engine.HandleUtterance(ctx, userID, fullName, text)
	b.record(ctx, userID, models.SpeakerEngine, result.Reply)

	reply := tgbotapi.NewMessage(msg.Chat.ID, result.Reply)
	if _, err := b.sender.Send(reply); err != nil {
		b.logger.Warn().Err(err).Int64("chat_id", msg.Chat.ID).Msg("send reply")
	}
}

func (b *Bot) record(ctx context.Context, userID, speaker, text string) {
	if b.recorder == nil {
		return
	}
	err := b.recorder.SaveMessage(ctx, &models.Message{UserID: userID, Speaker: speaker, Text: text})
	if err != nil {
		b.logger.Warn().Err(err).Str("user_id", userID).Msg("save transcript entry")
	}
}

func fullNameOf(u *tgbotapi.User) string {
	if u == nil {
		return ""
	}
	if u.LastName != "" {
		return u.FirstName + " " + u.LastName
	}
	return u.FirstName
}
