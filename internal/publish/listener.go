package publish

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"herald/pkg/logging"
)

// Decider resolves one reviewer action to a definitive outcome text.
// Implemented by the approval gate.
type Decider interface {
	HandleAction(ctx context.Context, correlationID, action string) string
}

// Listener consumes callback-query updates from the bot's long-poll
// stream and dispatches each decision on its own goroutine, so a slow
// publish never blocks the next button press.
type Listener struct {
	bot     *tgbotapi.BotAPI
	decider Decider
	logger  logging.Logger
}

func NewListener(bot *tgbotapi.BotAPI, decider Decider, logger logging.Logger) *Listener {
	return &Listener{bot: bot, decider: decider, logger: logger}
}

// Run blocks until ctx is cancelled.
func (l *Listener) Run(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 30
	u.AllowedUpdates = []string{"callback_query"}
	updates := l.bot.GetUpdatesChan(u)
	defer l.bot.StopReceivingUpdates()

	l.logger.Info("Listening for approval callbacks")
	for {
		select {
		case <-ctx.Done():
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			if update.CallbackQuery == nil {
				continue
			}
			go l.handle(ctx, update.CallbackQuery)
		}
	}
}

func (l *Listener) handle(ctx context.Context, query *tgbotapi.CallbackQuery) {
	// Ack first so the button stops spinning regardless of how long the
	// decision takes.
	if _, err := l.bot.Request(tgbotapi.NewCallback(query.ID, "")); err != nil {
		l.logger.WithFields(logging.Fields{"error": err.Error()}).Warn("Callback ack failed")
	}

	action, correlationID, ok := ParseCallback(query.Data)
	if !ok {
		l.logger.WithFields(logging.Fields{"data": query.Data}).Warn("Ignoring malformed callback data")
		return
	}

	outcome := l.decider.HandleAction(ctx, correlationID, action)

	if query.Message != nil {
		edit := tgbotapi.NewEditMessageText(query.Message.Chat.ID, query.Message.MessageID, outcome)
		if _, err := l.bot.Request(edit); err != nil {
			l.logger.WithFields(logging.Fields{
				"correlation_id": correlationID,
				"error":          err.Error(),
			}).Warn("Failed to edit approval message")
		}
	}
}

// ParseCallback splits "approve:<id>" / "decline:<id>" callback data.
func ParseCallback(data string) (action, correlationID string, ok bool) {
	action, correlationID, found := strings.Cut(data, ":")
	if !found || correlationID == "" {
		return "", "", false
	}
	if action != "approve" && action != "decline" {
		return "", "", false
	}
	return action, correlationID, true
}
