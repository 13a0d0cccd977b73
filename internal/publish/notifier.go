package publish

import (
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"herald/pkg/logging"
)

// Notifier sends operator alerts to the admin channel. Alerts are
// best-effort: a failed alert is logged and swallowed so error
// reporting can never take down the caller.
type Notifier struct {
	bot     botAPI
	channel string
	logger  logging.Logger
}

func NewNotifier(bot *tgbotapi.BotAPI, channel string, logger logging.Logger) *Notifier {
	return &Notifier{bot: bot, channel: channel, logger: logger}
}

func (n *Notifier) ReportError(component string, reported error) {
	if n == nil || n.bot == nil || reported == nil {
		return
	}

	text := "🚨 Error in " + component + ":\n" + truncateError(reported.Error())
	msg := newMessage(n.channel, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.logger.WithFields(logging.Fields{
			"component": component,
			"reported":  reported.Error(),
			"error":     err.Error(),
		}).Error("Failed to deliver operator alert")
	}
}

func truncateError(s string) string {
	const max = 1000
	if len(s) <= max {
		return s
	}
	return s[:max] + "…"
}
