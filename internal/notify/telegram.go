// Package notify raises operational alerts to the team's Telegram channel.
package notify

import (
	"context"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// TelegramNotifier posts alert texts to a fixed chat. It is optional
// infrastructure: when no bot token is configured the constructor returns
// nil and callers skip alerting.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
	log    *slog.Logger
}

func NewTelegramNotifier(token string, chatID int64, log *slog.Logger) (*TelegramNotifier, error) {
	if token == "" || chatID == 0 {
		return nil, nil
	}
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, err
	}
	return &TelegramNotifier{bot: bot, chatID: chatID, log: log}, nil
}

// Alert sends one message. Delivery failures are logged, never propagated:
// alerting must not break the flow that triggered it.
func (n *TelegramNotifier) Alert(_ context.Context, text string) {
	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.bot.Send(msg); err != nil {
		n.log.Error("telegram alert failed", "err", err)
	}
}
