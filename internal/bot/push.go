package bot

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"task-reminder/internal/notify"
)

// Push delivers reminders on the push channel as Telegram messages.
type Push struct {
	api messenger
}

// NewPush returns a push sender that reuses the bot's connection.
func (b *Bot) Push() *Push {
	return &Push{api: b.api}
}

func (p *Push) Send(ctx context.Context, msg notify.Message) error {
	if msg.Recipient.TelegramID == 0 {
		return notify.ErrNoAddress
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	out := tgbotapi.NewMessage(msg.Recipient.TelegramID, fmt.Sprintf("<b>%s</b>\n%s", escape(msg.Title), escape(msg.Body)))
	out.ParseMode = tgbotapi.ModeHTML
	if _, err := p.api.Send(out); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}
