package telegram

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"autoria-leads/internal/domain"
	"autoria-leads/internal/infra/metrics"
)

// Notifier отправляет текстовые уведомления о новых объявлениях в чат.
type Notifier struct {
	bot    *tgbotapi.BotAPI
	chatID int64
}

var _ domain.Messenger = (*Notifier)(nil)

// NewNotifier создаёт отправителя.
func NewNotifier(bot *tgbotapi.BotAPI, chatID int64) *Notifier {
	return &Notifier{bot: bot, chatID: chatID}
}

// SendMessage отправляет текст в настроенный чат.
func (n *Notifier) SendMessage(ctx context.Context, text string) error {
	msg := tgbotapi.NewMessage(n.chatID, text)
	start := time.Now()
	_, err := n.bot.Send(msg)
	metrics.ObserveNetworkRequest("telegram", "send_message", "bot_api", start, err)
	if err != nil {
		return fmt.Errorf("отправка сообщения в Telegram: %w", err)
	}
	return nil
}

// BuildListingMessage собирает текст уведомления о новом объявлении.
func BuildListingMessage(listing domain.Listing, phone string) string {
	addedTime := listing.PostedAt.Format("15:04")
	text := fmt.Sprintf("🚗 Нове авто!\n\n%s (додано %s)\n\n💰 %s $", listing.Title, addedTime, listing.Price)
	if phone != "" {
		text += fmt.Sprintf("\n\n📞 %s", phone)
	}
	text += fmt.Sprintf("\n\n%s", listing.URL)
	return text
}
