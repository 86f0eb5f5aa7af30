package events

import (
	"fmt"
	"os"
	"strconv"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"github.com/web3guy0/execore/internal/connmon"
	"github.com/web3guy0/execore/internal/monitor"
	"github.com/web3guy0/execore/internal/orders"
)

// Telegram is a Publisher that posts formatted notifications to a Telegram
// chat, generalizing bot.TelegramBot notification methods
// (NotifyTrade/NotifyPnL/NotifyError) from Polymarket YES/NO trade alerts
// into execution-engine domain events. Every Publish* call sends on its own
// goroutine — fire-and-forget, never blocking the caller.
type Telegram struct {
	api    *tgbotapi.BotAPI
	chatID int64
}

// NewTelegram constructs a Telegram publisher from TELEGRAM_BOT_TOKEN and
// TELEGRAM_CHAT_ID, matching env var names exactly.
func NewTelegram() (*Telegram, error) {
	token := os.Getenv("TELEGRAM_BOT_TOKEN")
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN not set")
	}
	chatIDStr := os.Getenv("TELEGRAM_CHAT_ID")
	if chatIDStr == "" {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID not set")
	}
	chatID, err := strconv.ParseInt(chatIDStr, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
	}

	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram publisher initialized")
	return &Telegram{api: api, chatID: chatID}, nil
}

func (t *Telegram) sendMarkdown(text string) {
	go func() {
		msg := tgbotapi.NewMessage(t.chatID, text)
		msg.ParseMode = "Markdown"
		if _, err := t.api.Send(msg); err != nil {
			log.Error().Err(err).Msg("telegram: send failed")
		}
	}()
}

func (t *Telegram) PublishExitResult(r monitor.ExitResult) {
	emoji := "📊"
	switch r.Trigger {
	case monitor.TriggerStopLoss:
		emoji = "🛑"
	case monitor.TriggerTakeProfit:
		emoji = "💰"
	}

	status := "✅ filled"
	if !r.Success {
		status = fmt.Sprintf("❌ failed: %s", r.Error)
	}

	msg := fmt.Sprintf(`%s *EXIT TRIGGERED*

📊 Trigger: *%s*
💵 Price: *%s*
📦 Position: `+"`%s`"+`
%s`,
		emoji, r.Trigger, r.Price.StringFixed(4), r.PositionId, status)

	t.sendMarkdown(msg)
}

func (t *Telegram) PublishMassCancel(r connmon.MassCancelResult) {
	msg := fmt.Sprintf(`🚨 *MASS CANCEL*

✅ Cancelled: *%d*
❌ Failed: *%d*
📋 GTC included: *%t*`,
		len(r.Cancelled), len(r.Failed), r.GTCIncluded)

	t.sendMarkdown(msg)
}

func (t *Telegram) PublishDomainEvent(e orders.DomainEvent) {
	if e.Kind == orders.EventPartiallyFilled {
		return // too chatty; only the terminal/entry events are notification-worthy
	}

	emoji := "📌"
	switch e.Kind {
	case orders.EventAccepted:
		emoji = "✅"
	case orders.EventRejected:
		emoji = "⚠️"
	case orders.EventFilled:
		emoji = "💰"
	case orders.EventCanceled:
		emoji = "🚫"
	case orders.EventExpired:
		emoji = "⌛"
	}

	msg := fmt.Sprintf(`%s *%s*

📊 %s %s
📦 Qty: *%s* filled of *%s*`,
		emoji, e.Kind,
		e.Order.Symbol, e.Order.Side,
		e.Order.FilledQty.StringFixed(4), e.Order.RequestedQty.StringFixed(4),
	)

	t.sendMarkdown(msg)
}

func (t *Telegram) PublishCircuitTrip(e CircuitTripEvent) {
	msg := fmt.Sprintf(`🚨 *CIRCUIT BREAKER TRIPPED*

🔌 Breaker: *%s*
📝 %s`, e.BreakerName, e.Reason)

	t.sendMarkdown(msg)
}
