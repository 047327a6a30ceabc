package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"

	"github.com/k-egor-smirnov/lift/internal/eventbus"
	"github.com/k-egor-smirnov/lift/internal/events"
)

// HandlerID identifies the notifier in the handled ledger. Changing it
// makes every stored event look undelivered to the notifier again.
const HandlerID = "telegram-notifier"

// MessageSender is the slice of the Telegram client the notifier uses.
type MessageSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TaskNotifier pushes task milestones to a Telegram chat.
type TaskNotifier struct {
	sender  MessageSender
	chatID  int64
	limiter *rate.Limiter
	logger  *zerolog.Logger
}

func NewTaskNotifier(sender MessageSender, chatID int64, logger *zerolog.Logger) *TaskNotifier {
	return &TaskNotifier{
		sender: sender,
		chatID: chatID,
		// Telegram allows roughly 30 messages per second per bot.
		limiter: rate.NewLimiter(rate.Limit(20), 30),
		logger:  logger,
	}
}

func (n *TaskNotifier) ID() string { return HandlerID }

func (n *TaskNotifier) Handle(ctx context.Context, event eventbus.Event) error {
	text := messageFor(event)
	if text == "" {
		return nil
	}

	if err := n.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rate limiter: %w", err)
	}

	msg := tgbotapi.NewMessage(n.chatID, text)
	if _, err := n.sender.Send(msg); err != nil {
		return fmt.Errorf("failed to send notification: %w", err)
	}

	n.logger.Debug().Str("event_type", event.EventType()).Msg("Notification sent")
	return nil
}

// messageFor returns the chat text for an event, or "" for events the
// notifier does not announce.
func messageFor(event eventbus.Event) string {
	switch e := event.(type) {
	case *events.TaskCompleted:
		return "Задача выполнена: " + e.Task
	case *events.SummaryGenerated:
		return "Сводка за " + e.Date + " готова (" + e.Model + ")"
	default:
		return ""
	}
}
