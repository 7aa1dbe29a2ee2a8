// Package telegram delivers dose reminders as Telegram messages with inline
// Take and Snooze buttons, and feeds button presses back to the dose service.
package telegram

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	tg "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"dosekeeper/internal/dose"
)

const sep = "|"

// botAPI is the subset of *tg.BotAPI used here.
type botAPI interface {
	Send(c tg.Chattable) (tg.Message, error)
	Request(c tg.Chattable) (*tg.APIResponse, error)
	GetUpdatesChan(config tg.UpdateConfig) tg.UpdatesChannel
	StopReceivingUpdates()
}

// ActionHandler receives notification actions. *dose.Service implements it.
type ActionHandler interface {
	HandleAction(ctx context.Context, actionID string, p dose.Payload) error
}

// Notifier sends reminders to one chat and listens for button presses there.
type Notifier struct {
	bot     botAPI
	chatID  int64
	handler ActionHandler
	logger  dose.Logger
}

// New connects to the Telegram bot API with token.
func New(token string, chatID int64, handler ActionHandler, logger dose.Logger) (*Notifier, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram token is required")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("telegram chat id is required")
	}
	bot, err := tg.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("connecting to telegram: %w", err)
	}
	logger.Info("telegram bot authorized", "account", bot.Self.UserName)
	return newNotifier(bot, chatID, handler, logger), nil
}

func newNotifier(bot botAPI, chatID int64, handler ActionHandler, logger dose.Logger) *Notifier {
	return &Notifier{bot: bot, chatID: chatID, handler: handler, logger: logger}
}

// Deliver sends r to the chat.
func (n *Notifier) Deliver(ctx context.Context, r dose.Reminder) error {
	msg := tg.NewMessage(n.chatID, r.Title+"\n"+r.Body)
	msg.ReplyMarkup = tg.NewInlineKeyboardMarkup(tg.NewInlineKeyboardRow(
		tg.NewInlineKeyboardButtonData("Take", EncodeAction(dose.ActionTake, r.Payload)),
		tg.NewInlineKeyboardButtonData("Snooze", EncodeAction(dose.ActionSnooze, r.Payload)),
	))

	if _, err := n.bot.Send(msg); err != nil {
		return fmt.Errorf("sending telegram message: %w", err)
	}
	return nil
}

// Listen handles button presses until ctx is done.
func (n *Notifier) Listen(ctx context.Context) error {
	u := tg.NewUpdate(0)
	u.Timeout = 60
	updates := n.bot.GetUpdatesChan(u)
	defer n.bot.StopReceivingUpdates()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			if update.CallbackQuery != nil {
				n.handleCallback(ctx, update.CallbackQuery)
			}
		}
	}
}

func (n *Notifier) handleCallback(ctx context.Context, cbq *tg.CallbackQuery) {
	if cbq.Message == nil || cbq.Message.Chat == nil || cbq.Message.Chat.ID != n.chatID {
		n.logger.Warn("ignoring callback from unknown chat", "callback", cbq.ID)
		return
	}

	reply := "Done"
	action, p, err := DecodeAction(cbq.Data)
	if err == nil {
		err = n.handler.HandleAction(ctx, action, p)
	}
	if err != nil {
		n.logger.Error("telegram action failed", "data", cbq.Data, "error", err)
		reply = "Could not record that, please use the app"
	} else {
		switch action {
		case dose.ActionTake:
			reply = "Marked as taken"
		case dose.ActionSnooze:
			reply = "Snoozed"
		}
	}

	if _, err := n.bot.Request(tg.NewCallback(cbq.ID, reply)); err != nil {
		n.logger.Warn("failed answering callback", "error", err)
	}

	// Drop the buttons so the dose is not recorded twice.
	edit := tg.NewEditMessageText(n.chatID, cbq.Message.MessageID, cbq.Message.Text+"\n\n"+reply)
	if _, err := n.bot.Send(edit); err != nil {
		n.logger.Warn("failed updating reminder message", "error", err)
	}
}

// EncodeAction packs an action and its payload into callback data:
// "<action>|<medication id>|<scheduled unix seconds>". Name and dosage are
// not carried; the service looks the medication up again.
func EncodeAction(action string, p dose.Payload) string {
	return strings.Join([]string{action, p.MedicationID, strconv.FormatInt(p.ScheduledAt.Unix(), 10)}, sep)
}

// DecodeAction reverses EncodeAction.
func DecodeAction(data string) (string, dose.Payload, error) {
	parts := strings.Split(data, sep)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" {
		return "", dose.Payload{}, fmt.Errorf("malformed callback data %q", data)
	}
	sec, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		return "", dose.Payload{}, fmt.Errorf("malformed scheduled time in %q: %w", data, err)
	}
	return parts[0], dose.Payload{MedicationID: parts[1], ScheduledAt: time.Unix(sec, 0)}, nil
}
