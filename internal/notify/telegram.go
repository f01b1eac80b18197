package notify

import (
	"context"
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"

	"glowbook/internal/models"
)

// TelegramNotifier pushes reservation events to clients over Telegram.
// Client ids double as Telegram chat ids, matching how accounts are
// provisioned. Optional; wired only when a bot token is configured.
type TelegramNotifier struct {
	bot    *tgbotapi.BotAPI
	logger *zerolog.Logger
}

// NewTelegramNotifier connects the bot.
func NewTelegramNotifier(token string, debug bool, logger *zerolog.Logger) (*TelegramNotifier, error) {
	bot, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("telegram connect: %w", err)
	}
	bot.Debug = debug
	logger.Info().Str("bot", bot.Self.UserName).Msg("telegram notifier connected")
	return &TelegramNotifier{bot: bot, logger: logger}, nil
}

// Notify sends a human-readable message for the event to the client's chat.
func (t *TelegramNotifier) Notify(ctx context.Context, evt models.OutboxEvent) error {
	payload, err := models.DecodeReservationEvent(evt.Payload)
	if err != nil {
		t.logger.Warn().Err(err).Int64("event_id", evt.ID).Msg("undecodable event payload")
		return nil
	}

	text := renderMessage(evt.Type, payload)
	if text == "" {
		return nil
	}

	msg := tgbotapi.NewMessage(payload.ClientID, text)
	if _, err := t.bot.Send(msg); err != nil {
		return fmt.Errorf("telegram send: %w", err)
	}
	return nil
}

func renderMessage(eventType string, p models.ReservationEventPayload) string {
	when := p.StartAt.Format("Mon, 02 Jan 15:04")
	switch eventType {
	case models.EventReservationCreated:
		return fmt.Sprintf("Your reservation #%d for %s was received and is awaiting confirmation.", p.ReservationID, when)
	case models.EventReservationStatusChanged:
		switch p.ToStatus {
		case models.StatusConfirmed:
			return fmt.Sprintf("Reservation #%d for %s is confirmed. See you there!", p.ReservationID, when)
		case models.StatusCancelledByVenue:
			return fmt.Sprintf("Reservation #%d for %s was cancelled by the venue.", p.ReservationID, when)
		case models.StatusCancelledByClient:
			return fmt.Sprintf("Reservation #%d for %s was cancelled.", p.ReservationID, when)
		case models.StatusNoShow:
			return fmt.Sprintf("Reservation #%d for %s was marked as missed.", p.ReservationID, when)
		case models.StatusCompleted:
			return fmt.Sprintf("Thanks for visiting! Reservation #%d is complete.", p.ReservationID)
		}
	}
	return ""
}
