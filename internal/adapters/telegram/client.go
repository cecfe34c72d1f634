package telegram

import (
	"fmt"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

// BotSender is the part of *tgbotapi.BotAPI the notifier needs.
type BotSender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

var _ BotSender = (*tgbotapi.BotAPI)(nil)

// NewBotAPI authenticates the bot token against the Bot API.
func NewBotAPI(token string, baseLogger *zerolog.Logger) (*tgbotapi.BotAPI, error) {
	log := baseLogger.With().Str("component", "tg_client").Logger()
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		log.Error().Err(err).Msg("Failed to authenticate bot token")
		return nil, fmt.Errorf("telegram bot: %w", err)
	}
	log.Info().Str("bot", api.Self.UserName).Msg("Telegram bot authorized")
	return api, nil
}
