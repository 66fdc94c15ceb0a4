package notificator

import (
	"context"
	"fmt"
	"strings"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot

	db models.Repository
}

// NewTelegramNotificator connects the bot. Start must be called to receive /start commands.
func NewTelegramNotificator(logger *logger.Logger, token string, db models.Repository) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{
		logger: logger,
		db:     db,
	}
	opts := []bot.Option{
		bot.WithDefaultHandler(provider.handler),
	}

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create telegram bot: %w", err)
	}
	provider.bot = b
	return provider, nil
}

// Start polls for updates until ctx is cancelled.
func (t *TelegramNotificator) Start(ctx context.Context) {
	t.bot.Start(ctx)
}

func (t *TelegramNotificator) SendNotification(ctx context.Context, chatID string, token *models.TokenDeployment) error {
	return t.send(ctx, chatID, message(token))
}

func (t *TelegramNotificator) send(ctx context.Context, chatID, text string) error {
	params := &bot.SendMessageParams{
		ChatID: chatID,
		Text:   text,
	}
	if _, err := t.bot.SendMessage(ctx, params); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	user := update.Message.From
	t.logger.Debug("Telegram update", "username", user.Username, "text", update.Message.Text)

	if strings.TrimSpace(update.Message.Text) != "/start" {
		return
	}
	chatID := fmt.Sprint(update.Message.Chat.ID)
	if err := t.send(ctx, chatID, t.bindChat(user.Username, chatID)); err != nil {
		t.logger.Error("Failed to answer /start", "error", err)
	}
}

// bindChat attaches the chat to every subscription of the username and returns the reply.
func (t *TelegramNotificator) bindChat(username, chatID string) string {
	if username == "" {
		return "Set a Telegram username first, then subscribe with it."
	}
	n, err := t.db.BindTelegramChat(username, chatID)
	if err != nil {
		t.logger.Error("Failed to bind telegram chat", "username", username, "error", err)
		return "Something went wrong, please try again later."
	}
	if n == 0 {
		return fmt.Sprintf("No subscription found for @%s.", username)
	}
	t.logger.Info("Telegram chat bound", "username", username, "subscriptions", n)
	return fmt.Sprintf("You have successfully subscribed to token notifications (%d subscriptions).", n)
}
