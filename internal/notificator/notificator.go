package notificator

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/metrics"
	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

const deliveryTimeout = 15 * time.Second

var errSenderPanicked = errors.New("sender panicked")

// Sender delivers a token notification to one recipient of a channel.
type Sender interface {
	SendNotification(ctx context.Context, to string, token *models.TokenDeployment) error
}

// Notificator matches newly discovered tokens against the stored subscriptions
// and delivers them on every channel the subscription configured.
// Nil senders disable their channel.
type Notificator struct {
	logger   *logger.Logger
	db       models.Repository
	patterns *patternCache

	Webhook  Sender
	Email    Sender
	Telegram Sender

	now func() time.Time
}

var _ models.TokenListener = (*Notificator)(nil)

func NewNotificator(logger *logger.Logger, db models.Repository, webhook, email, telegram Sender) *Notificator {
	return &Notificator{
		logger:   logger,
		db:       db,
		patterns: newPatternCache(),
		Webhook:  webhook,
		Email:    email,
		Telegram: telegram,
		now:      time.Now,
	}
}

// safeCall runs a function with panic recovery (synchronous, no goroutine spawning).
// It reports false when fn panicked.
func (n *Notificator) safeCall(fn func(), context string) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			n.logger.Error("Function panicked",
				"context", context,
				"panic", r,
				"stack", string(debug.Stack()))
			ok = false
		}
	}()
	fn()
	return true
}

// OnTokenDiscovered is called once per newly stored token, already on its own goroutine.
func (n *Notificator) OnTokenDiscovered(token *models.TokenDeployment) {
	subs, err := n.db.GetSubscriptions()
	if err != nil {
		n.logger.Error("Failed to get subscriptions", "error", err)
		return
	}

	for _, sub := range subs {
		if !n.patterns.matches(sub, token) {
			continue
		}
		n.logger.Debug("Subscription matched", "subscription", sub.ID, "chain", token.Chain, "address", token.ContractAddress)

		delivered := false
		if sub.WebhookURL != "" && n.Webhook != nil {
			delivered = n.deliver("webhook", n.Webhook, sub.WebhookURL, token) || delivered
		}
		if sub.Email != "" && n.Email != nil {
			delivered = n.deliver("email", n.Email, sub.Email, token) || delivered
		}
		if sub.TelegramChatID != "" && n.Telegram != nil {
			delivered = n.deliver("telegram", n.Telegram, sub.TelegramChatID, token) || delivered
		}

		if delivered {
			if err := n.db.MarkSubscriptionNotified(sub.ID, n.now().UTC()); err != nil {
				n.logger.Error("Failed to mark subscription notified", "subscription", sub.ID, "error", err)
			}
		}
	}
}

func (n *Notificator) deliver(channel string, sender Sender, to string, token *models.TokenDeployment) bool {
	var err error
	if !n.safeCall(func() {
		ctx, cancel := context.WithTimeout(context.Background(), deliveryTimeout)
		defer cancel()
		err = sender.SendNotification(ctx, to, token)
	}, channel+"Notification") {
		err = errSenderPanicked
	}
	if err != nil {
		metrics.NotificationsSent.WithLabelValues(channel, "error").Inc()
		n.logger.Error("Failed to send notification", "channel", channel, "error", err)
		return false
	}
	metrics.NotificationsSent.WithLabelValues(channel, "ok").Inc()
	return true
}

// message renders a token as plain text for e-mail and Telegram.
func message(token *models.TokenDeployment) string {
	msg := fmt.Sprintf("New token on %s: %s (%s)\nAddress: %s\nDeployer: %s\nBlock: %d\nLiquidity: %s",
		token.Chain,
		token.Metadata.Name,
		token.Metadata.Symbol,
		token.ContractAddress,
		token.Deployer,
		token.BlockNumber,
		token.LPInfo.Status,
	)
	if token.DexData.Present() {
		msg += fmt.Sprintf("\nPrice: $%s on %s, liquidity $%s", token.DexData.PriceUSD, token.DexData.Dex, token.DexData.Liquidity.StringFixed(2))
	}
	if token.ExplorerURL != "" {
		msg += "\n" + token.ExplorerURL
	}
	return msg
}
