package notificator

import (
	"context"
	"fmt"
	"net/smtp"
	"strconv"

	"github.com/serayd61/Superchain-token-explorer-sub001/internal/models"
	"github.com/serayd61/Superchain-token-explorer-sub001/pkg/logger"
)

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

type EmailNotificator struct {
	logger *logger.Logger

	SMTPHost            string
	SMTPPort            int
	SMTPAlternativePort int
	SMTPUser            string
	SMTPPassword        string
	SMTPSender          string

	SMTPAuth smtp.Auth

	sendMail sendMailFunc
}

func NewEmailNotificator(logger *logger.Logger, SMTPHost string, SMTPPort int, SMTPAlternativePort int, SMTPUser string, SMTPPassword string, SMTPSender string) *EmailNotificator {
	auth := smtp.PlainAuth(
		"",
		SMTPUser,
		SMTPPassword,
		SMTPHost,
	)

	return &EmailNotificator{
		logger:              logger,
		SMTPAuth:            auth,
		SMTPHost:            SMTPHost,
		SMTPPort:            SMTPPort,
		SMTPAlternativePort: SMTPAlternativePort,
		SMTPUser:            SMTPUser,
		SMTPPassword:        SMTPPassword,
		SMTPSender:          SMTPSender,
		sendMail:            smtp.SendMail,
	}
}

// SendNotification mails the token to a subscriber. The alternative port is
// tried when the primary one fails.
func (e *EmailNotificator) SendNotification(ctx context.Context, to string, token *models.TokenDeployment) error {
	subject := fmt.Sprintf("New token %s on %s", token.Metadata.Symbol, token.Chain)
	msg := fmt.Sprintf(
		"From: %s\r\nTo: %s\r\nSubject: %s\r\n\r\n%s",
		e.SMTPSender,   // From address
		to,             // To address
		subject,        // Subject
		message(token), // Email body
	)

	ports := []int{e.SMTPPort}
	if e.SMTPAlternativePort != 0 && e.SMTPAlternativePort != e.SMTPPort {
		ports = append(ports, e.SMTPAlternativePort)
	}

	var err error
	for _, port := range ports {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		addr := e.SMTPHost + ":" + strconv.Itoa(port)
		if err = e.sendMail(addr, e.SMTPAuth, e.SMTPSender, []string{to}, []byte(msg)); err == nil {
			return nil
		}
		e.logger.Warn("Failed to send email", "addr", addr, "error", err)
	}
	return fmt.Errorf("failed to send email: %w", err)
}
