package notify

import (
	"context"

	"github.com/dmitrijs2005/authkeeper/internal/logging"
	"github.com/dmitrijs2005/authkeeper/internal/server/models"
)

// MailNotifier renders and sends reset emails in the calling goroutine.
type MailNotifier struct {
	sender      Sender
	appName     string
	frontendURL string
	logger      logging.Logger
}

func NewMailNotifier(sender Sender, appName, frontendURL string, logger logging.Logger) *MailNotifier {
	return &MailNotifier{
		sender:      sender,
		appName:     appName,
		frontendURL: frontendURL,
		logger:      logger.With("module", "mail"),
	}
}

func (n *MailNotifier) SendPasswordResetEmail(ctx context.Context, user *models.User, tokenID string) error {
	return n.deliver(ctx, user.ID, user.Email, tokenID)
}

func (n *MailNotifier) deliver(ctx context.Context, userID, email, tokenID string) error {
	msg, err := PasswordResetMessage(n.appName, n.frontendURL, email, tokenID)
	if err != nil {
		return err
	}
	if err := n.sender.Send(ctx, msg); err != nil {
		return err
	}
	n.logger.Info(ctx, "password reset email sent", "user_id", userID)
	return nil
}
