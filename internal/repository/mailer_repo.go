package repository

import (
	"context"

	"github.com/user/court-watch/internal/entity"
)

// Mailer delivers notification mails.
type Mailer interface {
	// Send delivers the message and returns the provider's message id.
	Send(ctx context.Context, msg entity.Message) (string, error)
}
