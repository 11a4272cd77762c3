package resend

import (
	"context"
	"errors"
	"net/url"

	"github.com/resend/resend-go/v2"

	"github.com/user/court-watch/internal/entity"
)

// Mailer sends plain-text notification mails through the Resend API.
type Mailer struct {
	client *resend.Client
	from   string
	to     []string
}

// NewMailer creates a Mailer that delivers every message to the recipients.
func NewMailer(apiKey, from string, to ...string) *Mailer {
	return &Mailer{client: resend.NewClient(apiKey), from: from, to: to}
}

// WithBaseURL points the client at another API endpoint.
func (m *Mailer) WithBaseURL(u *url.URL) *Mailer {
	m.client.BaseURL = u
	return m
}

func (m *Mailer) Send(ctx context.Context, msg entity.Message) (string, error) {
	if len(m.to) == 0 {
		return "", errors.New("no recipient")
	}
	sent, err := m.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    m.from,
		To:      m.to,
		Subject: msg.Subject,
		Text:    msg.Body,
	})
	if err != nil {
		return "", err
	}
	return sent.Id, nil
}
