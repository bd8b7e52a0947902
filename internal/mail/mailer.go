// Package mail is the outbound-email collaborator of the auth flows. Sends
// are always best-effort: callers log a failure and move on, they never let
// it fail the surrounding flow.
package mail

import (
	"bytes"
	"context"
	"log/slog"
	"text/template"
)

// Mailer delivers the two transactional emails the auth flows produce.
type Mailer interface {
	SendVerificationEmail(ctx context.Context, email, link string) error
	SendPasswordResetEmail(ctx context.Context, email, link string) error
}

type mailParams struct {
	Email string
	Link  string
}

var verificationTemplate = template.Must(template.New("verification").Parse(`Hi {{.Email}},

Welcome to Learnstack! Confirm your email address by opening this link:

{{.Link}}

The link is valid for 24 hours. If you did not create an account, you can
ignore this email.
`))

var resetTemplate = template.Must(template.New("reset").Parse(`Hi {{.Email}},

Someone requested a password reset for your Learnstack account. Open this
link to choose a new password:

{{.Link}}

The link is valid for 1 hour. If you did not request a reset, you can ignore
this email.
`))

// LogMailer renders the emails and writes them to the log instead of an SMTP
// relay. Used in development and tests.
type LogMailer struct {
	log *slog.Logger
}

// NewLogMailer creates a mailer that logs rendered messages.
func NewLogMailer(log *slog.Logger) *LogMailer {
	return &LogMailer{log: log}
}

func (m *LogMailer) SendVerificationEmail(ctx context.Context, email, link string) error {
	return m.send(ctx, verificationTemplate, "verification email", email, link)
}

func (m *LogMailer) SendPasswordResetEmail(ctx context.Context, email, link string) error {
	return m.send(ctx, resetTemplate, "password reset email", email, link)
}

func (m *LogMailer) send(ctx context.Context, tmpl *template.Template, kind, email, link string) error {
	var body bytes.Buffer
	if err := tmpl.Execute(&body, mailParams{Email: email, Link: link}); err != nil {
		return err
	}
	m.log.InfoContext(ctx, "outbound email", "kind", kind, "to", email, "body", body.String())
	return nil
}
