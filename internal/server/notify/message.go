// Package notify delivers password-reset emails, either synchronously over
// SMTP or through an asynq task queue drained by a background worker.
package notify

import (
	"bytes"
	"fmt"
	"html/template"
	"net/url"
	"strings"
)

// Message is a rendered email ready for a Sender.
type Message struct {
	To      string
	Subject string
	HTML    string
}

var resetTemplate = template.Must(template.New("reset").Parse(`<p>Hello,</p>
<p>We received a request to reset the password for your {{.AppName}} account.</p>
<p><a href="{{.Link}}">Reset password</a></p>
<p>This link expires in one hour. If you did not ask for a reset, ignore this email.</p>
`))

// ResetLink returns <frontendURL>/reset-password?token=<tokenID>.
func ResetLink(frontendURL, tokenID string) (string, error) {
	u, err := url.Parse(strings.TrimRight(frontendURL, "/") + "/reset-password")
	if err != nil {
		return "", fmt.Errorf("invalid frontend url: %w", err)
	}
	q := u.Query()
	q.Set("token", tokenID)
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// PasswordResetMessage renders the reset email for to.
func PasswordResetMessage(appName, frontendURL, to, tokenID string) (*Message, error) {
	link, err := ResetLink(frontendURL, tokenID)
	if err != nil {
		return nil, err
	}

	var body bytes.Buffer
	if err := resetTemplate.Execute(&body, struct {
		AppName string
		Link    string
	}{AppName: appName, Link: link}); err != nil {
		return nil, fmt.Errorf("render reset email: %w", err)
	}

	return &Message{
		To:      to,
		Subject: "Password reset",
		HTML:    body.String(),
	}, nil
}
