// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package notify

import (
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/samber/oops"
)

// Kind identifies the notification template.
type Kind string

// Notification kinds.
const (
	KindVerification  Kind = "verification"
	KindPasswordReset Kind = "password_reset"
	KindWelcome       Kind = "welcome"
)

// DefaultAppName is used in subjects and signatures when none is configured.
const DefaultAppName = "Portfolio App"

// Message is a rendered plain-text email.
type Message struct {
	Kind    Kind
	To      string
	Subject string
	Body    string
}

// Composer renders notification messages with links into the frontend.
type Composer struct {
	frontendURL string
	appName     string
	resetTTL    time.Duration
}

// NewComposer creates a Composer. frontendURL must be an absolute http(s) URL.
func NewComposer(frontendURL, appName string, resetTTL time.Duration) (*Composer, error) {
	u, err := url.Parse(frontendURL)
	if err != nil {
		return nil, oops.Code("NOTIFY_INVALID_FRONTEND_URL").With("frontend_url", frontendURL).Wrap(err)
	}
	if (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, oops.Code("NOTIFY_INVALID_FRONTEND_URL").
			With("frontend_url", frontendURL).
			Errorf("frontend URL must be an absolute http(s) URL")
	}
	if resetTTL <= 0 {
		return nil, oops.Code("NOTIFY_INVALID_RESET_TTL").Errorf("reset token lifetime must be positive")
	}
	if appName == "" {
		appName = DefaultAppName
	}
	return &Composer{
		frontendURL: strings.TrimRight(frontendURL, "/"),
		appName:     appName,
		resetTTL:    resetTTL,
	}, nil
}

// Verification renders the email-verification message.
func (c *Composer) Verification(to, token string) Message {
	link := c.link("/email-verification", token)
	return Message{
		Kind:    KindVerification,
		To:      to,
		Subject: fmt.Sprintf("Verify Your Email Address - %s", c.appName),
		Body: fmt.Sprintf("Welcome to %s!\n\n"+
			"Please click the link below to verify your email address:\n\n"+
			"%s\n\n"+
			"If you didn't create an account, please ignore this email.\n\n"+
			"%s", c.appName, link, c.signature()),
	}
}

// PasswordReset renders the password-reset message.
func (c *Composer) PasswordReset(to, token string) Message {
	link := c.link("/reset-password", token)
	return Message{
		Kind:    KindPasswordReset,
		To:      to,
		Subject: fmt.Sprintf("Reset Your Password - %s", c.appName),
		Body: fmt.Sprintf("You have requested to reset your password.\n\n"+
			"Please click the link below to reset your password:\n\n"+
			"%s\n\n"+
			"This link will expire in %s.\n\n"+
			"If you didn't request a password reset, please ignore this email.\n\n"+
			"%s", link, humanDuration(c.resetTTL), c.signature()),
	}
}

// Welcome renders the message sent once an account is verified.
func (c *Composer) Welcome(to, fullName string) Message {
	name := strings.TrimSpace(fullName)
	if name == "" {
		name = "there"
	}
	return Message{
		Kind:    KindWelcome,
		To:      to,
		Subject: fmt.Sprintf("Welcome to %s!", c.appName),
		Body: fmt.Sprintf("Hello %s,\n\n"+
			"Welcome to %s! Your account has been successfully verified.\n\n"+
			"You can now login and start using all the features of our application.\n\n"+
			"If you have any questions, feel free to contact us.\n\n"+
			"%s", name, c.appName, c.signature()),
	}
}

func (c *Composer) link(path, token string) string {
	return c.frontendURL + path + "?token=" + url.QueryEscape(token)
}

func (c *Composer) signature() string {
	return "Best regards,\n" + c.appName + " Team"
}

// humanDuration renders whole hours or minutes, e.g. "1 hour", "30 minutes".
func humanDuration(d time.Duration) string {
	plural := func(n int64, unit string) string {
		if n == 1 {
			return fmt.Sprintf("1 %s", unit)
		}
		return fmt.Sprintf("%d %ss", n, unit)
	}
	if d >= time.Hour && d%time.Hour == 0 {
		return plural(int64(d/time.Hour), "hour")
	}
	if d >= time.Minute {
		return plural(int64(d/time.Minute), "minute")
	}
	return d.String()
}
