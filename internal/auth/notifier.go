// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Authcore Contributors

package auth

import "context"

// Notifier submits account notifications for delivery.
// An error means the notification could not be submitted; delivery itself
// happens asynchronously and its failures never reach the caller.
type Notifier interface {
	NotifyVerification(ctx context.Context, email, token string) error
	NotifyPasswordReset(ctx context.Context, email, token string) error
	NotifyWelcome(ctx context.Context, email, fullName string) error
}

// NopNotifier discards all notifications.
type NopNotifier struct{}

// NotifyVerification does nothing.
func (NopNotifier) NotifyVerification(context.Context, string, string) error { return nil }

// NotifyPasswordReset does nothing.
func (NopNotifier) NotifyPasswordReset(context.Context, string, string) error { return nil }

// NotifyWelcome does nothing.
func (NopNotifier) NotifyWelcome(context.Context, string, string) error { return nil }

var _ Notifier = NopNotifier{}
