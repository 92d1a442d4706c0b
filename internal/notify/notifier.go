package notify

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"go.uber.org/zap"
)

// Notifier is the outbound push-notification capability. Delivery is
// fire-and-forget from the caller's perspective: implementations report
// failures to the logger, not to the caller's control flow.
type Notifier interface {
	SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error
}

// FCM delivers through Firebase Cloud Messaging.
type FCM struct {
	client *messaging.Client
	logger *zap.Logger
}

// NewFCM initialises the Firebase app from application-default credentials
// (GOOGLE_APPLICATION_CREDENTIALS).
func NewFCM(ctx context.Context, logger *zap.Logger) (*FCM, error) {
	app, err := firebase.NewApp(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("init firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init fcm client: %w", err)
	}
	return &FCM{client: client, logger: logger}, nil
}

func (f *FCM) SendMulticast(ctx context.Context, tokens []string, title, body string, data map[string]string) error {
	if len(tokens) == 0 {
		return nil
	}

	msg := &messaging.MulticastMessage{
		Tokens: tokens,
		Notification: &messaging.Notification{
			Title: title,
			Body:  body,
		},
		Data: data,
	}

	resp, err := f.client.SendEachForMulticast(ctx, msg)
	if err != nil {
		return fmt.Errorf("fcm multicast: %w", err)
	}
	if resp.FailureCount > 0 {
		f.logger.Warn("fcm partial delivery",
			zap.Int("success", resp.SuccessCount),
			zap.Int("failure", resp.FailureCount),
		)
	}
	return nil
}

// Nop discards every notification. Used when Firebase is disabled.
type Nop struct{}

func (Nop) SendMulticast(context.Context, []string, string, string, map[string]string) error {
	return nil
}
