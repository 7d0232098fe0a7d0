package push

import (
	"context"
	"fmt"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"github.com/google/uuid"
	"go.uber.org/multierr"
	"google.golang.org/api/option"

	"github.com/qline-app/qline-backend/pkg/config"
	"github.com/qline-app/qline-backend/pkg/logger"
)

// FCM caps multicast sends at 500 tokens per request.
const maxMulticastTokens = 500

// tokenStore resolves a user's registered device tokens and prunes the
// ones FCM reports as dead.
type tokenStore interface {
	ListTokensByUser(ctx context.Context, userID uuid.UUID) ([]string, error)
	DeleteTokens(ctx context.Context, tokens []string) (int64, error)
}

// messagingClient covers the slice of *messaging.Client the sender uses.
type messagingClient interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// Sender delivers notifications to a user's devices through Firebase
// Cloud Messaging.
type Sender struct {
	client  messagingClient
	devices tokenStore
	dryRun  bool
	logg    *logger.Logger
}

// NewSender builds an FCM-backed sender. With DryRun set no Firebase
// credentials are needed and sends are logged instead of delivered.
func NewSender(ctx context.Context, cfg config.FCMConfig, devices tokenStore, logg *logger.Logger) (*Sender, error) {
	if devices == nil {
		return nil, fmt.Errorf("token store required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if cfg.DryRun {
		return &Sender{devices: devices, dryRun: true, logg: logg}, nil
	}
	if cfg.CredentialsFile == "" {
		return nil, fmt.Errorf("fcm credentials file required")
	}

	app, err := firebase.NewApp(ctx, nil, option.WithCredentialsFile(cfg.CredentialsFile))
	if err != nil {
		return nil, fmt.Errorf("initialize firebase app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("initialize messaging client: %w", err)
	}

	return &Sender{client: client, devices: devices, logg: logg}, nil
}

// Send fans the notification out to every device the user has
// registered. Tokens FCM rejects as unregistered or malformed are
// deleted so they are not retried on the next send.
func (s *Sender) Send(ctx context.Context, userID uuid.UUID, title, body string, data map[string]string) error {
	tokens, err := s.devices.ListTokensByUser(ctx, userID)
	if err != nil {
		return fmt.Errorf("list device tokens: %w", err)
	}
	if len(tokens) == 0 {
		return nil
	}

	ctx = s.logg.WithUserID(ctx, userID.String())
	if s.dryRun {
		s.logg.Info(s.logg.WithField(ctx, "tokens", len(tokens)), "dry run: skipping push delivery")
		return nil
	}

	var invalid []string
	var sendErrs error
	for start := 0; start < len(tokens); start += maxMulticastTokens {
		end := start + maxMulticastTokens
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		response, err := s.client.SendEachForMulticast(ctx, &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: title,
				Body:  body,
			},
			Data: data,
		})
		if err != nil {
			// Keep fanning out to the remaining batches.
			sendErrs = multierr.Append(sendErrs, fmt.Errorf("send multicast: %w", err))
			continue
		}

		for i, result := range response.Responses {
			if result.Success {
				continue
			}
			if messaging.IsUnregistered(result.Error) || messaging.IsInvalidArgument(result.Error) {
				invalid = append(invalid, batch[i])
				continue
			}
			s.logg.Error(ctx, "push delivery failed for device", result.Error)
		}
	}

	if len(invalid) > 0 {
		if _, err := s.devices.DeleteTokens(ctx, invalid); err != nil {
			s.logg.Error(ctx, "failed to prune invalid device tokens", err)
		} else {
			s.logg.Info(s.logg.WithField(ctx, "pruned", len(invalid)), "pruned invalid device tokens")
		}
	}

	return sendErrs
}
