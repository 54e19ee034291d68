// internal/notify/direct.go
package notify

import (
	"context"
	"fmt"
	"strings"

	firebase "firebase.google.com/go/v4"
	"firebase.google.com/go/v4/messaging"
	"google.golang.org/api/option"

	"edgarwatch/internal/common/config"
	commonerrors "edgarwatch/internal/common/errors"
	"edgarwatch/internal/common/logger"
)

// directBatchSize is the provider's multicast token limit.
const directBatchSize = 500

// invalidTokenMarkers identify permanently dead registrations in provider
// error text, for providers and SDK versions that do not map them to a typed
// error.
var invalidTokenMarkers = []string{
	"registration-token-not-registered",
	"invalid-registration-token",
	"not-registered",
}

// MulticastSender is the slice of the provider SDK the direct transport
// needs. Narrow so tests can fake the provider.
type MulticastSender interface {
	SendEachForMulticast(ctx context.Context, message *messaging.MulticastMessage) (*messaging.BatchResponse, error)
}

// DirectTransport pushes straight to the platform provider. Unlike the
// relay, the provider reports token invalidity inline per message, so this
// transport feeds the pruning path.
type DirectTransport struct {
	sender MulticastSender
	logger logger.Logger
}

// NewDirectTransport initializes the provider SDK from the configured
// credentials. Exactly one of the credentials file or inline JSON must be
// set.
func NewDirectTransport(ctx context.Context, cfg config.PushConfig, log logger.Logger) (*DirectTransport, error) {
	var opts []option.ClientOption
	switch {
	case cfg.Direct.CredentialsJSON != "":
		opts = append(opts, option.WithCredentialsJSON([]byte(cfg.Direct.CredentialsJSON)))
	case cfg.Direct.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.Direct.CredentialsFile))
	default:
		return nil, commonerrors.NewNotConfiguredError("direct")
	}

	app, err := firebase.NewApp(ctx, nil, opts...)
	if err != nil {
		return nil, fmt.Errorf("init push provider app: %w", err)
	}
	client, err := app.Messaging(ctx)
	if err != nil {
		return nil, fmt.Errorf("init push provider messaging: %w", err)
	}
	return &DirectTransport{sender: client, logger: log}, nil
}

// NewDirectTransportWithSender wires a prebuilt sender, used in tests.
func NewDirectTransportWithSender(sender MulticastSender, log logger.Logger) *DirectTransport {
	return &DirectTransport{sender: sender, logger: log}
}

func (d *DirectTransport) Name() string { return "direct" }

// Send multicasts content to the given tokens, batching at the provider
// limit. Tokens whose failure is classified as permanent are collected for
// pruning.
func (d *DirectTransport) Send(ctx context.Context, tokens []string, content Content) (*DeliveryReport, error) {
	report := &DeliveryReport{}

	for start := 0; start < len(tokens); start += directBatchSize {
		end := start + directBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		msg := &messaging.MulticastMessage{
			Tokens: batch,
			Notification: &messaging.Notification{
				Title: content.Title,
				Body:  content.Body,
			},
			Data: content.Data,
		}

		resp, err := d.sender.SendEachForMulticast(ctx, msg)
		if err != nil {
			return nil, commonerrors.NewSendFailedError(d.Name(), err)
		}

		report.Success += resp.SuccessCount
		report.Failure += resp.FailureCount
		for i, r := range resp.Responses {
			if r.Success {
				report.Delivered = append(report.Delivered, batch[i])
				continue
			}
			if r.Error == nil {
				continue
			}
			if isInvalidTokenError(r.Error) {
				report.InvalidTokens = append(report.InvalidTokens, batch[i])
				continue
			}
			d.logger.WithError(r.Error).Warn("direct delivery failed", map[string]interface{}{
				"token": batch[i],
			})
		}
	}
	return report, nil
}

// isInvalidTokenError reports whether err marks the token permanently dead.
func isInvalidTokenError(err error) bool {
	if messaging.IsUnregistered(err) {
		return true
	}
	text := strings.ToLower(err.Error())
	for _, marker := range invalidTokenMarkers {
		if strings.Contains(text, marker) {
			return true
		}
	}
	return false
}
