// internal/notify/relay.go
package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	commonerrors "edgarwatch/internal/common/errors"
	httpx "edgarwatch/internal/common/http"
	"edgarwatch/internal/common/logger"
)

// relayBatchSize is the maximum number of messages per relay request.
const relayBatchSize = 100

// relayMessage is one message in a relay batch request.
type relayMessage struct {
	To    string            `json:"to"`
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
	Sound string            `json:"sound,omitempty"`
}

// relayTicket is the per-message result: status "ok" or "error".
type relayTicket struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

type relayResponse struct {
	Data []relayTicket `json:"data"`
}

// RelayTransport pushes through the hosted relay service. The relay reports
// per-message errors in its tickets, but token invalidity is only surfaced
// out of band by its receipt API, so this transport never marks tokens for
// pruning.
type RelayTransport struct {
	url        string
	httpClient *httpx.Client
	logger     logger.Logger
}

func NewRelayTransport(url string, timeout time.Duration, log logger.Logger) *RelayTransport {
	return &RelayTransport{
		url:        url,
		httpClient: httpx.NewClient(timeout),
		logger:     log,
	}
}

func (r *RelayTransport) Name() string { return "relay" }

// Send delivers content to the given relay tokens in batches. A ticket count
// mismatch fails the whole batch rather than guessing which message each
// ticket belongs to.
func (r *RelayTransport) Send(ctx context.Context, tokens []string, content Content) (*DeliveryReport, error) {
	report := &DeliveryReport{}

	for start := 0; start < len(tokens); start += relayBatchSize {
		end := start + relayBatchSize
		if end > len(tokens) {
			end = len(tokens)
		}
		batch := tokens[start:end]

		tickets, err := r.sendBatch(ctx, batch, content)
		if err != nil {
			return nil, err
		}
		if len(tickets) != len(batch) {
			return nil, commonerrors.NewSendFailedError(r.Name(),
				fmt.Errorf("got %d tickets for %d messages", len(tickets), len(batch)))
		}

		for i, ticket := range tickets {
			if ticket.Status == "ok" {
				report.Success++
				report.Delivered = append(report.Delivered, batch[i])
				continue
			}
			report.Failure++
			r.logger.Warn("relay rejected message", map[string]interface{}{
				"token":   batch[i],
				"message": ticket.Message,
			})
		}
	}
	return report, nil
}

func (r *RelayTransport) sendBatch(ctx context.Context, tokens []string, content Content) ([]relayTicket, error) {
	messages := make([]relayMessage, len(tokens))
	for i, token := range tokens {
		messages[i] = relayMessage{
			To:    token,
			Title: content.Title,
			Body:  content.Body,
			Data:  content.Data,
			Sound: "default",
		}
	}

	payload, err := json.Marshal(messages)
	if err != nil {
		return nil, fmt.Errorf("encode relay batch: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build relay request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return nil, commonerrors.NewSendFailedError(r.Name(), err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, commonerrors.NewSendFailedError(r.Name(),
			fmt.Errorf("unexpected status %d", resp.StatusCode))
	}

	var parsed relayResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, commonerrors.NewSendFailedError(r.Name(),
			fmt.Errorf("decode relay response: %w", err))
	}
	return parsed.Data, nil
}
