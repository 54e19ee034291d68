// internal/notify/transport.go
package notify

import "context"

// Content is one rendered notification: what every recipient device sees.
type Content struct {
	Title string
	Body  string
	Data  map[string]string
}

// DeliveryReport summarizes one transport batch. Delivered lists the tokens
// that were confirmed delivered, so the dispatcher can attribute successes to
// the users holding them. InvalidTokens lists tokens the transport identified
// as permanently dead; only those are pruned. Transient failures count toward
// Failure but are never pruned.
type DeliveryReport struct {
	Success       int
	Failure       int
	Delivered     []string
	InvalidTokens []string
}

// Transport delivers one notification to a batch of device tokens. A
// transport error means the whole batch failed; partial failures are
// reported through the DeliveryReport instead.
type Transport interface {
	Send(ctx context.Context, tokens []string, content Content) (*DeliveryReport, error)
	Name() string
}
