package delivery

import (
	"context"
)

// Message is one fully rendered outbound email.
type Message struct {
	From    string            `json:"from"`
	To      string            `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    map[string]string `json:"tags,omitempty"`

	// IdempotencyKey lets the provider drop a retried request it already
	// accepted. Empty disables it.
	IdempotencyKey string `json:"-"`
}

// SendResult is the provider's acceptance of a single message.
type SendResult struct {
	MessageID string
}

// BatchResult is the provider's acceptance of a batch, one id per message in
// input order when the provider reports them.
type BatchResult struct {
	MessageIDs []string
}

// Sender sends a single email through a provider. Implementations must be
// safe for concurrent use.
type Sender interface {
	Send(ctx context.Context, msg Message) (SendResult, error)
}

// BatchSender extends Sender with multi-message delivery. A non-nil error
// means the whole batch failed.
type BatchSender interface {
	Sender
	SendBatch(ctx context.Context, msgs []Message) (BatchResult, error)
	MaxBatchSize() int
}
