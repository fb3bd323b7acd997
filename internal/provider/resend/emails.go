package resend

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"net/http"
	"sort"

	"github.com/rijksuitgaven/mailengine/internal/service/delivery"
)

// MaxBatch is the API's limit on messages per batch call.
const MaxBatch = 100

type tag struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type emailRequest struct {
	From    string            `json:"from"`
	To      []string          `json:"to"`
	Subject string            `json:"subject"`
	HTML    string            `json:"html"`
	Text    string            `json:"text,omitempty"`
	ReplyTo string            `json:"reply_to,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
	Tags    []tag             `json:"tags,omitempty"`
}

type emailResponse struct {
	ID string `json:"id"`
}

type batchResponse struct {
	Data []emailResponse `json:"data"`
}

func toRequest(msg delivery.Message) emailRequest {
	req := emailRequest{
		From:    msg.From,
		To:      []string{msg.To},
		Subject: msg.Subject,
		HTML:    msg.HTML,
		Text:    msg.Text,
		ReplyTo: msg.ReplyTo,
		Headers: msg.Headers,
	}
	names := make([]string, 0, len(msg.Tags))
	for name := range msg.Tags {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		req.Tags = append(req.Tags, tag{Name: name, Value: msg.Tags[name]})
	}
	return req
}

// Send delivers one message.
func (c *Client) Send(ctx context.Context, msg delivery.Message) (delivery.SendResult, error) {
	if c.apiKey == "" {
		return delivery.SendResult{}, delivery.ErrNotConfigured
	}
	var resp emailResponse
	if err := c.doRequest(ctx, http.MethodPost, "/emails", toRequest(msg), &resp, msg.IdempotencyKey); err != nil {
		return delivery.SendResult{}, err
	}
	return delivery.SendResult{MessageID: resp.ID}, nil
}

// SendBatch delivers up to MaxBatch messages in one call. The API accepts or
// rejects the batch as a whole.
func (c *Client) SendBatch(ctx context.Context, msgs []delivery.Message) (delivery.BatchResult, error) {
	if c.apiKey == "" {
		return delivery.BatchResult{}, delivery.ErrNotConfigured
	}
	if len(msgs) == 0 {
		return delivery.BatchResult{}, nil
	}
	if len(msgs) > MaxBatch {
		return delivery.BatchResult{}, fmt.Errorf("%w: %d > %d", delivery.ErrBatchTooLarge, len(msgs), MaxBatch)
	}

	reqs := make([]emailRequest, len(msgs))
	for i, msg := range msgs {
		reqs[i] = toRequest(msg)
	}
	var resp batchResponse
	if err := c.doRequest(ctx, http.MethodPost, "/emails/batch", reqs, &resp, batchKey(msgs)); err != nil {
		return delivery.BatchResult{}, err
	}

	ids := make([]string, len(resp.Data))
	for i, d := range resp.Data {
		ids[i] = d.ID
	}
	return delivery.BatchResult{MessageIDs: ids}, nil
}

// MaxBatchSize implements delivery.BatchSender.
func (c *Client) MaxBatchSize() int { return MaxBatch }

// batchKey derives a batch idempotency key from the message keys. It is
// empty unless every message has one.
func batchKey(msgs []delivery.Message) string {
	h := sha256.New()
	for _, m := range msgs {
		if m.IdempotencyKey == "" {
			return ""
		}
		h.Write([]byte(m.IdempotencyKey))
		h.Write([]byte{0})
	}
	return "batch/" + hex.EncodeToString(h.Sum(nil))
}
