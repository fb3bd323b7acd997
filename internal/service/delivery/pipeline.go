package delivery

import (
	"context"
	"time"

	"github.com/rijksuitgaven/mailengine/internal/metrics"
	"github.com/rijksuitgaven/mailengine/internal/pkg/logger"
)

const (
	// DefaultDelay is the pause after each single send and between batches.
	DefaultDelay = 600 * time.Millisecond

	// DefaultBatchSize is the upper bound on messages per provider call.
	DefaultBatchSize = 100
)

// Outcome is the result of one single-step send. Transport errors are
// folded into a failed outcome.
type Outcome struct {
	OK                bool
	ProviderMessageID string
	Error             string
}

// BroadcastResult totals a batch-mode send.
type BroadcastResult struct {
	Sent    int `json:"sent"`
	Failed  int `json:"failed"`
	Batches int `json:"batches"`
}

// Pipeline paces messages into a provider.
type Pipeline struct {
	sender    Sender
	delay     time.Duration
	batchSize int
	metrics   *metrics.Metrics
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewPipeline creates a pipeline with the default delay and batch size. m may
// be nil.
func NewPipeline(sender Sender, m *metrics.Metrics) *Pipeline {
	return &Pipeline{
		sender:    sender,
		delay:     DefaultDelay,
		batchSize: DefaultBatchSize,
		metrics:   m,
		sleep:     sleepContext,
	}
}

// WithDelay overrides the inter-send delay.
func (p *Pipeline) WithDelay(d time.Duration) *Pipeline {
	if d >= 0 {
		p.delay = d
	}
	return p
}

// WithBatchSize overrides the batch upper bound.
func (p *Pipeline) WithBatchSize(n int) *Pipeline {
	if n > 0 {
		p.batchSize = n
	}
	return p
}

// SendOne delivers msg and then waits the inter-send delay, success or
// failure. A cancelled context cuts the wait short.
func (p *Pipeline) SendOne(ctx context.Context, msg Message) Outcome {
	res, err := p.sender.Send(ctx, msg)
	out := Outcome{OK: err == nil, ProviderMessageID: res.MessageID}
	if err != nil {
		out.Error = err.Error()
		logger.Warn("send failed", "recipient", msg.To, "error", err)
	}
	p.metrics.RecordSend("sequence", out.OK)
	_ = p.sleep(ctx, p.delay)
	return out
}

// BatchSize returns the effective chunk size: the configured bound, capped
// by the provider's limit when it has one.
func (p *Pipeline) BatchSize() int {
	size := p.batchSize
	if bs, ok := p.sender.(BatchSender); ok {
		if limit := bs.MaxBatchSize(); limit > 0 && limit < size {
			size = limit
		}
	}
	return size
}

// SendBroadcast delivers msgs in chunks of BatchSize with the inter-send
// delay between chunks and none after the last. A chunk that errors counts
// all of its messages as failed and the remaining chunks still go out. If
// ctx is cancelled between chunks the rest are counted as failed and the
// context error is returned.
func (p *Pipeline) SendBroadcast(ctx context.Context, msgs []Message) (BroadcastResult, error) {
	var res BroadcastResult
	size := p.BatchSize()

	for start := 0; start < len(msgs); start += size {
		if start > 0 {
			if err := p.sleep(ctx, p.delay); err != nil {
				res.Failed += len(msgs) - start
				p.metrics.RecordSends("broadcast", false, len(msgs)-start)
				return res, err
			}
		}
		end := start + size
		if end > len(msgs) {
			end = len(msgs)
		}
		chunk := msgs[start:end]
		res.Batches++

		began := time.Now()
		sent, failed := p.sendChunk(ctx, chunk)
		p.metrics.ObserveBatch(time.Since(began))
		p.metrics.RecordSends("broadcast", true, sent)
		p.metrics.RecordSends("broadcast", false, failed)
		res.Sent += sent
		res.Failed += failed
	}
	return res, nil
}

func (p *Pipeline) sendChunk(ctx context.Context, chunk []Message) (sent, failed int) {
	if bs, ok := p.sender.(BatchSender); ok {
		if _, err := bs.SendBatch(ctx, chunk); err != nil {
			logger.Error("batch send failed", "size", len(chunk), "error", err)
			return 0, len(chunk)
		}
		return len(chunk), 0
	}

	for _, msg := range chunk {
		if _, err := p.sender.Send(ctx, msg); err != nil {
			logger.Warn("send failed", "recipient", msg.To, "error", err)
			failed++
			continue
		}
		sent++
	}
	return sent, failed
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
