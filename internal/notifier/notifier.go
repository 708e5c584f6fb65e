package notifier

import (
	"context"
	"sync"

	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/utils/config"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
	"github.com/dwarvesf/onchain-tracker/internal/utils/webhook"
)

// INotifier accepts newly confirmed transactions for best-effort delivery.
type INotifier interface {
	// Enqueue never blocks. It returns false when the transaction was dropped.
	Enqueue(tx model.Transaction) bool
}

// Notifier owns a bounded queue drained by one worker goroutine.
// Delivery failures are logged and counted, never returned.
type Notifier struct {
	webhookURL string
	client     *webhook.Client
	logger     *logger.Logger
	metrics    *monitoring.NotifierMetrics

	mu     sync.RWMutex
	closed bool
	queue  chan model.Transaction

	cancel context.CancelFunc
	done   chan struct{}
}

func New(cfg config.NotifierConfig, logger *logger.Logger, metrics *monitoring.NotifierMetrics) *Notifier {
	size := cfg.QueueSize
	if size <= 0 {
		size = 1
	}
	return &Notifier{
		webhookURL: cfg.WebhookURL,
		client: webhook.New(logger, webhook.Options{
			Timeout:    cfg.Timeout,
			RetryCount: cfg.MaxRetries,
			RetryWait:  cfg.RetryWait,
		}),
		logger:  logger,
		metrics: metrics,
		queue:   make(chan model.Transaction, size),
		done:    make(chan struct{}),
	}
}

// Enabled reports whether a sink is configured.
func (n *Notifier) Enabled() bool {
	return n.webhookURL != ""
}

func (n *Notifier) Enqueue(tx model.Transaction) bool {
	network := string(tx.Network)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if !n.Enabled() || n.closed {
		n.metrics.Record(network, "dropped")
		return false
	}

	select {
	case n.queue <- tx:
		n.metrics.Record(network, "enqueued")
		n.metrics.SetQueueDepth(len(n.queue))
		return true
	default:
		n.metrics.Record(network, "dropped")
		n.logger.Warn("[Notifier][Enqueue] queue full, dropping notification", map[string]string{
			"network": network,
			"hash":    tx.Hash,
		})
		return false
	}
}

// Start launches the drain worker. Deliveries use ctx, so cancelling it
// aborts in-flight requests; use Stop for a graceful drain.
func (n *Notifier) Start(ctx context.Context) {
	ctx, n.cancel = context.WithCancel(ctx)
	go n.run(ctx)
}

func (n *Notifier) run(ctx context.Context) {
	defer close(n.done)
	for tx := range n.queue {
		n.metrics.SetQueueDepth(len(n.queue))
		n.deliver(ctx, tx)
	}
}

// Stop closes the queue and waits for queued notifications to be delivered.
// When ctx expires first, in-flight delivery is cancelled and the rest dropped.
func (n *Notifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.closed {
		n.closed = true
		close(n.queue)
	}
	n.mu.Unlock()

	if n.cancel == nil {
		return nil
	}

	select {
	case <-n.done:
		return nil
	case <-ctx.Done():
		n.cancel()
		<-n.done
		return ctx.Err()
	}
}

func (n *Notifier) deliver(ctx context.Context, tx model.Transaction) {
	network := string(tx.Network)
	if ctx.Err() != nil {
		n.metrics.Record(network, "dropped")
		return
	}

	headers := map[string]string{"X-Idempotency-Key": IdempotencyKey(tx)}
	if err := n.client.PostJSON(ctx, n.webhookURL, headers, FormatMessage(tx)); err != nil {
		n.metrics.Record(network, "failed")
		n.logger.Error("[Notifier][deliver] failed to deliver notification", map[string]string{
			"network": network,
			"hash":    tx.Hash,
			"error":   err.Error(),
		})
		return
	}

	n.metrics.Record(network, "delivered")
	n.logger.Info("[Notifier][deliver] notification sent", map[string]string{
		"network": network,
		"hash":    tx.Hash,
	})
}
