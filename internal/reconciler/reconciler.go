package reconciler

import (
	"context"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gorm.io/gorm"

	"github.com/dwarvesf/onchain-tracker/internal/chain"
	"github.com/dwarvesf/onchain-tracker/internal/model"
	"github.com/dwarvesf/onchain-tracker/internal/monitoring"
	"github.com/dwarvesf/onchain-tracker/internal/notifier"
	"github.com/dwarvesf/onchain-tracker/internal/store"
	"github.com/dwarvesf/onchain-tracker/internal/store/transaction"
	"github.com/dwarvesf/onchain-tracker/internal/utils/logger"
)

type State string

const (
	StateIdle       State = "idle"
	StateFetching   State = "fetching"
	StateDiffing    State = "diffing"
	StatePersisting State = "persisting"
	StateNotifying  State = "notifying"
	StateBackoff    State = "backoff"
)

var (
	// ErrStorage abandons the current tick. The next scheduled tick retries.
	ErrStorage = errors.New("storage error")
	// ErrUpstreamUnavailable is reported when at least one fetch failed transiently.
	ErrUpstreamUnavailable = errors.New("upstream unavailable")
)

type Options struct {
	Overlap          uint64
	Interval         time.Duration
	FetchTimeout     time.Duration
	BackoffThreshold int
	MaxBackoff       time.Duration
}

// TickResult summarizes one pass over the watched addresses of a network.
type TickResult struct {
	Network           model.Network
	Skipped           bool
	Fetched           int
	Inserted          int
	Updated           int
	NewlyConfirmed    int
	Notified          int
	TransientFailures int
	Degraded          []string
	Err               error
}

// Reconciler polls one network and is the only writer of its transactions.
type Reconciler struct {
	network   model.Network
	adapter   chain.IAdapter
	addresses []model.WatchedAddress
	db        *gorm.DB
	store     *store.Store
	notifier  notifier.INotifier
	logger    *logger.Logger
	metrics   *monitoring.ReconcilerMetrics
	backoff   Backoff
	opts      Options
	now       func() time.Time

	running sync.Mutex

	mu                   sync.RWMutex
	state                State
	degraded             []string
	consecutiveTransient int
	nextAttempt          time.Time
}

func New(
	adapter chain.IAdapter,
	addresses []model.WatchedAddress,
	db *gorm.DB,
	store *store.Store,
	notifier notifier.INotifier,
	logger *logger.Logger,
	metrics *monitoring.ReconcilerMetrics,
	opts Options,
) *Reconciler {
	network := adapter.Network()
	watched := make([]model.WatchedAddress, 0, len(addresses))
	for _, a := range addresses {
		if a.Network == network {
			watched = append(watched, a)
		}
	}

	return &Reconciler{
		network:   network,
		adapter:   adapter,
		addresses: watched,
		db:        db,
		store:     store,
		notifier:  notifier,
		logger:    logger.With(map[string]string{"network": string(network)}),
		metrics:   metrics,
		backoff: Backoff{
			Interval:  opts.Interval,
			Threshold: opts.BackoffThreshold,
			Max:       opts.MaxBackoff,
		},
		opts:  opts,
		now:   time.Now,
		state: StateIdle,
	}
}

func (r *Reconciler) Network() model.Network {
	return r.network
}

func (r *Reconciler) State() State {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.state
}

// Degraded lists the addresses that failed permanently in the last run.
func (r *Reconciler) Degraded() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return append([]string(nil), r.degraded...)
}

// NextAttempt is zero unless backoff has pushed the next tick past the regular schedule.
func (r *Reconciler) NextAttempt() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.nextAttempt
}

func (r *Reconciler) setState(s State) {
	r.mu.Lock()
	r.state = s
	r.mu.Unlock()
}

// Run adapts Tick to a scheduled job. Storage and upstream failures are
// returned so the job monitor can track them.
func (r *Reconciler) Run(ctx context.Context) error {
	res := r.Tick(ctx)
	if res.Err != nil {
		return res.Err
	}
	if res.TransientFailures > 0 {
		return errors.Wrapf(ErrUpstreamUnavailable, "%d of %d addresses", res.TransientFailures, len(r.addresses))
	}
	return nil
}

// Tick fetches every watched address since its own cursor minus the overlap
// margin, upserts what comes back and hands newly confirmed transactions to
// the notifier. An address cursor only advances once everything fetched for
// that address is stored, so a failed address is retried from where it stopped.
func (r *Reconciler) Tick(ctx context.Context) TickResult {
	res := TickResult{Network: r.network}

	if !r.running.TryLock() {
		res.Skipped = true
		r.metrics.RecordTick(string(r.network), "skipped")
		return res
	}
	defer r.running.Unlock()

	now := r.now()
	if r.inBackoff(now) {
		res.Skipped = true
		r.setState(StateBackoff)
		r.metrics.RecordTick(string(r.network), "backoff")
		r.logger.Debug("[Reconciler][Tick] skipped, backing off", map[string]string{
			"next_attempt": r.NextAttempt().Format(time.RFC3339),
		})
		return res
	}

	if r.opts.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.opts.FetchTimeout)
		defer cancel()
	}

	r.logger.Info("[Reconciler][Tick] start", map[string]string{
		"addresses": strconv.Itoa(len(r.addresses)),
	})

	for _, addr := range r.addresses {
		since, err := r.sinceBlock(ctx, addr.Address)
		if err != nil {
			return r.abort(res, err, "Cursor")
		}

		r.setState(StateFetching)
		txs, err := r.adapter.Fetch(ctx, addr.Address, since)
		if err != nil {
			if chain.IsPermanent(err) {
				res.Degraded = append(res.Degraded, addr.Address)
				r.logger.Warn("[Reconciler][Fetch] address degraded", map[string]string{
					"address": addr.Address,
					"error":   err.Error(),
				})
				continue
			}
			res.TransientFailures++
			r.logger.Warn("[Reconciler][Fetch] transient failure, retrying next tick", map[string]string{
				"address": addr.Address,
				"error":   err.Error(),
			})
			continue
		}

		res.Fetched += len(txs)
		r.metrics.RecordFetched(string(r.network), len(txs))

		if err := r.apply(ctx, txs, &res); err != nil {
			return r.abort(res, err, "Upsert")
		}
		if err := r.advance(ctx, addr.Address, txs); err != nil {
			return r.abort(res, err, "Advance")
		}
	}

	r.reportCursor(ctx)
	r.finish(now, &res)
	return res
}

// apply upserts each record in fetch order. Records older than the cursor and
// duplicates within the batch are left to the store's upsert semantics.
func (r *Reconciler) apply(ctx context.Context, txs []model.Transaction, res *TickResult) error {
	r.setState(StateDiffing)
	for i := range txs {
		tx := txs[i]
		tx.Network = r.network

		r.setState(StatePersisting)
		result, err := r.store.Transaction.Upsert(r.db.WithContext(ctx), &tx)
		if err != nil {
			return errors.Wrapf(err, "upsert %s", tx.Hash)
		}

		if result.Outcome == transaction.Inserted {
			res.Inserted++
		} else {
			res.Updated++
		}
		r.metrics.RecordUpsert(string(r.network), string(result.Outcome), result.WasNewlyConfirmed)

		if !result.WasNewlyConfirmed {
			continue
		}
		res.NewlyConfirmed++

		r.setState(StateNotifying)
		if r.notifier != nil && r.notifier.Enqueue(tx) {
			res.Notified++
		}
	}
	return nil
}

func (r *Reconciler) sinceBlock(ctx context.Context, address string) (uint64, error) {
	cursor, err := r.store.AddressCursor.Get(r.db.WithContext(ctx), r.network, address)
	if err != nil {
		return 0, err
	}
	if cursor == nil || *cursor <= r.opts.Overlap {
		return 0, nil
	}
	return *cursor - r.opts.Overlap, nil
}

// advance moves the address cursor to the highest block fetched. Adapters
// return every record from the lower bound up to that block, so nothing below
// it is left behind. An empty fetch keeps the cursor where it is.
func (r *Reconciler) advance(ctx context.Context, address string, txs []model.Transaction) error {
	if len(txs) == 0 {
		return nil
	}
	var highest uint64
	for i := range txs {
		if txs[i].BlockNumber > highest {
			highest = txs[i].BlockNumber
		}
	}
	return r.store.AddressCursor.Advance(r.db.WithContext(ctx), r.network, address, highest)
}

// reportCursor publishes the network high-water mark. A failed lookup only
// leaves the gauge stale.
func (r *Reconciler) reportCursor(ctx context.Context) {
	cursor, err := r.store.Transaction.LatestCursor(r.db.WithContext(ctx), r.network)
	if err != nil {
		r.logger.Warn("[Reconciler][LatestCursor] failed to read network cursor", map[string]string{
			"error": err.Error(),
		})
		return
	}
	if cursor != nil {
		r.metrics.SetCursor(string(r.network), *cursor)
	}
}

func (r *Reconciler) abort(res TickResult, err error, step string) TickResult {
	res.Err = errors.Wrapf(ErrStorage, "%s: %v", step, err)
	r.logger.Error(fmt.Sprintf("[Reconciler][%s] tick abandoned", step), map[string]string{
		"error": err.Error(),
	})
	r.setState(StateIdle)
	r.metrics.RecordTick(string(r.network), "storage_error")
	return res
}

func (r *Reconciler) finish(start time.Time, res *TickResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.degraded = res.Degraded
	if res.TransientFailures > 0 {
		r.consecutiveTransient++
	} else {
		r.consecutiveTransient = 0
	}

	r.nextAttempt = time.Time{}
	r.state = StateIdle
	if r.backoff.Engaged(r.consecutiveTransient) {
		r.nextAttempt = start.Add(r.backoff.Delay(r.consecutiveTransient))
		r.state = StateBackoff
	}

	outcome := "ok"
	switch {
	case res.TransientFailures > 0:
		outcome = "transient_error"
	case len(res.Degraded) > 0:
		outcome = "degraded"
	}
	r.metrics.RecordTick(string(r.network), outcome)
	r.metrics.SetDegraded(string(r.network), len(res.Degraded))
	if r.nextAttempt.IsZero() {
		r.metrics.SetBackoff(string(r.network), 0)
	} else {
		r.metrics.SetBackoff(string(r.network), r.nextAttempt.Sub(start).Seconds())
	}

	r.logger.Info("[Reconciler][Tick] done", map[string]string{
		"fetched":         strconv.Itoa(res.Fetched),
		"inserted":        strconv.Itoa(res.Inserted),
		"updated":         strconv.Itoa(res.Updated),
		"newly_confirmed": strconv.Itoa(res.NewlyConfirmed),
		"notified":        strconv.Itoa(res.Notified),
		"degraded":        strconv.Itoa(len(res.Degraded)),
		"transient":       strconv.Itoa(r.consecutiveTransient),
	})
}

// inBackoff tolerates a tenth of the interval so a scheduler firing slightly
// early does not skip a whole period.
func (r *Reconciler) inBackoff(now time.Time) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.nextAttempt.IsZero() {
		return false
	}
	return now.Before(r.nextAttempt.Add(-r.opts.Interval / 10))
}
