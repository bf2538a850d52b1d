package poller

import (
	"context"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/chain"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/metrics/counter"
	"github.com/stacksgate/stacksgate/internal/pkg/status"
	"github.com/stacksgate/stacksgate/internal/pkg/webhook"
)

// DefaultConfirmationDepth is the number of blocks a paid observation must age
// before the row is marked paid, unless CONFIRMATION_DEPTH overrides it.
const DefaultConfirmationDepth = 1

const defaultBatchSize = 100

// ConfirmationDepthFromEnv reads the reorg trust parameter.
func ConfirmationDepthFromEnv() uint64 {
	raw := env.GetEnv("CONFIRMATION_DEPTH", "")
	if raw == "" {
		return DefaultConfirmationDepth
	}
	depth, err := strconv.ParseUint(raw, 10, 64)
	if err != nil {
		return DefaultConfirmationDepth
	}
	return depth
}

// Reconciler periodically merges on-chain truth into the local projection and
// emits merchant webhooks for observed terminal events. Each subject is
// single-flight: a tick for one row must finish before the next tick for that
// same row starts, while different subjects proceed independently.
type Reconciler struct {
	invoices repository.InvoiceRepository
	subs     repository.SubscriptionRepository
	chain    chain.Client
	resolver *status.Resolver
	notifier *webhook.Notifier

	confirmationDepth uint64
	baseDelay         time.Duration
	maxDelay          time.Duration

	mu       sync.Mutex
	inflight map[string]struct{}
	backoffs map[string]*BackoffManager
	nextPoll map[string]time.Time

	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
	runMu   sync.Mutex
}

// NewReconciler wires the reconciliation loop.
func NewReconciler(invoices repository.InvoiceRepository, subs repository.SubscriptionRepository, chainClient chain.Client, notifier *webhook.Notifier) *Reconciler {
	return &Reconciler{
		invoices:          invoices,
		subs:              subs,
		chain:             chainClient,
		resolver:          status.NewResolver(chainClient),
		notifier:          notifier,
		confirmationDepth: ConfirmationDepthFromEnv(),
		baseDelay:         BaseDelayFromEnv(),
		maxDelay:          MaxDelayFromEnv(),
		inflight:          make(map[string]struct{}),
		backoffs:          make(map[string]*BackoffManager),
		nextPoll:          make(map[string]time.Time),
		stopCh:            make(chan struct{}),
	}
}

// Start launches the reconciliation loop.
func (r *Reconciler) Start() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if r.running {
		return
	}
	r.running = true

	log.Infof("[Reconciler] Starting (base=%s, max=%s, depth=%d)", r.baseDelay, r.maxDelay, r.confirmationDepth)
	r.wg.Add(1)
	go r.loop()
}

// Stop halts the loop and waits for in-flight ticks to finish.
func (r *Reconciler) Stop() {
	r.runMu.Lock()
	defer r.runMu.Unlock()
	if !r.running {
		return
	}
	log.Info("[Reconciler] Stopping...")
	close(r.stopCh)
	r.running = false
	r.wg.Wait()
	log.Info("[Reconciler] Stopped")
}

// counterFlushInterval paces the drain of Redis stat counters into MySQL.
const counterFlushInterval = time.Minute

func (r *Reconciler) loop() {
	defer r.wg.Done()
	ticker := time.NewTicker(r.baseDelay)
	defer ticker.Stop()
	flushTicker := time.NewTicker(counterFlushInterval)
	defer flushTicker.Stop()

	for {
		select {
		case <-r.stopCh:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Reconciler] Final counter flush failed: %v", err)
			}
			return
		case <-flushTicker.C:
			if err := counter.FlushAll(); err != nil {
				log.Errorf("[Reconciler] Counter flush failed: %v", err)
			}
		case <-ticker.C:
			r.tick(context.Background())
		}
	}
}

// tick fans out one reconciliation pass over all open subjects.
func (r *Reconciler) tick(ctx context.Context) {
	invoices, err := r.invoices.ListOpen(defaultBatchSize)
	if err != nil {
		log.Errorf("[Reconciler] Failed to list open invoices: %v", err)
	} else {
		for i := range invoices {
			inv := invoices[i]
			r.dispatch(ctx, "invoice:"+inv.IDHex, func(ctx context.Context, mgr *BackoffManager) {
				r.reconcileInvoice(ctx, &inv, mgr)
			})
		}
	}

	// Paid invoices stay under watch until fully refunded or the merchant
	// never refunds; the contract is the only source of refund truth.
	refundable, err := r.invoices.ListRefundWatch(defaultBatchSize)
	if err != nil {
		log.Errorf("[Reconciler] Failed to list refundable invoices: %v", err)
	} else {
		for i := range refundable {
			inv := refundable[i]
			r.dispatch(ctx, "invoice:"+inv.IDHex, func(ctx context.Context, mgr *BackoffManager) {
				r.reconcileRefund(ctx, &inv, mgr)
			})
		}
	}

	subs, err := r.subs.ListActiveDirect(defaultBatchSize)
	if err != nil {
		log.Errorf("[Reconciler] Failed to list direct subscriptions: %v", err)
		return
	}
	for i := range subs {
		sub := subs[i]
		r.dispatch(ctx, "subscription:"+sub.IDHex, func(ctx context.Context, mgr *BackoffManager) {
			r.reconcileSubscription(ctx, &sub, mgr)
		})
	}
}

// dispatch runs fn for a subject unless it is already in flight or still
// backed off. The in-flight marker enforces single-flight per subject.
func (r *Reconciler) dispatch(ctx context.Context, key string, fn func(context.Context, *BackoffManager)) {
	r.mu.Lock()
	if _, busy := r.inflight[key]; busy {
		r.mu.Unlock()
		return
	}
	if at, ok := r.nextPoll[key]; ok && time.Now().Before(at) {
		r.mu.Unlock()
		return
	}
	mgr, ok := r.backoffs[key]
	if !ok {
		mgr = NewBackoffManager(r.baseDelay, r.maxDelay)
		mgr.StartPolling()
		r.backoffs[key] = mgr
	}
	r.inflight[key] = struct{}{}
	r.mu.Unlock()

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn(ctx, mgr)

		r.mu.Lock()
		delete(r.inflight, key)
		r.nextPoll[key] = time.Now().Add(mgr.Delay())
		r.mu.Unlock()
	}()
}

// forget drops per-subject scheduling state once the subject is terminal.
func (r *Reconciler) forget(key string) {
	r.mu.Lock()
	if mgr, ok := r.backoffs[key]; ok {
		mgr.Stop()
	}
	delete(r.backoffs, key)
	delete(r.nextPoll, key)
	r.mu.Unlock()
}

// reconcileInvoice merges the ledger's view of one invoice into its row.
func (r *Reconciler) reconcileInvoice(ctx context.Context, inv *models.Invoice, mgr *BackoffManager) {
	_ = counter.AddInvoicePoll(inv.ID)

	onchain, err := r.resolver.ReadOnchainStatus(ctx, inv.IDHex)
	if err != nil {
		delay := mgr.RecordFailure()
		log.Warnf("[Reconciler] Invoice %s: chain read failed, next poll in %s: %v", inv.IDHex, delay, err)
		return
	}
	mgr.RecordSuccess()

	switch onchain {
	case chain.OnchainPaid:
		r.applyPaid(ctx, inv)
	case chain.OnchainCanceled:
		r.applyTerminal(inv, models.InvoiceStatusCanceled, models.WebhookEventInvoiceCanceled)
	case chain.OnchainExpired:
		r.applyTerminal(inv, models.InvoiceStatusExpired, models.WebhookEventInvoiceExpired)
	case chain.OnchainUnpaid, chain.OnchainNotFound:
		// Quote expiry is inferred locally ahead of any on-chain mark-expired.
		if inv.QuoteExpired(time.Now().UnixMilli()) {
			r.applyTerminal(inv, models.InvoiceStatusExpired, models.WebhookEventInvoiceExpired)
		}
	}
}

// applyPaid holds the paid transition until the observation has aged past the
// confirmation depth, then flips the row and notifies the merchant.
func (r *Reconciler) applyPaid(ctx context.Context, inv *models.Invoice) {
	tip, err := r.chain.TipHeight(ctx)
	if err != nil {
		log.Warnf("[Reconciler] Invoice %s: tip height read failed: %v", inv.IDHex, err)
		return
	}

	if inv.PaidAtHeight == nil {
		inv.PaidAtHeight = &tip
		inv.Status = models.InvoiceStatusPending
		if err := r.invoices.Update(inv); err != nil {
			log.Errorf("[Reconciler] Invoice %s: failed to record paid observation: %v", inv.IDHex, err)
		}
		return
	}

	if tip < *inv.PaidAtHeight+r.confirmationDepth {
		return
	}

	changed, err := r.invoices.UpdateStatus(inv.ID, inv.Status, models.InvoiceStatusPaid)
	if err != nil {
		log.Errorf("[Reconciler] Invoice %s: paid transition failed: %v", inv.IDHex, err)
		return
	}
	if changed && inv.Store != nil {
		if err := r.notifier.NotifyInvoice(inv.Store, inv, models.WebhookEventInvoicePaid, inv); err != nil {
			log.Errorf("[Reconciler] Invoice %s: webhook enqueue failed: %v", inv.IDHex, err)
		}
	}
	r.forget("invoice:" + inv.IDHex)
}

// applyTerminal flips the row into a terminal state and notifies the merchant.
// The guarded update keeps concurrent observers from double-firing the event.
func (r *Reconciler) applyTerminal(inv *models.Invoice, to models.InvoiceStatus, event string) {
	if !inv.CanTransitionTo(to) {
		return
	}
	changed, err := r.invoices.UpdateStatus(inv.ID, inv.Status, to)
	if err != nil {
		log.Errorf("[Reconciler] Invoice %s: transition to %s failed: %v", inv.IDHex, to, err)
		return
	}
	if changed && inv.Store != nil {
		inv.Status = to
		if err := r.notifier.NotifyInvoice(inv.Store, inv, event, inv); err != nil {
			log.Errorf("[Reconciler] Invoice %s: webhook enqueue failed: %v", inv.IDHex, err)
		}
	}
	r.forget("invoice:" + inv.IDHex)
}

// reconcileRefund merges the contract's cumulative refund amount into a paid
// invoice row. Refunds only ever grow, so any observation above the recorded
// amount is an unseen refund.
func (r *Reconciler) reconcileRefund(ctx context.Context, inv *models.Invoice, mgr *BackoffManager) {
	_ = counter.AddInvoicePoll(inv.ID)

	observed, err := r.chain.InvoiceRefund(ctx, inv.IDHex)
	if err != nil {
		delay := mgr.RecordFailure()
		log.Warnf("[Reconciler] Invoice %s: refund read failed, next poll in %s: %v", inv.IDHex, delay, err)
		return
	}
	mgr.RecordSuccess()

	if observed <= inv.RefundAmount {
		return
	}

	from := inv.Status
	if !inv.ApplyRefund(observed - inv.RefundAmount) {
		log.Errorf("[Reconciler] Invoice %s: ledger reports refund %d above invoice amount %d", inv.IDHex, observed, inv.AmountSats)
		return
	}

	changed, err := r.invoices.RecordRefund(inv.ID, from, inv.Status, inv.RefundAmount)
	if err != nil {
		log.Errorf("[Reconciler] Invoice %s: refund write failed: %v", inv.IDHex, err)
		return
	}
	if changed && inv.Store != nil {
		if err := r.notifier.NotifyInvoice(inv.Store, inv, models.WebhookEventInvoiceRefunded, inv); err != nil {
			log.Errorf("[Reconciler] Invoice %s: webhook enqueue failed: %v", inv.IDHex, err)
		}
	}
	if inv.Status == models.InvoiceStatusRefunded {
		r.forget("invoice:" + inv.IDHex)
	}
}

// reconcileSubscription merges the on-chain subscription record into its row.
func (r *Reconciler) reconcileSubscription(ctx context.Context, sub *models.Subscription, mgr *BackoffManager) {
	view, err := r.chain.Subscription(ctx, sub.IDHex)
	if err != nil {
		if err == chain.ErrNotFound {
			mgr.RecordSuccess()
			return
		}
		delay := mgr.RecordFailure()
		log.Warnf("[Reconciler] Subscription %s: chain read failed, next poll in %s: %v", sub.IDHex, delay, err)
		return
	}
	mgr.RecordSuccess()

	if !view.Active {
		sub.Cancel()
		if err := r.subs.Update(sub); err != nil {
			log.Errorf("[Reconciler] Subscription %s: cancel failed: %v", sub.IDHex, err)
			return
		}
		if sub.Store != nil {
			if err := r.notifier.NotifySubscription(sub.Store, sub, models.WebhookEventSubscriptionCanceled, sub); err != nil {
				log.Errorf("[Reconciler] Subscription %s: webhook enqueue failed: %v", sub.IDHex, err)
			}
		}
		r.forget("subscription:" + sub.IDHex)
		return
	}

	// A due height that moved forward means an interval payment landed.
	if view.NextDue > sub.NextInvoiceAt {
		sub.NextInvoiceAt = view.NextDue
		if err := r.subs.Update(sub); err != nil {
			log.Errorf("[Reconciler] Subscription %s: due height update failed: %v", sub.IDHex, err)
			return
		}
		if sub.Store != nil {
			if err := r.notifier.NotifySubscription(sub.Store, sub, models.WebhookEventSubscriptionPaid, sub); err != nil {
				log.Errorf("[Reconciler] Subscription %s: webhook enqueue failed: %v", sub.IDHex, err)
			}
		}
	}
}
