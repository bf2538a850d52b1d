package webhook

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
	"github.com/stacksgate/stacksgate/internal/pkg/cache"
	"github.com/stacksgate/stacksgate/internal/pkg/env"
	"github.com/stacksgate/stacksgate/internal/pkg/metrics/counter"
)

const (
	// Redis keys
	QueueKey            = "webhook_queue"
	ProcessingKey       = "webhook_processing"
	ProcessingClaimsKey = "webhook_processing_claims"

	// Worker settings
	DefaultWorkers  = 3
	DefaultSchedule = "0s,60s,120s,240s,480s"
	deliveryTimeout = 10 * time.Second

	// Stuck-entry sweeping. A processing entry older than the threshold
	// belongs to a worker that died mid-delivery and goes back to the queue.
	sweepInterval  = time.Minute
	stuckThreshold = 5 * time.Minute
)

// ErrInFlight is returned when a delivery for the same logical key is already
// being worked on.
var ErrInFlight = errors.New("webhook: delivery already in flight")

// ParseBackoffSchedule parses a comma-separated duration list. The schedule is
// forced monotone non-decreasing; a step shorter than its predecessor is
// raised to the predecessor.
func ParseBackoffSchedule(raw string) ([]time.Duration, error) {
	parts := strings.Split(raw, ",")
	schedule := make([]time.Duration, 0, len(parts))
	var prev time.Duration
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("bad backoff step %q: %w", part, err)
		}
		if d < 0 {
			return nil, fmt.Errorf("negative backoff step %q", part)
		}
		if d < prev {
			d = prev
		}
		schedule = append(schedule, d)
		prev = d
	}
	if len(schedule) == 0 {
		return nil, errors.New("empty backoff schedule")
	}
	return schedule, nil
}

// Dispatcher delivers merchant webhooks from a Redis-backed queue with a
// bounded retry schedule. It is the only component that retries deliveries;
// everything upstream just enqueues once.
type Dispatcher struct {
	client     *redis.Client
	logs       repository.WebhookLogRepository
	stores     repository.StoreRepository
	deduper    Deduper
	httpClient *http.Client
	schedule   []time.Duration
	workers    int
	workerPool chan struct{}
	stopCh     chan struct{}
	wg         sync.WaitGroup
	mu         sync.Mutex
	running    bool
}

// NewDispatcher creates a dispatcher. The backoff schedule is read from
// WEBHOOK_BACKOFF_SCHEDULE; a malformed value falls back to the default.
func NewDispatcher(logs repository.WebhookLogRepository, stores repository.StoreRepository, deduper Deduper, workers int) *Dispatcher {
	if workers <= 0 {
		workers = DefaultWorkers
	}

	schedule, err := ParseBackoffSchedule(env.GetEnv("WEBHOOK_BACKOFF_SCHEDULE", DefaultSchedule))
	if err != nil {
		log.Warnf("[WebhookQueue] Invalid WEBHOOK_BACKOFF_SCHEDULE, using default: %v", err)
		schedule, _ = ParseBackoffSchedule(DefaultSchedule)
	}

	return &Dispatcher{
		client:     cache.GetClient(),
		logs:       logs,
		stores:     stores,
		deduper:    deduper,
		httpClient: &http.Client{Timeout: deliveryTimeout},
		schedule:   schedule,
		workers:    workers,
		workerPool: make(chan struct{}, workers),
		stopCh:     make(chan struct{}),
	}
}

// Start starts the delivery workers
func (d *Dispatcher) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.running {
		return
	}

	d.running = true
	log.Infof("[WebhookQueue] Starting %d workers", d.workers)

	for i := 0; i < d.workers; i++ {
		d.workerPool <- struct{}{}
	}

	for i := 0; i < d.workers; i++ {
		d.wg.Add(1)
		go d.worker(i)
	}

	d.wg.Add(1)
	go d.sweeper()
}

// Stop stops the delivery workers
func (d *Dispatcher) Stop() {
	d.mu.Lock()
	defer d.mu.Unlock()

	if !d.running {
		return
	}

	log.Info("[WebhookQueue] Stopping workers...")
	close(d.stopCh)
	d.running = false
	d.wg.Wait()
	log.Info("[WebhookQueue] All workers stopped")
}

// Enqueue queues a delivery unless the same logical key is already in flight.
// The in-flight marker is held for the whole delivery lifecycle, including
// scheduled retries, and released on success or exhaustion.
func (d *Dispatcher) Enqueue(row *models.WebhookLog) error {
	won, err := d.deduper.TryAcquire(row.SubjectKey())
	if err != nil {
		return fmt.Errorf("failed to mark delivery in flight: %w", err)
	}
	if !won {
		return ErrInFlight
	}

	ctx := context.Background()
	if err := d.client.LPush(ctx, QueueKey, row.ID).Err(); err != nil {
		d.deduper.Release(row.SubjectKey())
		return fmt.Errorf("failed to enqueue delivery: %w", err)
	}

	log.Infof("[WebhookQueue] Enqueued delivery %d (%s)", row.ID, row.EventType)
	return nil
}

// worker processes deliveries from the queue
func (d *Dispatcher) worker(id int) {
	defer d.wg.Done()
	log.Infof("[WebhookQueue] Worker %d started", id)

	ctx := context.Background()

	for {
		select {
		case <-d.stopCh:
			log.Infof("[WebhookQueue] Worker %d stopping", id)
			return
		default:
			<-d.workerPool

			rawID, err := d.client.BRPopLPush(ctx, QueueKey, ProcessingKey, time.Second).Result()
			if err != nil {
				if err != redis.Nil {
					log.Errorf("[WebhookQueue] Worker %d: dequeue error: %v", id, err)
					time.Sleep(time.Second)
				}
				d.workerPool <- struct{}{}
				continue
			}

			d.client.HSet(ctx, ProcessingClaimsKey, rawID, time.Now().Unix())

			logID, err := strconv.ParseUint(rawID, 10, 64)
			if err != nil {
				log.Errorf("[WebhookQueue] Worker %d: bad queue entry %q", id, rawID)
				d.removeFromProcessing(ctx, rawID)
				d.workerPool <- struct{}{}
				continue
			}

			d.deliver(ctx, uint(logID))
			d.removeFromProcessing(ctx, rawID)
			d.workerPool <- struct{}{}
		}
	}
}

// deliver performs one HTTP delivery attempt for a log row and schedules the
// next retry when the attempt fails and the cap is not yet reached.
func (d *Dispatcher) deliver(ctx context.Context, logID uint) {
	row, err := d.logs.GetByID(logID)
	if err != nil {
		log.Errorf("[WebhookQueue] Delivery %d: row not found: %v", logID, err)
		return
	}

	if row.Success {
		d.deduper.Release(row.SubjectKey())
		return
	}

	store, err := d.stores.GetByID(row.StoreID)
	if err != nil {
		log.Errorf("[WebhookQueue] Delivery %d: store %d not found: %v", logID, row.StoreID, err)
		d.deduper.Release(row.SubjectKey())
		return
	}

	now := time.Now()
	statusCode, attemptErr := d.post(ctx, row, store.WebhookSecret, now)
	success := attemptErr == "" && statusCode >= 200 && statusCode < 300

	_ = counter.AddWebhookAttempt(row.StoreID)

	var codePtr *int
	if statusCode > 0 {
		codePtr = &statusCode
	}
	if !success && attemptErr == "" {
		attemptErr = fmt.Sprintf("unexpected status %d", statusCode)
	}
	if err := d.logs.RecordAttempt(row.ID, success, codePtr, attemptErr, now); err != nil {
		log.Errorf("[WebhookQueue] Delivery %d: failed to record attempt: %v", row.ID, err)
	}

	attempts := row.Attempts + 1

	if success {
		log.Infof("[WebhookQueue] Delivery %d succeeded (attempt %d)", row.ID, attempts)
		_ = counter.AddWebhookSuccess(row.StoreID)
		d.deduper.Release(row.SubjectKey())
		return
	}

	if attempts >= models.MaxWebhookAttempts {
		log.Errorf("[WebhookQueue] Delivery %d permanently failed after %d attempts", row.ID, attempts)
		d.deduper.Release(row.SubjectKey())
		return
	}

	delay := d.schedule[len(d.schedule)-1]
	if attempts < len(d.schedule) {
		delay = d.schedule[attempts]
	}
	log.Infof("[WebhookQueue] Delivery %d failed (attempt %d), retrying in %s", row.ID, attempts, delay)
	rowID := row.ID
	time.AfterFunc(delay, func() {
		if err := d.client.LPush(context.Background(), QueueKey, rowID).Err(); err != nil {
			log.Errorf("[WebhookQueue] Failed to requeue delivery %d: %v", rowID, err)
		}
	})
}

// post sends the signed webhook request. It returns the HTTP status code and a
// non-empty error string when the request could not be completed.
func (d *Dispatcher) post(ctx context.Context, row *models.WebhookLog, secret string, now time.Time) (int, string) {
	body := []byte(row.Payload)
	timestamp := now.Unix()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, row.URL, bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Sprintf("build request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(timestamp, 10))
	req.Header.Set(HeaderSignature, Sign(secret, timestamp, body))

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Sprintf("request failed: %v", err)
	}
	defer resp.Body.Close()

	return resp.StatusCode, ""
}

// removeFromProcessing removes an entry and its claim from the processing list
func (d *Dispatcher) removeFromProcessing(ctx context.Context, rawID string) {
	if err := d.client.LRem(ctx, ProcessingKey, 1, rawID).Err(); err != nil {
		log.Errorf("[WebhookQueue] Failed to remove %s from processing list: %v", rawID, err)
	}
	d.client.HDel(ctx, ProcessingClaimsKey, rawID)
}

// sweeper periodically requeues processing entries whose worker died before
// finishing the delivery.
func (d *Dispatcher) sweeper() {
	defer d.wg.Done()
	ticker := time.NewTicker(sweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-d.stopCh:
			return
		case <-ticker.C:
			d.sweepStuck(context.Background())
		}
	}
}

// sweepStuck moves stale processing entries back onto the pending queue.
func (d *Dispatcher) sweepStuck(ctx context.Context) {
	entries, err := d.client.LRange(ctx, ProcessingKey, 0, -1).Result()
	if err != nil {
		log.Errorf("[WebhookQueue] Sweep: failed to read processing list: %v", err)
		return
	}
	if len(entries) == 0 {
		return
	}

	claims, err := d.client.HGetAll(ctx, ProcessingClaimsKey).Result()
	if err != nil {
		log.Errorf("[WebhookQueue] Sweep: failed to read claims: %v", err)
		return
	}

	now := time.Now()
	for _, rawID := range entries {
		if !claimStuck(claims[rawID], now, stuckThreshold) {
			continue
		}
		d.removeFromProcessing(ctx, rawID)
		if err := d.client.LPush(ctx, QueueKey, rawID).Err(); err != nil {
			log.Errorf("[WebhookQueue] Sweep: failed to requeue %s: %v", rawID, err)
			continue
		}
		log.Warnf("[WebhookQueue] Sweep: requeued stuck delivery %s", rawID)
	}
}

// claimStuck reports whether a processing claim is stale. A missing or
// unparseable claim counts as stuck; the entry has no live owner.
func claimStuck(claim string, now time.Time, threshold time.Duration) bool {
	if claim == "" {
		return true
	}
	ts, err := strconv.ParseInt(claim, 10, 64)
	if err != nil {
		return true
	}
	return now.Sub(time.Unix(ts, 0)) > threshold
}

// QueueSize returns the number of pending deliveries
func (d *Dispatcher) QueueSize(ctx context.Context) (int64, error) {
	return d.client.LLen(ctx, QueueKey).Result()
}
