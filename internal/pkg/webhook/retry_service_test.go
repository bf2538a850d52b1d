package webhook

import (
	"sync"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
)

type fakeLogRepo struct {
	mu     sync.Mutex
	nextID uint
	rows   map[uint]*models.WebhookLog
}

func newFakeLogRepo() *fakeLogRepo {
	return &fakeLogRepo{nextID: 1, rows: make(map[uint]*models.WebhookLog)}
}

func (r *fakeLogRepo) Create(row *models.WebhookLog) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row.ID = r.nextID
	r.nextID++
	copied := *row
	r.rows[row.ID] = &copied
	return nil
}

func (r *fakeLogRepo) GetByID(id uint) (*models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	copied := *row
	return &copied, nil
}

func (r *fakeLogRepo) HasSuccessFor(storeID uint, invoiceID, subscriptionID *uint, eventType string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, row := range r.rows {
		if row.StoreID != storeID || row.EventType != eventType || !row.Success {
			continue
		}
		if !uintPtrEq(row.InvoiceID, invoiceID) || !uintPtrEq(row.SubscriptionID, subscriptionID) {
			continue
		}
		return true, nil
	}
	return false, nil
}

func (r *fakeLogRepo) RecordAttempt(id uint, success bool, statusCode *int, attemptErr string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	row, ok := r.rows[id]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	row.Attempts++
	row.Success = success
	row.LastStatusCode = statusCode
	row.LastError = attemptErr
	row.LastAttemptAt = &at
	return nil
}

func (r *fakeLogRepo) ListFailed(offset, limit int) ([]models.WebhookLog, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.WebhookLog
	for _, row := range r.rows {
		if !row.Success {
			out = append(out, *row)
		}
	}
	return out, nil
}

func uintPtrEq(a, b *uint) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// fakeQueue mimics the dispatcher's enqueue contract: acquire the in-flight
// marker first, count only the winners.
type fakeQueue struct {
	deduper Deduper
	mu      sync.Mutex
	queued  []uint
}

func newFakeQueue() *fakeQueue {
	return &fakeQueue{deduper: NewMemoryDeduper()}
}

func (q *fakeQueue) Enqueue(row *models.WebhookLog) error {
	won, err := q.deduper.TryAcquire(row.SubjectKey())
	if err != nil {
		return err
	}
	if !won {
		return ErrInFlight
	}
	q.mu.Lock()
	q.queued = append(q.queued, row.ID)
	q.mu.Unlock()
	return nil
}

func (q *fakeQueue) queuedCount() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.queued)
}

func failedRow(storeID uint, invoiceID uint, eventType string) *models.WebhookLog {
	id := invoiceID
	return &models.WebhookLog{
		StoreID:   storeID,
		InvoiceID: &id,
		EventType: eventType,
		URL:       "https://merchant.example/hooks",
		Payload:   `{"id":"evt_1"}`,
		Attempts:  3,
	}
}

func TestRetryNotFound(t *testing.T) {
	t.Parallel()

	svc := NewAdminRetryService(newFakeLogRepo(), newFakeQueue())
	if err := svc.Retry(42); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRetryAlreadyDeliveredRow(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	queue := newFakeQueue()
	row := failedRow(1, 10, models.WebhookEventInvoicePaid)
	row.Success = true
	if err := logs.Create(row); err != nil {
		t.Fatal(err)
	}

	svc := NewAdminRetryService(logs, queue)
	if err := svc.Retry(row.ID); err != ErrAlreadyDelivered {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}
	if queue.queuedCount() != 0 {
		t.Fatal("delivered event must not be requeued")
	}
}

func TestRetryAlreadyDeliveredSibling(t *testing.T) {
	t.Parallel()

	// A second log row for the same business event exists and succeeded; the
	// failed row must not be retried.
	logs := newFakeLogRepo()
	queue := newFakeQueue()

	failed := failedRow(1, 10, models.WebhookEventInvoicePaid)
	if err := logs.Create(failed); err != nil {
		t.Fatal(err)
	}
	delivered := failedRow(1, 10, models.WebhookEventInvoicePaid)
	delivered.Success = true
	if err := logs.Create(delivered); err != nil {
		t.Fatal(err)
	}

	svc := NewAdminRetryService(logs, queue)
	if err := svc.Retry(failed.ID); err != ErrAlreadyDelivered {
		t.Fatalf("expected ErrAlreadyDelivered, got %v", err)
	}
}

func TestRetryEnqueuesFailedDelivery(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	queue := newFakeQueue()
	row := failedRow(1, 10, models.WebhookEventInvoicePaid)
	if err := logs.Create(row); err != nil {
		t.Fatal(err)
	}

	svc := NewAdminRetryService(logs, queue)
	if err := svc.Retry(row.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if queue.queuedCount() != 1 {
		t.Fatalf("expected 1 queued delivery, got %d", queue.queuedCount())
	}
}

func TestRetryInFlightIsNoOp(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	queue := newFakeQueue()
	row := failedRow(1, 10, models.WebhookEventInvoicePaid)
	if err := logs.Create(row); err != nil {
		t.Fatal(err)
	}

	svc := NewAdminRetryService(logs, queue)
	if err := svc.Retry(row.ID); err != nil {
		t.Fatalf("first retry failed: %v", err)
	}
	if err := svc.Retry(row.ID); err != ErrInFlight {
		t.Fatalf("expected ErrInFlight, got %v", err)
	}
	if queue.queuedCount() != 1 {
		t.Fatalf("expected 1 queued delivery, got %d", queue.queuedCount())
	}
}

func TestRetryConcurrentSameKey(t *testing.T) {
	t.Parallel()

	logs := newFakeLogRepo()
	queue := newFakeQueue()
	row := failedRow(1, 10, models.WebhookEventInvoicePaid)
	if err := logs.Create(row); err != nil {
		t.Fatal(err)
	}
	svc := NewAdminRetryService(logs, queue)

	const racers = 16
	var wg sync.WaitGroup
	errs := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs <- svc.Retry(row.ID)
		}()
	}
	wg.Wait()
	close(errs)

	var wins, inflight int
	for err := range errs {
		switch err {
		case nil:
			wins++
		case ErrInFlight:
			inflight++
		default:
			t.Errorf("unexpected error: %v", err)
		}
	}
	if wins != 1 {
		t.Fatalf("expected exactly one winning retry, got %d", wins)
	}
	if queue.queuedCount() != 1 {
		t.Fatalf("expected 1 queued delivery, got %d", queue.queuedCount())
	}
}

func TestMemoryDeduperLifecycle(t *testing.T) {
	t.Parallel()

	d := NewMemoryDeduper()
	won, err := d.TryAcquire("store:1:invoice:2:invoice.paid")
	if err != nil || !won {
		t.Fatalf("expected first acquire to win, got won=%v err=%v", won, err)
	}
	if !d.IsInflight("store:1:invoice:2:invoice.paid") {
		t.Fatal("key should be in flight after acquire")
	}
	won, _ = d.TryAcquire("store:1:invoice:2:invoice.paid")
	if won {
		t.Fatal("second acquire must lose")
	}
	d.Release("store:1:invoice:2:invoice.paid")
	won, _ = d.TryAcquire("store:1:invoice:2:invoice.paid")
	if !won {
		t.Fatal("acquire after release should win")
	}
}
