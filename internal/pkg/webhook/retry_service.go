package webhook

import (
	"errors"

	"gorm.io/gorm"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
)

var (
	// ErrNotFound is returned when the referenced log row does not exist.
	ErrNotFound = errors.New("webhook: delivery log not found")
	// ErrAlreadyDelivered is returned when a success is already recorded for
	// the same (store, subject, event type) tuple.
	ErrAlreadyDelivered = errors.New("webhook: event already delivered")
)

// Enqueuer queues a delivery for the dispatcher workers.
type Enqueuer interface {
	Enqueue(row *models.WebhookLog) error
}

// AdminRetryService handles operator-triggered redelivery of failed webhooks.
// It never double-fires a merchant webhook for the same business event: a
// recorded success short-circuits, and an in-flight delivery makes the retry
// a no-op instead of queuing a duplicate.
type AdminRetryService struct {
	logs  repository.WebhookLogRepository
	queue Enqueuer
}

// NewAdminRetryService creates the retry service.
func NewAdminRetryService(logs repository.WebhookLogRepository, queue Enqueuer) *AdminRetryService {
	return &AdminRetryService{logs: logs, queue: queue}
}

// Retry requeues the delivery identified by logID. It returns ErrNotFound,
// ErrAlreadyDelivered or ErrInFlight when the retry cannot proceed.
func (s *AdminRetryService) Retry(logID uint) error {
	row, err := s.logs.GetByID(logID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return ErrNotFound
		}
		return err
	}

	if row.Success {
		return ErrAlreadyDelivered
	}
	delivered, err := s.logs.HasSuccessFor(row.StoreID, row.InvoiceID, row.SubscriptionID, row.EventType)
	if err != nil {
		return err
	}
	if delivered {
		return ErrAlreadyDelivered
	}

	return s.queue.Enqueue(row)
}
