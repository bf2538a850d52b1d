package webhook

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/gofiber/fiber/v2/log"
	"github.com/google/uuid"

	"github.com/stacksgate/stacksgate/app/models"
	"github.com/stacksgate/stacksgate/app/repository"
)

// Event is the envelope POSTed to merchant webhook endpoints.
type Event struct {
	ID        string          `json:"id"`
	Type      string          `json:"type"`
	CreatedAt int64           `json:"createdAt"`
	Data      json.RawMessage `json:"data"`
}

// Notifier records and enqueues merchant webhook events. Emitting the same
// business event twice is a no-op once a successful delivery exists.
type Notifier struct {
	logs  repository.WebhookLogRepository
	queue Enqueuer
}

// NewNotifier creates a notifier.
func NewNotifier(logs repository.WebhookLogRepository, queue Enqueuer) *Notifier {
	return &Notifier{logs: logs, queue: queue}
}

// NotifyInvoice emits an invoice event to the store's webhook endpoint. The
// invoice-level webhook URL overrides the store default; with neither set the
// event is dropped silently.
func (n *Notifier) NotifyInvoice(store *models.Store, invoice *models.Invoice, eventType string, data any) error {
	url := store.WebhookURL
	if invoice.WebhookURL != "" {
		url = invoice.WebhookURL
	}
	invoiceID := invoice.ID
	return n.notify(store, url, eventType, &invoiceID, nil, data)
}

// NotifySubscription emits a subscription event to the store's webhook endpoint.
func (n *Notifier) NotifySubscription(store *models.Store, sub *models.Subscription, eventType string, data any) error {
	subID := sub.ID
	return n.notify(store, store.WebhookURL, eventType, nil, &subID, data)
}

func (n *Notifier) notify(store *models.Store, url, eventType string, invoiceID, subscriptionID *uint, data any) error {
	if url == "" {
		return nil
	}

	delivered, err := n.logs.HasSuccessFor(store.ID, invoiceID, subscriptionID, eventType)
	if err != nil {
		return fmt.Errorf("failed to check delivery state: %w", err)
	}
	if delivered {
		return nil
	}

	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal event data: %w", err)
	}
	payload, err := json.Marshal(Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		CreatedAt: time.Now().Unix(),
		Data:      raw,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	row := &models.WebhookLog{
		StoreID:        store.ID,
		InvoiceID:      invoiceID,
		SubscriptionID: subscriptionID,
		EventType:      eventType,
		URL:            url,
		Payload:        string(payload),
	}
	if err := n.logs.Create(row); err != nil {
		return fmt.Errorf("failed to record event: %w", err)
	}

	if err := n.queue.Enqueue(row); err != nil {
		if err == ErrInFlight {
			log.Infof("[Webhook] Event %s for store %d already in flight", eventType, store.ID)
			return nil
		}
		return err
	}
	return nil
}
