package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"github.com/fahdi/pakpropertyapp-sub001/internal/metrics"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

// TypeDeliver is the asynq task type for notification delivery.
const TypeDeliver = "notify:deliver"

// Queue is the asynq queue notifications go to.
const Queue = "notify"

// Notification events.
const (
	EventInquiryCreated   = "inquiry_created"
	EventInquiryResponded = "inquiry_responded"
	EventViewingScheduled = "viewing_scheduled"
)

// DeliverPayload is the task payload for a notification delivery.
type DeliverPayload struct {
	Event        string    `json:"event"`
	InquiryID    string    `json:"inquiry_id"`
	PropertyID   string    `json:"property_id"`
	TenantName   string    `json:"tenant_name"`
	TenantEmail  string    `json:"tenant_email"`
	Message      string    `json:"message"`
	ScheduledFor time.Time `json:"scheduled_for,omitempty"`
}

// Dispatcher is the side channel invoked on inquiry lifecycle events.
// Implementations must never fail the calling operation: dispatch errors
// are logged and counted, not returned.
type Dispatcher interface {
	InquiryCreated(ctx context.Context, inq *models.Inquiry)
	InquiryResponded(ctx context.Context, inq *models.Inquiry)
	ViewingScheduled(ctx context.Context, inq *models.Inquiry)
}

// AsynqDispatcher enqueues delivery tasks on the notify queue. Enqueueing
// is the only work done on the request path; actual delivery happens in
// the background worker.
type AsynqDispatcher struct {
	client  *asynq.Client
	metrics *metrics.InquiryMetrics
}

func NewAsynqDispatcher(client *asynq.Client, m *metrics.InquiryMetrics) *AsynqDispatcher {
	return &AsynqDispatcher{client: client, metrics: m}
}

func (d *AsynqDispatcher) InquiryCreated(ctx context.Context, inq *models.Inquiry) {
	d.enqueue(ctx, EventInquiryCreated, inq, inq.Message, nil)
}

func (d *AsynqDispatcher) InquiryResponded(ctx context.Context, inq *models.Inquiry) {
	message := ""
	if inq.Response != nil {
		message = inq.Response.Message
	}
	d.enqueue(ctx, EventInquiryResponded, inq, message, nil)
}

func (d *AsynqDispatcher) ViewingScheduled(ctx context.Context, inq *models.Inquiry) {
	var at *time.Time
	notes := ""
	if inq.Viewing != nil {
		at = inq.Viewing.ScheduledDate
		notes = inq.Viewing.Notes
	}
	d.enqueue(ctx, EventViewingScheduled, inq, notes, at)
}

func (d *AsynqDispatcher) enqueue(ctx context.Context, event string, inq *models.Inquiry, message string, scheduledFor *time.Time) {
	payload := DeliverPayload{
		Event:       event,
		InquiryID:   inq.ID.Hex(),
		PropertyID:  inq.PropertyID.Hex(),
		TenantName:  inq.Contact.Name,
		TenantEmail: inq.Contact.Email,
		Message:     message,
	}
	if scheduledFor != nil {
		payload.ScheduledFor = *scheduledFor
	}

	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("Notification payload marshal failed for inquiry %s (%s): %v", inq.ID.Hex(), event, err)
		d.metrics.ObserveNotify(event, false)
		return
	}

	task := asynq.NewTask(TypeDeliver, data)
	if _, err := d.client.EnqueueContext(ctx, task, asynq.Queue(Queue), asynq.MaxRetry(3)); err != nil {
		// Never surfaced to the caller; the transition already happened.
		log.Printf("Notification enqueue failed for inquiry %s (%s): %v", inq.ID.Hex(), event, err)
		d.metrics.ObserveNotify(event, false)
		return
	}
	d.metrics.ObserveNotify(event, true)
}

// NopDispatcher discards all events. Used in tests.
type NopDispatcher struct{}

func (NopDispatcher) InquiryCreated(context.Context, *models.Inquiry)   {}
func (NopDispatcher) InquiryResponded(context.Context, *models.Inquiry) {}
func (NopDispatcher) ViewingScheduled(context.Context, *models.Inquiry) {}
