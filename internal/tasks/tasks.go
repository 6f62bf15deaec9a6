package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"

	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/metrics"
	"github.com/fahdi/pakpropertyapp-sub001/internal/notify"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// TaskType defines the type of a background task.
const (
	TypeInquiryExpire     = "inquiry:expire"
	TypePropertyReconcile = "property:reconcile_counts"
)

// --- Task Client (Enqueuing tasks) ---

func NewClient(rdb *redis.Client) *asynq.Client {
	clientOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}
	return asynq.NewClient(clientOpt)
}

// --- Task Server (Processing tasks) ---

// TaskProcessor handles the processing of tasks.
// It holds dependencies needed by task handlers.
type TaskProcessor struct {
	cfg        *config.Config
	sender     notify.Sender
	inquirySvc services.IInquiryService
	propSvc    services.IPropertyService
	metrics    *metrics.InquiryMetrics
}

func NewTaskProcessor(
	cfg *config.Config,
	sender notify.Sender,
	inquirySvc services.IInquiryService,
	propSvc services.IPropertyService,
	m *metrics.InquiryMetrics,
) *TaskProcessor {
	return &TaskProcessor{
		cfg:        cfg,
		sender:     sender,
		inquirySvc: inquirySvc,
		propSvc:    propSvc,
		metrics:    m,
	}
}

// SetupServer configures and returns an Asynq server instance with the
// processor's handlers registered. The caller runs it.
func SetupServer(rdb *redis.Client, processor *TaskProcessor) (*asynq.Server, *asynq.ServeMux) {
	serverOpt := asynq.RedisClientOpt{
		Addr:     rdb.Options().Addr,
		Password: rdb.Options().Password,
		DB:       rdb.Options().DB,
	}

	srv := asynq.NewServer(
		serverOpt,
		asynq.Config{
			Queues: map[string]int{
				"critical":   6,
				"default":    3,
				notify.Queue: 4,
				"low":        1,
			},
			ErrorHandler: asynq.ErrorHandlerFunc(func(ctx context.Context, task *asynq.Task, err error) {
				log.Printf("[Asynq Error] Task Type: %s, Payload: %s, Error: %v", task.Type(), string(task.Payload()), err)
			}),
		},
	)

	mux := asynq.NewServeMux()
	mux.HandleFunc(TypeInquiryExpire, processor.HandleInquiryExpireTask)
	mux.HandleFunc(TypePropertyReconcile, processor.HandlePropertyReconcileTask)
	mux.HandleFunc(notify.TypeDeliver, processor.HandleNotifyDeliverTask)

	return srv, mux
}

// SetupScheduler registers the periodic sweep and reconciliation entries.
// The caller runs the returned scheduler alongside the task server.
func SetupScheduler(rdb *redis.Client, cfg *config.Config) (*asynq.Scheduler, error) {
	scheduler := asynq.NewScheduler(
		asynq.RedisClientOpt{
			Addr:     rdb.Options().Addr,
			Password: rdb.Options().Password,
			DB:       rdb.Options().DB,
		},
		&asynq.SchedulerOpts{Location: time.UTC},
	)

	sweepSpec := fmt.Sprintf("@every %s", cfg.SweepInterval)
	if _, err := scheduler.Register(sweepSpec, asynq.NewTask(TypeInquiryExpire, nil)); err != nil {
		return nil, fmt.Errorf("failed to register expiration sweep: %w", err)
	}

	reconcileSpec := fmt.Sprintf("@every %s", cfg.ReconcileInterval)
	if _, err := scheduler.Register(reconcileSpec, asynq.NewTask(TypePropertyReconcile, nil)); err != nil {
		return nil, fmt.Errorf("failed to register counter reconciliation: %w", err)
	}

	return scheduler, nil
}

// --- Task Handlers ---

// HandleInquiryExpireTask runs one expiration sweep over inquiries whose
// deadline has passed.
func (p *TaskProcessor) HandleInquiryExpireTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting inquiry expiration sweep...")

	expired, err := p.inquirySvc.ExpireDue(ctx, time.Now().UTC())
	if err != nil {
		log.Printf("Expiration sweep finished with error after %d expirations: %v", expired, err)
		return err
	}

	log.Printf("Expiration sweep finished. Expired %d inquiries.", expired)
	return nil
}

// HandlePropertyReconcileTask recounts active inquiries per property and
// corrects counter drift left by failed best-effort increments.
func (p *TaskProcessor) HandlePropertyReconcileTask(ctx context.Context, t *asynq.Task) error {
	log.Println("Starting inquiry counter reconciliation...")

	fixed, err := p.propSvc.ReconcileInquiryCounts(ctx)
	if err != nil {
		log.Printf("Counter reconciliation failed after %d corrections: %v", fixed, err)
		return err
	}

	log.Printf("Counter reconciliation finished. Corrected %d properties.", fixed)
	return nil
}

// HandleNotifyDeliverTask renders and sends one lifecycle notification.
func (p *TaskProcessor) HandleNotifyDeliverTask(ctx context.Context, t *asynq.Task) error {
	var payload notify.DeliverPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		return fmt.Errorf("failed to unmarshal notify payload: %v: %w", err, asynq.SkipRetry)
	}
	if payload.TenantEmail == "" {
		return fmt.Errorf("notify payload for inquiry %s has no recipient: %w", payload.InquiryID, asynq.SkipRetry)
	}

	subject, body := renderNotification(payload)

	fromAddress := p.cfg.SmtpFromAddress
	if fromAddress == "" {
		fromAddress = "noreply@" + strings.ToLower(p.cfg.AppName) + ".pk"
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("To: %s\r\n", payload.TenantEmail))
	sb.WriteString(fmt.Sprintf("From: %s\r\n", fromAddress))
	sb.WriteString(fmt.Sprintf("Subject: %s\r\n", subject))
	sb.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	sb.WriteString(fmt.Sprintf("Message-ID: <%s@%s>\r\n", uuid.NewString(), strings.ToLower(p.cfg.AppName)))
	sb.WriteString("MIME-Version: 1.0\r\n")
	sb.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	sb.WriteString("\r\n")
	sb.WriteString(body)
	sb.WriteString("\r\n")

	if err := p.sender.Send(ctx, []string{payload.TenantEmail}, subject, []byte(sb.String())); err != nil {
		log.Printf("Notification delivery failed for inquiry %s (will retry): %v", payload.InquiryID, err)
		p.metrics.ObserveNotify(payload.Event, false)
		return err
	}

	p.metrics.ObserveNotify(payload.Event, true)
	log.Printf("Notification delivered: event=%s inquiry=%s to=%s", payload.Event, payload.InquiryID, payload.TenantEmail)
	return nil
}

// renderNotification produces the subject and body for a lifecycle event.
// The subject keeps the [event] bracket so mock capture can key on it.
func renderNotification(payload notify.DeliverPayload) (string, string) {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Dear %s,\r\n\r\n", payload.TenantName))

	var subject string
	switch payload.Event {
	case notify.EventInquiryCreated:
		subject = fmt.Sprintf("[%s] Your inquiry has been received", payload.Event)
		sb.WriteString("Thank you for your inquiry. The property owner has been notified and will respond shortly.\r\n")
	case notify.EventInquiryResponded:
		subject = fmt.Sprintf("[%s] The owner has responded to your inquiry", payload.Event)
		sb.WriteString("The property owner has responded to your inquiry:\r\n\r\n")
		sb.WriteString(payload.Message)
		sb.WriteString("\r\n")
	case notify.EventViewingScheduled:
		subject = fmt.Sprintf("[%s] Your viewing has been scheduled", payload.Event)
		sb.WriteString(fmt.Sprintf("A viewing has been scheduled for %s.\r\n", payload.ScheduledFor.Format(time.RFC1123)))
		if payload.Message != "" {
			sb.WriteString("\r\nNotes: " + payload.Message + "\r\n")
		}
	default:
		subject = fmt.Sprintf("[%s] Update on your inquiry", payload.Event)
		sb.WriteString("There is an update on your inquiry.\r\n")
	}

	sb.WriteString(fmt.Sprintf("\r\nInquiry reference: %s\r\n", payload.InquiryID))
	return subject, sb.String()
}
