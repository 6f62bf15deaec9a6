package tasks

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/hibiken/asynq"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/config"
	"github.com/fahdi/pakpropertyapp-sub001/internal/notify"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// MockInquirySweeper mocks the single inquiry service method the expire
// handler consumes.
type MockInquirySweeper struct {
	mock.Mock
	services.IInquiryService
}

func (m *MockInquirySweeper) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// MockPropertyReconciler mocks the property service method the
// reconciliation handler consumes.
type MockPropertyReconciler struct {
	mock.Mock
	services.IPropertyService
}

func (m *MockPropertyReconciler) ReconcileInquiryCounts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

func taskTestConfig() *config.Config {
	return &config.Config{
		AppName:           "PakProperty",
		SmtpFromAddress:   "noreply@pakproperty.example.com",
		SweepInterval:     10 * time.Minute,
		ReconcileInterval: time.Hour,
	}
}

func TestHandleInquiryExpireTask(t *testing.T) {
	sweeper := new(MockInquirySweeper)
	sweeper.On("ExpireDue", mock.Anything, mock.Anything).Return(3, nil)

	p := NewTaskProcessor(taskTestConfig(), nil, sweeper, nil, nil)
	err := p.HandleInquiryExpireTask(context.Background(), asynq.NewTask(TypeInquiryExpire, nil))
	require.NoError(t, err)
	sweeper.AssertExpectations(t)
}

func TestHandleInquiryExpireTask_ErrorPropagatesForRetry(t *testing.T) {
	sweeper := new(MockInquirySweeper)
	sweeper.On("ExpireDue", mock.Anything, mock.Anything).Return(0, assert.AnError)

	p := NewTaskProcessor(taskTestConfig(), nil, sweeper, nil, nil)
	err := p.HandleInquiryExpireTask(context.Background(), asynq.NewTask(TypeInquiryExpire, nil))
	require.Error(t, err)
}

func TestHandlePropertyReconcileTask(t *testing.T) {
	reconciler := new(MockPropertyReconciler)
	reconciler.On("ReconcileInquiryCounts", mock.Anything).Return(2, nil)

	p := NewTaskProcessor(taskTestConfig(), nil, nil, reconciler, nil)
	err := p.HandlePropertyReconcileTask(context.Background(), asynq.NewTask(TypePropertyReconcile, nil))
	require.NoError(t, err)
	reconciler.AssertExpectations(t)
}

func TestHandleNotifyDeliverTask_StoresMockNotification(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	cfg := taskTestConfig()
	sender := notify.NewRedisSender(client, cfg)
	p := NewTaskProcessor(cfg, sender, nil, nil, nil)

	payload := notify.DeliverPayload{
		Event:       notify.EventInquiryCreated,
		InquiryID:   primitive.NewObjectID().Hex(),
		PropertyID:  primitive.NewObjectID().Hex(),
		TenantName:  "Ahmed Khan",
		TenantEmail: "ahmed.khan@example.com",
		Message:     "Is this apartment still available?",
	}
	data, err := json.Marshal(payload)
	require.NoError(t, err)

	err = p.HandleNotifyDeliverTask(context.Background(), asynq.NewTask(notify.TypeDeliver, data))
	require.NoError(t, err)

	key := "mocknotify:ahmed.khan@example.com:" + notify.EventInquiryCreated
	stored, err := client.Get(context.Background(), key).Result()
	require.NoError(t, err)

	var captured map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(stored), &captured))
	assert.Equal(t, notify.EventInquiryCreated, captured["event"])
	assert.Contains(t, captured["body"], payload.InquiryID)
	assert.Contains(t, captured["body"], "Ahmed Khan")
}

func TestHandleNotifyDeliverTask_BadPayloadSkipsRetry(t *testing.T) {
	p := NewTaskProcessor(taskTestConfig(), nil, nil, nil, nil)

	err := p.HandleNotifyDeliverTask(context.Background(), asynq.NewTask(notify.TypeDeliver, []byte("{not json")))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))

	// Missing recipient is also unretryable
	data, marshalErr := json.Marshal(notify.DeliverPayload{Event: notify.EventInquiryResponded})
	require.NoError(t, marshalErr)
	err = p.HandleNotifyDeliverTask(context.Background(), asynq.NewTask(notify.TypeDeliver, data))
	require.Error(t, err)
	assert.True(t, errors.Is(err, asynq.SkipRetry))
}

func TestRenderNotification_SubjectCarriesEventBracket(t *testing.T) {
	when := time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC)
	payload := notify.DeliverPayload{
		Event:        notify.EventViewingScheduled,
		InquiryID:    primitive.NewObjectID().Hex(),
		TenantName:   "Sana Malik",
		TenantEmail:  "sana.malik@example.com",
		Message:      "Bring your CNIC copy",
		ScheduledFor: when,
	}

	subject, body := renderNotification(payload)
	assert.Contains(t, subject, "["+notify.EventViewingScheduled+"]")
	assert.Contains(t, body, "Sana Malik")
	assert.Contains(t, body, when.Format(time.RFC1123))
	assert.Contains(t, body, payload.InquiryID)
}
