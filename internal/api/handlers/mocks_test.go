package handlers_test

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// --- Mocks ---

// MockInquiryService
type MockInquiryService struct {
	mock.Mock
}

func (m *MockInquiryService) CreateInquiry(ctx context.Context, tenant models.Actor, params services.CreateInquiryParams) (*models.Inquiry, error) {
	args := m.Called(ctx, tenant, params)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) GetInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ListInquiries(ctx context.Context, actor models.Actor, status *models.InquiryStatus, limit int) ([]models.Inquiry, error) {
	args := m.Called(ctx, actor, status, limit)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) RespondToInquiry(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, message, nextAction string) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, message, nextAction)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ScheduleViewing(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, scheduledDate time.Time, notes string) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, scheduledDate, notes)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) UpdateStatus(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, newStatus models.InquiryStatus) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, newStatus)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) MarkRead(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID) error {
	args := m.Called(ctx, actor, inquiryID)
	return args.Error(0)
}

func (m *MockInquiryService) AddCommunication(ctx context.Context, actor models.Actor, inquiryID primitive.ObjectID, channel models.ContactChannel, direction models.CommDirection, text string) (*models.Inquiry, error) {
	args := m.Called(ctx, actor, inquiryID, channel, direction, text)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.Inquiry), args.Error(1)
}

func (m *MockInquiryService) ExpireDue(ctx context.Context, now time.Time) (int, error) {
	args := m.Called(ctx, now)
	return args.Int(0), args.Error(1)
}

// MockPropertyService
type MockPropertyService struct {
	mock.Mock
}

func (m *MockPropertyService) GetPropertyAvailability(ctx context.Context, propertyID primitive.ObjectID) (*models.PropertyAvailability, error) {
	args := m.Called(ctx, propertyID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*models.PropertyAvailability), args.Error(1)
}

func (m *MockPropertyService) IncrementInquiryCount(ctx context.Context, propertyID primitive.ObjectID, delta int64) error {
	args := m.Called(ctx, propertyID, delta)
	return args.Error(0)
}

func (m *MockPropertyService) SetPropertyStatus(ctx context.Context, actor models.Actor, propertyID primitive.ObjectID, status models.PropertyStatus) error {
	args := m.Called(ctx, actor, propertyID, status)
	return args.Error(0)
}

func (m *MockPropertyService) ReconcileInquiryCounts(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}
