package handlers_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/fahdi/pakpropertyapp-sub001/internal/api/handlers"
	"github.com/fahdi/pakpropertyapp-sub001/internal/api/middleware"
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
	"github.com/fahdi/pakpropertyapp-sub001/internal/services"
)

// injectActor fakes AuthMiddleware by putting a fixed actor in context.
func injectActor(actor models.Actor) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Set(middleware.ContextKeyActor, actor)
		c.Next()
	}
}

func newInquiryRouter(actor models.Actor, svc services.IInquiryService) *gin.Engine {
	gin.SetMode(gin.TestMode)
	handler := handlers.NewRestInquiryHandler(svc)
	r := gin.New()
	r.Use(injectActor(actor))
	r.POST("/v1/inquiry", handler.CreateInquiry)
	r.GET("/v1/inquiry", handler.ListInquiries)
	r.GET("/v1/inquiry/:id", handler.GetInquiry)
	r.POST("/v1/inquiry/:id/respond", handler.RespondToInquiry)
	r.POST("/v1/inquiry/:id/viewing", handler.ScheduleViewing)
	r.PATCH("/v1/inquiry/:id/status", handler.UpdateStatus)
	r.POST("/v1/inquiry/:id/read", handler.MarkRead)
	r.POST("/v1/inquiry/:id/communication", handler.AddCommunication)
	return r
}

func TestCreateInquiry_Created(t *testing.T) {
	tenant := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(tenant, mockSvc)

	propertyID := primitive.NewObjectID()
	expected := &models.Inquiry{
		ID:         primitive.NewObjectID(),
		PropertyID: propertyID,
		TenantID:   tenant.ID,
		Status:     models.StatusPending,
	}
	mockSvc.On("CreateInquiry", mock.Anything, tenant, mock.MatchedBy(func(p services.CreateInquiryParams) bool {
		return p.PropertyID == propertyID && p.IdempotencyKey == "retry-key-1"
	})).Return(expected, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"property_id": propertyID.Hex(),
		"type":        "rental",
		"message":     "Is this apartment still available from next month?",
		"contact": map[string]string{
			"name":  "Ahmed Khan",
			"phone": "+92 300 1234567",
			"email": "ahmed.khan@example.com",
		},
	})
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-Idempotency-Key", "retry-key-1")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusCreated, w.Code)
	var respBody models.Inquiry
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	assert.Equal(t, expected.ID, respBody.ID)
	mockSvc.AssertExpectations(t)
}

func TestCreateInquiry_BadPropertyID(t *testing.T) {
	tenant := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(tenant, mockSvc)

	body, _ := json.Marshal(map[string]interface{}{
		"property_id": "not-an-object-id",
		"message":     "Is this apartment still available from next month?",
		"contact":     map[string]string{"name": "Ahmed Khan", "phone": "+92 300 1234567", "email": "a@b.pk"},
	})
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusBadRequest, w.Code)
	mockSvc.AssertNotCalled(t, "CreateInquiry")
}

func TestCreateInquiry_ConflictMapsTo409(t *testing.T) {
	tenant := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(tenant, mockSvc)

	propertyID := primitive.NewObjectID()
	mockSvc.On("CreateInquiry", mock.Anything, tenant, mock.Anything).
		Return(nil, services.E(services.KindConflict, "tenant already has an active inquiry"))

	body, _ := json.Marshal(map[string]interface{}{
		"property_id": propertyID.Hex(),
		"message":     "Is this apartment still available from next month?",
		"contact":     map[string]string{"name": "Ahmed Khan", "phone": "+92 300 1234567", "email": "a@b.pk"},
	})
	req, _ := http.NewRequest("POST", "/v1/inquiry", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusConflict, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestGetInquiry_NotFoundMapsTo404(t *testing.T) {
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(actor, mockSvc)

	inquiryID := primitive.NewObjectID()
	mockSvc.On("GetInquiry", mock.Anything, actor, inquiryID).
		Return(nil, services.E(services.KindNotFound, "inquiry not found"))

	req, _ := http.NewRequest("GET", "/v1/inquiry/"+inquiryID.Hex(), nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNotFound, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestRespondToInquiry_InvalidStateMapsTo422(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(owner, mockSvc)

	inquiryID := primitive.NewObjectID()
	mockSvc.On("RespondToInquiry", mock.Anything, owner, inquiryID, "Yes, it is available.", "").
		Return(nil, services.E(services.KindInvalidState, "inquiry is already expired"))

	body, _ := json.Marshal(map[string]string{"message": "Yes, it is available."})
	req, _ := http.NewRequest("POST", "/v1/inquiry/"+inquiryID.Hex()+"/respond", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestScheduleViewing_ForwardsDate(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(owner, mockSvc)

	inquiryID := primitive.NewObjectID()
	when := time.Now().Add(48 * time.Hour).UTC().Truncate(time.Second)
	expected := &models.Inquiry{ID: inquiryID, Status: models.StatusViewingScheduled}
	mockSvc.On("ScheduleViewing", mock.Anything, owner, inquiryID, mock.MatchedBy(func(d time.Time) bool {
		return d.Equal(when)
	}), "Bring your CNIC copy").Return(expected, nil)

	body, _ := json.Marshal(map[string]interface{}{
		"scheduled_date": when.Format(time.RFC3339),
		"notes":          "Bring your CNIC copy",
	})
	req, _ := http.NewRequest("POST", "/v1/inquiry/"+inquiryID.Hex()+"/viewing", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestUpdateStatus_InvalidTransitionMapsTo422(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(owner, mockSvc)

	inquiryID := primitive.NewObjectID()
	mockSvc.On("UpdateStatus", mock.Anything, owner, inquiryID, models.StatusRented).
		Return(nil, services.E(services.KindInvalidTransition, "cannot move inquiry from pending to rented"))

	body, _ := json.Marshal(map[string]string{"status": "rented"})
	req, _ := http.NewRequest("PATCH", "/v1/inquiry/"+inquiryID.Hex()+"/status", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestMarkRead_Success(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(owner, mockSvc)

	inquiryID := primitive.NewObjectID()
	mockSvc.On("MarkRead", mock.Anything, owner, inquiryID).Return(nil)

	req, _ := http.NewRequest("POST", "/v1/inquiry/"+inquiryID.Hex()+"/read", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestAddCommunication_ForbiddenMapsTo403(t *testing.T) {
	actor := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleTenant}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(actor, mockSvc)

	inquiryID := primitive.NewObjectID()
	mockSvc.On("AddCommunication", mock.Anything, actor, inquiryID,
		models.ChannelEmail, models.DirectionInbound, "Not my thread but trying anyway.").
		Return(nil, services.E(services.KindForbidden, "not a participant"))

	body, _ := json.Marshal(map[string]string{
		"channel":   "email",
		"direction": "inbound",
		"message":   "Not my thread but trying anyway.",
	})
	req, _ := http.NewRequest("POST", "/v1/inquiry/"+inquiryID.Hex()+"/communication", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusForbidden, w.Code)
	mockSvc.AssertExpectations(t)
}

func TestListInquiries_PassesStatusFilter(t *testing.T) {
	owner := models.Actor{ID: primitive.NewObjectID(), Role: models.RoleOwner}
	mockSvc := new(MockInquiryService)
	r := newInquiryRouter(owner, mockSvc)

	pending := models.StatusPending
	mockSvc.On("ListInquiries", mock.Anything, owner, &pending, 10).
		Return([]models.Inquiry{{ID: primitive.NewObjectID()}}, nil)

	req, _ := http.NewRequest("GET", "/v1/inquiry?status=pending&limit=10", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	var respBody map[string]interface{}
	assert.NoError(t, json.Unmarshal(w.Body.Bytes(), &respBody))
	data, ok := respBody["data"].([]interface{})
	assert.True(t, ok)
	assert.Len(t, data, 1)
	mockSvc.AssertExpectations(t)
}
