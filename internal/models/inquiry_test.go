package models

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

func TestInquiryStatus_Terminal(t *testing.T) {
	assert.False(t, StatusPending.Terminal())
	assert.False(t, StatusResponded.Terminal())
	assert.False(t, StatusViewingScheduled.Terminal())
	assert.True(t, StatusRented.Terminal())
	assert.True(t, StatusRejected.Terminal())
	assert.True(t, StatusExpired.Terminal())
}

func TestActiveStatuses(t *testing.T) {
	active := ActiveStatuses()
	assert.ElementsMatch(t, []InquiryStatus{StatusPending, StatusResponded, StatusViewingScheduled}, active)
	for _, s := range active {
		assert.False(t, s.Terminal())
	}
}

func TestInquiry_Participant(t *testing.T) {
	tenantID := primitive.NewObjectID()
	ownerID := primitive.NewObjectID()
	inq := &Inquiry{TenantID: tenantID, OwnerID: ownerID}

	assert.True(t, inq.Participant(tenantID))
	assert.True(t, inq.Participant(ownerID))
	assert.False(t, inq.Participant(primitive.NewObjectID()))
}

func TestRole_ManagesListings(t *testing.T) {
	assert.False(t, RoleTenant.ManagesListings())
	assert.True(t, RoleOwner.ManagesListings())
	assert.True(t, RoleAgent.ManagesListings())
	assert.True(t, RoleAdmin.ManagesListings())
}
