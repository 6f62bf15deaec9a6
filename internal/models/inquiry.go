package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// InquiryStatus is the lifecycle state of an inquiry thread.
type InquiryStatus string

const (
	StatusPending          InquiryStatus = "pending"
	StatusResponded        InquiryStatus = "responded"
	StatusViewingScheduled InquiryStatus = "viewing-scheduled"
	StatusRented           InquiryStatus = "rented"
	StatusRejected         InquiryStatus = "rejected"
	StatusExpired          InquiryStatus = "expired"
)

// Terminal reports whether no further transitions are permitted from s.
func (s InquiryStatus) Terminal() bool {
	switch s {
	case StatusRented, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// ActiveStatuses returns the statuses that count as an "active" inquiry
// for the one-active-inquiry-per-(property,tenant) rule.
func ActiveStatuses() []InquiryStatus {
	return []InquiryStatus{StatusPending, StatusResponded, StatusViewingScheduled}
}

// InquiryType classifies what the tenant is asking for.
type InquiryType string

const (
	InquiryTypeGeneral  InquiryType = "general"
	InquiryTypeViewing  InquiryType = "viewing"
	InquiryTypeRental   InquiryType = "rental"
	InquiryTypeQuestion InquiryType = "question"
)

// ValidInquiryType reports whether t is one of the known inquiry types.
func ValidInquiryType(t InquiryType) bool {
	switch t {
	case InquiryTypeGeneral, InquiryTypeViewing, InquiryTypeRental, InquiryTypeQuestion:
		return true
	}
	return false
}

// InquiryPriority is an owner-facing triage hint.
type InquiryPriority string

const (
	PriorityLow    InquiryPriority = "low"
	PriorityMedium InquiryPriority = "medium"
	PriorityHigh   InquiryPriority = "high"
	PriorityUrgent InquiryPriority = "urgent"
)

// ContactChannel identifies how a party prefers to be (or was) reached.
type ContactChannel string

const (
	ChannelEmail    ContactChannel = "email"
	ChannelPhone    ContactChannel = "phone"
	ChannelSMS      ContactChannel = "sms"
	ChannelWhatsApp ContactChannel = "whatsapp"
)

// CommDirection is the direction of a communication log entry relative to
// the property owner.
type CommDirection string

const (
	DirectionInbound  CommDirection = "inbound"
	DirectionOutbound CommDirection = "outbound"
)

// ContactInfo is a snapshot of the tenant's contact details captured at
// inquiry creation time. Later profile edits do not change it.
type ContactInfo struct {
	Name             string         `bson:"name" json:"name"`
	Phone            string         `bson:"phone" json:"phone"`
	Email            string         `bson:"email" json:"email"`
	PreferredChannel ContactChannel `bson:"preferred_channel,omitempty" json:"preferred_channel,omitempty"`
}

// Requirements holds optional structured renter preferences. Informational
// only; never validated against the property.
type Requirements struct {
	MoveInDate          *time.Time `bson:"move_in_date,omitempty" json:"move_in_date,omitempty"`
	LeaseDurationMonths int        `bson:"lease_duration_months,omitempty" json:"lease_duration_months,omitempty"`
	BudgetMin           float64    `bson:"budget_min,omitempty" json:"budget_min,omitempty"`
	BudgetMax           float64    `bson:"budget_max,omitempty" json:"budget_max,omitempty"`
	Occupants           int        `bson:"occupants,omitempty" json:"occupants,omitempty"`
	Children            int        `bson:"children,omitempty" json:"children,omitempty"`
	Employment          string     `bson:"employment,omitempty" json:"employment,omitempty"`
	MonthlyIncome       float64    `bson:"monthly_income,omitempty" json:"monthly_income,omitempty"`
}

// Viewing tracks the viewing sub-thread of an inquiry.
type Viewing struct {
	RequestedDate *time.Time `bson:"requested_date,omitempty" json:"requested_date,omitempty"`
	ScheduledDate *time.Time `bson:"scheduled_date,omitempty" json:"scheduled_date,omitempty"`
	CompletedDate *time.Time `bson:"completed_date,omitempty" json:"completed_date,omitempty"`
	Notes         string     `bson:"notes,omitempty" json:"notes,omitempty"`
	Feedback      string     `bson:"feedback,omitempty" json:"feedback,omitempty"`
}

// Communication is one entry of the append-only communication log.
// Entries are never edited or reordered; Seq is monotonic per inquiry.
type Communication struct {
	Seq            int            `bson:"seq" json:"seq"`
	Channel        ContactChannel `bson:"channel" json:"channel"`
	Direction      CommDirection  `bson:"direction" json:"direction"`
	Message        string         `bson:"message" json:"message"`
	Timestamp      time.Time      `bson:"timestamp" json:"timestamp"`
	DeliveryStatus string         `bson:"delivery_status,omitempty" json:"delivery_status,omitempty"`
}

// Response is the owner's reply on an inquiry.
type Response struct {
	Message     string             `bson:"message" json:"message"`
	RespondedBy primitive.ObjectID `bson:"responded_by" json:"responded_by"`
	RespondedAt time.Time          `bson:"responded_at" json:"responded_at"`
	NextAction  string             `bson:"next_action,omitempty" json:"next_action,omitempty"`
}

// Inquiry represents one prospective-tenant-to-property contact thread.
// OwnerID is denormalized from the property at creation time so ownership
// checks never need a second lookup.
type Inquiry struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id,omitempty"`
	PropertyID primitive.ObjectID `bson:"property_id" json:"property_id"`
	TenantID   primitive.ObjectID `bson:"tenant_id" json:"tenant_id"`
	OwnerID    primitive.ObjectID `bson:"owner_id" json:"owner_id"`

	Type     InquiryType     `bson:"type" json:"type"`
	Priority InquiryPriority `bson:"priority" json:"priority"`
	Status   InquiryStatus   `bson:"status" json:"status"`

	Contact      ContactInfo   `bson:"contact" json:"contact"`
	Message      string        `bson:"message" json:"message"`
	Requirements *Requirements `bson:"requirements,omitempty" json:"requirements,omitempty"`

	Viewing        *Viewing        `bson:"viewing,omitempty" json:"viewing,omitempty"`
	Communications []Communication `bson:"communications" json:"communications"`
	Response       *Response       `bson:"response,omitempty" json:"response,omitempty"`

	// Analytics
	ReadAt       *time.Time `bson:"read_at,omitempty" json:"read_at,omitempty"`
	RespondedAt  *time.Time `bson:"responded_at,omitempty" json:"responded_at,omitempty"`
	Interactions int        `bson:"interactions" json:"interactions"`

	ExpiresAt time.Time  `bson:"expires_at" json:"expires_at"`
	ExpiredAt *time.Time `bson:"expired_at,omitempty" json:"expired_at,omitempty"`

	// Version rejects lost updates from concurrent owner sessions; every
	// mutation filters on the observed value and increments it.
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Deleted   bool      `bson:"deleted" json:"-"` // Soft delete flag; never set by normal flow
}

// Participant reports whether actorID is a party to this inquiry thread.
func (i *Inquiry) Participant(actorID primitive.ObjectID) bool {
	return actorID == i.TenantID || actorID == i.OwnerID
}
