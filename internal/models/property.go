package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// PropertyStatus is the availability state of a property listing.
type PropertyStatus string

const (
	PropertyAvailable        PropertyStatus = "available"
	PropertyRented           PropertyStatus = "rented"
	PropertyUnderMaintenance PropertyStatus = "under-maintenance"
	PropertyReserved         PropertyStatus = "reserved"
)

// ValidPropertyStatus reports whether s is one of the known statuses.
func ValidPropertyStatus(s PropertyStatus) bool {
	switch s {
	case PropertyAvailable, PropertyRented, PropertyUnderMaintenance, PropertyReserved:
		return true
	}
	return false
}

// Property is the slice of a listing record the inquiry core consumes.
// The listing directory owns everything else; the core only reads
// availability and maintains the derived Inquiries counter, which must
// equal the number of non-deleted inquiry documents referencing the
// property.
type Property struct {
	ID      primitive.ObjectID  `bson:"_id,omitempty" json:"id,omitempty"`
	OwnerID primitive.ObjectID  `bson:"owner_id" json:"owner_id"`
	AgentID *primitive.ObjectID `bson:"agent_id,omitempty" json:"agent_id,omitempty"`

	Title       string         `bson:"title" json:"title"`
	City        string         `bson:"city,omitempty" json:"city,omitempty"`
	MonthlyRent float64        `bson:"monthly_rent,omitempty" json:"monthly_rent,omitempty"`
	Status      PropertyStatus `bson:"status" json:"status"`

	Inquiries int64 `bson:"inquiries" json:"inquiries"`

	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
	Deleted   bool      `bson:"deleted" json:"-"`
}

// PropertyAvailability is the read contract the inquiry core needs from
// the listing directory.
type PropertyAvailability struct {
	OwnerID primitive.ObjectID  `json:"owner_id"`
	AgentID *primitive.ObjectID `json:"agent_id,omitempty"`
	Status  PropertyStatus      `json:"status"`
}
