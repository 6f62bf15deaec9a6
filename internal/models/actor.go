package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// Role is the closed set of actor roles the core recognises. Actors are
// resolved and authorised by the external auth subsystem; the core trusts
// the (id, role) pair it is handed per call.
type Role string

const (
	RoleTenant Role = "tenant"
	RoleOwner  Role = "owner"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

// ValidRole reports whether r is one of the known roles.
func ValidRole(r Role) bool {
	switch r {
	case RoleTenant, RoleOwner, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// ManagesListings reports whether the role can act on the owner side of an
// inquiry (respond, schedule, resolve). Replaces per-route string checks
// with one capability test shared by all operations.
func (r Role) ManagesListings() bool {
	switch r {
	case RoleOwner, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// Actor is a resolved, authorised caller identity.
type Actor struct {
	ID   primitive.ObjectID
	Role Role
}
