package services

import (
	"github.com/fahdi/pakpropertyapp-sub001/internal/models"
)

// The inquiry state machine. Pure transition logic with no side effects;
// all side effects belong to the inquiry service operations that consult
// it.
//
//	pending -> responded | viewing-scheduled | rejected | expired
//	responded -> viewing-scheduled | rejected | expired
//	viewing-scheduled -> rented | rejected | expired
//
// rented, rejected and expired are terminal.
var legalTransitions = map[models.InquiryStatus][]models.InquiryStatus{
	models.StatusPending: {
		models.StatusResponded,
		models.StatusViewingScheduled,
		models.StatusRejected,
		models.StatusExpired,
	},
	models.StatusResponded: {
		models.StatusViewingScheduled,
		models.StatusRejected,
		models.StatusExpired,
	},
	models.StatusViewingScheduled: {
		models.StatusRented,
		models.StatusRejected,
		models.StatusExpired,
	},
}

// CanTransition reports whether moving from current to target is a legal
// edge of the state machine.
func CanTransition(current, target models.InquiryStatus) bool {
	for _, next := range legalTransitions[current] {
		if next == target {
			return true
		}
	}
	return false
}

// Transition validates the requested move and returns the resulting
// status. Terminal states have no outgoing edges.
func Transition(current, target models.InquiryStatus) (models.InquiryStatus, error) {
	if current.Terminal() {
		return current, E(KindInvalidState, "inquiry is already %s", current)
	}
	if !CanTransition(current, target) {
		return current, E(KindInvalidTransition, "cannot move inquiry from %s to %s", current, target)
	}
	return target, nil
}

// TransitionSources returns the statuses from which target is directly
// reachable. Used to bake the precondition into conditional updates so a
// concurrent transition cannot slip between check and write.
func TransitionSources(target models.InquiryStatus) []models.InquiryStatus {
	var sources []models.InquiryStatus
	for from, targets := range legalTransitions {
		for _, next := range targets {
			if next == target {
				sources = append(sources, from)
				break
			}
		}
	}
	return sources
}
