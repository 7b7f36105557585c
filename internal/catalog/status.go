package catalog

import "strings"

// Status is the lifecycle state of a model catalog entry.
type Status string

const (
	// StatusNew marks entries awaiting operator review: first-seen models and
	// reactivated ones. New entries are not visible to users until promoted.
	StatusNew Status = "new"
	// StatusActive entries are visible to users whose tier flags allow them.
	StatusActive Status = "active"
	// StatusInactive entries dropped out of the external list.
	StatusInactive Status = "inactive"
	// StatusDisabled is operator-set and sticky; sync never clears it.
	StatusDisabled Status = "disabled"
)

// ParseStatus normalizes a stored status string. Unknown values map to
// StatusInactive so a corrupt row can never leak into user-visible lists.
func ParseStatus(raw string) Status {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusNew:
		return StatusNew
	case StatusActive:
		return StatusActive
	case StatusDisabled:
		return StatusDisabled
	default:
		return StatusInactive
	}
}

// Valid reports whether s is one of the four lifecycle states.
func (s Status) Valid() bool {
	switch s {
	case StatusNew, StatusActive, StatusInactive, StatusDisabled:
		return true
	}
	return false
}

// TransitionOnSeen returns the status an existing entry takes when its id
// appears in a sync batch, and whether that counts as a reactivation.
// Disabled is absorbing: sync never moves an entry out of it. An inactive
// entry returns to new rather than active so an operator must re-promote it.
func TransitionOnSeen(prior Status) (next Status, reactivated bool) {
	switch prior {
	case StatusDisabled:
		return StatusDisabled, false
	case StatusInactive:
		return StatusNew, true
	default:
		return prior, false
	}
}

// TransitionOnAbsent returns the status an entry takes when it is missing
// from the sync batch. Disabled stays disabled; everything else goes inactive.
func TransitionOnAbsent(prior Status) Status {
	if prior == StatusDisabled {
		return StatusDisabled
	}
	return StatusInactive
}
