// Package policy holds the role based rule tables for ticket access and
// ticket status transitions. Everything here is pure and free of I/O.
package policy

import (
	"errors"
	"fmt"

	"github.com/spec-kit/utility-crm/internal/domain"
)

var (
	// ErrUnknownStatus is returned for a status outside the closed enum.
	ErrUnknownStatus = errors.New("unknown ticket status")
	// ErrUnknownRole is returned for a role outside the closed set.
	ErrUnknownRole = errors.New("unknown role")
)

type statusSet []domain.TicketStatus

var staffTransitions = map[domain.TicketStatus]statusSet{
	domain.TicketStatusUnseen:     {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusRejected},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusRejected},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusRejected:   {domain.TicketStatusInProgress},
}

var supervisorTransitions = map[domain.TicketStatus]statusSet{
	domain.TicketStatusUnseen:     {domain.TicketStatusInProgress, domain.TicketStatusResolved, domain.TicketStatusRejected, domain.TicketStatusClosed},
	domain.TicketStatusInProgress: {domain.TicketStatusResolved, domain.TicketStatusRejected, domain.TicketStatusClosed},
	domain.TicketStatusResolved:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusRejected:   {domain.TicketStatusInProgress, domain.TicketStatusClosed},
	domain.TicketStatusClosed:     {domain.TicketStatusInProgress},
}

// transitionTable is keyed by role. CLIENT has no entry.
var transitionTable = map[domain.Role]map[domain.TicketStatus]statusSet{
	domain.RoleEmployee: staffTransitions,
	domain.RoleManager:  supervisorTransitions,
	domain.RoleAdmin:    supervisorTransitions,
}

// AvailableTransitions returns the statuses the role may move a ticket into
// from current. Unknown inputs are errors; a known pair missing from the
// table yields an empty, non-nil set.
func AvailableTransitions(current domain.TicketStatus, role domain.Role) ([]domain.TicketStatus, error) {
	if !current.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownStatus, current)
	}
	if !role.Valid() {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRole, role)
	}
	allowed := transitionTable[role][current]
	out := make([]domain.TicketStatus, len(allowed))
	copy(out, allowed)
	return out, nil
}

// CanTransition reports whether role may move a ticket from current to next.
func CanTransition(current, next domain.TicketStatus, role domain.Role) bool {
	allowed, err := AvailableTransitions(current, role)
	if err != nil {
		return false
	}
	for _, candidate := range allowed {
		if candidate == next {
			return true
		}
	}
	return false
}
