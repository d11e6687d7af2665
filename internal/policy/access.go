package policy

import "github.com/spec-kit/utility-crm/internal/domain"

// Actor is the authenticated caller of a single request.
type Actor struct {
	ID   int64
	Role domain.Role
}

// ActorFromUser builds an Actor for a loaded user.
func ActorFromUser(user *domain.User) Actor {
	if user == nil {
		return Actor{}
	}
	return Actor{ID: user.ID, Role: user.Role}
}

// Scope is the forced filter applied to ticket reads for an actor.
type Scope struct {
	AuthorID *int64
}

// ListScope restricts clients to their own tickets. Staff get an empty scope.
func ListScope(actor Actor) Scope {
	if actor.Role.IsElevated() {
		return Scope{}
	}
	id := actor.ID
	return Scope{AuthorID: &id}
}

// CanView reports whether the actor may read the ticket and its history.
func CanView(actor Actor, ticket *domain.Ticket) bool {
	if ticket == nil || !actor.Role.Valid() {
		return false
	}
	if actor.Role.IsElevated() {
		return true
	}
	return ticket.AuthorID == actor.ID
}

// CanEditContent reports whether the actor may edit title/content.
func CanEditContent(actor Actor, ticket *domain.Ticket) bool {
	return CanView(actor, ticket)
}

// CanComment reports whether the actor may comment on the ticket.
func CanComment(actor Actor, ticket *domain.Ticket) bool {
	return CanView(actor, ticket)
}

// CanDelete is limited to managers and admins.
func CanDelete(actor Actor) bool {
	return actor.Role == domain.RoleManager || actor.Role == domain.RoleAdmin
}

// CanAssign reports whether the actor may set assigneeID on a ticket.
// Employees may only take a ticket themselves; nil means unassign.
func CanAssign(actor Actor, assigneeID *int64) bool {
	switch actor.Role {
	case domain.RoleManager, domain.RoleAdmin:
		return true
	case domain.RoleEmployee:
		return assigneeID != nil && *assigneeID == actor.ID
	}
	return false
}

// CanViewFeed gates the cross-ticket activity feed.
func CanViewFeed(actor Actor) bool {
	return actor.Role.IsElevated()
}

// CanManageUsers gates user administration.
func CanManageUsers(actor Actor) bool {
	return actor.Role == domain.RoleAdmin
}

// CanBeAssignee reports whether a user may hold a ticket.
func CanBeAssignee(user *domain.User) bool {
	return user != nil && user.Active && user.Role.IsElevated()
}
