package audit

import (
	"github.com/spec-kit/utility-crm/internal/domain"
)

// Diff is the changed-field subset of a content edit.
type Diff struct {
	Before  map[string]any
	After   map[string]any
	Changes map[string]any
	Fields  []string
}

// Empty reports whether nothing changed.
func (d Diff) Empty() bool {
	return len(d.Fields) == 0
}

// ContentDiff compares editable fields of two ticket versions. Only fields
// whose value differs appear, each change as {from, to}.
func ContentDiff(old, updated *domain.Ticket) Diff {
	diff := Diff{
		Before:  map[string]any{},
		After:   map[string]any{},
		Changes: map[string]any{},
	}
	add := func(field string, from, to any) {
		if from == to {
			return
		}
		diff.Before[field] = from
		diff.After[field] = to
		diff.Changes[field] = map[string]any{"from": from, "to": to}
		diff.Fields = append(diff.Fields, field)
	}

	add("title", old.Title, updated.Title)
	add("content", old.Content, updated.Content)
	add("priority", string(old.Priority), string(updated.Priority))
	add("type", string(old.Type), string(updated.Type))
	add("customerName", old.Customer.Name, updated.Customer.Name)
	add("customerPhone", old.Customer.Phone, updated.Customer.Phone)
	add("customerEmail", old.Customer.Email, updated.Customer.Email)
	add("customerAddress", old.Customer.Address, updated.Customer.Address)
	add("customerArea", old.Customer.Area, updated.Customer.Area)
	add("meterNumber", old.Customer.MeterNumber, updated.Customer.MeterNumber)
	add("accountNumber", old.Customer.AccountNumber, updated.Customer.AccountNumber)
	return diff
}

// Snapshot renders the audited ticket fields.
func Snapshot(ticket *domain.Ticket) map[string]any {
	snapshot := map[string]any{
		"ticketNumber":    ticket.TicketNumber,
		"title":           ticket.Title,
		"content":         ticket.Content,
		"status":          string(ticket.Status),
		"priority":        string(ticket.Priority),
		"type":            string(ticket.Type),
		"authorId":        ticket.AuthorID,
		"customerName":    ticket.Customer.Name,
		"customerPhone":   ticket.Customer.Phone,
		"customerEmail":   ticket.Customer.Email,
		"customerAddress": ticket.Customer.Address,
		"customerArea":    ticket.Customer.Area,
		"meterNumber":     ticket.Customer.MeterNumber,
		"accountNumber":   ticket.Customer.AccountNumber,
	}
	if ticket.AssigneeID != nil {
		snapshot["assigneeId"] = *ticket.AssigneeID
	}
	return snapshot
}
