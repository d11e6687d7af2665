package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/service"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// TicketsHandler manages ticket endpoints for every role.
type TicketsHandler struct {
	service *service.TicketService
}

// NewTicketsHandler constructs handler.
func NewTicketsHandler(ticketService *service.TicketService) *TicketsHandler {
	return &TicketsHandler{service: ticketService}
}

// CreateTicket POST /api/tickets.
func (h *TicketsHandler) CreateTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	var req dto.CreateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketCreateInput{
		Title:   req.Title,
		Content: req.Content,
		Customer: domain.CustomerSnapshot{
			Name:          req.CustomerName,
			Phone:         req.CustomerPhone,
			Email:         req.CustomerEmail,
			Address:       req.CustomerAddress,
			Area:          req.CustomerArea,
			MeterNumber:   req.MeterNumber,
			AccountNumber: req.AccountNumber,
		},
	}
	if req.Priority != "" {
		if input.Priority, err = domain.ParseTicketPriority(req.Priority); err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
		}
	}
	if req.Type != "" {
		if input.Type, err = domain.ParseTicketType(req.Type); err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"field": "type"})
		}
	}

	ticket, err := h.service.CreateTicket(c.UserContext(), actor, input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "ticket created", dto.NewTicketSummary(ticket))
}

// ListTickets GET /api/tickets.
func (h *TicketsHandler) ListTickets(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	filter, p, err := parseTicketQuery(c)
	if err != nil {
		return err
	}
	tickets, total, err := h.service.ListTickets(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	items := make([]dto.TicketSummary, 0, len(tickets))
	for i := range tickets {
		items = append(items, dto.NewTicketSummary(&tickets[i]))
	}
	return respondPage(c, "tickets", items, p, total)
}

// Stats GET /api/tickets/stats.
func (h *TicketsHandler) Stats(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	assigneeID, err := parseOptionalID(c, "assigneeId")
	if err != nil {
		return err
	}
	stats, err := h.service.Stats(c.UserContext(), actor, assigneeID)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket stats", dto.TicketStatsResponse{Total: stats.Total, ByStatus: stats.ByStatus})
}

// GetTicket GET /api/tickets/:id.
func (h *TicketsHandler) GetTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	detail, err := h.service.GetTicket(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket", dto.NewTicketDetail(detail.Ticket, detail.Comments, detail.Transitions))
}

// UpdateTicket PUT /api/tickets/:id.
func (h *TicketsHandler) UpdateTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}

	input := service.TicketContentInput{
		Title:           req.Title,
		Content:         req.Content,
		ExpectedVersion: req.ExpectedVersion,
	}
	if req.Priority != nil {
		priority, err := domain.ParseTicketPriority(*req.Priority)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"field": "priority"})
		}
		input.Priority = &priority
	}
	if req.Type != nil {
		ticketType, err := domain.ParseTicketType(*req.Type)
		if err != nil {
			return apperrors.NewValidationError(err.Error(), map[string]any{"field": "type"})
		}
		input.Type = &ticketType
	}

	ticket, err := h.service.UpdateContent(c.UserContext(), actor, id, input)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket updated", dto.NewTicketSummary(ticket))
}

// UpdateStatus PUT /api/tickets/:id/status.
func (h *TicketsHandler) UpdateStatus(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.UpdateStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	status, err := domain.ParseTicketStatus(req.Status)
	if err != nil {
		return apperrors.NewValidationError(err.Error(), map[string]any{"field": "status"})
	}

	ticket, err := h.service.ChangeStatus(c.UserContext(), actor, id, service.StatusChangeInput{
		Status:          status,
		Comment:         req.Comment,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, fmt.Sprintf("status changed to %s", ticket.Status), dto.NewTicketSummary(ticket))
}

// Transitions GET /api/tickets/:id/transitions.
func (h *TicketsHandler) Transitions(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	ticket, transitions, err := h.service.AvailableTransitions(c.UserContext(), actor, id)
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "available transitions", dto.TransitionsResponse{
		TicketID:    ticket.ID,
		Current:     ticket.Status,
		Transitions: transitions,
	})
}

// Assign PUT /api/tickets/:id/assign.
func (h *TicketsHandler) Assign(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.AssignTicketRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	ticket, err := h.service.Assign(c.UserContext(), actor, id, service.AssignInput{
		AssigneeID:      req.AssigneeID,
		ExpectedVersion: req.ExpectedVersion,
	})
	if err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket assigned", dto.NewTicketSummary(ticket))
}

// AddComment POST /api/tickets/:id/comments.
func (h *TicketsHandler) AddComment(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	var req dto.CreateCommentRequest
	if err := c.BodyParser(&req); err != nil {
		return apperrors.NewValidationError("invalid payload", nil)
	}
	comment, err := h.service.AddComment(c.UserContext(), actor, id, req.Body)
	if err != nil {
		return err
	}
	return respond(c, http.StatusCreated, "comment added", dto.NewTicketComment(comment))
}

// History GET /api/tickets/:id/history.
func (h *TicketsHandler) History(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	p := parsePage(c)
	entries, total, err := h.service.TicketHistory(c.UserContext(), actor, id, p.Limit, p.Offset())
	if err != nil {
		return err
	}
	return respondPage(c, "ticket history", dto.NewTicketActivities(entries), p, total)
}

// DeleteTicket DELETE /api/tickets/:id.
func (h *TicketsHandler) DeleteTicket(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	id, err := parseID(c, "id")
	if err != nil {
		return err
	}
	if err := h.service.DeleteTicket(c.UserContext(), actor, id); err != nil {
		return err
	}
	return respond(c, http.StatusOK, "ticket deleted", fiber.Map{"id": id})
}

func parseTicketQuery(c *fiber.Ctx) (service.TicketListFilter, pageQuery, error) {
	p := parsePage(c)
	filter := service.TicketListFilter{
		Area:       optionalQuery(c, "area"),
		SearchTerm: optionalQuery(c, "search"),
		Unassigned: strings.EqualFold(c.Query("unassigned"), "true"),
		Limit:      p.Limit,
		Offset:     p.Offset(),
	}
	var err error
	if filter.Statuses, err = splitList(c.Query("status"), "status", domain.ParseTicketStatus); err != nil {
		return filter, p, err
	}
	if filter.Priorities, err = splitList(c.Query("priority"), "priority", domain.ParseTicketPriority); err != nil {
		return filter, p, err
	}
	if filter.Types, err = splitList(c.Query("type"), "type", domain.ParseTicketType); err != nil {
		return filter, p, err
	}
	if filter.AssigneeID, err = parseOptionalID(c, "assigneeId"); err != nil {
		return filter, p, err
	}
	if filter.CreatedFrom, err = parseTime(c, "createdFrom"); err != nil {
		return filter, p, err
	}
	if filter.CreatedTo, err = parseTime(c, "createdTo"); err != nil {
		return filter, p, err
	}
	return filter, p, nil
}
