package handlers

import (
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/service"
)

// HistoryHandler serves the cross-ticket activity feed.
type HistoryHandler struct {
	service *service.TicketService
}

// NewHistoryHandler constructs handler.
func NewHistoryHandler(ticketService *service.TicketService) *HistoryHandler {
	return &HistoryHandler{service: ticketService}
}

// Feed GET /api/history.
func (h *HistoryHandler) Feed(c *fiber.Ctx) error {
	actor, err := auth.ActorFromContext(c)
	if err != nil {
		return err
	}
	p := parsePage(c)
	filter := service.ActivityFeedFilter{Limit: p.Limit, Offset: p.Offset()}
	if filter.AssigneeID, err = parseOptionalID(c, "assigneeId"); err != nil {
		return err
	}
	if filter.ActorID, err = parseOptionalID(c, "actorId"); err != nil {
		return err
	}
	if filter.Actions, err = splitList(c.Query("action"), "action", parseAction); err != nil {
		return err
	}
	if filter.From, err = parseTime(c, "from"); err != nil {
		return err
	}
	if filter.To, err = parseTime(c, "to"); err != nil {
		return err
	}

	entries, total, err := h.service.ActivityFeed(c.UserContext(), actor, filter)
	if err != nil {
		return err
	}
	return respondPage(c, "activity feed", dto.NewTicketActivities(entries), p, total)
}

func parseAction(raw string) (domain.ActivityAction, error) {
	action := domain.ActivityAction(raw)
	if !action.Valid() {
		return "", fmt.Errorf("unknown action %q", raw)
	}
	return action, nil
}
