package handlers

import (
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/spec-kit/utility-crm/internal/api/dto"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

func respond(c *fiber.Ctx, status int, message string, data interface{}) error {
	return c.Status(status).JSON(dto.Envelope{Success: true, Message: message, Data: data})
}

func respondPage(c *fiber.Ctx, message string, data interface{}, p pageQuery, total int) error {
	return c.JSON(dto.Envelope{
		Success:    true,
		Message:    message,
		Data:       data,
		Pagination: dto.NewPagination(p.Page, p.Limit, total),
	})
}

type pageQuery struct {
	Page  int
	Limit int
}

func (p pageQuery) Offset() int {
	return (p.Page - 1) * p.Limit
}

func parsePage(c *fiber.Ctx) pageQuery {
	limit := parseInt(c.Query("limit"), defaultPageSize)
	if limit > maxPageSize {
		limit = maxPageSize
	}
	return pageQuery{Page: parseInt(c.Query("page"), 1), Limit: limit}
}

func parseID(c *fiber.Ctx, name string) (int64, error) {
	id, err := strconv.ParseInt(c.Params(name), 10, 64)
	if err != nil || id <= 0 {
		return 0, apperrors.NewValidationError("invalid "+name, map[string]any{"param": name})
	}
	return id, nil
}

func parseOptionalID(c *fiber.Ctx, key string) (*int64, error) {
	raw := strings.TrimSpace(c.Query(key))
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return nil, apperrors.NewValidationError("invalid "+key, map[string]any{"query": key})
	}
	return &id, nil
}

func parseTime(c *fiber.Ctx, key string) (*time.Time, error) {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil, nil
	}
	if t, err := time.Parse(time.RFC3339, val); err == nil {
		return &t, nil
	}
	t, err := time.Parse("2006-01-02", val)
	if err != nil {
		return nil, apperrors.NewValidationError("invalid date", map[string]any{"query": key})
	}
	return &t, nil
}

func parseInt(val string, def int) int {
	if val == "" {
		return def
	}
	parsed, err := strconv.Atoi(val)
	if err != nil || parsed <= 0 {
		return def
	}
	return parsed
}

// splitList parses a comma separated query value through parse.
func splitList[T any](raw, key string, parse func(string) (T, error)) ([]T, error) {
	if strings.TrimSpace(raw) == "" {
		return nil, nil
	}
	var out []T
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		v, err := parse(part)
		if err != nil {
			return nil, apperrors.NewValidationError(err.Error(), map[string]any{"query": key})
		}
		out = append(out, v)
	}
	return out, nil
}

func optionalQuery(c *fiber.Ctx, key string) *string {
	val := strings.TrimSpace(c.Query(key))
	if val == "" {
		return nil
	}
	return &val
}
