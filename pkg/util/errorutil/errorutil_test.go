package errorutil

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/jackc/pgx/v5"
)

func TestToDomainError(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"domain passthrough", NewForbidden("nope"), http.StatusForbidden, "FORBIDDEN"},
		{"wrapped domain", fmt.Errorf("ctx: %w", NewValidationError("bad", nil)), http.StatusBadRequest, "VALIDATION_FAILED"},
		{"no rows", fmt.Errorf("load: %w", pgx.ErrNoRows), http.StatusNotFound, "NOT_FOUND"},
		{"fiber error", fiber.NewError(http.StatusUnauthorized, "who"), http.StatusUnauthorized, "UNAUTHORIZED"},
		{"fiber 404", fiber.ErrNotFound, http.StatusNotFound, "NOT_FOUND"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			got := ToDomainError(tc.err)
			if got.HTTPStatus != tc.status || got.Code != tc.code {
				t.Fatalf("ToDomainError() = %d/%s, want %d/%s", got.HTTPStatus, got.Code, tc.status, tc.code)
			}
		})
	}
}

func TestInternalErrorKeepsCause(t *testing.T) {
	cause := errors.New("db down")
	err := NewInternalError(cause)
	if !errors.Is(err, cause) {
		t.Fatalf("internal error should unwrap to cause")
	}
	if ToDomainError(err).Message != "internal server error" {
		t.Fatalf("internal message leaked cause")
	}
}

func TestMapErrorNil(t *testing.T) {
	if MapError(nil) != nil {
		t.Fatalf("MapError(nil) should be nil")
	}
}
