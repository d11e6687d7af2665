package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/spec-kit/utility-crm/internal/auth"
	"github.com/spec-kit/utility-crm/internal/config"
	"github.com/spec-kit/utility-crm/internal/domain"
	"github.com/spec-kit/utility-crm/internal/events"
	"github.com/spec-kit/utility-crm/internal/observability"
	"github.com/spec-kit/utility-crm/internal/repository"
	apperrors "github.com/spec-kit/utility-crm/pkg/util/errorutil"
)

// AuthService coordinates phone login with one-time verification codes.
type AuthService struct {
	users       repository.UserRepository
	codes       auth.CodeStore
	tokenMgr    *auth.TokenManager
	dispatcher  events.Dispatcher
	metrics     *observability.Metrics
	logger      *zap.Logger
	bcryptCost  int
	codeLength  int
	codeTTL     time.Duration
	maxAttempts int
	exposeCode  bool
	now         func() time.Time
}

// AuthDependencies encapsulates repo requirements for auth service.
type AuthDependencies struct {
	UserRepo   repository.UserRepository
	CodeStore  auth.CodeStore
	Dispatcher events.Dispatcher
	Metrics    *observability.Metrics
	Logger     *zap.Logger
}

// LoginChallenge is returned after a code has been issued.
type LoginChallenge struct {
	Phone     string
	ExpiresAt time.Time
	IsNewUser bool
	// DevCode is the plain code, set only outside production.
	DevCode string
}

// LoginResult is returned after a successful verification.
type LoginResult struct {
	User      *domain.User
	Token     string
	ExpiresAt time.Time
}

// NewAuthService builds the service.
func NewAuthService(cfg config.Config, deps AuthDependencies) *AuthService {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	codes := deps.CodeStore
	if codes == nil {
		codes = auth.NewMemoryCodeStore()
	}
	maxAttempts := cfg.Auth.MaxCodeAttempts
	if maxAttempts <= 0 {
		maxAttempts = 5
	}
	return &AuthService{
		users:       deps.UserRepo,
		codes:       codes,
		tokenMgr:    auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.AccessTokenTTLMinutes),
		dispatcher:  deps.Dispatcher,
		metrics:     deps.Metrics,
		logger:      logger,
		bcryptCost:  cfg.Auth.BcryptCost,
		codeLength:  cfg.Auth.CodeLength,
		codeTTL:     cfg.Auth.CodeTTL(),
		maxAttempts: maxAttempts,
		exposeCode:  !cfg.IsProduction(),
		now:         time.Now,
	}
}

// RequestCode issues a fresh verification code for phone, registering a
// CLIENT account on first contact. Any previous pending code is replaced.
func (s *AuthService) RequestCode(ctx context.Context, rawPhone, name string) (*LoginChallenge, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}

	user, isNew, err := s.findOrRegister(ctx, phone, strings.TrimSpace(name))
	if err != nil {
		return nil, err
	}
	if !user.Active {
		return nil, apperrors.NewForbidden("account disabled")
	}

	code, err := auth.GenerateCode(s.codeLength)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	hash, err := auth.HashCode(code, s.bcryptCost)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	if err := s.codes.Save(ctx, phone, hash, s.codeTTL); err != nil {
		return nil, apperrors.NewInternalError(err)
	}

	if s.dispatcher != nil {
		_ = s.dispatcher.Publish(ctx, events.NewEvent(events.EventLoginCodeIssued, 0,
			events.Actor{UserID: user.ID, Role: user.Role},
			events.LoginCodeIssuedPayload{Phone: phone, Code: code}))
	}

	challenge := &LoginChallenge{
		Phone:     phone,
		ExpiresAt: s.now().Add(s.codeTTL),
		IsNewUser: isNew,
	}
	if s.exposeCode {
		challenge.DevCode = code
	}
	return challenge, nil
}

// VerifyCode checks the pending code and returns an access token. The code is
// consumed on success and discarded once the attempt limit is reached.
func (s *AuthService) VerifyCode(ctx context.Context, rawPhone, code string) (*LoginResult, error) {
	phone, err := NormalizePhone(rawPhone)
	if err != nil {
		return nil, err
	}
	code = strings.TrimSpace(code)
	if code == "" {
		return nil, apperrors.NewValidationError("code is required", map[string]any{"field": "code"})
	}

	stored, err := s.codes.Get(ctx, phone)
	if err != nil {
		if errors.Is(err, auth.ErrCodeNotFound) {
			s.metrics.RecordLogin("expired")
			return nil, apperrors.NewUnauthorized("verification code expired or not requested")
		}
		return nil, apperrors.NewInternalError(err)
	}
	if stored.Attempts >= s.maxAttempts {
		_ = s.codes.Delete(ctx, phone)
		s.metrics.RecordLogin("locked")
		return nil, apperrors.NewTooManyRequests("too many attempts, request a new code")
	}

	if err := auth.CompareCode(stored.Hash, code); err != nil {
		attempts, incErr := s.codes.IncrementAttempts(ctx, phone)
		if incErr != nil && !errors.Is(incErr, auth.ErrCodeNotFound) {
			s.logger.Warn("increment code attempts failed", zap.String("phone", maskPhone(phone)), zap.Error(incErr))
		}
		if attempts >= s.maxAttempts {
			_ = s.codes.Delete(ctx, phone)
		}
		s.metrics.RecordLogin("mismatch")
		return nil, apperrors.NewUnauthorized("invalid verification code")
	}
	if err := s.codes.Delete(ctx, phone); err != nil {
		s.logger.Warn("delete consumed code failed", zap.String("phone", maskPhone(phone)), zap.Error(err))
	}

	user, err := s.users.GetByPhone(ctx, phone)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NewUnauthorized("account not found")
		}
		return nil, apperrors.MapError(err)
	}
	if !user.Active {
		return nil, apperrors.NewForbidden("account disabled")
	}

	now := s.now()
	user.LastLoginAt = &now
	if err := s.users.Update(ctx, user); err != nil {
		s.logger.Warn("stamp last login failed", zap.Int64("user_id", user.ID), zap.Error(err))
	}

	token, exp, err := s.tokenMgr.GenerateToken(user.ID, user.Role)
	if err != nil {
		return nil, apperrors.NewInternalError(err)
	}
	s.metrics.RecordLogin("ok")
	s.logger.Info("user logged in", zap.Int64("user_id", user.ID), zap.String("role", string(user.Role)))
	return &LoginResult{User: user, Token: token, ExpiresAt: exp}, nil
}

// TokenManager exposes the underlying token manager for middleware usage.
func (s *AuthService) TokenManager() *auth.TokenManager {
	return s.tokenMgr
}

func (s *AuthService) findOrRegister(ctx context.Context, phone, name string) (*domain.User, bool, error) {
	user, err := s.users.GetByPhone(ctx, phone)
	if err == nil {
		return user, false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return nil, false, apperrors.MapError(err)
	}

	user = &domain.User{Phone: phone, Name: name, Role: domain.RoleClient, Active: true}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicatePhone) {
			existing, getErr := s.users.GetByPhone(ctx, phone)
			if getErr != nil {
				return nil, false, apperrors.MapError(getErr)
			}
			return existing, false, nil
		}
		return nil, false, apperrors.MapError(err)
	}
	s.logger.Info("client registered", zap.Int64("user_id", user.ID))
	return user, true, nil
}

// NormalizePhone strips separators and validates a phone number. A leading
// plus sign is kept.
func NormalizePhone(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	var b strings.Builder
	for i, r := range raw {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '(' || r == ')':
		default:
			return "", apperrors.NewValidationError("invalid phone number", map[string]any{"field": "phone"})
		}
	}
	phone := b.String()
	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 7 || len(digits) > 15 {
		return "", apperrors.NewValidationError("invalid phone number", map[string]any{"field": "phone"})
	}
	return phone, nil
}

func maskPhone(phone string) string {
	if len(phone) <= 4 {
		return "****"
	}
	return strings.Repeat("*", len(phone)-4) + phone[len(phone)-4:]
}
