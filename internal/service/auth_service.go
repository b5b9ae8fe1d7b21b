package service

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/immxrtalbeast/ringcall/internal/domain"
	"github.com/immxrtalbeast/ringcall/internal/metrics"
	"github.com/immxrtalbeast/ringcall/internal/repository"
	"github.com/immxrtalbeast/ringcall/lib/logger/sl"
	"github.com/patrickmn/go-cache"
	"golang.org/x/crypto/bcrypt"
)

const (
	minPasswordLength = 3
	sessionTokenBytes = 24
	defaultBcryptCost = 10
)

var errInvalidCredentials = fmt.Errorf("%w: invalid credentials", domain.ErrUnauthenticated)

type AuthOptions struct {
	SessionTTL time.Duration
	// CacheTTL bounds how long a validated session is served without a
	// ledger read. Zero disables the cache.
	CacheTTL   time.Duration
	BcryptCost int
}

type AuthService struct {
	users    repository.UserRepository
	sessions repository.SessionRepository
	cache    *cache.Cache
	opts     AuthOptions
	log      *slog.Logger
	now      func() time.Time
}

func NewAuthService(
	users repository.UserRepository,
	sessions repository.SessionRepository,
	opts AuthOptions,
	log *slog.Logger,
) *AuthService {
	if log == nil {
		log = slog.Default()
	}
	if opts.SessionTTL <= 0 {
		opts.SessionTTL = domain.DefaultSessionTTL
	}
	if opts.BcryptCost == 0 {
		opts.BcryptCost = defaultBcryptCost
	}

	s := &AuthService{
		users:    users,
		sessions: sessions,
		opts:     opts,
		log:      log,
		now:      func() time.Time { return time.Now().UTC() },
	}
	if opts.CacheTTL > 0 {
		s.cache = cache.New(opts.CacheTTL, 2*opts.CacheTTL)
	}
	return s
}

func (s *AuthService) SessionTTL() time.Duration {
	return s.opts.SessionTTL
}

func (s *AuthService) Register(ctx context.Context, username, password string) (*domain.User, *domain.Session, error) {
	const op = "service.auth.register"
	log := s.log.With(slog.String("op", op))

	username = strings.TrimSpace(username)
	if username == "" {
		return nil, nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if len(password) < minPasswordLength {
		return nil, nil, fmt.Errorf("%w: password must have at least %d characters", domain.ErrValidation, minPasswordLength)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.opts.BcryptCost)
	if err != nil {
		log.Error("failed to hash password", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: hash password", domain.ErrInternal)
	}

	user := domain.NewUser(username, string(hash))
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrUsernameTaken) {
			return nil, nil, fmt.Errorf("%w: username already registered", domain.ErrConflict)
		}
		log.Error("failed to create user", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: create user", domain.ErrInternal)
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return nil, nil, err
	}

	log.Info("user registered", slog.String("user_id", user.ID))
	return user, session, nil
}

func (s *AuthService) Login(ctx context.Context, username, password string) (*domain.User, *domain.Session, error) {
	const op = "service.auth.login"
	log := s.log.With(slog.String("op", op))

	if strings.TrimSpace(username) == "" {
		return nil, nil, fmt.Errorf("%w: username is required", domain.ErrValidation)
	}
	if password == "" {
		return nil, nil, fmt.Errorf("%w: password is required", domain.ErrValidation)
	}

	user, err := s.users.GetByUsername(ctx, strings.TrimSpace(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, nil, errInvalidCredentials
		}
		log.Error("failed to look up user", sl.Err(err))
		return nil, nil, fmt.Errorf("%w: look up user", domain.ErrInternal)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errInvalidCredentials
	}

	session, err := s.openSession(ctx, user.ID)
	if err != nil {
		log.Error("failed to open session", sl.Err(err))
		return nil, nil, err
	}
	return user, session, nil
}

func (s *AuthService) Logout(ctx context.Context, sessionID string) error {
	const op = "service.auth.logout"

	if sessionID == "" {
		return nil
	}
	if s.cache != nil {
		s.cache.Delete(sessionID)
	}
	if err := s.sessions.Delete(ctx, sessionID); err != nil {
		s.log.Error("failed to drop session", slog.String("op", op), sl.Err(err))
		return fmt.Errorf("%w: drop session", domain.ErrInternal)
	}
	return nil
}

// Authenticate resolves a session token to its user. Unknown, expired and
// orphaned sessions all yield ErrUnauthenticated.
func (s *AuthService) Authenticate(ctx context.Context, sessionID string) (*domain.User, error) {
	if sessionID == "" {
		return nil, domain.ErrUnauthenticated
	}

	session, err := s.lookupSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.ExpiredAt(s.now(), s.opts.SessionTTL) {
		if s.cache != nil {
			s.cache.Delete(sessionID)
		}
		return nil, fmt.Errorf("%w: session expired", domain.ErrUnauthenticated)
	}

	user, err := s.users.GetByID(ctx, session.UserID)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return nil, fmt.Errorf("%w: invalid session", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: look up user", domain.ErrInternal)
	}
	return user, nil
}

// CompactSessions removes sessions past their TTL from the ledger.
func (s *AuthService) CompactSessions(ctx context.Context) (int, error) {
	const op = "service.auth.compact_sessions"
	log := s.log.With(slog.String("op", op))

	removed, err := s.sessions.DeleteCreatedBefore(ctx, s.now().Add(-s.opts.SessionTTL))
	if err != nil {
		log.Error("failed to compact sessions", sl.Err(err))
		return 0, fmt.Errorf("%w: compact sessions", domain.ErrInternal)
	}

	metrics.SessionsPurgedTotal.Add(float64(removed))
	if removed > 0 {
		log.Info("expired sessions removed", slog.Int("count", removed))
	}
	return removed, nil
}

func (s *AuthService) lookupSession(ctx context.Context, sessionID string) (*domain.Session, error) {
	if s.cache != nil {
		if cached, ok := s.cache.Get(sessionID); ok {
			if session, ok := cached.(*domain.Session); ok {
				return session, nil
			}
		}
	}

	session, err := s.sessions.GetByID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, repository.ErrSessionNotFound) {
			return nil, fmt.Errorf("%w: invalid session", domain.ErrUnauthenticated)
		}
		return nil, fmt.Errorf("%w: look up session", domain.ErrInternal)
	}

	if s.cache != nil {
		s.cache.SetDefault(sessionID, session)
	}
	return session, nil
}

func (s *AuthService) openSession(ctx context.Context, userID string) (*domain.Session, error) {
	token, err := newSessionToken()
	if err != nil {
		return nil, fmt.Errorf("%w: generate session token", domain.ErrInternal)
	}

	session := &domain.Session{
		ID:        token,
		UserID:    userID,
		CreatedAt: s.now(),
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("%w: store session", domain.ErrInternal)
	}
	return session, nil
}

func newSessionToken() (string, error) {
	buf := make([]byte, sessionTokenBytes)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}
