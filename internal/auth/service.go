package auth

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/Tyrowin/talkroom/internal/apperr"
	"github.com/Tyrowin/talkroom/internal/config"
	"github.com/Tyrowin/talkroom/internal/logging"
	"github.com/Tyrowin/talkroom/internal/users"
	"golang.org/x/crypto/bcrypt"
)

// Form messages shown to the user.
const (
	MsgFillAllFields      = "Please fill in all fields"
	MsgPasswordsMismatch  = "Passwords do not match"
	MsgPasswordTooLong    = "Password must be at most 72 bytes"
	MsgEmailInUse         = "That email is already in use"
	MsgDatabaseError      = "Database error"
	MsgRegistrationFailed = "User registration failed"
	MsgProvideCredentials = "Please provide email and password"
	MsgBadCredentials     = "Incorrect email or password"
	MsgRegistered         = "User registered successfully"
)

// RegisterInput carries the register form fields.
type RegisterInput struct {
	Name            string
	Email           string
	Password        string
	PasswordConfirm string
}

// Session is the result of a successful login.
type Session struct {
	Token         string
	TokenExpires  time.Time
	CookieExpires time.Time
	User          *users.User
}

// Service verifies credentials and mints session tokens.
type Service struct {
	users      users.Repository
	log        logging.Logger
	secret     []byte
	tokenTTL   time.Duration
	cookieTTL  time.Duration
	bcryptCost int
	now        func() time.Time
}

// NewService constructs a Service backed by repo.
func NewService(repo users.Repository, cfg config.AuthConfig, log logging.Logger) *Service {
	return &Service{
		users:      repo,
		log:        log.With("component", "auth"),
		secret:     []byte(cfg.Secret),
		tokenTTL:   cfg.TokenTTL,
		cookieTTL:  cfg.CookieTTL(),
		bcryptCost: cfg.BcryptCost,
		now:        time.Now,
	}
}

// Register validates in, hashes the password and inserts one user row.
func (s *Service) Register(ctx context.Context, in RegisterInput) (*users.User, error) {
	name := strings.TrimSpace(in.Name)
	email := users.NormalizeEmail(in.Email)

	if name == "" || email == "" || in.Password == "" || in.PasswordConfirm == "" {
		return nil, apperr.Validation(MsgFillAllFields)
	}
	if in.Password != in.PasswordConfirm {
		return nil, apperr.Validation(MsgPasswordsMismatch)
	}

	exists, err := s.users.EmailExists(ctx, email)
	if err != nil {
		s.log.Error(ctx, "email lookup failed", "email", email, "err", err)
		return nil, apperr.Store(MsgDatabaseError, err)
	}
	if exists {
		return nil, apperr.Conflict(MsgEmailInUse)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return nil, apperr.Validation(MsgPasswordTooLong)
		}
		s.log.Error(ctx, "password hashing failed", "err", err)
		return nil, apperr.Wrap(apperr.CodeValidation, "Something went wrong", err)
	}

	user, err := s.users.Create(ctx, &users.User{Name: name, Email: email, Password: string(hash)})
	if err != nil {
		// A concurrent registration may have won the race after the check.
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, apperr.Conflict(MsgEmailInUse)
		}
		s.log.Error(ctx, "user insert failed", "email", email, "err", err)
		return nil, apperr.Store(MsgRegistrationFailed, err)
	}

	s.log.Info(ctx, "user registered", "user_id", user.ID)
	return user, nil
}

// Login checks the credentials and returns a signed session.
func (s *Service) Login(ctx context.Context, email, password string) (*Session, error) {
	email = users.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, apperr.Validation(MsgProvideCredentials)
	}

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return nil, apperr.Auth(MsgBadCredentials)
		}
		s.log.Error(ctx, "user lookup failed", "email", email, "err", err)
		return nil, apperr.Store(MsgDatabaseError, err)
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)); err != nil {
		return nil, apperr.Auth(MsgBadCredentials)
	}

	now := s.now()
	token, expires, err := GenerateToken(user.ID, s.secret, s.tokenTTL, now)
	if err != nil {
		s.log.Error(ctx, "token signing failed", "user_id", user.ID, "err", err)
		return nil, apperr.Wrap(apperr.CodeAuth, "Something went wrong", err)
	}

	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &Session{
		Token:         token,
		TokenExpires:  expires,
		CookieExpires: now.Add(s.cookieTTL),
		User:          user,
	}, nil
}
