package services

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/contract"
	"say-hi/domain"
	"say-hi/errors"
	"say-hi/repositories"
)

type Token string

type IAuthService interface {
	Register(ctx context.Context, name, email, password string) (domain.User, error)
	VerifyOTP(ctx context.Context, email, otp string) error
	ResendOTP(ctx context.Context, email string) error
	Login(ctx context.Context, email, password string) (domain.User, Token, error)
	Logout(ctx context.Context, email string) error
	GetUserByID(id string) (domain.User, error)
}

// AuthService owns the account lifecycle: registration with OTP activation,
// single-session login, logout. Mail leaves through the broker so the mail
// service is the only process holding SMTP credentials.
type AuthService struct {
	users         repositories.IUserRepository
	sessions      repositories.ISessionStore
	notifier      contract.INotifier
	tokenDuration time.Duration
	log           *slog.Logger
}

func NewAuthService(
	users repositories.IUserRepository,
	sessions repositories.ISessionStore,
	notifier contract.INotifier,
	tokenDuration time.Duration,
	log *slog.Logger,
) *AuthService {
	return &AuthService{
		users:         users,
		sessions:      sessions,
		notifier:      notifier,
		tokenDuration: tokenDuration,
		log:           log,
	}
}

// mailRequest is the MAIL_QUEUE payload for the send_otp action.
type mailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

// Register creates a PENDING account and sends the activation code.
// Validation runs before the expensive hash; the account only becomes
// usable after VerifyOTP flips it to ACTIVE.
func (s *AuthService) Register(ctx context.Context, name, email, password string) (domain.User, error) {
	if err := auth.ValidateRegister(auth.RegisterRequest{Name: name, Email: email, Password: password}); err != nil {
		return domain.User{}, err
	}

	hash, err := auth.HashPassword(password)
	if err != nil {
		return domain.User{}, fmt.Errorf("hashing failed: %w", err)
	}

	user := domain.User{
		ID:           uuid.NewString(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         domain.RoleUser,
		Status:       domain.StatusPending,
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.users.Create(user); err != nil {
		return domain.User{}, err
	}

	if err := s.sendOTP(ctx, email); err != nil {
		// The account exists; the user can request a resend.
		s.log.Error("Sending activation code failed", "email", email, "error", err)
	}
	return user.Public(), nil
}

// VerifyOTP consumes the code and activates the account.
func (s *AuthService) VerifyOTP(ctx context.Context, email, otp string) error {
	if err := s.sessions.VerifyOTP(ctx, email, otp); err != nil {
		return err
	}
	return s.users.SetStatus(email, domain.StatusActive)
}

// ResendOTP issues a fresh code, subject to the rate limit window.
func (s *AuthService) ResendOTP(ctx context.Context, email string) error {
	if _, err := s.users.GetByEmail(email); err != nil {
		return err
	}
	return s.sendOTP(ctx, email)
}

// Login checks credentials, takes the single-session lock and issues the
// token. Unknown email and wrong password fail identically so accounts
// cannot be enumerated.
func (s *AuthService) Login(ctx context.Context, email, password string) (domain.User, Token, error) {
	user, err := s.users.GetByEmail(email)
	if err != nil {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	match, err := auth.ComparePassword(password, user.PasswordHash)
	if err != nil || !match {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}
	if user.Status != domain.StatusActive {
		return domain.User{}, "", errors.ErrInvalidCredentials
	}

	if err := s.sessions.LockLogin(ctx, email); err != nil {
		return domain.User{}, "", err
	}

	token, err := auth.GenerateToken(user.ID, user.Role, s.tokenDuration)
	if err != nil {
		// Token failure must not leave the lock stranded.
		if releaseErr := s.sessions.ReleaseLogin(ctx, email); releaseErr != nil {
			s.log.Error("Releasing login lock failed", "email", email, "error", releaseErr)
		}
		return domain.User{}, "", errors.ErrTokenGeneration
	}
	return user.Public(), Token(token), nil
}

// Logout releases the single-session lock.
func (s *AuthService) Logout(ctx context.Context, email string) error {
	return s.sessions.ReleaseLogin(ctx, email)
}

// GetUserByID answers the cross-service profile lookup.
func (s *AuthService) GetUserByID(id string) (domain.User, error) {
	user, err := s.users.GetByID(id)
	if err != nil {
		return domain.User{}, err
	}
	return user.Public(), nil
}

func (s *AuthService) sendOTP(ctx context.Context, email string) error {
	otp, err := s.sessions.IssueOTP(ctx, email)
	if err != nil {
		return err
	}
	return s.notifier.Notify(ctx, broker.MailQueue, "send_otp", mailRequest{
		To:      email,
		Subject: "Your Say-Hi verification code",
		Body:    fmt.Sprintf("Your verification code is %s. It expires in 5 minutes.", otp),
	})
}
