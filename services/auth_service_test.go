package services

import (
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/mama165/sdk-go/logs"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"

	"say-hi/auth"
	"say-hi/broker"
	"say-hi/domain"
	"say-hi/errors"
	"say-hi/mocks"
	"say-hi/repositories"
)

type authFixture struct {
	service  *AuthService
	users    repositories.UserRepository
	sessions *mocks.MockISessionStore
	notifier *mocks.MockINotifier
}

func newAuthFixture(t *testing.T) authFixture {
	t.Helper()
	log := logs.GetLoggerFromLevel(slog.LevelDebug)
	ctrl := gomock.NewController(t)
	users := repositories.NewUserRepository(openTestDB(t), log)
	sessions := mocks.NewMockISessionStore(ctrl)
	notifier := mocks.NewMockINotifier(ctrl)
	service := NewAuthService(users, sessions, notifier, 24*time.Hour, log)
	return authFixture{service: service, users: users, sessions: sessions, notifier: notifier}
}

const validPassword = "ComplexPass123!"

func TestRegister_SendsOTPAndStaysPending(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().IssueOTP(ctx, "alice@example.com").Return("123456", nil)
	f.notifier.EXPECT().
		Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).
		Do(func(_ context.Context, _, _ string, data any) {
			mail := data.(mailRequest)
			require.Equal(t, "alice@example.com", mail.To)
			require.Contains(t, mail.Body, "123456")
		}).
		Return(nil)

	user, err := f.service.Register(ctx, "Alice", "alice@example.com", validPassword)
	req.NoError(err)
	req.Equal(domain.StatusPending, user.Status)
	req.Empty(user.PasswordHash)

	stored, err := f.users.GetByEmail("alice@example.com")
	req.NoError(err)
	req.NotEmpty(stored.PasswordHash)
	req.NotEqual(validPassword, stored.PasswordHash)
}

func TestRegister_RejectsWeakPassword(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	// No OTP must be issued when validation fails.
	_, err := f.service.Register(context.Background(), "Alice", "alice@example.com", "weak")
	req.Error(err)
}

func TestRegister_DuplicateEmail(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().IssueOTP(ctx, gomock.Any()).Return("123456", nil)
	f.notifier.EXPECT().Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).Return(nil)

	_, err := f.service.Register(ctx, "Alice", "alice@example.com", validPassword)
	req.NoError(err)

	_, err = f.service.Register(ctx, "Other Alice", "alice@example.com", validPassword)
	req.ErrorIs(err, errors.ErrUserAlreadyExists)
}

func TestVerifyOTP_ActivatesAccount(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().IssueOTP(ctx, gomock.Any()).Return("123456", nil)
	f.notifier.EXPECT().Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).Return(nil)
	_, err := f.service.Register(ctx, "Alice", "alice@example.com", validPassword)
	req.NoError(err)

	f.sessions.EXPECT().VerifyOTP(ctx, "alice@example.com", "123456").Return(nil)
	req.NoError(f.service.VerifyOTP(ctx, "alice@example.com", "123456"))

	user, err := f.users.GetByEmail("alice@example.com")
	req.NoError(err)
	req.Equal(domain.StatusActive, user.Status)
}

func TestVerifyOTP_WrongCode(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().VerifyOTP(ctx, "alice@example.com", "000000").Return(errors.ErrInvalidOTP)
	req.ErrorIs(f.service.VerifyOTP(ctx, "alice@example.com", "000000"), errors.ErrInvalidOTP)
}

func TestResendOTP_UnknownAccount(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	req.ErrorIs(f.service.ResendOTP(context.Background(), "ghost@example.com"), errors.ErrUserNotFound)
}

// registerActive drives a user through the full activation flow.
func registerActive(t *testing.T, f authFixture, email string) {
	t.Helper()
	ctx := context.Background()
	f.sessions.EXPECT().IssueOTP(ctx, email).Return("123456", nil)
	f.notifier.EXPECT().Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).Return(nil)
	_, err := f.service.Register(ctx, "Alice", email, validPassword)
	require.NoError(t, err)
	f.sessions.EXPECT().VerifyOTP(ctx, email, "123456").Return(nil)
	require.NoError(t, f.service.VerifyOTP(ctx, email, "123456"))
}

func TestLogin_IssuesVerifiableToken(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)
	registerActive(t, f, "alice@example.com")

	f.sessions.EXPECT().LockLogin(ctx, "alice@example.com").Return(nil)

	user, token, err := f.service.Login(ctx, "alice@example.com", validPassword)
	req.NoError(err)
	req.Empty(user.PasswordHash)

	claims, err := auth.ValidateToken(string(token))
	req.NoError(err)
	req.Equal(user.ID, claims.UserID)
	req.Equal(domain.RoleUser, claims.Role)
}

func TestLogin_WrongPassword(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)
	registerActive(t, f, "alice@example.com")

	// The lock must never be taken on failed credentials.
	_, _, err := f.service.Login(ctx, "alice@example.com", "WrongPass123!")
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestLogin_UnknownEmailFailsIdentically(t *testing.T) {
	req := require.New(t)
	f := newAuthFixture(t)

	_, _, err := f.service.Login(context.Background(), "ghost@example.com", validPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestLogin_PendingAccountRejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().IssueOTP(ctx, gomock.Any()).Return("123456", nil)
	f.notifier.EXPECT().Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).Return(nil)
	_, err := f.service.Register(ctx, "Alice", "alice@example.com", validPassword)
	req.NoError(err)

	_, _, err = f.service.Login(ctx, "alice@example.com", validPassword)
	req.ErrorIs(err, errors.ErrInvalidCredentials)
}

func TestLogin_SecondSessionRejected(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)
	registerActive(t, f, "alice@example.com")

	f.sessions.EXPECT().LockLogin(ctx, "alice@example.com").Return(errors.ErrAlreadyLoggedIn)

	_, _, err := f.service.Login(ctx, "alice@example.com", validPassword)
	req.ErrorIs(err, errors.ErrAlreadyLoggedIn)
}

func TestLogout_ReleasesLock(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().ReleaseLogin(ctx, "alice@example.com").Return(nil)
	req.NoError(f.service.Logout(ctx, "alice@example.com"))
}

func TestGetUserByID_StripsHash(t *testing.T) {
	req := require.New(t)
	ctx := context.Background()
	f := newAuthFixture(t)

	f.sessions.EXPECT().IssueOTP(ctx, gomock.Any()).Return("123456", nil)
	f.notifier.EXPECT().Notify(ctx, broker.MailQueue, "send_otp", gomock.Any()).Return(nil)
	created, err := f.service.Register(ctx, "Alice", "alice@example.com", validPassword)
	req.NoError(err)

	user, err := f.service.GetUserByID(created.ID)
	req.NoError(err)
	req.Equal("alice@example.com", user.Email)
	req.Empty(user.PasswordHash)

	_, err = f.service.GetUserByID("nope")
	req.ErrorIs(err, errors.ErrUserNotFound)
}
