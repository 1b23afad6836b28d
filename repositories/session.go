//go:generate go run go.uber.org/mock/mockgen -source=session.go -destination=../mocks/mock_session_store.go -package=mocks
package repositories

import (
	"context"
	"crypto/rand"
	"fmt"
	"log/slog"
	"math/big"
	"time"

	"github.com/redis/go-redis/v9"

	"say-hi/errors"
)

const (
	otpTTL       = 5 * time.Minute
	otpRateLimit = time.Minute
)

type ISessionStore interface {
	IssueOTP(ctx context.Context, email string) (string, error)
	VerifyOTP(ctx context.Context, email, otp string) error
	LockLogin(ctx context.Context, email string) error
	ReleaseLogin(ctx context.Context, email string) error
}

// SessionStore keeps the short-lived account state in Redis: one-time
// passwords with their resend rate limit, and the single-session login
// lock. Key layout follows the historical convention:
//
//	otp:{email}            the pending OTP, 5 minute TTL
//	otp:ratelimit:{email}  resend guard, 60 second TTL
//	login:{email}          set while the user holds a session
type SessionStore struct {
	client *redis.Client
	log    *slog.Logger
}

func NewSessionStore(client *redis.Client, log *slog.Logger) SessionStore {
	return SessionStore{client: client, log: log}
}

// NewRedisClient builds a client from a redis:// URL and verifies the
// connection before handing it out.
func NewRedisClient(ctx context.Context, url string) (*redis.Client, error) {
	opt, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("redis: parse url: %w", err)
	}
	client := redis.NewClient(opt)
	pingCtx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis: ping: %w", err)
	}
	return client, nil
}

// IssueOTP generates and stores a fresh code unless the rate limit window
// is still open.
func (s SessionStore) IssueOTP(ctx context.Context, email string) (string, error) {
	limited, err := s.client.Exists(ctx, "otp:ratelimit:"+email).Result()
	if err != nil {
		return "", err
	}
	if limited > 0 {
		return "", errors.ErrTooManyRequests
	}

	otp, err := generateOTP()
	if err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, "otp:"+email, otp, otpTTL).Err(); err != nil {
		return "", err
	}
	if err := s.client.Set(ctx, "otp:ratelimit:"+email, "1", otpRateLimit).Err(); err != nil {
		return "", err
	}
	return otp, nil
}

// VerifyOTP compares and consumes the stored code. An expired or absent
// code fails the same way as a wrong one.
func (s SessionStore) VerifyOTP(ctx context.Context, email, otp string) error {
	stored, err := s.client.Get(ctx, "otp:"+email).Result()
	if err == redis.Nil {
		return errors.ErrInvalidOTP
	}
	if err != nil {
		return err
	}
	if stored != otp {
		return errors.ErrInvalidOTP
	}
	return s.client.Del(ctx, "otp:"+email).Err()
}

// LockLogin enforces a single active session per account. SetNX keeps the
// check-and-set atomic across concurrent logins.
func (s SessionStore) LockLogin(ctx context.Context, email string) error {
	ok, err := s.client.SetNX(ctx, "login:"+email, "1", 0).Result()
	if err != nil {
		return err
	}
	if !ok {
		return errors.ErrAlreadyLoggedIn
	}
	return nil
}

func (s SessionStore) ReleaseLogin(ctx context.Context, email string) error {
	deleted, err := s.client.Del(ctx, "login:"+email).Result()
	if err != nil {
		return err
	}
	if deleted == 0 {
		return errors.ErrNotLoggedIn
	}
	return nil
}

// generateOTP draws a uniform 6-digit code from crypto/rand.
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}
