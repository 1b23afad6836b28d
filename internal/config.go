package internal

import (
	"fmt"
	"time"
)

// Config is shared by all four binaries; each reads the subset it needs.
type Config struct {
	LogLevel string `env:"LOG_LEVEL,default=INFO"`

	AmqpURL    string        `env:"AMQP_URL,required=true"`
	Prefetch   int           `env:"PREFETCH,default=8"`
	RPCTimeout time.Duration `env:"RPC_TIMEOUT,default=5s"`

	Host string `env:"HOST,default=0.0.0.0"`
	Port int    `env:"PORT,default=8080"`

	BadgerFilepath string `env:"BADGER_FILEPATH"`
	RedisURL       string `env:"REDIS_URL"`

	JWTSecret         string        `env:"JWT_SECRET"`
	AuthTokenDuration time.Duration `env:"AUTH_TOKEN_DURATION,default=24h"`

	ModerationCharReplacement string        `env:"MODERATION_CHARACTER_REPLACEMENT,default=*"`
	HealthInterval            time.Duration `env:"HEALTH_INTERVAL,default=30s"`

	SMTPHost     string `env:"SMTP_HOST"`
	SMTPPort     int    `env:"SMTP_PORT,default=587"`
	SMTPUsername string `env:"SMTP_USERNAME"`
	SMTPPassword string `env:"SMTP_PASSWORD"`
	MailFrom     string `env:"MAIL_FROM"`
}

// CharacterRune validates that the replacement setting is one rune.
func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("MODERATION_CHARACTER_REPLACEMENT must be a single character, got %q", str)
	}
	return r[0], nil
}
