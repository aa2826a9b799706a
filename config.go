package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
)

type Config struct {
	Host              string        `env:"HOST,default=0.0.0.0"`
	Port              int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	DBURL             string        `env:"DB_URL,required=true" validate:"required"`
	NATSURL           string        `env:"NATS_URL,required=true" validate:"required"`
	NATSCred          string        `env:"NATS_CRED"`
	NATSUser          string        `env:"NATS_USER"`
	NATSPassword      string        `env:"NATS_PASSWORD"`
	JWTSecret         string        `env:"JWT_SECRET,required=true" validate:"required"`
	JWTIssuer         string        `env:"JWT_ISS,default=cove"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	ObjectStore       string        `env:"OBJECT_STORE,default=nats" validate:"oneof=nats badger"`
	ObjectBucket      string        `env:"OBJECT_BUCKET,default=COVE_MEDIA" validate:"required_if=ObjectStore nats"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH" validate:"required_if=ObjectStore badger"`
	PublicBaseURL     string        `env:"PUBLIC_BASE_URL,default=http://localhost:8080" validate:"url"`
	MaxPictureBytes   int64         `env:"MAX_PICTURE_BYTES,default=5242880" validate:"min=1"`
	SendTimeout       time.Duration `env:"SEND_TIMEOUT,default=10s"`
	RateLimitRequests int           `env:"RATE_LIMIT_REQUESTS,default=30" validate:"min=1"`
	RateLimitWindow   time.Duration `env:"RATE_LIMIT_WINDOW,default=1m" validate:"gt=0"`
}

func (c Config) Validate() error {
	if err := validator.New(validator.WithRequiredStructEnabled()).Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

func (c Config) Addr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// newLogger writes text records with source locations at the level named
// by level (DEBUG, INFO, WARN, ERROR). Unknown levels fall back to INFO.
func newLogger(level string) *slog.Logger {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(strings.ToUpper(strings.TrimSpace(level)))); err != nil {
		lvl = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		AddSource: true,
		Level:     lvl,
	}))
}
