package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joho/godotenv"
)

type Config struct {
	HTTPHost string
	HTTPPort string
	MySQLDSN string

	JWT      JWTConfig
	Tokens   TokenConfig
	Lockout  LockoutConfig
	Password PasswordConfig
	SMTP     SMTPConfig
	Logging  LoggingConfig
}

type LoggingConfig struct {
	Level  string
	Format string
}

type JWTConfig struct {
	Secret             string
	AccessTokenTTL     time.Duration
	RefreshTokenTTL    time.Duration
	RememberMeTokenTTL time.Duration
}

type TokenConfig struct {
	VerifyTTL time.Duration
	ResetTTL  time.Duration
}

// LockoutConfig is the login throttling policy. The account store itself
// only maintains the failed-attempt counter; the auth service applies this
// policy on top of it. A zero Duration means a locked account stays locked
// until a successful password reset.
type LockoutConfig struct {
	Threshold int
	Duration  time.Duration
}

type PasswordConfig struct {
	Policy PasswordPolicy
}

type SMTPConfig struct {
	Host      string
	Port      int
	User      string
	Password  string
	FromEmail string
	AppURL    string
}

type PasswordPolicy struct {
	MinLength        int
	RequireUppercase bool
	RequireLowercase bool
	RequireNumber    bool
	RequireSpecial   bool
}

func (p PasswordPolicy) Validate(password string) error {
	if len(password) < p.MinLength {
		return fmt.Errorf("password must be at least %d characters long", p.MinLength)
	}

	var hasUpper, hasLower, hasNumber, hasSpecial bool
	for _, ch := range password {
		switch {
		case unicode.IsUpper(ch):
			hasUpper = true
		case unicode.IsLower(ch):
			hasLower = true
		case unicode.IsDigit(ch):
			hasNumber = true
		case unicode.IsPunct(ch) || unicode.IsSymbol(ch):
			hasSpecial = true
		}
	}

	var missing []string
	if p.RequireUppercase && !hasUpper {
		missing = append(missing, "uppercase letter")
	}
	if p.RequireLowercase && !hasLower {
		missing = append(missing, "lowercase letter")
	}
	if p.RequireNumber && !hasNumber {
		missing = append(missing, "number")
	}
	if p.RequireSpecial && !hasSpecial {
		missing = append(missing, "special character")
	}

	if len(missing) > 0 {
		return fmt.Errorf("password must contain at least one: %s", strings.Join(missing, ", "))
	}

	return nil
}

func Load() (*Config, error) {
	// Load .env file if it exists (ignores error if not found)
	_ = godotenv.Load()

	jwtSecret := os.Getenv("JWT_SECRET")
	if jwtSecret == "" {
		return nil, errors.New("JWT_SECRET environment variable is required")
	}

	mysqlDSN := os.Getenv("MYSQL_DSN")
	if mysqlDSN == "" {
		return nil, errors.New("MYSQL_DSN environment variable is required")
	}

	return &Config{
		HTTPHost: getEnv("HTTP_HOST", ""),
		HTTPPort: getEnv("HTTP_PORT", "8080"),
		MySQLDSN: mysqlDSN,
		JWT: JWTConfig{
			Secret:             jwtSecret,
			AccessTokenTTL:     getDurationEnv("JWT_ACCESS_TOKEN_TTL", 15*time.Minute),
			RefreshTokenTTL:    getDurationEnv("JWT_REFRESH_TOKEN_TTL", 7*24*time.Hour),
			RememberMeTokenTTL: getDurationEnv("JWT_REMEMBER_ME_TOKEN_TTL", 30*24*time.Hour),
		},
		Tokens: TokenConfig{
			VerifyTTL: getDurationEnv("VERIFY_TOKEN_TTL", 24*time.Hour),
			ResetTTL:  getDurationEnv("RESET_TOKEN_TTL", 10*time.Minute),
		},
		Lockout: LockoutConfig{
			Threshold: getIntEnv("LOCKOUT_THRESHOLD", 5),
			Duration:  getDurationEnv("LOCKOUT_DURATION", 15*time.Minute),
		},
		Password: PasswordConfig{
			Policy: loadPasswordPolicy(),
		},
		SMTP: SMTPConfig{
			Host:      getEnv("SMTP_HOST", ""),
			Port:      getIntEnv("SMTP_PORT", 587),
			User:      getEnv("SMTP_USER", ""),
			Password:  getEnv("SMTP_PASSWORD", ""),
			FromEmail: getEnv("FROM_EMAIL", "no-reply@localhost"),
			AppURL:    getEnv("APP_URL", "http://localhost:8080"),
		},
		Logging: LoggingConfig{
			Level:  getEnv("LOG_LEVEL", "info"),
			Format: getEnv("LOG_FORMAT", "json"),
		},
	}, nil
}

func (c *Config) DSN() string {
	return c.MySQLDSN
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getDurationEnv(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if minutes, err := strconv.Atoi(value); err == nil {
			return time.Duration(minutes) * time.Minute
		}
	}
	return defaultValue
}

func getBoolEnv(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if n, err := strconv.Atoi(value); err == nil {
			return n
		}
	}
	return defaultValue
}

func loadPasswordPolicy() PasswordPolicy {
	return PasswordPolicy{
		MinLength:        getIntEnv("PASSWORD_MIN_LENGTH", 8),
		RequireUppercase: getBoolEnv("PASSWORD_REQUIRE_UPPERCASE", true),
		RequireLowercase: getBoolEnv("PASSWORD_REQUIRE_LOWERCASE", true),
		RequireNumber:    getBoolEnv("PASSWORD_REQUIRE_NUMBER", true),
		RequireSpecial:   getBoolEnv("PASSWORD_REQUIRE_SPECIAL", false),
	}
}
