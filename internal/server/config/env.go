package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/joho/godotenv"
)

// parseEnv overlays Config with environment variables. A dotenv file given
// by -env-file (or ./.env when present) is loaded first; variables already
// set in the process environment take precedence over the file.
//
// Variables that are unset or fail to parse leave the current value as is.
func parseEnv(config *Config) {
	envFile := flagx.EnvFileFlags()
	if envFile == "" {
		if _, err := os.Stat(".env"); err == nil {
			envFile = ".env"
		}
	}
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil {
			panic(err)
		}
	}

	envString(&config.HTTPAddr, "HTTP_ADDR")
	envString(&config.DatabaseDSN, "DATABASE_DSN")
	envString(&config.SecretKey, "JWT_SECRET")
	envDuration(&config.AccessTokenValidityDuration, "ACCESS_TOKEN_TTL")
	envDuration(&config.RefreshTokenValidityDuration, "REFRESH_TOKEN_TTL")
	envDuration(&config.MaxSessionDuration, "MAX_SESSION_DURATION")
	envDuration(&config.PasswordResetValidityDuration, "PASSWORD_RESET_TTL")
	envInt(&config.BcryptCost, "BCRYPT_COST")
	envString(&config.AppName, "APP_NAME")
	envString(&config.FrontendURL, "FRONTEND_URL")
	envList(&config.AllowedOrigins, "ALLOWED_ORIGINS")
	envString(&config.SMTPHost, "EMAIL_HOST")
	envInt(&config.SMTPPort, "EMAIL_PORT")
	envString(&config.SMTPUser, "EMAIL_USER")
	envString(&config.SMTPPassword, "EMAIL_PASSWORD")
	envString(&config.SMTPFrom, "EMAIL_FROM")
	envString(&config.RedisAddr, "REDIS_ADDR")
	envString(&config.RedisPassword, "REDIS_PASSWORD")
	envInt(&config.RedisDB, "REDIS_DB")
	envBool(&config.MailQueueEnabled, "MAIL_QUEUE_ENABLED")
	envString(&config.GoogleClientID, "GOOGLE_CLIENT_ID")
	envString(&config.GoogleClientSecret, "GOOGLE_CLIENT_SECRET")
	envString(&config.GoogleRedirectURL, "GOOGLE_REDIRECT_URL")
	envBool(&config.OAuthActivatesUser, "OAUTH_ACTIVATES_USER")
	envString(&config.LogLevel, "LOG_LEVEL")
	envString(&config.LogFormat, "LOG_FORMAT")
}

func envString(dst *string, key string) {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		*dst = v
	}
}

func envInt(dst *int, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
			*dst = n
		}
	}
}

func envBool(dst *bool, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if b, err := strconv.ParseBool(strings.TrimSpace(v)); err == nil {
			*dst = b
		}
	}
}

func envDuration(dst *time.Duration, key string) {
	if v, ok := os.LookupEnv(key); ok {
		if d, err := time.ParseDuration(strings.TrimSpace(v)); err == nil {
			*dst = d
		}
	}
}

func envList(dst *[]string, key string) {
	v, ok := os.LookupEnv(key)
	if !ok || strings.TrimSpace(v) == "" {
		return
	}
	var out []string
	for _, item := range strings.Split(v, ",") {
		if item = strings.TrimSpace(item); item != "" {
			out = append(out, item)
		}
	}
	*dst = out
}
