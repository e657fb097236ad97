package config

import (
	"encoding/json"
	"os"
	"time"

	"github.com/dmitrijs2005/authkeeper/internal/flagx"
	"github.com/dmitrijs2005/authkeeper/internal/timex"
)

// JsonConfig is the on-disk shape of the JSON config file. Durations use
// timex.Duration so both "15m" and integer nanoseconds are accepted; pointer
// fields distinguish "false"/"0" from "not set".
type JsonConfig struct {
	HTTPAddr    string `json:"http_addr"`
	DatabaseDSN string `json:"database_dsn"`
	SecretKey   string `json:"secret_key"`

	AccessTokenValidityDuration   timex.Duration `json:"access_token_validity_duration"`
	RefreshTokenValidityDuration  timex.Duration `json:"refresh_token_validity_duration"`
	MaxSessionDuration            timex.Duration `json:"max_session_duration"`
	PasswordResetValidityDuration timex.Duration `json:"password_reset_validity_duration"`

	BcryptCost     int      `json:"bcrypt_cost"`
	AppName        string   `json:"app_name"`
	FrontendURL    string   `json:"frontend_url"`
	AllowedOrigins []string `json:"allowed_origins"`

	SMTPHost     string `json:"smtp_host"`
	SMTPPort     int    `json:"smtp_port"`
	SMTPUser     string `json:"smtp_user"`
	SMTPPassword string `json:"smtp_password"`
	SMTPFrom     string `json:"smtp_from"`

	RedisAddr        string `json:"redis_addr"`
	RedisPassword    string `json:"redis_password"`
	RedisDB          *int   `json:"redis_db"`
	MailQueueEnabled *bool  `json:"mail_queue_enabled"`

	GoogleClientID     string `json:"google_client_id"`
	GoogleClientSecret string `json:"google_client_secret"`
	GoogleRedirectURL  string `json:"google_redirect_url"`
	OAuthActivatesUser *bool  `json:"oauth_activates_user"`

	LogLevel  string `json:"log_level"`
	LogFormat string `json:"log_format"`
}

// parseJson loads the file named by -c/-config (if any) and copies every
// field that is present onto config. Unreadable files or invalid JSON panic,
// as a misconfigured server must not start.
func parseJson(config *Config) {
	jsonConfigFile := flagx.JsonConfigFlags()
	if jsonConfigFile == "" {
		return
	}

	file, err := os.ReadFile(jsonConfigFile)
	if err != nil {
		panic(err)
	}

	c := &JsonConfig{}
	if err := json.Unmarshal(file, c); err != nil {
		panic(err)
	}

	setString(&config.HTTPAddr, c.HTTPAddr)
	setString(&config.DatabaseDSN, c.DatabaseDSN)
	setString(&config.SecretKey, c.SecretKey)
	setDuration(&config.AccessTokenValidityDuration, c.AccessTokenValidityDuration)
	setDuration(&config.RefreshTokenValidityDuration, c.RefreshTokenValidityDuration)
	setDuration(&config.MaxSessionDuration, c.MaxSessionDuration)
	setDuration(&config.PasswordResetValidityDuration, c.PasswordResetValidityDuration)
	if c.BcryptCost != 0 {
		config.BcryptCost = c.BcryptCost
	}
	setString(&config.AppName, c.AppName)
	setString(&config.FrontendURL, c.FrontendURL)
	if len(c.AllowedOrigins) > 0 {
		config.AllowedOrigins = c.AllowedOrigins
	}
	setString(&config.SMTPHost, c.SMTPHost)
	if c.SMTPPort != 0 {
		config.SMTPPort = c.SMTPPort
	}
	setString(&config.SMTPUser, c.SMTPUser)
	setString(&config.SMTPPassword, c.SMTPPassword)
	setString(&config.SMTPFrom, c.SMTPFrom)
	setString(&config.RedisAddr, c.RedisAddr)
	setString(&config.RedisPassword, c.RedisPassword)
	if c.RedisDB != nil {
		config.RedisDB = *c.RedisDB
	}
	if c.MailQueueEnabled != nil {
		config.MailQueueEnabled = *c.MailQueueEnabled
	}
	setString(&config.GoogleClientID, c.GoogleClientID)
	setString(&config.GoogleClientSecret, c.GoogleClientSecret)
	setString(&config.GoogleRedirectURL, c.GoogleRedirectURL)
	if c.OAuthActivatesUser != nil {
		config.OAuthActivatesUser = *c.OAuthActivatesUser
	}
	setString(&config.LogLevel, c.LogLevel)
	setString(&config.LogFormat, c.LogFormat)
}

func setString(dst *string, v string) {
	if v != "" {
		*dst = v
	}
}

func setDuration(dst *time.Duration, v timex.Duration) {
	if v.Duration != 0 {
		*dst = v.Duration
	}
}
