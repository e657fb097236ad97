package auth

import (
	"encoding/base32"
	"fmt"
	"strings"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
)

// TOTP generates RFC 6238 secrets (SHA1, 6 digits, 30s period) and verifies
// codes against them with a caller-chosen step tolerance.
type TOTP struct {
	issuer string
	now    func() time.Time
}

func NewTOTP(issuer string) *TOTP {
	return &TOTP{issuer: issuer, now: time.Now}
}

func (t *TOTP) generateOpts(account string, secret []byte) totp.GenerateOpts {
	return totp.GenerateOpts{
		Issuer:      t.issuer,
		AccountName: account,
		Period:      30,
		Digits:      otp.DigitsSix,
		Algorithm:   otp.AlgorithmSHA1,
		SecretSize:  20,
		Secret:      secret,
	}
}

// GenerateSecret returns a fresh base32 secret for account.
func (t *TOTP) GenerateSecret(account string) (string, error) {
	key, err := totp.Generate(t.generateOpts(account, nil))
	if err != nil {
		return "", fmt.Errorf("generate totp secret: %w", err)
	}
	return key.Secret(), nil
}

// EnrollmentURL builds the otpauth:// URI an authenticator app scans.
func (t *TOTP) EnrollmentURL(secret, account, issuer string) (string, error) {
	raw, err := base32.StdEncoding.WithPadding(base32.NoPadding).DecodeString(strings.ToUpper(secret))
	if err != nil {
		return "", fmt.Errorf("decode totp secret: %w", err)
	}

	opts := t.generateOpts(account, raw)
	if issuer != "" {
		opts.Issuer = issuer
	}
	key, err := totp.Generate(opts)
	if err != nil {
		return "", fmt.Errorf("build enrollment url: %w", err)
	}
	return key.URL(), nil
}

// Verify checks code against secret, accepting skew periods either side of now.
func (t *TOTP) Verify(secret, code string, skew uint) bool {
	if secret == "" || code == "" {
		return false
	}
	valid, err := totp.ValidateCustom(code, secret, t.now().UTC(), totp.ValidateOpts{
		Period:    30,
		Skew:      skew,
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	return err == nil && valid
}
