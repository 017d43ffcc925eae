package auth

import (
	"encoding/base32"
	"fmt"
	"time"

	"github.com/pquerna/otp"
	"github.com/pquerna/otp/hotp"
)

const verifySecretLen = 20

// GenerateVerifyCode returns a fresh six digit numeric code.
// Each code is an HOTP value over a throwaway random secret, so codes are
// uniformly distributed and zero padded.
func GenerateVerifyCode(now time.Time) (string, error) {
	secret := make([]byte, verifySecretLen)
	if _, err := randomBytes(secret); err != nil {
		return "", fmt.Errorf("failed to generate verification secret: %w", err)
	}

	encoded := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(secret)
	code, err := hotp.GenerateCodeCustom(encoded, uint64(now.Unix()), hotp.ValidateOpts{
		Digits:    otp.DigitsSix,
		Algorithm: otp.AlgorithmSHA1,
	})
	if err != nil {
		return "", fmt.Errorf("failed to generate verification code: %w", err)
	}
	return code, nil
}
