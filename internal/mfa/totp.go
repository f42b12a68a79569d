// Package mfa implements time-based one-time code enrollment and
// verification as the second authentication factor.
package mfa

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/subtle"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
)

const (
	secretBytes = 20
	codeDigits  = 6
	stepSeconds = 30
)

// stepOffsets is the tolerance window, two 30-second steps either side of
// now to absorb clock drift. A fixed set keeps verification cost constant.
var stepOffsets = [...]int64{-2, -1, 0, 1, 2}

var b32 = base32.StdEncoding.WithPadding(base32.NoPadding)

// GenerateSecret returns a fresh random shared secret, base32-encoded for
// authenticator apps.
func GenerateSecret() (string, error) {
	raw := make([]byte, secretBytes)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("mfa: generate secret: %w", err)
	}
	return b32.EncodeToString(raw), nil
}

// ProvisionURI formats the otpauth enrollment URI carrying issuer, account
// label and secret for QR scanning.
func ProvisionURI(issuer, account, secret string) string {
	label := url.PathEscape(issuer + ":" + account)
	v := url.Values{}
	v.Set("secret", secret)
	v.Set("issuer", issuer)
	v.Set("period", strconv.Itoa(stepSeconds))
	v.Set("digits", strconv.Itoa(codeDigits))
	v.Set("algorithm", "SHA1")
	return "otpauth://totp/" + label + "?" + v.Encode()
}

// VerifyCode checks code against the secret at the given instant, accepting
// codes from up to two 30-second steps either side of now. It returns the
// matched step offset; replay of a code within the window is not rejected
// here (see the engine notes).
func VerifyCode(secret, code string, now time.Time) (bool, int64, error) {
	trimmed := strings.TrimSpace(code)
	if len(trimmed) != codeDigits || !numeric(trimmed) {
		return false, 0, nil
	}
	key, err := b32.DecodeString(strings.ToUpper(secret))
	if err != nil {
		return false, 0, fmt.Errorf("mfa: decode secret: %w", err)
	}
	base := now.Unix() / stepSeconds
	for _, offset := range stepOffsets {
		counter := base + offset
		if counter < 0 {
			continue
		}
		expected := hotpCode(key, counter, codeDigits)
		if subtle.ConstantTimeCompare([]byte(expected), []byte(trimmed)) == 1 {
			return true, offset, nil
		}
	}
	return false, 0, nil
}

// hotpCode computes an RFC 4226 code with dynamic truncation.
func hotpCode(key []byte, counter int64, digits int) string {
	var msg [8]byte
	binary.BigEndian.PutUint64(msg[:], uint64(counter))

	mac := hmac.New(sha1.New, key)
	_, _ = mac.Write(msg[:])
	sum := mac.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	bin := (int(sum[offset])&0x7f)<<24 |
		(int(sum[offset+1])&0xff)<<16 |
		(int(sum[offset+2])&0xff)<<8 |
		(int(sum[offset+3]) & 0xff)

	mod := 1
	for i := 0; i < digits; i++ {
		mod *= 10
	}
	return fmt.Sprintf("%0*d", digits, bin%mod)
}

func numeric(s string) bool {
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
