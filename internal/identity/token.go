// Package identity resolves the caller from a signed session token.
package identity

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"jusdown/internal/errs"
)

// Claims is the session token payload.
type Claims struct {
	Sub string `json:"sub"`
	Exp int64  `json:"exp"`
}

var tokenHeader = base64.RawURLEncoding.EncodeToString([]byte(`{"alg":"HS256","typ":"JWT"}`))

// Sign returns an HS256 JWT for claims.
func Sign(secret string, claims Claims) (string, error) {
	payload, err := json.Marshal(claims)
	if err != nil {
		return "", fmt.Errorf("marshal claims: %w", err)
	}

	data := tokenHeader + "." + base64.RawURLEncoding.EncodeToString(payload)

	return data + "." + hmacSign(secret, data), nil
}

// Verify checks the signature and expiry of token at now.
func Verify(secret, token string, now time.Time) (*Claims, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errs.ErrInvalidToken
	}

	expected := hmacSign(secret, parts[0]+"."+parts[1])
	if !hmac.Equal([]byte(expected), []byte(parts[2])) {
		return nil, fmt.Errorf("signature mismatch: %w", errs.ErrInvalidToken)
	}

	payload, err := base64.RawURLEncoding.DecodeString(parts[1])
	if err != nil {
		return nil, fmt.Errorf("decode payload: %w", errs.ErrInvalidToken)
	}

	var claims Claims
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, fmt.Errorf("unmarshal payload: %w", errs.ErrInvalidToken)
	}

	if strings.TrimSpace(claims.Sub) == "" {
		return nil, fmt.Errorf("empty subject: %w", errs.ErrInvalidToken)
	}

	if claims.Exp != 0 && now.Unix() > claims.Exp {
		return nil, errs.ErrTokenExpired
	}

	return &claims, nil
}

func hmacSign(secret, data string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(data))

	return base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}
