package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var ErrInvalidToken = errors.New("invalid session token")

// claims carries the session kind next to the registered claims so a
// customer token can never be replayed as an admin token.
type claims struct {
	Kind Kind `json:"kind"`
	jwt.RegisteredClaims
}

// Secrets holds the HMAC keys for each session kind.
type Secrets struct {
	Customer []byte
	Admin    []byte
}

func (s Secrets) forKind(kind Kind) ([]byte, error) {
	switch kind {
	case KindCustomer:
		return s.Customer, nil
	case KindAdmin:
		return s.Admin, nil
	default:
		return nil, fmt.Errorf("no secret for session kind %q", kind)
	}
}

// Issuer mints HS256 session tokens.
type Issuer struct {
	secrets Secrets
	ttl     time.Duration
	now     func() time.Time
}

func NewIssuer(secrets Secrets, ttl time.Duration) *Issuer {
	return &Issuer{secrets: secrets, ttl: ttl, now: time.Now}
}

func (i *Issuer) Issue(kind Kind, userID string) (string, error) {
	secret, err := i.secrets.forKind(kind)
	if err != nil {
		return "", err
	}

	now := i.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		Kind: kind,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	})

	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("sign session token: %w", err)
	}
	return signed, nil
}

// parse verifies raw with the secret for kind and returns the user id.
func parse(raw string, kind Kind, secret []byte, now func() time.Time) (string, error) {
	if raw == "" || len(secret) == 0 {
		return "", ErrInvalidToken
	}

	var c claims
	_, err := jwt.ParseWithClaims(raw, &c, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if c.Kind != kind || c.Subject == "" {
		return "", ErrInvalidToken
	}
	return c.Subject, nil
}
