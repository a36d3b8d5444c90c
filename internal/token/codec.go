// Package token issues and verifies the stateless session tokens that gate
// engagement, and hashes client IPs with the same HMAC keying convention.
package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrEmptySecret  = errors.New("token secret is empty")
	ErrMalformed    = errors.New("malformed token")
	ErrBadSignature = errors.New("bad token signature")
	ErrExpired      = errors.New("token expired")
)

// Payload is the signed body of a session token. Only the fields below are
// ever serialized; registered JWT claims other than exp are not used.
type Payload struct {
	ShortLinkID int64  `json:"shortLinkId"`
	Slug        string `json:"slug"`
	UserID      *int64 `json:"userId,omitempty"`
	Nonce       string `json:"nonce"`
	Exp         int64  `json:"exp"`
	IPHash      string `json:"ipHash,omitempty"`
}

func (p Payload) GetExpirationTime() (*jwt.NumericDate, error) {
	if p.Exp == 0 {
		return nil, nil
	}
	return jwt.NewNumericDate(time.Unix(p.Exp, 0)), nil
}

func (p Payload) GetIssuedAt() (*jwt.NumericDate, error)  { return nil, nil }
func (p Payload) GetNotBefore() (*jwt.NumericDate, error) { return nil, nil }
func (p Payload) GetIssuer() (string, error)              { return "", nil }
func (p Payload) GetSubject() (string, error)             { return "", nil }
func (p Payload) GetAudience() (jwt.ClaimStrings, error)  { return nil, nil }

// Codec signs payloads as header.payload.signature with HMAC-SHA256.
type Codec struct {
	secret []byte
	now    func() time.Time
}

// NewCodec создаёт кодек с общим для процесса секретом
func NewCodec(secret string) (*Codec, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &Codec{secret: []byte(secret), now: time.Now}, nil
}

// WithClock подменяет источник времени (для тестов)
func (c *Codec) WithClock(now func() time.Time) *Codec {
	c.now = now
	return c
}

// Issue подписывает payload и возвращает токен
func (c *Codec) Issue(p Payload) (string, error) {
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, p).SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return signed, nil
}

// Verify проверяет подпись и срок действия токена.
// Ошибка всегда одна из ErrMalformed, ErrBadSignature, ErrExpired.
func (c *Codec) Verify(raw string) (*Payload, error) {
	var p Payload
	_, err := jwt.ParseWithClaims(raw, &p, func(*jwt.Token) (any, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
		jwt.WithStrictDecoding(),
		jwt.WithTimeFunc(c.now),
	)
	if err != nil {
		return nil, classify(err)
	}
	return &p, nil
}

func classify(err error) error {
	switch {
	case errors.Is(err, jwt.ErrTokenSignatureInvalid), errors.Is(err, jwt.ErrTokenUnverifiable):
		return ErrBadSignature
	case errors.Is(err, jwt.ErrTokenExpired):
		return ErrExpired
	default:
		return ErrMalformed
	}
}
