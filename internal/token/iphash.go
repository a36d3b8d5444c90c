package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
)

// IPHasher keys client IPs with HMAC-SHA256. It hashes a bare IP, so its
// output never collides with a token signature input.
type IPHasher struct {
	secret []byte
}

func NewIPHasher(secret string) (*IPHasher, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	return &IPHasher{secret: []byte(secret)}, nil
}

func (h *IPHasher) Hash(ip string) string {
	mac := hmac.New(sha256.New, h.secret)
	mac.Write([]byte(ip))
	return hex.EncodeToString(mac.Sum(nil))
}
