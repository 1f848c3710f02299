// Package auth implements bearer API keys. A key is "fm_" plus 64 hex
// characters; the first 8 of those are stored in clear as a lookup prefix
// and the full key is stored bcrypt-hashed, so a database leak does not leak
// usable credentials.
package auth

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/maevik/fingermark/internal/db"
)

const (
	KeyScheme    = "fm_"
	keyRandBytes = 32
	prefixLen    = 8
)

type contextKey string

const keyIDKey contextKey = "api_key_id"

// GenerateKey returns a fresh plaintext key plus its lookup prefix and
// bcrypt hash. The plaintext is shown once and never stored.
func GenerateKey() (plaintext, prefix, hash string, err error) {
	buf := make([]byte, keyRandBytes)
	if _, err = rand.Read(buf); err != nil {
		return "", "", "", err
	}
	body := hex.EncodeToString(buf)
	plaintext = KeyScheme + body
	prefix = body[:prefixLen]

	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", "", err
	}
	return plaintext, prefix, string(h), nil
}

// HashKey derives the lookup prefix and bcrypt hash for an externally
// supplied plaintext key (the bootstrap path).
func HashKey(plaintext string) (prefix, hash string, err error) {
	if !strings.HasPrefix(plaintext, KeyScheme) {
		return "", "", fmt.Errorf("api key must start with %q", KeyScheme)
	}
	body := strings.TrimPrefix(plaintext, KeyScheme)
	if len(body) < prefixLen {
		return "", "", fmt.Errorf("api key too short")
	}
	h, err := bcrypt.GenerateFromPassword([]byte(plaintext), bcrypt.DefaultCost)
	if err != nil {
		return "", "", err
	}
	return body[:prefixLen], string(h), nil
}

// ValidateKey checks a presented key against the store. Returns the key row
// ID on success.
func ValidateKey(database *sql.DB, presented string) (string, bool) {
	if !strings.HasPrefix(presented, KeyScheme) {
		return "", false
	}
	body := strings.TrimPrefix(presented, KeyScheme)
	if len(body) < prefixLen {
		return "", false
	}

	row, err := db.GetAPIKeyByPrefix(database, body[:prefixLen])
	if err != nil || row == nil {
		return "", false
	}
	if bcrypt.CompareHashAndPassword([]byte(row.KeyHash), []byte(presented)) != nil {
		return "", false
	}
	db.TouchAPIKeyUsed(database, row.ID)
	return row.ID, true
}

func ContextWithKeyID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, keyIDKey, id)
}

func KeyIDFromContext(ctx context.Context) string {
	v, _ := ctx.Value(keyIDKey).(string)
	return v
}
