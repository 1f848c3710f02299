package auth_test

import (
	"strings"
	"testing"

	fingermark "github.com/maevik/fingermark"
	"github.com/maevik/fingermark/internal/auth"
	"github.com/maevik/fingermark/internal/db"
	"github.com/maevik/fingermark/internal/model"
)

func TestGenerateKeyShape(t *testing.T) {
	plaintext, prefix, hash, err := auth.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if !strings.HasPrefix(plaintext, auth.KeyScheme) {
		t.Errorf("key %q lacks scheme prefix", plaintext)
	}
	if len(prefix) != 8 {
		t.Errorf("prefix length %d, want 8", len(prefix))
	}
	if !strings.HasPrefix(strings.TrimPrefix(plaintext, auth.KeyScheme), prefix) {
		t.Errorf("prefix %q is not a prefix of the key body", prefix)
	}
	if hash == "" || hash == plaintext {
		t.Error("hash missing or equal to plaintext")
	}
}

func TestValidateKey(t *testing.T) {
	database, err := db.Open(t.TempDir())
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	defer database.Close()
	if err := db.Migrate(database, fingermark.MigrationFS); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	plaintext, prefix, hash, err := auth.GenerateKey()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := db.CreateAPIKey(database, &model.APIKey{
		ID: "k1", Name: "test", KeyPrefix: prefix, KeyHash: hash,
	}); err != nil {
		t.Fatalf("store: %v", err)
	}

	id, ok := auth.ValidateKey(database, plaintext)
	if !ok || id != "k1" {
		t.Errorf("valid key rejected: ok=%v id=%q", ok, id)
	}

	if _, ok := auth.ValidateKey(database, plaintext+"0"); ok {
		t.Error("tampered key accepted")
	}
	if _, ok := auth.ValidateKey(database, "fm_0000000000000000"); ok {
		t.Error("unknown key accepted")
	}
	if _, ok := auth.ValidateKey(database, "not-a-key"); ok {
		t.Error("malformed key accepted")
	}
}

func TestHashKeyRejectsMalformed(t *testing.T) {
	if _, _, err := auth.HashKey("plainkey"); err == nil {
		t.Error("HashKey accepted a key without the scheme prefix")
	}
	if _, _, err := auth.HashKey(auth.KeyScheme + "abc"); err == nil {
		t.Error("HashKey accepted a too-short key")
	}
}
