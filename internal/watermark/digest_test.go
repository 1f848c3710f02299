package watermark

import (
	"testing"
)

func TestDeriveDigestKnownAnswer(t *testing.T) {
	// First 8 bytes of SHA-256("test-payload" || ModuleSalt).
	got := DeriveDigest("test-payload")
	if got.Hex() != "41a8712d6eaec840" {
		t.Fatalf("digest = %s, want 41a8712d6eaec840", got.Hex())
	}
}

func TestDeriveDigestStability(t *testing.T) {
	payloads := []string{"", "a", "test-payload", "üñïçødé ⌘", "line\nbreak"}
	for _, p := range payloads {
		a := DeriveDigest(p)
		b := DeriveDigest(p)
		if a != b {
			t.Errorf("digest of %q not stable: %s vs %s", p, a.Hex(), b.Hex())
		}
		if len(a) != DigestLength {
			t.Errorf("digest length %d, want %d", len(a), DigestLength)
		}
	}
}

// TestSaltSensitivity: a payload with the salt pre-appended must not collide
// with the bare payload, otherwise the salt adds nothing.
func TestSaltSensitivity(t *testing.T) {
	p := "some payload"
	if DeriveDigest(p) == DeriveDigest(p+ModuleSalt) {
		t.Fatal("derive(p) == derive(p || salt)")
	}
}

func TestDigestBitsRoundTrip(t *testing.T) {
	digests := []Digest{
		{},
		{0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff, 0xff},
		{0x80, 0x01, 0xaa, 0x55, 0x0f, 0xf0, 0x3c, 0xc3},
		DeriveDigest("round-trip"),
	}
	for _, d := range digests {
		if got := digestFromBits(d.bits()); got != d {
			t.Errorf("bits round-trip: got %s, want %s", got.Hex(), d.Hex())
		}
	}
}

// TestDigestBitOrder pins MSB-first expansion: byte 0x80 must produce a 1 in
// bit position 0.
func TestDigestBitOrder(t *testing.T) {
	d := Digest{0x80}
	bits := d.bits()
	if bits[0] != 1 {
		t.Errorf("bit 0 of 0x80 = %d, want 1", bits[0])
	}
	for i := 1; i < PayloadBits; i++ {
		if bits[i] != 0 {
			t.Errorf("bit %d of 0x80.. = %d, want 0", i, bits[i])
		}
	}
}
