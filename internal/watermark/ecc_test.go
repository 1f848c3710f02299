package watermark

import (
	"math/rand"
	"testing"
)

func TestRepetitionRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(123))
	for trial := 0; trial < 20; trial++ {
		bits := make([]int, PayloadBits)
		for i := range bits {
			bits[i] = rng.Intn(2)
		}
		coded := encodeRepetition(bits)
		if len(coded) != encodedLength {
			t.Fatalf("coded length %d, want %d", len(coded), encodedLength)
		}
		soft := make([]float64, len(coded))
		for i, b := range coded {
			soft[i] = float64(b)
		}
		decoded, conf := decodeRepetition(soft)
		if conf != 1.0 {
			t.Fatalf("clean decode confidence %v, want 1.0", conf)
		}
		for i := range bits {
			if decoded[i] != bits[i] {
				t.Fatalf("trial %d: bit %d decoded %d, want %d", trial, i, decoded[i], bits[i])
			}
		}
	}
}

// TestRepetitionSingleError: one corrupted sample per triple is outvoted.
func TestRepetitionSingleError(t *testing.T) {
	bits := []int{1, 0, 1, 1, 0}
	coded := encodeRepetition(bits)
	soft := make([]float64, len(coded))
	for i, b := range coded {
		soft[i] = float64(b)
	}
	for i := 0; i < len(bits); i++ {
		soft[i*RepetitionFactor] = 1 - soft[i*RepetitionFactor]
	}
	decoded, conf := decodeRepetition(soft)
	for i := range bits {
		if decoded[i] != bits[i] {
			t.Errorf("bit %d decoded %d, want %d", i, decoded[i], bits[i])
		}
	}
	if conf >= 1.0 || conf <= 0 {
		t.Errorf("damaged decode confidence %v, want in (0,1)", conf)
	}
}

func TestRepetitionSoftCases(t *testing.T) {
	decoded, conf := decodeRepetition([]float64{0.9, 0.8, 0.95, 0.1, 0.2, 0.05})
	if decoded[0] != 1 || decoded[1] != 0 {
		t.Errorf("decoded %v, want [1 0]", decoded)
	}
	if conf <= 0.5 {
		t.Errorf("confidence %v, want > 0.5", conf)
	}

	decoded, conf = decodeRepetition([]float64{0.5, 0.5, 0.5, 0.5, 0.5, 0.5})
	if conf >= 0.1 {
		t.Errorf("all-0.5 confidence %v, want < 0.1", conf)
	}
	// Exact 0.5 means decode to 0.
	for i, b := range decoded {
		if b != 0 {
			t.Errorf("tie bit %d decoded %d, want 0", i, b)
		}
	}
}
