package watermark

import (
	"math/rand"
	"testing"
)

func grayPixmap(w, h int, v uint8) *Pixmap {
	p := NewPixmap(w, h)
	for i := 0; i < w*h; i++ {
		p.Pix[i*4] = v
		p.Pix[i*4+1] = v
		p.Pix[i*4+2] = v
		p.Pix[i*4+3] = 255
	}
	return p
}

// noisePixmap keeps channel values in the middle of the 8-bit range so the
// embedding delta never clamps.
func noisePixmap(w, h int, seed int64) *Pixmap {
	rng := rand.New(rand.NewSource(seed))
	p := NewPixmap(w, h)
	for i := 0; i < w*h; i++ {
		p.Pix[i*4] = uint8(64 + rng.Intn(128))
		p.Pix[i*4+1] = uint8(64 + rng.Intn(128))
		p.Pix[i*4+2] = uint8(64 + rng.Intn(128))
		p.Pix[i*4+3] = 255
	}
	return p
}

func TestRoundTripConstantGray(t *testing.T) {
	src := grayPixmap(256, 256, 128)
	digest := DeriveDigest("test-payload")

	marked, err := EmbedDigest(src, digest)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}

	res, err := VerifyPixels(marked, "test-payload", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.IsMatch {
		t.Errorf("isMatch = false, want true (confidence %v, recovered %s)", res.Confidence, res.Recovered.Hex())
	}
	if res.Confidence < 0.5 {
		t.Errorf("confidence = %v, want >= 0.5", res.Confidence)
	}
}

func TestRoundTripNoise(t *testing.T) {
	for _, seed := range []int64{1, 99} {
		src := noisePixmap(320, 240, seed)
		payload := "noise-payload"
		marked, err := EmbedDigest(src, DeriveDigest(payload))
		if err != nil {
			t.Fatalf("embed: %v", err)
		}
		res, err := VerifyPixels(marked, payload, 0)
		if err != nil {
			t.Fatalf("verify: %v", err)
		}
		if !res.IsMatch {
			t.Errorf("seed %d: isMatch = false, confidence %v", seed, res.Confidence)
		}
	}
}

func TestWrongPayload(t *testing.T) {
	src := grayPixmap(256, 256, 128)
	marked, err := EmbedDigest(src, DeriveDigest("payload1"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	res, err := VerifyPixels(marked, "payload2", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.IsMatch {
		t.Errorf("isMatch = true for wrong payload (confidence %v)", res.Confidence)
	}
}

func TestUnmarkedImage(t *testing.T) {
	src := grayPixmap(256, 256, 128)
	res, err := VerifyPixels(src, "any-payload", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.IsMatch {
		t.Errorf("isMatch = true on an unmarked image (confidence %v)", res.Confidence)
	}
	if res.Confidence >= 0.85 {
		t.Errorf("confidence = %v on an unmarked image, want < threshold", res.Confidence)
	}
}

func TestVerifyIdempotent(t *testing.T) {
	src := noisePixmap(256, 256, 7)
	marked, err := EmbedDigest(src, DeriveDigest("idem"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	a, err := VerifyPixels(marked, "idem", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	b, err := VerifyPixels(marked, "idem", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if a != b {
		t.Errorf("verify not idempotent: %+v vs %+v", a, b)
	}
}

func TestShapeAndAlphaPreserved(t *testing.T) {
	src := noisePixmap(264, 184, 3)
	// Vary alpha so preservation is actually observable.
	for i := 0; i < src.Width*src.Height; i++ {
		src.Pix[i*4+3] = uint8(i % 256)
	}
	marked, err := EmbedDigest(src, DeriveDigest("alpha"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	if marked.Width != src.Width || marked.Height != src.Height {
		t.Fatalf("dimensions changed: %dx%d -> %dx%d", src.Width, src.Height, marked.Width, marked.Height)
	}
	if len(marked.Pix) != len(src.Pix) {
		t.Fatalf("buffer length changed: %d -> %d", len(src.Pix), len(marked.Pix))
	}
	for i := 0; i < src.Width*src.Height; i++ {
		if marked.Pix[i*4+3] != src.Pix[i*4+3] {
			t.Fatalf("alpha changed at pixel %d", i)
		}
	}
}

// TestPartialStripsUntouched: pixels right of the last whole block column and
// below the last whole block row must be byte-identical.
func TestPartialStripsUntouched(t *testing.T) {
	src := noisePixmap(260, 180, 11) // 4-pixel strips on both edges
	marked, err := EmbedDigest(src, DeriveDigest("strips"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	blocksX := src.Width / BlockSize
	blocksY := src.Height / BlockSize
	for y := 0; y < src.Height; y++ {
		for x := 0; x < src.Width; x++ {
			if x < blocksX*BlockSize && y < blocksY*BlockSize {
				continue
			}
			off := (y*src.Width + x) * 4
			for c := 0; c < 4; c++ {
				if marked.Pix[off+c] != src.Pix[off+c] {
					t.Fatalf("strip pixel (%d,%d) channel %d modified", x, y, c)
				}
			}
		}
	}
}

func TestTooSmallImage(t *testing.T) {
	src := grayPixmap(4, 4, 128)
	marked, err := EmbedDigest(src, DeriveDigest("tiny"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	for i := range src.Pix {
		if marked.Pix[i] != src.Pix[i] {
			t.Fatalf("pixel byte %d modified on too-small image", i)
		}
	}
	res, err := VerifyPixels(marked, "tiny", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.IsMatch {
		t.Error("isMatch = true on a too-small image")
	}
	if res.Confidence != 0 {
		t.Errorf("confidence = %v on a too-small image, want 0", res.Confidence)
	}
}

func TestInputShapeErrors(t *testing.T) {
	bad := &Pixmap{Width: 16, Height: 16, Pix: make([]uint8, 16)}
	if _, err := EmbedDigest(bad, DeriveDigest("x")); err == nil {
		t.Error("embed accepted a short pixel buffer")
	}
	zero := &Pixmap{Width: 0, Height: 0}
	if _, _, err := ExtractDigest(zero, DeriveDigest("x")); err == nil {
		t.Error("extract accepted zero dimensions")
	}
}

// TestEmbedInvisibility: the per-channel delta on a mid-gray image stays
// small enough to be imperceptible.
func TestEmbedInvisibility(t *testing.T) {
	src := grayPixmap(256, 256, 128)
	marked, err := EmbedDigest(src, DeriveDigest("test-payload"))
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	rep, err := Quality(src, marked)
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	if rep.MaxDelta > 16 {
		t.Errorf("max channel delta = %v, want <= 16", rep.MaxDelta)
	}
	if rep.PSNR < 40 {
		t.Errorf("PSNR = %v dB, want >= 40", rep.PSNR)
	}
}

func TestDebugExtractDiffersFromTrueDigest(t *testing.T) {
	src := grayPixmap(256, 256, 128)
	digest := DeriveDigest("real-payload")
	marked, err := EmbedDigest(src, digest)
	if err != nil {
		t.Fatalf("embed: %v", err)
	}
	got, _, err := DebugExtract(marked)
	if err != nil {
		t.Fatalf("debug extract: %v", err)
	}
	if got == digest {
		t.Error("diagnostic seed recovered the embedded digest; it must not be able to")
	}
}
