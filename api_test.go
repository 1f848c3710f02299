package fingermark

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"testing"
)

func testImagePNG(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.SetNRGBA(x, y, color.NRGBA{
				R: uint8(96 + (x*7+y*13)%64),
				G: uint8(96 + (x*3+y*5)%64),
				B: uint8(96 + (x*11+y*2)%64),
				A: 255,
			})
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encode fixture: %v", err)
	}
	return buf.Bytes()
}

func TestWatermarkVerifyRoundTrip(t *testing.T) {
	src := testImagePNG(t, 256, 256)
	out, err := Watermark(src, "test-payload", nil)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	if out.Width != 256 || out.Height != 256 {
		t.Errorf("output %dx%d, want 256x256", out.Width, out.Height)
	}
	if out.MimeType != "image/png" {
		t.Errorf("mime = %q, want image/png", out.MimeType)
	}

	res, err := Verify(out.Blob, "test-payload", 0.85)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.IsMatch {
		t.Errorf("IsMatch = false, confidence %v", res.Confidence)
	}
	if res.Confidence < 0.5 {
		t.Errorf("confidence = %v, want >= 0.5", res.Confidence)
	}
}

func TestVerifyWrongPayload(t *testing.T) {
	src := testImagePNG(t, 256, 256)
	out, err := Watermark(src, "payload1", nil)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	res, err := Verify(out.Blob, "payload2", 0)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if res.IsMatch {
		t.Error("IsMatch = true for the wrong payload")
	}
}

func TestVerifyUndecodableIsError(t *testing.T) {
	if _, err := Verify([]byte("not an image"), "p", 0); err == nil {
		t.Fatal("verify of undecodable input did not error")
	}
}

func TestWatermarkWithVisibleOverlay(t *testing.T) {
	src := testImagePNG(t, 256, 256)
	out, err := Watermark(src, "overlay-payload", &Options{
		Visible: &VisibleOptions{Text: "CONFIDENTIAL", QR: true},
	})
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	// The overlay is cosmetic; verification still succeeds through it. The
	// covered blocks lose some votes, so allow a reduced threshold.
	res, err := Verify(out.Blob, "overlay-payload", 0.5)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if !res.IsMatch {
		t.Errorf("IsMatch = false under overlay, confidence %v", res.Confidence)
	}
}

func TestExtractIsDiagnosticOnly(t *testing.T) {
	src := testImagePNG(t, 256, 256)
	out, err := Watermark(src, "the-real-payload", nil)
	if err != nil {
		t.Fatalf("watermark: %v", err)
	}
	hexDigest, _, err := Extract(out.Blob)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if len(hexDigest) != 16 {
		t.Errorf("digest hex length %d, want 16", len(hexDigest))
	}
}
