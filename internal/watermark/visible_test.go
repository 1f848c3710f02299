package watermark

import "testing"

func TestApplyVisibleChangesPixels(t *testing.T) {
	pix := grayPixmap(256, 256, 128)
	orig := pix.Clone()

	err := ApplyVisible(pix, VisibleOptions{Text: "CONFIDENTIAL"})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}

	changed := 0
	for i := range pix.Pix {
		if pix.Pix[i] != orig.Pix[i] {
			changed++
		}
	}
	if changed == 0 {
		t.Error("overlay changed no pixels")
	}
	for i := 0; i < pix.Width*pix.Height; i++ {
		if pix.Pix[i*4+3] != orig.Pix[i*4+3] {
			t.Fatal("overlay modified alpha")
		}
	}
}

func TestApplyVisibleEmptyTextNoop(t *testing.T) {
	pix := grayPixmap(64, 64, 100)
	orig := pix.Clone()
	if err := ApplyVisible(pix, VisibleOptions{}); err != nil {
		t.Fatalf("apply: %v", err)
	}
	for i := range pix.Pix {
		if pix.Pix[i] != orig.Pix[i] {
			t.Fatal("empty overlay modified pixels")
		}
	}
}

func TestApplyVisibleQRTile(t *testing.T) {
	pix := grayPixmap(512, 512, 128)
	err := ApplyVisible(pix, VisibleOptions{Text: "payload-7", QR: true, Anchor: AnchorBottomRight})
	if err != nil {
		t.Fatalf("apply: %v", err)
	}
	// QR tile lands in the opposite corner from the text; check some pixel
	// in the top-left region moved.
	changed := false
	for y := 0; y < 64 && !changed; y++ {
		for x := 0; x < 64; x++ {
			off := (y*pix.Width + x) * 4
			if pix.Pix[off] != 128 {
				changed = true
				break
			}
		}
	}
	if !changed {
		t.Error("QR tile not rendered in the opposite corner")
	}
}

func TestQualityIdentical(t *testing.T) {
	a := grayPixmap(64, 64, 90)
	rep, err := Quality(a, a.Clone())
	if err != nil {
		t.Fatalf("quality: %v", err)
	}
	if rep.MSE != 0 || rep.MaxDelta != 0 {
		t.Errorf("identical buffers scored MSE %v, max delta %v", rep.MSE, rep.MaxDelta)
	}
}

func TestQualityMismatchedShape(t *testing.T) {
	if _, err := Quality(grayPixmap(8, 8, 0), grayPixmap(16, 16, 0)); err == nil {
		t.Error("quality accepted mismatched dimensions")
	}
}
