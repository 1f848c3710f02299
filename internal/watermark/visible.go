package watermark

import (
	"image"
	"image/color"
	"image/draw"

	"github.com/skip2/go-qrcode"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"
)

// Anchor names a corner (or the center) for the visible overlay.
type Anchor string

const (
	AnchorTopLeft     Anchor = "top-left"
	AnchorTopRight    Anchor = "top-right"
	AnchorBottomLeft  Anchor = "bottom-left"
	AnchorBottomRight Anchor = "bottom-right"
	AnchorCenter      Anchor = "center"
)

// VisibleOptions describes the cosmetic overlay. It is drawn after the
// invisible mark and plays no part in verification.
type VisibleOptions struct {
	Text    string
	QR      bool    // additionally render Text as a QR tile
	Opacity float64 // 0..1, default 0.35
	Anchor  Anchor  // default bottom-right
	Margin  int     // pixels from the anchored edges, default 8
}

const defaultOverlayOpacity = 0.35

// ApplyVisible blends the overlay into pix in place.
func ApplyVisible(pix *Pixmap, opts VisibleOptions) error {
	if err := pix.validate(); err != nil {
		return err
	}
	if opts.Text == "" {
		return nil
	}
	opacity := opts.Opacity
	if opacity <= 0 {
		opacity = defaultOverlayOpacity
	}
	if opacity > 1 {
		opacity = 1
	}
	anchor := opts.Anchor
	if anchor == "" {
		anchor = AnchorBottomRight
	}
	margin := opts.Margin
	if margin <= 0 {
		margin = 8
	}

	label := renderLabel(opts.Text)
	blendAt(pix, label, anchor, margin, opacity)

	if opts.QR {
		qr, err := qrcode.New(opts.Text, qrcode.Medium)
		if err != nil {
			return &Error{Kind: KindEncode, Msg: "render qr overlay", Err: err}
		}
		qr.DisableBorder = true
		side := pix.Width / 6
		if side < 48 {
			side = 48
		}
		tile := qr.Image(side)
		// QR sits in the corner opposite the text so they never collide.
		blendAt(pix, tile, oppositeAnchor(anchor), margin, opacity)
	}
	return nil
}

// renderLabel draws the text onto a transparent strip with a fixed bitmap
// face. Engine overlays are diagnostic stamps, not typography.
func renderLabel(text string) *image.NRGBA {
	face := basicfont.Face7x13
	width := font.MeasureString(face, text).Ceil()
	height := face.Metrics().Height.Ceil()
	img := image.NewNRGBA(image.Rect(0, 0, width+4, height+4))
	d := font.Drawer{
		Dst:  img,
		Src:  image.NewUniform(color.NRGBA{255, 255, 255, 255}),
		Face: face,
		Dot:  fixed.P(2, 2+face.Metrics().Ascent.Ceil()),
	}
	d.DrawString(text)
	return img
}

func oppositeAnchor(a Anchor) Anchor {
	switch a {
	case AnchorTopLeft:
		return AnchorBottomRight
	case AnchorTopRight:
		return AnchorBottomLeft
	case AnchorBottomLeft:
		return AnchorTopRight
	default:
		return AnchorTopLeft
	}
}

// blendAt alpha-blends src into pix at the anchored position with a global
// opacity factor.
func blendAt(pix *Pixmap, src image.Image, anchor Anchor, margin int, opacity float64) {
	sb := src.Bounds()
	sw, sh := sb.Dx(), sb.Dy()

	var ox, oy int
	switch anchor {
	case AnchorTopLeft:
		ox, oy = margin, margin
	case AnchorTopRight:
		ox, oy = pix.Width-sw-margin, margin
	case AnchorBottomLeft:
		ox, oy = margin, pix.Height-sh-margin
	case AnchorCenter:
		ox, oy = (pix.Width-sw)/2, (pix.Height-sh)/2
	default: // bottom-right
		ox, oy = pix.Width-sw-margin, pix.Height-sh-margin
	}

	// Normalize src to NRGBA once so per-pixel reads are cheap.
	nsrc, ok := src.(*image.NRGBA)
	if !ok {
		nsrc = image.NewNRGBA(image.Rect(0, 0, sw, sh))
		draw.Draw(nsrc, nsrc.Rect, src, sb.Min, draw.Src)
	}

	for y := 0; y < sh; y++ {
		dy := oy + y
		if dy < 0 || dy >= pix.Height {
			continue
		}
		for x := 0; x < sw; x++ {
			dx := ox + x
			if dx < 0 || dx >= pix.Width {
				continue
			}
			soff := nsrc.PixOffset(x, y)
			a := float64(nsrc.Pix[soff+3]) / 255 * opacity
			if a == 0 {
				continue
			}
			doff := (dy*pix.Width + dx) * 4
			for c := 0; c < 3; c++ {
				sv := float64(nsrc.Pix[soff+c])
				dv := float64(pix.Pix[doff+c])
				pix.Pix[doff+c] = clampU8(dv*(1-a) + sv*a)
			}
			// Destination alpha untouched.
		}
	}
}
