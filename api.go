// Package fingermark embeds and verifies invisible digital watermarks in
// raster images. A 64-bit fingerprint of an arbitrary payload is written
// into the sign pattern of mid-frequency DCT coefficients in the luminance
// channel; verification recovers the fingerprint from a possibly re-encoded
// copy and scores it against the expected payload.
//
// This package is the library surface over the codec in internal/watermark;
// the HTTP service in cmd/server and the CLI in cmd/fingermark are thin
// shells over the same calls.
package fingermark

import (
	"github.com/maevik/fingermark/internal/imageio"
	"github.com/maevik/fingermark/internal/watermark"
)

// VerifyResult reports the outcome of a verification.
type VerifyResult = watermark.VerifyResult

// VisibleOptions configures the optional cosmetic overlay.
type VisibleOptions = watermark.VisibleOptions

// Image is an encoded watermarking result.
type Image struct {
	Blob     []byte
	Width    int
	Height   int
	MimeType string
}

// Options tune a Watermark call. The zero value is usable.
type Options struct {
	// JPEGQuality in [1,100]; 0 selects the default (92). Only observed
	// by lossy target encodings.
	JPEGQuality int
	// MimeType forces the output encoding. Empty keeps lossy inputs lossy
	// and everything else PNG.
	MimeType string
	// Visible adds a translucent overlay after the invisible mark. It
	// plays no part in verification.
	Visible *VisibleOptions
}

// Watermark embeds the fingerprint of payload into the image in data and
// returns the re-encoded result.
func Watermark(data []byte, payload string, opts *Options) (*Image, error) {
	if opts == nil {
		opts = &Options{}
	}
	pix, srcMime, err := imageio.Decode(data)
	if err != nil {
		return nil, err
	}

	marked, err := watermark.EmbedDigest(pix, watermark.DeriveDigest(payload))
	if err != nil {
		return nil, err
	}
	if opts.Visible != nil {
		if err := watermark.ApplyVisible(marked, *opts.Visible); err != nil {
			return nil, err
		}
	}

	outMime := opts.MimeType
	if outMime == "" {
		outMime = imageio.OutputMime(srcMime)
	}
	blob, err := imageio.Encode(marked, outMime, opts.JPEGQuality)
	if err != nil {
		return nil, err
	}
	return &Image{Blob: blob, Width: marked.Width, Height: marked.Height, MimeType: outMime}, nil
}

// Verify checks whether the image in data carries the mark for payload.
// threshold <= 0 selects the default (0.85). An image that simply carries no
// mark reports IsMatch false; an image that cannot be decoded is an error.
func Verify(data []byte, payload string, threshold float64) (VerifyResult, error) {
	pix, _, err := imageio.Decode(data)
	if err != nil {
		return VerifyResult{}, err
	}
	return watermark.VerifyPixels(pix, payload, threshold)
}

// Extract runs the extractor under a fixed diagnostic seed and returns the
// bits it reads plus their confidence. Because the coefficient schedule is
// derived from the embedded payload's digest, these bits are NOT the
// embedded digest — use Verify with a candidate payload to check a mark.
func Extract(data []byte) (digestHex string, confidence float64, err error) {
	pix, _, err := imageio.Decode(data)
	if err != nil {
		return "", 0, err
	}
	d, conf, err := watermark.DebugExtract(pix)
	if err != nil {
		return "", 0, err
	}
	return d.Hex(), conf, nil
}
