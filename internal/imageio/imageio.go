// Package imageio converts between container formats and the raw RGBA
// buffers the codec operates on. Everything format-specific lives here; the
// codec itself sees one pixel layout.
package imageio

import (
	"bytes"
	"fmt"
	"image"
	"image/gif"
	"image/jpeg"
	"image/png"

	"github.com/HugoSmits86/nativewebp"
	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/maevik/fingermark/internal/watermark"
)

// DefaultJPEGQuality matches the service default for re-encoded output.
const DefaultJPEGQuality = 92

var formatMime = map[string]string{
	"jpeg": "image/jpeg",
	"png":  "image/png",
	"gif":  "image/gif",
	"webp": "image/webp",
	"bmp":  "image/bmp",
	"tiff": "image/tiff",
}

// Decode sniffs data and returns the pixel buffer plus the detected MIME
// type. Unsupported or corrupt input is a decode failure, never a negative
// verification.
func Decode(data []byte) (*watermark.Pixmap, string, error) {
	img, format, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, "", &watermark.Error{Kind: watermark.KindDecode, Msg: "decode image", Err: err}
	}
	mime, ok := formatMime[format]
	if !ok {
		mime = "application/octet-stream"
	}
	return watermark.FromImage(img), mime, nil
}

// Encode serializes the pixel buffer to the requested MIME type. quality is
// the JPEG quality in [1,100]; zero selects DefaultJPEGQuality. PNG, BMP and
// TIFF ignore it; the WebP encoder is lossless.
func Encode(pix *watermark.Pixmap, mimeType string, quality int) ([]byte, error) {
	if quality <= 0 {
		quality = DefaultJPEGQuality
	}
	if quality > 100 {
		quality = 100
	}

	img := pix.NRGBA()
	var buf bytes.Buffer
	var err error
	switch mimeType {
	case "image/png", "":
		err = png.Encode(&buf, img)
	case "image/jpeg":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	case "image/webp":
		err = nativewebp.Encode(&buf, img, nil)
	case "image/gif":
		err = gif.Encode(&buf, img, nil)
	case "image/bmp":
		err = bmp.Encode(&buf, img)
	case "image/tiff":
		err = tiff.Encode(&buf, img, &tiff.Options{Compression: tiff.Deflate})
	default:
		return nil, &watermark.Error{Kind: watermark.KindEncode, Msg: fmt.Sprintf("unsupported target type %q", mimeType)}
	}
	if err != nil {
		return nil, &watermark.Error{Kind: watermark.KindEncode, Msg: "encode " + mimeType, Err: err}
	}
	return buf.Bytes(), nil
}

// OutputMime maps a source MIME type to the type the service re-encodes to.
// Lossless inputs stay lossless; anything unknown becomes PNG.
func OutputMime(srcMime string) string {
	switch srcMime {
	case "image/jpeg", "image/webp":
		return srcMime
	case "image/png", "image/gif", "image/bmp", "image/tiff":
		return "image/png"
	default:
		return "image/png"
	}
}
