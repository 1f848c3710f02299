// Package carrier implements the PDF strategy: instead of rasterizing pages,
// a neutral-gray carrier image is watermarked through the normal codec and
// attached to the document as an embedded file under a well-known name.
// Verification pulls the attachment back out and runs the normal verify
// path. Documents marked by the page-rasterizing strategy of other tools are
// not interoperable with this one.
package carrier

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"

	"github.com/maevik/fingermark/internal/imageio"
	"github.com/maevik/fingermark/internal/watermark"
)

const (
	// AttachmentName is the well-known embedded file name. Changing it
	// orphans every previously marked document.
	AttachmentName = "fingermark-carrier.png"

	// carrierSide is the edge length of the synthesized carrier.
	carrierSide = 512

	// carrierGray is the neutral fill; mid-gray leaves the most headroom
	// for the luminance delta in both directions.
	carrierGray = 128
)

// NewCarrier synthesizes the neutral carrier pixmap.
func NewCarrier() *watermark.Pixmap {
	p := watermark.NewPixmap(carrierSide, carrierSide)
	for i := 0; i < carrierSide*carrierSide; i++ {
		p.Pix[i*4] = carrierGray
		p.Pix[i*4+1] = carrierGray
		p.Pix[i*4+2] = carrierGray
		p.Pix[i*4+3] = 255
	}
	return p
}

// EmbedFile watermarks a fresh carrier with payload and attaches it to the
// PDF at inPath, writing the result to outPath.
func EmbedFile(inPath, outPath, payload string) error {
	marked, err := watermark.EmbedDigest(NewCarrier(), watermark.DeriveDigest(payload))
	if err != nil {
		return fmt.Errorf("carrier embed: %w", err)
	}
	blob, err := imageio.Encode(marked, "image/png", 0)
	if err != nil {
		return fmt.Errorf("carrier encode: %w", err)
	}

	tmpDir, err := os.MkdirTemp("", "fingermark-carrier-*")
	if err != nil {
		return err
	}
	defer os.RemoveAll(tmpDir)

	carrierPath := filepath.Join(tmpDir, AttachmentName)
	if err := os.WriteFile(carrierPath, blob, 0644); err != nil {
		return err
	}

	if err := api.AddAttachmentsFile(inPath, outPath, []string{carrierPath}, false, nil); err != nil {
		return fmt.Errorf("attach carrier: %w", err)
	}
	return nil
}

// VerifyFile extracts the carrier attachment from the PDF at inPath and
// verifies it against payload. A document without the attachment is a
// non-match, not an error, so unmarked PDFs report cleanly.
func VerifyFile(inPath, payload string, threshold float64) (watermark.VerifyResult, error) {
	tmpDir, err := os.MkdirTemp("", "fingermark-verify-*")
	if err != nil {
		return watermark.VerifyResult{}, err
	}
	defer os.RemoveAll(tmpDir)

	if err := api.ExtractAttachmentsFile(inPath, tmpDir, []string{AttachmentName}, nil); err != nil {
		return watermark.VerifyResult{}, nil
	}
	blob, err := os.ReadFile(filepath.Join(tmpDir, AttachmentName))
	if err != nil {
		return watermark.VerifyResult{}, nil
	}

	pix, _, err := imageio.Decode(blob)
	if err != nil {
		return watermark.VerifyResult{}, fmt.Errorf("carrier decode: %w", err)
	}
	return watermark.VerifyPixels(pix, payload, threshold)
}

// HasCarrier reports whether the PDF at inPath carries the attachment.
func HasCarrier(inPath string) bool {
	f, err := os.Open(inPath)
	if err != nil {
		return false
	}
	defer f.Close()

	attachments, err := api.Attachments(f, nil)
	if err != nil {
		return false
	}
	for _, a := range attachments {
		// Entries may carry size decorations; match on the name.
		if strings.Contains(a.FileName, AttachmentName) {
			return true
		}
	}
	return false
}
