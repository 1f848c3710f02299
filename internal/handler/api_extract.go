package handler

import (
	"io"
	"net/http"

	"github.com/maevik/fingermark/internal/imageio"
	"github.com/maevik/fingermark/internal/watermark"
)

// APIExtract - POST /api/v1/extract: the synchronous diagnostic endpoint.
// It reads the image under a fixed seed and returns whatever bits it finds.
// Those bits are NOT the embedded digest (the coefficient schedule depends
// on the embedded payload); the response says so explicitly so nobody
// mistakes this for verification.
func (h *Handler) APIExtract(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.Cfg.MaxUploadBytes); err != nil {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to parse multipart form")
		return
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "missing 'file' field in form")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, h.Cfg.MaxUploadBytes))
	if err != nil {
		renderJSONError(w, http.StatusBadRequest, "BAD_REQUEST", "failed to read upload")
		return
	}

	pix, _, err := imageio.Decode(data)
	if err != nil {
		renderJSONError(w, http.StatusUnprocessableEntity, "DECODE_FAILED", err.Error())
		return
	}

	digest, conf, err := watermark.DebugExtract(pix)
	if err != nil {
		renderJSONError(w, http.StatusUnprocessableEntity, "EXTRACT_FAILED", err.Error())
		return
	}

	renderJSON(w, http.StatusOK, map[string]interface{}{
		"digest_hex": digest.Hex(),
		"confidence": conf,
		"note":       "diagnostic read under a fixed seed; not the embedded digest. Use /api/v1/verify with a candidate payload.",
	})
}
