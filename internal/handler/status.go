package handler

import (
	"net/http"

	"github.com/maevik/fingermark/internal/db"
)

// APIStatus - GET /api/v1/status: queue depth and disk headroom.
func (h *Handler) APIStatus(w http.ResponseWriter, r *http.Request) {
	pending, running, completed, failed, err := db.CountJobsByState(h.DB)
	if err != nil {
		renderJSONError(w, http.StatusInternalServerError, "INTERNAL", "job counts failed")
		return
	}

	out := map[string]interface{}{
		"jobs": map[string]int{
			"pending":   pending,
			"running":   running,
			"completed": completed,
			"failed":    failed,
		},
	}
	if h.DiskCache != nil {
		stats := h.DiskCache.Current()
		out["disk"] = map[string]interface{}{
			"total_bytes": stats.TotalBytes,
			"free_bytes":  stats.FreeBytes,
			"data_bytes":  stats.DataBytes,
			"blob_bytes":  stats.BlobBytes,
			"pct_free":    stats.PctFree(),
		}
	}
	renderJSON(w, http.StatusOK, out)
}
