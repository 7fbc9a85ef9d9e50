package handler

import (
	"bytes"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"netpulse/internal/codec"
)

// Export writes a hierarchy snapshot in the requested format
func (h *NetworkHandler) Export(w http.ResponseWriter, r *http.Request) {
	format := r.PathValue("format")
	exporter, ok := codec.ForFormat(format)
	if !ok {
		writeError(w, h.logger, "Unsupported format", format, http.StatusBadRequest)
		return
	}

	tree := h.svc.Hierarchy()
	if tree == nil {
		writeError(w, h.logger, "Network not found", "", http.StatusNotFound)
		return
	}

	var buf bytes.Buffer
	if err := exporter.Export(tree, &buf); err != nil {
		writeDomainError(w, h.logger, "Failed to export", err)
		return
	}

	w.Header().Set("Content-Type", exporter.ContentType())
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=network.%s", exporter.Format()))
	if _, err := w.Write(buf.Bytes()); err != nil {
		h.logger.Warn("failed to write export", zap.Error(err))
	}
}
