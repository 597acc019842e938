package handler

import (
	"net/http"

	"github.com/panops/panorama-address-manager/internal/service"
)

// ExportHandler serves the rendered customer artifact.
type ExportHandler struct {
	pushService *service.PushService
}

// NewExportHandler creates a new ExportHandler.
func NewExportHandler(pushService *service.PushService) *ExportHandler {
	return &ExportHandler{pushService: pushService}
}

// Get renders the current records as the YAML artifact.
func (h *ExportHandler) Get(w http.ResponseWriter, r *http.Request) {
	rendered, err := h.pushService.RenderArtifact(r.Context())
	if err != nil {
		handleError(w, err)
		return
	}

	w.Header().Set("Content-Type", "application/x-yaml")
	w.Header().Set("Content-Disposition", `attachment; filename="customers.yaml"`)
	w.WriteHeader(http.StatusOK)
	w.Write(rendered)
}
