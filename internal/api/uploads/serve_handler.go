package uploads

import (
	"io"
	"log/slog"
	"mime"
	"net/http"
	"path/filepath"

	"github.com/go-chi/chi/v5"

	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

// ServeHandler streams stored images over HTTP. One handler covers both
// backends, so switching from disk to object storage needs no route changes.
type ServeHandler struct {
	logger *slog.Logger
	store  ImageStore
}

func NewServeHandler(store ImageStore, logger *slog.Logger) *ServeHandler {
	return &ServeHandler{logger: logger, store: store}
}

// ServeImage godoc
// @Summary      Serve an uploaded image
// @Tags         uploads
// @Produce      octet-stream
// @Param        name path string true "Image reference"
// @Success      200
// @Failure      404 {object} map[string]interface{}
// @Router       /uploads/{name} [get]
func (h *ServeHandler) ServeImage(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	name := chi.URLParam(r, "name")

	rc, err := h.store.Open(ctx, name)
	if err != nil {
		api.RespondError(w, r, err)
		return
	}
	defer rc.Close()

	contentType := mime.TypeByExtension(filepath.Ext(name))
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "public, max-age=86400")

	if _, err := io.Copy(w, rc); err != nil {
		h.logger.WarnContext(ctx, "Aborted image stream",
			slog.String("name", name), slog.Any("error", err))
	}
}
