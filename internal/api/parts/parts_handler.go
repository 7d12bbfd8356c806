package parts

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/gearbox-labs/auto-parts-api/app/observability/metrics"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
	"github.com/gearbox-labs/auto-parts-api/internal/api/uploads"
)

// maxUploadBytes caps the whole multipart body, image included.
const maxUploadBytes = 10 << 20

var _ Handler = (*HandlerImpl)(nil)

type Handler interface {
	ListHandler(w http.ResponseWriter, r *http.Request)
	GetHandler(w http.ResponseWriter, r *http.Request)
	StatsHandler(w http.ResponseWriter, r *http.Request)
	CreateHandler(w http.ResponseWriter, r *http.Request)
	UpdateHandler(w http.ResponseWriter, r *http.Request)
	DeleteHandler(w http.ResponseWriter, r *http.Request)
}

type HandlerImpl struct {
	logger  *slog.Logger
	service Service
}

func NewHandler(service Service, logger *slog.Logger) *HandlerImpl {
	return &HandlerImpl{
		logger:  logger,
		service: service,
	}
}

// ListHandler godoc
// @Summary      List parts
// @Description  Returns the whole catalogue, newest first.
// @Tags         parts
// @Produce      json
// @Success      200 {array} Part
// @Router       /api/parts [get]
func (h *HandlerImpl) ListHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "List")
	defer span.End()
	l := h.logger.With(slog.String("handler", "ListHandler"))

	parts, err := h.service.List(ctx)
	h.countRequest(ctx, "list", err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to list parts", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "List failed")
		api.RespondError(w, r, err)
		return
	}

	span.SetAttributes(attribute.Int("parts.count", len(parts)))
	span.SetStatus(codes.Ok, "Listed")
	api.WriteJSONResponse(w, r, http.StatusOK, parts)
}

// GetHandler godoc
// @Summary      Get one part
// @Tags         parts
// @Produce      json
// @Param        id path string true "Part ID"
// @Success      200 {object} Part
// @Failure      404 {object} map[string]interface{}
// @Router       /api/parts/{id} [get]
func (h *HandlerImpl) GetHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "Get")
	defer span.End()
	l := h.logger.With(slog.String("handler", "GetHandler"))

	id, ok := h.partID(w, r, span)
	if !ok {
		return
	}

	part, err := h.service.Get(ctx, id)
	h.countRequest(ctx, "get", err)
	if err != nil {
		l.WarnContext(ctx, "Failed to get part", slog.String("part_id", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Get failed")
		api.RespondError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Found")
	api.WriteJSONResponse(w, r, http.StatusOK, part)
}

// StatsHandler godoc
// @Summary      Catalogue statistics
// @Tags         parts
// @Produce      json
// @Success      200 {object} Stats
// @Router       /api/parts/stats [get]
func (h *HandlerImpl) StatsHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "Stats")
	defer span.End()
	l := h.logger.With(slog.String("handler", "StatsHandler"))

	stats, err := h.service.Stats(ctx)
	h.countRequest(ctx, "stats", err)
	if err != nil {
		l.ErrorContext(ctx, "Failed to compute stats", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Stats failed")
		api.RespondError(w, r, err)
		return
	}

	span.SetStatus(codes.Ok, "Computed")
	api.WriteJSONResponse(w, r, http.StatusOK, stats)
}

// CreateHandler godoc
// @Summary      Create a part
// @Description  Multipart request: JSON in the "data" field, optional file in "image".
// @Tags         parts
// @Accept       multipart/form-data
// @Produce      json
// @Param        data formData string true "Part fields as JSON"
// @Param        image formData file false "Part image"
// @Success      201 {object} Part
// @Failure      400 {object} map[string]interface{}
// @Router       /api/parts [post]
func (h *HandlerImpl) CreateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "Create")
	defer span.End()
	l := h.logger.With(slog.String("handler", "CreateHandler"))
	start := time.Now()

	var in CreatePartInput
	upload, cleanup, err := h.decodeMultipart(w, r, &in)
	if err != nil {
		l.WarnContext(ctx, "Failed to decode create request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	span.SetAttributes(attribute.String("part.name", in.Name), attribute.Bool("part.has_image", upload != nil))

	part, err := h.service.Create(ctx, in, upload)
	h.countRequest(ctx, "create", err)
	h.recordWriteDuration(ctx, "create", start)
	if err != nil {
		l.ErrorContext(ctx, "Failed to create part", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Create failed")
		api.RespondError(w, r, err)
		return
	}
	if upload != nil {
		metrics.Get().UploadBytesTotal.Add(ctx, upload.Size)
	}

	l.InfoContext(ctx, "Part created", slog.String("part_id", part.ID.String()))
	span.SetAttributes(attribute.String("part.id", part.ID.String()))
	span.SetStatus(codes.Ok, "Created")
	api.WriteJSONResponse(w, r, http.StatusCreated, part)
}

// UpdateHandler godoc
// @Summary      Update a part
// @Description  Partial multipart update: only supplied JSON fields change; a
// @Description  new image replaces the stored one, no image keeps it.
// @Tags         parts
// @Accept       multipart/form-data
// @Produce      json
// @Param        id path string true "Part ID"
// @Param        data formData string false "Changed fields as JSON"
// @Param        image formData file false "Replacement image"
// @Success      200 {object} Part
// @Failure      404 {object} map[string]interface{}
// @Router       /api/parts/{id} [put]
func (h *HandlerImpl) UpdateHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "Update")
	defer span.End()
	l := h.logger.With(slog.String("handler", "UpdateHandler"))
	start := time.Now()

	id, ok := h.partID(w, r, span)
	if !ok {
		return
	}

	var in UpdatePartInput
	upload, cleanup, err := h.decodeMultipart(w, r, &in)
	if err != nil {
		l.WarnContext(ctx, "Failed to decode update request", slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Bad request")
		api.ErrorResponse(w, r, http.StatusBadRequest, err.Error())
		return
	}
	defer cleanup()
	span.SetAttributes(attribute.Bool("part.has_image", upload != nil))

	part, err := h.service.Update(ctx, id, in, upload)
	h.countRequest(ctx, "update", err)
	h.recordWriteDuration(ctx, "update", start)
	if err != nil {
		l.WarnContext(ctx, "Failed to update part", slog.String("part_id", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Update failed")
		api.RespondError(w, r, err)
		return
	}
	if upload != nil {
		metrics.Get().UploadBytesTotal.Add(ctx, upload.Size)
	}

	l.InfoContext(ctx, "Part updated", slog.String("part_id", part.ID.String()))
	span.SetStatus(codes.Ok, "Updated")
	api.WriteJSONResponse(w, r, http.StatusOK, part)
}

// DeleteHandler godoc
// @Summary      Delete a part
// @Tags         parts
// @Produce      json
// @Param        id path string true "Part ID"
// @Success      200 {object} map[string]interface{}
// @Failure      404 {object} map[string]interface{}
// @Router       /api/parts/{id} [delete]
func (h *HandlerImpl) DeleteHandler(w http.ResponseWriter, r *http.Request) {
	ctx, span := otel.Tracer("PartsHandler").Start(r.Context(), "Delete")
	defer span.End()
	l := h.logger.With(slog.String("handler", "DeleteHandler"))
	start := time.Now()

	id, ok := h.partID(w, r, span)
	if !ok {
		return
	}

	err := h.service.Delete(ctx, id)
	h.countRequest(ctx, "delete", err)
	h.recordWriteDuration(ctx, "delete", start)
	if err != nil {
		l.WarnContext(ctx, "Failed to delete part", slog.String("part_id", id.String()), slog.Any("error", err))
		span.RecordError(err)
		span.SetStatus(codes.Error, "Delete failed")
		api.RespondError(w, r, err)
		return
	}

	l.InfoContext(ctx, "Part deleted", slog.String("part_id", id.String()))
	span.SetStatus(codes.Ok, "Deleted")
	api.WriteJSONResponse(w, r, http.StatusOK, map[string]interface{}{"message": "Deleted"})
}

// partID parses the {id} URL parameter. Malformed ids answer 404 to keep the
// error shape identical to a well-formed id that matches nothing.
func (h *HandlerImpl) partID(w http.ResponseWriter, r *http.Request, span trace.Span) (uuid.UUID, bool) {
	idStr := chi.URLParam(r, "id")
	id, err := uuid.Parse(idStr)
	if err != nil {
		api.ErrorResponse(w, r, http.StatusNotFound, "Not found")
		return uuid.Nil, false
	}
	span.SetAttributes(attribute.String("part.id", id.String()))
	return id, true
}

// decodeMultipart reads the "data" JSON field into dst and the optional
// "image" file into an Upload. The returned cleanup closes the file handle
// and must be called once the upload has been consumed.
func (h *HandlerImpl) decodeMultipart(w http.ResponseWriter, r *http.Request, dst interface{}) (*uploads.Upload, func(), error) {
	noop := func() {}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		return nil, noop, fmt.Errorf("invalid multipart body: %w", err)
	}

	// An absent "data" field means no field changes, which is a valid
	// image-only update. Creates still fail validation further down.
	data := r.FormValue("data")
	if strings.TrimSpace(data) == "" {
		data = "{}"
	}
	dec := json.NewDecoder(strings.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		return nil, noop, fmt.Errorf("invalid data field: %w", err)
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		if errors.Is(err, http.ErrMissingFile) {
			return nil, noop, nil
		}
		return nil, noop, fmt.Errorf("invalid image field: %w", err)
	}

	up := &uploads.Upload{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Content:     file,
	}
	return up, func() { file.Close() }, nil
}

func (h *HandlerImpl) countRequest(ctx context.Context, op string, err error) {
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	metrics.Get().PartsRequestsTotal.Add(ctx, 1, metric.WithAttributes(
		attribute.String("operation", op),
		attribute.String("outcome", outcome),
	))
}

func (h *HandlerImpl) recordWriteDuration(ctx context.Context, op string, start time.Time) {
	metrics.Get().PartsWriteDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("operation", op)))
}
