package parts

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/gearbox-labs/auto-parts-api/config"
	"github.com/gearbox-labs/auto-parts-api/internal/api"
	"github.com/gearbox-labs/auto-parts-api/internal/api/uploads"
)

var _ Service = (*ServiceImpl)(nil)

type Service interface {
	List(ctx context.Context) ([]Part, error)
	Get(ctx context.Context, id uuid.UUID) (*Part, error)
	Create(ctx context.Context, in CreatePartInput, upload *uploads.Upload) (*Part, error)
	Update(ctx context.Context, id uuid.UUID, in UpdatePartInput, upload *uploads.Upload) (*Part, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

type ServiceImpl struct {
	logger *slog.Logger
	repo   Repository
	store  uploads.ImageStore
	cfg    config.UploadsConfig

	publicBaseURL string
}

func NewService(repo Repository, store uploads.ImageStore, cfg config.UploadsConfig, publicBaseURL string, logger *slog.Logger) *ServiceImpl {
	return &ServiceImpl{
		logger:        logger,
		repo:          repo,
		store:         store,
		cfg:           cfg,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (s *ServiceImpl) List(ctx context.Context) ([]Part, error) {
	parts, err := s.repo.List(ctx)
	if err != nil {
		return nil, err
	}
	for i := range parts {
		s.resolveImageURL(&parts[i])
	}
	return parts, nil
}

func (s *ServiceImpl) Get(ctx context.Context, id uuid.UUID) (*Part, error) {
	part, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	s.resolveImageURL(part)
	return part, nil
}

// Create stores the image before the row so a recorded reference always
// points at a blob that exists.
func (s *ServiceImpl) Create(ctx context.Context, in CreatePartInput, upload *uploads.Upload) (*Part, error) {
	if err := validatePart(&in.Name, &in.Price, &in.Stock); err != nil {
		return nil, err
	}

	imageRef, err := s.saveUpload(ctx, upload)
	if err != nil {
		return nil, err
	}

	part, err := s.repo.Create(ctx, in, imageRef)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Part created",
		slog.String("part_id", part.ID.String()), slog.String("name", part.Name))
	s.resolveImageURL(part)
	return part, nil
}

// Update changes only the supplied fields. Without a new upload the stored
// image reference is left as it is.
func (s *ServiceImpl) Update(ctx context.Context, id uuid.UUID, in UpdatePartInput, upload *uploads.Upload) (*Part, error) {
	if err := validatePart(in.Name, in.Price, in.Stock); err != nil {
		return nil, err
	}

	imageRef, err := s.saveUpload(ctx, upload)
	if err != nil {
		return nil, err
	}

	part, err := s.repo.Update(ctx, id, in, imageRef)
	if err != nil {
		return nil, err
	}

	s.logger.InfoContext(ctx, "Part updated", slog.String("part_id", part.ID.String()))
	s.resolveImageURL(part)
	return part, nil
}

func (s *ServiceImpl) Delete(ctx context.Context, id uuid.UUID) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.InfoContext(ctx, "Part deleted", slog.String("part_id", id.String()))
	return nil
}

func (s *ServiceImpl) Stats(ctx context.Context) (*Stats, error) {
	return s.repo.Stats(ctx)
}

func (s *ServiceImpl) saveUpload(ctx context.Context, upload *uploads.Upload) (*string, error) {
	if upload == nil {
		return nil, nil
	}
	ref, err := s.store.Save(ctx, upload)
	if err != nil {
		return nil, err
	}
	return &ref, nil
}

// resolveImageURL derives the public URL from the stored reference, falling
// back to the placeholder asset when the part has no image.
func (s *ServiceImpl) resolveImageURL(p *Part) {
	prefix := s.cfg.PublicPrefix
	if prefix == "" {
		prefix = "/uploads"
	}
	if p.ImageRef != nil && *p.ImageRef != "" {
		p.ImageURL = fmt.Sprintf("%s%s/%s", s.publicBaseURL, prefix, *p.ImageRef)
		return
	}
	p.ImageURL = fmt.Sprintf("%s%s/%s", s.publicBaseURL, prefix, s.cfg.Placeholder)
}

// validatePart checks only the fields that are present, so the same function
// serves full creates and partial updates.
func validatePart(name *string, price *decimal.Decimal, stock *int) error {
	ve := &api.ValidationError{}
	if name != nil && strings.TrimSpace(*name) == "" {
		ve.Add("name", "must not be empty")
	}
	if price != nil && price.IsNegative() {
		ve.Add("price", "must not be negative")
	}
	if stock != nil && *stock < 0 {
		ve.Add("stock", "must not be negative")
	}
	return ve.ErrOrNil()
}
