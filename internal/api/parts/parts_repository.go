package parts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/gearbox-labs/auto-parts-api/internal/api"
)

var _ Repository = (*PostgresRepository)(nil)

type Repository interface {
	List(ctx context.Context) ([]Part, error)
	Get(ctx context.Context, id uuid.UUID) (*Part, error)
	Create(ctx context.Context, in CreatePartInput, imageRef *string) (*Part, error)
	Update(ctx context.Context, id uuid.UUID, in UpdatePartInput, imageRef *string) (*Part, error)
	Delete(ctx context.Context, id uuid.UUID) error
	Stats(ctx context.Context) (*Stats, error)
}

type PostgresRepository struct {
	logger *slog.Logger
	pgpool api.PGXPool
}

func NewPostgresRepository(pgpool api.PGXPool, logger *slog.Logger) *PostgresRepository {
	return &PostgresRepository{
		logger: logger,
		pgpool: pgpool,
	}
}

const partColumns = `id, name, brand, price, stock, category, image_ref, created_at`

func scanPart(row pgx.Row) (*Part, error) {
	var p Part
	err := row.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Stock, &p.Category, &p.ImageRef, &p.CreatedAt)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// List returns the whole catalogue, newest first.
func (r *PostgresRepository) List(ctx context.Context) ([]Part, error) {
	rows, err := r.pgpool.Query(ctx,
		`SELECT `+partColumns+` FROM parts ORDER BY created_at DESC`)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query parts", slog.Any("error", err))
		return nil, fmt.Errorf("list parts: query failed: %w", err)
	}
	defer rows.Close()

	parts := make([]Part, 0)
	for rows.Next() {
		var p Part
		if err := rows.Scan(&p.ID, &p.Name, &p.Brand, &p.Price, &p.Stock, &p.Category, &p.ImageRef, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf("list parts: scan failed: %w", err)
		}
		parts = append(parts, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list parts: rows iteration failed: %w", err)
	}
	return parts, nil
}

func (r *PostgresRepository) Get(ctx context.Context, id uuid.UUID) (*Part, error) {
	part, err := scanPart(r.pgpool.QueryRow(ctx,
		`SELECT `+partColumns+` FROM parts WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", id, api.ErrNotFound)
		}
		return nil, fmt.Errorf("get part: query failed: %w", err)
	}
	return part, nil
}

func (r *PostgresRepository) Create(ctx context.Context, in CreatePartInput, imageRef *string) (*Part, error) {
	part, err := scanPart(r.pgpool.QueryRow(ctx,
		`INSERT INTO parts (name, brand, price, stock, category, image_ref)
         VALUES ($1, $2, $3, $4, $5, $6)
         RETURNING `+partColumns,
		in.Name, in.Brand, in.Price, in.Stock, in.Category, imageRef,
	))
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert part", slog.Any("error", err))
		return nil, fmt.Errorf("create part: insert failed: %w", err)
	}
	return part, nil
}

// Update applies a partial update in one statement. COALESCE keeps the stored
// value for every argument passed as NULL, which is how absent request fields
// arrive here.
func (r *PostgresRepository) Update(ctx context.Context, id uuid.UUID, in UpdatePartInput, imageRef *string) (*Part, error) {
	part, err := scanPart(r.pgpool.QueryRow(ctx,
		`UPDATE parts SET
            name      = COALESCE($2, name),
            brand     = COALESCE($3, brand),
            price     = COALESCE($4, price),
            stock     = COALESCE($5, stock),
            category  = COALESCE($6, category),
            image_ref = COALESCE($7, image_ref)
         WHERE id = $1
         RETURNING `+partColumns,
		id, in.Name, in.Brand, in.Price, in.Stock, in.Category, imageRef,
	))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("part %s: %w", id, api.ErrNotFound)
		}
		r.logger.ErrorContext(ctx, "Failed to update part", slog.Any("error", err))
		return nil, fmt.Errorf("update part: query failed: %w", err)
	}
	return part, nil
}

func (r *PostgresRepository) Delete(ctx context.Context, id uuid.UUID) error {
	tag, err := r.pgpool.Exec(ctx, `DELETE FROM parts WHERE id = $1`, id)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete part", slog.Any("error", err))
		return fmt.Errorf("delete part: exec failed: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("part %s: %w", id, api.ErrNotFound)
	}
	return nil
}

func (r *PostgresRepository) Stats(ctx context.Context) (*Stats, error) {
	var s Stats
	err := r.pgpool.QueryRow(ctx,
		`SELECT count(*), count(DISTINCT category) FROM parts`,
	).Scan(&s.TotalParts, &s.Categories)
	if err != nil {
		return nil, fmt.Errorf("parts stats: query failed: %w", err)
	}
	return &s, nil
}
