package core

import (
	"context"
	"database/sql"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
	"github.com/siahsang/portfolio/models"
)

const testimonialColumns = `id, name, position, company, testimonial, company_logo, image, created_at, updated_at`

func scanTestimonial(rows *sql.Rows) (*models.Testimonial, error) {
	t := &models.Testimonial{}
	if err := rows.Scan(
		&t.ID,
		&t.Name,
		&t.Position,
		&t.Company,
		&t.Testimonial,
		&t.CompanyLogo,
		&t.Image,
		&t.CreatedAt,
		&t.UpdatedAt,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return t, nil
}

func (c *Core) ListTestimonials(ctx context.Context, f filter.Filter) ([]*models.Testimonial, error) {
	query := `SELECT ` + testimonialColumns + ` FROM testimonials ORDER BY created_at, id` + f.SQL()

	testimonials, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, scanTestimonial)
	if err != nil {
		return nil, xerrors.New(err)
	}
	return testimonials, nil
}

func (c *Core) GetTestimonial(ctx context.Context, id uuid.UUID) (*models.Testimonial, error) {
	query := `SELECT ` + testimonialColumns + ` FROM testimonials WHERE id = $1`

	t, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanTestimonial, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return t, nil
}

func (c *Core) CreateTestimonial(ctx context.Context, t *models.Testimonial) (*models.Testimonial, error) {
	query := `
		INSERT INTO testimonials (id, name, position, company, testimonial, company_logo, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	t.ID = uuid.New()
	t.CreatedAt = c.now()
	t.UpdatedAt = t.CreatedAt

	if _, err := databaseutils.ExecuteCommand(ctx, c.sqlTemplate, query,
		t.ID, t.Name, t.Position, t.Company, t.Testimonial, t.CompanyLogo, t.Image, t.CreatedAt, t.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return t, nil
}

func (c *Core) UpdateTestimonial(ctx context.Context, t *models.Testimonial) (*models.Testimonial, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Testimonial, error) {
		query := `
			UPDATE testimonials
			SET name = $1, position = $2, company = $3, testimonial = $4, company_logo = $5, image = $6, updated_at = $7
			WHERE id = $8
		`
		affected, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			t.Name, t.Position, t.Company, t.Testimonial, t.CompanyLogo, t.Image, c.now(), t.ID)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if affected == 0 {
			return nil, xerrors.New(NoRecordFound)
		}
		return c.GetTestimonial(txCtx, t.ID)
	})
}

func (c *Core) DeleteTestimonial(ctx context.Context, id uuid.UUID) (*models.Testimonial, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Testimonial, error) {
		t, err := c.GetTestimonial(txCtx, id)
		if err != nil {
			return nil, err
		}
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, `DELETE FROM testimonials WHERE id = $1`, id); err != nil {
			return nil, xerrors.New(err)
		}
		return t, nil
	})
}
