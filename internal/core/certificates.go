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

const certificateColumns = `id, title, organization, issued_on, description, image, created_at, updated_at`

func scanCertificate(rows *sql.Rows) (*models.Certificate, error) {
	cert := &models.Certificate{}
	if err := rows.Scan(
		&cert.ID,
		&cert.Title,
		&cert.Organization,
		&cert.Date,
		&cert.Description,
		&cert.Image,
		&cert.CreatedAt,
		&cert.UpdatedAt,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return cert, nil
}

func (c *Core) ListCertificates(ctx context.Context, f filter.Filter) ([]*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates ORDER BY created_at, id` + f.SQL()

	certs, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, scanCertificate)
	if err != nil {
		return nil, xerrors.New(err)
	}
	return certs, nil
}

func (c *Core) GetCertificate(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	query := `SELECT ` + certificateColumns + ` FROM certificates WHERE id = $1`

	cert, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanCertificate, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return cert, nil
}

func (c *Core) CreateCertificate(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	query := `
		INSERT INTO certificates (id, title, organization, issued_on, description, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`
	cert.ID = uuid.New()
	cert.CreatedAt = c.now()
	cert.UpdatedAt = cert.CreatedAt

	if _, err := databaseutils.ExecuteCommand(ctx, c.sqlTemplate, query,
		cert.ID, cert.Title, cert.Organization, cert.Date, cert.Description, cert.Image, cert.CreatedAt, cert.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return cert, nil
}

func (c *Core) UpdateCertificate(ctx context.Context, cert *models.Certificate) (*models.Certificate, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Certificate, error) {
		query := `
			UPDATE certificates
			SET title = $1, organization = $2, issued_on = $3, description = $4, image = $5, updated_at = $6
			WHERE id = $7
		`
		affected, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			cert.Title, cert.Organization, cert.Date, cert.Description, cert.Image, c.now(), cert.ID)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if affected == 0 {
			return nil, xerrors.New(NoRecordFound)
		}
		return c.GetCertificate(txCtx, cert.ID)
	})
}

func (c *Core) DeleteCertificate(ctx context.Context, id uuid.UUID) (*models.Certificate, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Certificate, error) {
		cert, err := c.GetCertificate(txCtx, id)
		if err != nil {
			return nil, err
		}
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, `DELETE FROM certificates WHERE id = $1`, id); err != nil {
			return nil, xerrors.New(err)
		}
		return cert, nil
	})
}
