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

const projectColumns = `id, name, description, github_link, images, created_at, updated_at`

func scanProject(rows *sql.Rows) (*models.Project, error) {
	p := &models.Project{}
	if err := rows.Scan(&p.ID, &p.Name, &p.Description, &p.GithubLink, &p.Images, &p.CreatedAt, &p.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return p, nil
}

func (c *Core) ListProjects(ctx context.Context, f filter.Filter) ([]*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects ORDER BY created_at, id` + f.SQL()

	projects, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, scanProject)
	if err != nil {
		return nil, xerrors.New(err)
	}
	return projects, nil
}

func (c *Core) GetProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	query := `SELECT ` + projectColumns + ` FROM projects WHERE id = $1`

	p, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanProject, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return p, nil
}

func (c *Core) CreateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	query := `
		INSERT INTO projects (id, name, description, github_link, images, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`
	p.ID = uuid.New()
	p.CreatedAt = c.now()
	p.UpdatedAt = p.CreatedAt
	if p.Images == nil {
		p.Images = models.StringList{}
	}

	if _, err := databaseutils.ExecuteCommand(ctx, c.sqlTemplate, query,
		p.ID, p.Name, p.Description, p.GithubLink, p.Images, p.CreatedAt, p.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return p, nil
}

func (c *Core) UpdateProject(ctx context.Context, p *models.Project) (*models.Project, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Project, error) {
		query := `
			UPDATE projects
			SET name = $1, description = $2, github_link = $3, images = $4, updated_at = $5
			WHERE id = $6
		`
		affected, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			p.Name, p.Description, p.GithubLink, p.Images, c.now(), p.ID)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if affected == 0 {
			return nil, xerrors.New(NoRecordFound)
		}
		return c.GetProject(txCtx, p.ID)
	})
}

func (c *Core) DeleteProject(ctx context.Context, id uuid.UUID) (*models.Project, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Project, error) {
		p, err := c.GetProject(txCtx, id)
		if err != nil {
			return nil, err
		}
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, `DELETE FROM projects WHERE id = $1`, id); err != nil {
			return nil, xerrors.New(err)
		}
		return p, nil
	})
}
