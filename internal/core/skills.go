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

const skillColumns = `id, name, level, image, created_at, updated_at`

func scanSkill(rows *sql.Rows) (*models.Skill, error) {
	skill := &models.Skill{}
	if err := rows.Scan(&skill.ID, &skill.Name, &skill.Level, &skill.Image, &skill.CreatedAt, &skill.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return skill, nil
}

func (c *Core) ListSkills(ctx context.Context, f filter.Filter) ([]*models.Skill, error) {
	query := `SELECT ` + skillColumns + ` FROM skills ORDER BY created_at, id` + f.SQL()

	skills, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, scanSkill)
	if err != nil {
		return nil, xerrors.New(err)
	}
	return skills, nil
}

func (c *Core) GetSkill(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	query := `SELECT ` + skillColumns + ` FROM skills WHERE id = $1`

	skill, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanSkill, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return skill, nil
}

func (c *Core) CreateSkill(ctx context.Context, skill *models.Skill) (*models.Skill, error) {
	query := `
		INSERT INTO skills (id, name, level, image, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	skill.ID = uuid.New()
	skill.CreatedAt = c.now()
	skill.UpdatedAt = skill.CreatedAt

	if _, err := databaseutils.ExecuteCommand(ctx, c.sqlTemplate, query,
		skill.ID, skill.Name, skill.Level, skill.Image, skill.CreatedAt, skill.UpdatedAt); err != nil {
		return nil, xerrors.New(err)
	}
	return skill, nil
}

func (c *Core) UpdateSkill(ctx context.Context, skill *models.Skill) (*models.Skill, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Skill, error) {
		query := `UPDATE skills SET name = $1, level = $2, image = $3, updated_at = $4 WHERE id = $5`
		affected, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			skill.Name, skill.Level, skill.Image, c.now(), skill.ID)
		if err != nil {
			return nil, xerrors.New(err)
		}
		if affected == 0 {
			return nil, xerrors.New(NoRecordFound)
		}
		return c.GetSkill(txCtx, skill.ID)
	})
}

// DeleteSkill removes the skill and returns it so that its files can be cleaned up.
func (c *Core) DeleteSkill(ctx context.Context, id uuid.UUID) (*models.Skill, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Skill, error) {
		skill, err := c.GetSkill(txCtx, id)
		if err != nil {
			return nil, err
		}
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, `DELETE FROM skills WHERE id = $1`, id); err != nil {
			return nil, xerrors.New(err)
		}
		return skill, nil
	})
}
