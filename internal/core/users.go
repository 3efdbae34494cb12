package core

import (
	"context"
	"database/sql"
	"errors"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/auth"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
)

const userColumns = `id, email, username, password, role, avatar, created_at, updated_at`

func scanUser(rows *sql.Rows) (*auth.User, error) {
	user := &auth.User{}
	if err := rows.Scan(
		&user.ID,
		&user.Email,
		&user.Username,
		&user.Password,
		&user.Role,
		&user.Avatar,
		&user.CreatedAt,
		&user.UpdatedAt,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return user, nil
}

func (c *Core) CreateNewUser(ctx context.Context, user *auth.User) error {
	query := `
		INSERT INTO users (id, email, username, password, role, avatar, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
`
	if user.ID == uuid.Nil {
		user.ID = uuid.New()
	}
	if user.Role == "" {
		user.Role = auth.RoleUser
	}
	user.CreatedAt = c.now()
	user.UpdatedAt = user.CreatedAt

	_, err := databaseutils.ExecuteCommand(ctx, c.sqlTemplate, query,
		user.ID, user.Email, user.Username, user.Password, user.Role, user.Avatar, user.CreatedAt, user.UpdatedAt)
	if err != nil {
		return translateUserError(err)
	}

	return nil
}

func (c *Core) GetUserByEmail(ctx context.Context, email string) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`

	user, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanUser, email)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return user, nil
}

func (c *Core) GetUserByID(ctx context.Context, id uuid.UUID) (*auth.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE id = $1`

	user, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanUser, id)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return user, nil
}

// UpdateUser stores email, password hash and avatar of an existing user.
func (c *Core) UpdateUser(ctx context.Context, user *auth.User) (*auth.User, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*auth.User, error) {
		query := `
			UPDATE users
			SET email = $1, password = $2, avatar = $3, updated_at = $4
			WHERE id = $5
		`
		affected, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			user.Email, user.Password, user.Avatar, c.now(), user.ID)
		if err != nil {
			return nil, translateUserError(err)
		}
		if affected == 0 {
			return nil, xerrors.New(NoRecordFound)
		}

		return c.GetUserByID(txCtx, user.ID)
	})
}

// UpsertAdmin creates the user with the admin role, or promotes and resets
// the password of an existing user with the same email.
func (c *Core) UpsertAdmin(ctx context.Context, user *auth.User) (*auth.User, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*auth.User, error) {
		existing, err := c.GetUserByEmail(txCtx, user.Email)
		switch {
		case err == nil:
			query := `UPDATE users SET password = $1, role = $2, updated_at = $3 WHERE id = $4`
			if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
				user.Password, auth.RoleAdmin, c.now(), existing.ID); err != nil {
				return nil, xerrors.New(err)
			}
			return c.GetUserByID(txCtx, existing.ID)
		case errors.Is(err, NoRecordFound):
			user.Role = auth.RoleAdmin
			if err := c.CreateNewUser(txCtx, user); err != nil {
				return nil, err
			}
			return user, nil
		default:
			return nil, err
		}
	})
}

func (c *Core) CountAdmins(ctx context.Context) (int64, error) {
	query := `SELECT COUNT(*) FROM users WHERE role = $1`
	count, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, func(rows *sql.Rows) (int64, error) {
		var n int64
		err := rows.Scan(&n)
		return n, err
	}, auth.RoleAdmin)
	if err != nil {
		return 0, xerrors.New(err)
	}
	return count, nil
}
