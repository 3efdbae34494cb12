package core

import (
	"context"
	"database/sql"
	"strconv"

	"github.com/google/uuid"
	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/content"
	"github.com/siahsang/portfolio/internal/filter"
	"github.com/siahsang/portfolio/internal/utils/collectionutils"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
	"github.com/siahsang/portfolio/models"
)

const blogColumns = `id, slug, title, content, author, author_avatar, tags, image, published_at, created_at, updated_at`

func scanBlog(rows *sql.Rows) (*models.Blog, error) {
	b := &models.Blog{}
	if err := rows.Scan(
		&b.ID,
		&b.Slug,
		&b.Title,
		&b.Content,
		&b.Author,
		&b.AuthorAvatar,
		&b.Tags,
		&b.Image,
		&b.Date,
		&b.CreatedAt,
		&b.UpdatedAt,
	); err != nil {
		return nil, xerrors.New(err)
	}
	return b, nil
}

// ListBlogs returns posts newest first.
func (c *Core) ListBlogs(ctx context.Context, f filter.Filter) ([]*models.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs ORDER BY published_at DESC, created_at DESC` + f.SQL()

	blogs, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, scanBlog)
	if err != nil {
		return nil, xerrors.New(err)
	}
	return blogs, nil
}

// GetBlog resolves a post by id, falling back to its slug.
func (c *Core) GetBlog(ctx context.Context, idOrSlug string) (*models.Blog, error) {
	query := `SELECT ` + blogColumns + ` FROM blogs WHERE slug = $1`
	arg := any(idOrSlug)
	if id, err := uuid.Parse(idOrSlug); err == nil {
		query = `SELECT ` + blogColumns + ` FROM blogs WHERE id = $1`
		arg = id
	}

	b, err := databaseutils.ExecuteSingleQuery(ctx, c.sqlTemplate, query, scanBlog, arg)
	if err != nil {
		return nil, notFoundOr(err)
	}
	return b, nil
}

func (c *Core) CreateBlog(ctx context.Context, b *models.Blog) (*models.Blog, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Blog, error) {
		b.ID = uuid.New()
		slug, err := c.allocateSlug(txCtx, b.Title, b.ID)
		if err != nil {
			return nil, err
		}
		b.Slug = slug
		b.CreatedAt = c.now()
		b.UpdatedAt = b.CreatedAt
		if b.Date.IsZero() {
			b.Date = b.CreatedAt
		}
		if b.Tags == nil {
			b.Tags = models.StringList{}
		}

		query := `
			INSERT INTO blogs (id, slug, title, content, author, author_avatar, tags, image, published_at, created_at, updated_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			b.ID, b.Slug, b.Title, b.Content, b.Author, b.AuthorAvatar, b.Tags, b.Image, b.Date, b.CreatedAt, b.UpdatedAt); err != nil {
			if _, ok := uniqueViolation(err); ok {
				return nil, xerrors.New(ErrDuplicateSlug)
			}
			return nil, xerrors.New(err)
		}
		return b, nil
	})
}

// UpdateBlog replaces the post's fields. The slug follows the title.
func (c *Core) UpdateBlog(ctx context.Context, b *models.Blog) (*models.Blog, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Blog, error) {
		current, err := c.GetBlog(txCtx, b.ID.String())
		if err != nil {
			return nil, err
		}

		slug := current.Slug
		if current.Title != b.Title {
			if slug, err = c.allocateSlug(txCtx, b.Title, b.ID); err != nil {
				return nil, err
			}
		}
		if b.Date.IsZero() {
			b.Date = current.Date
		}

		query := `
			UPDATE blogs
			SET slug = $1, title = $2, content = $3, author = $4, author_avatar = $5,
			    tags = $6, image = $7, published_at = $8, updated_at = $9
			WHERE id = $10
		`
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, query,
			slug, b.Title, b.Content, b.Author, b.AuthorAvatar, b.Tags, b.Image, b.Date, c.now(), b.ID); err != nil {
			if _, ok := uniqueViolation(err); ok {
				return nil, xerrors.New(ErrDuplicateSlug)
			}
			return nil, xerrors.New(err)
		}
		return c.GetBlog(txCtx, b.ID.String())
	})
}

func (c *Core) DeleteBlog(ctx context.Context, id uuid.UUID) (*models.Blog, error) {
	return databaseutils.DoTransactionally(ctx, c.session, func(txCtx context.Context) (*models.Blog, error) {
		b, err := c.GetBlog(txCtx, id.String())
		if err != nil {
			return nil, err
		}
		if _, err := databaseutils.ExecuteCommand(txCtx, c.sqlTemplate, `DELETE FROM blogs WHERE id = $1`, id); err != nil {
			return nil, xerrors.New(err)
		}
		return b, nil
	})
}

// allocateSlug derives a slug from title that no other post uses and that
// cannot be mistaken for an id, appending -2, -3, ... as needed.
func (c *Core) allocateSlug(ctx context.Context, title string, self uuid.UUID) (string, error) {
	base := content.Slugify(title)
	if base == "" {
		base = "post"
	}

	query := `SELECT slug FROM blogs WHERE (slug = $1 OR slug LIKE $2) AND id <> $3`
	taken, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, func(rows *sql.Rows) (string, error) {
		var slug string
		err := rows.Scan(&slug)
		return slug, err
	}, base, base+"-%", self)
	if err != nil {
		return "", xerrors.New(err)
	}

	used := collectionutils.Associate(taken, func(slug string) (string, bool) { return slug, true })
	candidate := base
	// GetBlog reads anything UUID-shaped as an id, so such slugs get a suffix.
	for n := 2; used[candidate] || uuid.Validate(candidate) == nil; n++ {
		candidate = base + "-" + strconv.Itoa(n)
	}
	return candidate, nil
}
