package core

import (
	"context"
	"database/sql"
	"strings"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
	"github.com/siahsang/portfolio/models"
)

// ReferencedUploads lists every stored upload path that a record still points to.
func (c *Core) ReferencedUploads(ctx context.Context) ([]string, error) {
	query := `
		SELECT avatar FROM users
		UNION ALL SELECT image FROM skills
		UNION ALL SELECT image FROM certificates
		UNION ALL SELECT company_logo FROM testimonials
		UNION ALL SELECT image FROM testimonials
		UNION ALL SELECT author_avatar FROM blogs
		UNION ALL SELECT image FROM blogs
	`
	paths, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, query, func(rows *sql.Rows) (string, error) {
		var p string
		err := rows.Scan(&p)
		return p, err
	})
	if err != nil {
		return nil, xerrors.New(err)
	}

	imageLists, err := databaseutils.ExecuteQuery(ctx, c.sqlTemplate, `SELECT images FROM projects`, func(rows *sql.Rows) (models.StringList, error) {
		var images models.StringList
		err := rows.Scan(&images)
		return images, err
	})
	if err != nil {
		return nil, xerrors.New(err)
	}
	for _, images := range imageLists {
		paths = append(paths, images...)
	}

	referenced := make([]string, 0, len(paths))
	for _, p := range paths {
		if strings.TrimSpace(p) != "" {
			referenced = append(referenced, p)
		}
	}
	return referenced, nil
}
