package core

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/mdobak/go-xerrors"
	"github.com/siahsang/portfolio/internal/utils/databaseutils"
)

type Core struct {
	log         *slog.Logger
	db          *sql.DB
	sqlTemplate *databaseutils.SQLTemplate
	session     databaseutils.Session
	now         func() time.Time
}

func NewCore(dbConn *sql.DB, log *slog.Logger, sqlTemplate *databaseutils.SQLTemplate) *Core {
	return &Core{
		log:         log,
		db:          dbConn,
		sqlTemplate: sqlTemplate,
		session:     databaseutils.NewSession(dbConn),
		now:         func() time.Time { return time.Now().UTC().Truncate(time.Microsecond) },
	}
}

// Ping checks that the database answers within a second.
func (c *Core) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return xerrors.New(err)
	}
	return nil
}
