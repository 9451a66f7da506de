package repomanager

import (
	"context"
	"database/sql"

	"github.com/dmitrijs2005/pwkeeper/internal/dbx"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/devices"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/sessions"
	"github.com/dmitrijs2005/pwkeeper/internal/server/repositories/users"
)

// RepositoryManager vends repositories bound to a DBTX, so the same code
// runs on a plain connection or inside a transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Devices(db dbx.DBTX) devices.Repository
	Sessions(db dbx.DBTX) sessions.Repository
}
