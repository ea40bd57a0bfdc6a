package repomanager

import (
	"context"
	"database/sql"

	"pocketsync/internal/dbx"
	"pocketsync/internal/server/repositories/records"
	"pocketsync/internal/server/repositories/refreshtokens"
	"pocketsync/internal/server/repositories/users"
)

// RepositoryManager vends repository implementations bound to either a
// database handle or an open transaction.
type RepositoryManager interface {
	RunMigrations(context.Context, *sql.DB) error
	Users(db dbx.DBTX) users.Repository
	Records(db dbx.DBTX) records.Repository
	RefreshTokens(db dbx.DBTX) refreshtokens.Repository
}
