package db

import (
	"errors"
	"io/fs"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/require"
)

func TestMigrateURL(t *testing.T) {
	require.Equal(t, "pgx5://u:p@localhost:5432/b2b?sslmode=disable", migrateURL("postgres://u:p@localhost:5432/b2b?sslmode=disable"))
	require.Equal(t, "pgx5://localhost/b2b", migrateURL("postgresql://localhost/b2b"))
	require.Equal(t, "pgx5://already", migrateURL("pgx5://already"))
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := fs.Glob(migrationsFS, "migrations/*.up.sql")
	require.NoError(t, err)
	downs, err := fs.Glob(migrationsFS, "migrations/*.down.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)
	require.Len(t, downs, len(ups))
}

func TestPgErrorHelpers(t *testing.T) {
	err := &pgconn.PgError{Code: CodeUniqueViolation, ConstraintName: "shopkeepers_contact_number_key"}
	wrapped := errors.Join(errors.New("insert shopkeeper"), err)

	require.True(t, IsUniqueViolation(wrapped))
	require.Equal(t, "shopkeepers_contact_number_key", ConstraintName(wrapped))
	require.Empty(t, PgErrorCode(errors.New("plain")))
}
