package mysql

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"testing/fstest"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/require"

	"ZKAttest-Chain/deploy/migrations"
)

func TestEmbeddedMigrationsAreOrdered(t *testing.T) {
	files, err := loadMigrationFiles(migrations.Files)
	require.NoError(t, err)
	require.GreaterOrEqual(t, len(files), 2)
	require.Equal(t, "0001", files[0].version)
	require.Contains(t, files[0].statements[0], "CREATE TABLE IF NOT EXISTS attestation_jobs")
	for i := 1; i < len(files); i++ {
		require.Less(t, files[i-1].version, files[i].version)
	}
}

func TestSplitSQLStatements(t *testing.T) {
	statements := splitSQLStatements("-- header; ignored\nCREATE TABLE a (id INT);\n\n  ;INSERT INTO a VALUES (1);")
	require.Equal(t, []string{"CREATE TABLE a (id INT)", "INSERT INTO a VALUES (1)"}, statements)
	require.Equal(t, "0003", parseMigrationVersion("0003_add_index.sql"))
	require.Equal(t, "0004", parseMigrationVersion("0004.sql"))
}

func withMigrations(t *testing.T, files fstest.MapFS) {
	t.Helper()
	previous := embeddedMigrations
	embeddedMigrations = files
	t.Cleanup(func() { embeddedMigrations = previous })
}

func TestMigrateAppliesPendingVersions(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"0001_init.sql":  {Data: []byte("CREATE TABLE jobs (id INT);")},
		"0002_index.sql": {Data: []byte("CREATE INDEX idx ON jobs (id);")},
		"README.md":      {Data: []byte("not sql")},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}).AddRow("0001"))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE INDEX idx ON jobs (id)")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO schema_migrations")).
		WithArgs("0002", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(1, 1))
	mock.ExpectCommit()

	applied, err := Migrate(context.Background(), db)
	require.NoError(t, err)
	require.Equal(t, []string{"0002"}, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateRollsBackFailedStatement(t *testing.T) {
	withMigrations(t, fstest.MapFS{
		"0001_init.sql": {Data: []byte("CREATE TABLE jobs (id INT);")},
	})

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE IF NOT EXISTS schema_migrations")).WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectQuery(regexp.QuoteMeta("SELECT version FROM schema_migrations")).
		WillReturnRows(sqlmock.NewRows([]string{"version"}))
	mock.ExpectBegin()
	mock.ExpectExec(regexp.QuoteMeta("CREATE TABLE jobs (id INT)")).WillReturnError(errors.New("syntax error"))
	mock.ExpectRollback()

	applied, err := Migrate(context.Background(), db)
	require.Error(t, err)
	require.Empty(t, applied)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestOpenDatabasePingsAndTunesPool(t *testing.T) {
	_, mock, err := sqlmock.NewWithDSN("attest_open_test", sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	mock.ExpectPing()

	db, err := openDatabase(context.Background(), "sqlmock", Config{DSN: "attest_open_test", MaxOpenConns: 3})
	require.NoError(t, err)
	defer db.Close()
	require.Equal(t, 3, db.Stats().MaxOpenConnections)
	require.NoError(t, mock.ExpectationsWereMet())

	_, err = Open(context.Background(), Config{})
	require.Error(t, err)
}
