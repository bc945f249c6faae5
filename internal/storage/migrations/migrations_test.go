package migrations

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSplitStatements(t *testing.T) {
	input := `
-- header comment
CREATE TABLE a (x UInt8) ENGINE = Memory;

   -- indented comment
CREATE TABLE b (
    y String
) ENGINE = Memory;
`
	stmts := splitStatements(input)
	require.Len(t, stmts, 2)
	assert.Equal(t, "CREATE TABLE a (x UInt8) ENGINE = Memory", stmts[0])
	assert.Contains(t, stmts[1], "CREATE TABLE b")
}

func TestValidateNoSemicolonInStrings(t *testing.T) {
	assert.NoError(t, validateNoSemicolonInStrings(`SELECT 'a''b'; SELECT 1;`))
	assert.Error(t, validateNoSemicolonInStrings(`SELECT 'a;b'`))
}

func TestDatabaseFromDSN(t *testing.T) {
	db, err := databaseFromDSN("clickhouse://default:pw@localhost:9000/radar")
	require.NoError(t, err)
	assert.Equal(t, "radar", db)

	_, err = databaseFromDSN("clickhouse://localhost:9000")
	assert.Error(t, err)
}

func TestEmbeddedMigrationsOrdered(t *testing.T) {
	pg, err := readMigrations(PostgresFS, "postgres")
	require.NoError(t, err)
	require.Len(t, pg, 2)
	assert.Equal(t, "001_profiles.sql", pg[0].name)
	assert.Equal(t, "002_payment_attempts.sql", pg[1].name)
	assert.Contains(t, pg[1].sql, "WHERE consumes")

	ch, err := readMigrations(ClickhouseFS, "clickhouse")
	require.NoError(t, err)
	require.Len(t, ch, 1)
	for _, f := range ch {
		assert.NoError(t, validateNoSemicolonInStrings(f.sql))
		assert.Len(t, splitStatements(f.sql), 1)
	}
}
