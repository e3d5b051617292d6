package db

import (
	"context"
	"database/sql"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"
)

func createTestDB(t *testing.T) *DB {
	t.Helper()
	dsn := "file:" + filepath.Join(t.TempDir(), "test.db") + "?_foreign_keys=on&_busy_timeout=5000"
	db, err := NewDB(DriverSQLite, dsn, noop.NewMeterProvider(), "storefront-test")
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	require.NoError(t, db.Migrate(context.Background()))
	return db
}

func TestNewDB_UnsupportedDriver(t *testing.T) {
	_, err := NewDB("postgres", "", noop.NewMeterProvider(), "test")
	assert.Error(t, err)
}

func TestMigrate_Idempotent(t *testing.T) {
	db := createTestDB(t)
	require.NoError(t, db.Migrate(context.Background()))

	for _, table := range []string{"users", "products", "orders", "order_items", "order_status_history"} {
		var name string
		err := db.QueryRow("SELECT name FROM sqlite_master WHERE type = 'table' AND name = ?", table).Scan(&name)
		require.NoError(t, err, table)
	}
}

func TestSchema_StockCannotGoNegative(t *testing.T) {
	db := createTestDB(t)
	now := time.Now()

	_, err := db.Exec(`INSERT INTO products (name, description, price, category, tags, sizes, colors, images, stock, created_at, updated_at)
		VALUES ('Tee', 'cotton', 10, 'men', '[]', '[]', '[]', '[]', -1, ?, ?)`, now, now)
	assert.Error(t, err)
}

func TestIsDuplicateKey(t *testing.T) {
	db := createTestDB(t)
	now := time.Now()

	insert := `INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES ('a', 'a@example.com', 'x', ?, ?)`
	_, err := db.Exec(insert, now, now)
	require.NoError(t, err)

	_, err = db.Exec(insert, now, now)
	require.Error(t, err)
	assert.True(t, IsDuplicateKey(err))

	assert.True(t, IsDuplicateKey(&mysql.MySQLError{Number: 1062}))
	assert.False(t, IsDuplicateKey(&mysql.MySQLError{Number: 1452}))
	assert.False(t, IsDuplicateKey(errors.New("boom")))
}

func TestWithTx_RollsBackOnError(t *testing.T) {
	db := createTestDB(t)
	ctx := context.Background()
	now := time.Now()

	boom := errors.New("boom")
	err := db.WithTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES ('a', 'a@example.com', 'x', ?, ?)`, now, now); err != nil {
			return err
		}
		return boom
	})
	assert.ErrorIs(t, err, boom)

	var count int
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 0, count)

	err = db.WithTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx, `INSERT INTO users (name, email, password_hash, created_at, updated_at) VALUES ('b', 'b@example.com', 'x', ?, ?)`, now, now)
		return err
	})
	require.NoError(t, err)
	require.NoError(t, db.QueryRow("SELECT COUNT(*) FROM users").Scan(&count))
	assert.Equal(t, 1, count)
}

func TestSplitSQLStatements(t *testing.T) {
	stmts := splitSQLStatements(`
-- comment
CREATE TABLE a (id INT);

CREATE TABLE b (id INT);
`)
	assert.Equal(t, []string{"CREATE TABLE a (id INT)", "CREATE TABLE b (id INT)"}, stmts)
}
