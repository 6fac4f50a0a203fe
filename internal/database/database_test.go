package database

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GoogleCloudPlatform/db-nl2sql/internal/config"
)

// mockDialectHandler hands out a prepared sqlmock pool and records which
// constructor was used.
type mockDialectHandler struct {
	mu            sync.Mutex
	pool          *sql.DB
	poolErr       error
	cloudSQLCalls int
	standardCalls int
	single        bool
}

func (m *mockDialectHandler) CreateCloudSQLPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cloudSQLCalls++
	return m.pool, m.poolErr
}

func (m *mockDialectHandler) CreateStandardPool(cfg config.DatabaseConfig) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.standardCalls++
	return m.pool, m.poolErr
}

func (m *mockDialectHandler) ListTables(ctx context.Context, db *DB) ([]string, error) {
	return ScanTableNames(mustQuery(ctx, db, "SELECT name FROM tables"))
}

func (m *mockDialectHandler) ListColumns(ctx context.Context, db *DB, tableName string) ([]ColumnInfo, error) {
	return ScanColumnInfos(mustQuery(ctx, db, "SELECT name, type FROM columns"))
}

func (m *mockDialectHandler) SingleConnection() bool { return m.single }

func mustQuery(ctx context.Context, db *DB, q string) *sql.Rows {
	rows, err := db.Pool.QueryContext(ctx, q)
	if err != nil {
		panic(err)
	}
	return rows
}

func withHandlers(t *testing.T, handlers map[string]DialectHandler) {
	t.Helper()
	mu.Lock()
	original := dialectHandlers
	dialectHandlers = handlers
	mu.Unlock()
	t.Cleanup(func() {
		mu.Lock()
		dialectHandlers = original
		mu.Unlock()
	})
}

func TestRegisterAndGetDialectHandler(t *testing.T) {
	withHandlers(t, make(map[string]DialectHandler))

	h := &mockDialectHandler{}
	RegisterDialectHandler("mock", h)

	got, err := GetDialectHandler("mock")
	require.NoError(t, err)
	assert.Same(t, h, got)

	_, err = GetDialectHandler("oracle")
	assert.EqualError(t, err, "unsupported database dialect: oracle")
}

func TestNew(t *testing.T) {
	t.Run("standard pool", func(t *testing.T) {
		pool, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing()
		h := &mockDialectHandler{pool: pool}
		withHandlers(t, map[string]DialectHandler{"mock": h})

		db, err := New(context.Background(), config.DatabaseConfig{Dialect: "mock", MaxOpenConns: 3}, nil)
		require.NoError(t, err)
		defer db.Close()

		assert.Equal(t, 1, h.standardCalls)
		assert.Zero(t, h.cloudSQLCalls)
		assert.Equal(t, 3, db.Pool.Stats().MaxOpenConnections)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("cloudsql prefix", func(t *testing.T) {
		pool, _, err := sqlmock.New()
		require.NoError(t, err)
		h := &mockDialectHandler{pool: pool}
		withHandlers(t, map[string]DialectHandler{"cloudsqlmock": h})

		db, err := New(context.Background(), config.DatabaseConfig{Dialect: "cloudsqlmock"}, nil)
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 1, h.cloudSQLCalls)
	})

	t.Run("single connection dialect", func(t *testing.T) {
		pool, _, err := sqlmock.New()
		require.NoError(t, err)
		h := &mockDialectHandler{pool: pool, single: true}
		withHandlers(t, map[string]DialectHandler{"mock": h})

		db, err := New(context.Background(), config.DatabaseConfig{Dialect: "mock", MaxOpenConns: 10}, nil)
		require.NoError(t, err)
		defer db.Close()
		assert.Equal(t, 1, db.Pool.Stats().MaxOpenConnections)
	})

	t.Run("pool error", func(t *testing.T) {
		h := &mockDialectHandler{poolErr: errors.New("bad dsn")}
		withHandlers(t, map[string]DialectHandler{"mock": h})

		_, err := New(context.Background(), config.DatabaseConfig{Dialect: "mock"}, nil)
		assert.ErrorContains(t, err, "failed to create database pool for dialect mock: bad dsn")
	})

	t.Run("ping failure", func(t *testing.T) {
		pool, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
		require.NoError(t, err)
		mock.ExpectPing().WillReturnError(errors.New("connection refused"))
		withHandlers(t, map[string]DialectHandler{"mock": &mockDialectHandler{pool: pool}})

		_, err = New(context.Background(), config.DatabaseConfig{Dialect: "mock"}, nil)
		assert.ErrorContains(t, err, "ping failed")
	})

	t.Run("unknown dialect", func(t *testing.T) {
		withHandlers(t, map[string]DialectHandler{})
		_, err := New(context.Background(), config.DatabaseConfig{Dialect: "mock"}, nil)
		assert.Error(t, err)
	})
}

func TestDBQuery(t *testing.T) {
	tests := []struct {
		name        string
		query       string
		setup       func(sqlmock.Sqlmock)
		want        *ResultSet
		expectedErr string
	}{
		{
			name:  "rows with byte values",
			query: "SELECT first_name, student_id FROM students;",
			setup: func(mock sqlmock.Sqlmock) {
				rows := sqlmock.NewRows([]string{"first_name", "student_id"}).
					AddRow([]byte("Ada"), int64(1)).
					AddRow([]byte("Alan"), int64(2))
				mock.ExpectQuery(`SELECT first_name, student_id FROM students;`).WillReturnRows(rows)
			},
			want: &ResultSet{
				Columns: []string{"first_name", "student_id"},
				Rows:    [][]any{{"Ada", int64(1)}, {"Alan", int64(2)}},
			},
		},
		{
			name:  "no rows",
			query: "SELECT * FROM courses;",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM courses;`).WillReturnRows(sqlmock.NewRows([]string{"course_id"}))
			},
			want: &ResultSet{Columns: []string{"course_id"}, Rows: [][]any{}},
		},
		{
			name:  "query error",
			query: "SELECT * FROM table_name;",
			setup: func(mock sqlmock.Sqlmock) {
				mock.ExpectQuery(`SELECT \* FROM table_name;`).WillReturnError(errors.New("no such table"))
			},
			expectedErr: "error executing query: no such table",
		},
		{
			name:        "blank query",
			query:       "   ",
			setup:       func(sqlmock.Sqlmock) {},
			expectedErr: "query cannot be empty",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pool, mock, err := sqlmock.New()
			require.NoError(t, err)
			defer pool.Close()
			tt.setup(mock)

			db := &DB{Pool: pool, Handler: &mockDialectHandler{}}
			got, err := db.Query(context.Background(), tt.query)
			if tt.expectedErr != "" {
				assert.EqualError(t, err, tt.expectedErr)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.want, got)
			}
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestDBListDelegatesToHandler(t *testing.T) {
	pool, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer pool.Close()
	mock.ExpectQuery(`SELECT name FROM tables`).WillReturnRows(sqlmock.NewRows([]string{"name"}).AddRow("students"))
	mock.ExpectQuery(`SELECT name, type FROM columns`).WillReturnRows(sqlmock.NewRows([]string{"name", "type"}).AddRow("student_id", "int"))

	db := &DB{Pool: pool, Handler: &mockDialectHandler{}}
	tables, err := db.ListTables(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"students"}, tables)

	cols, err := db.ListColumns(context.Background(), "students")
	require.NoError(t, err)
	assert.Equal(t, []ColumnInfo{{Name: "student_id", DataType: "int"}}, cols)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDBWithoutHandler(t *testing.T) {
	db := &DB{}
	_, err := db.ListTables(context.Background())
	assert.EqualError(t, err, "dialect handler not initialized")
	_, err = db.Query(context.Background(), "SELECT 1")
	assert.EqualError(t, err, "database connection pool is not initialized")
	assert.NoError(t, db.Close())
}
