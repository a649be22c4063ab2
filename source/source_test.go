package source

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

func newMockedClientReaders(t *testing.T) *Readers {
	t.Helper()
	client := NewHTTPClient(5 * time.Second)
	httpmock.ActivateNonDefault(client.GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)

	return NewReaders(NewAPIReader(client), NewDatabaseReader(nil), NewFileReader(client))
}

func TestAPIReader_Normalization(t *testing.T) {
	readers := newMockedClientReaders(t)

	cases := []struct {
		name    string
		body    string
		columns []string
		rows    [][]any
	}{
		{"array", `[{"b":1,"a":"x"},{"b":2,"a":"y"}]`, []string{"b", "a"}, [][]any{{int64(1), "x"}, {int64(2), "y"}}},
		{"data list", `{"data":[{"id":1}],"page":1}`, []string{"id"}, [][]any{{int64(1)}}},
		{"data object", `{"data":{"id":7}}`, []string{"id"}, [][]any{{int64(7)}}},
		{"results list", `{"results":[{"id":3},{"id":4}]}`, []string{"id"}, [][]any{{int64(3)}, {int64(4)}}},
		{"plain object", `{"id":9,"name":"z"}`, []string{"id", "name"}, [][]any{{int64(9), "z"}}},
		{"scalar", `42`, []string{"value"}, [][]any{{int64(42)}}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			httpmock.Reset()
			httpmock.RegisterResponder("GET", "https://api.example.com/items",
				httpmock.NewStringResponder(200, tc.body))

			ds, err := readers.Read(context.Background(), &entity.DataSourceConfig{
				SourceType: entity.SourceKindAPI,
				SourceURL:  "https://api.example.com/items",
			})
			require.NoError(t, err)
			assert.Equal(t, dataset.FormRecords, ds.Form())
			assert.Equal(t, tc.columns, ds.Columns())
			assert.Equal(t, tc.rows, ds.Rows())
		})
	}
}

func TestAPIReader_QueryParams(t *testing.T) {
	readers := newMockedClientReaders(t)

	httpmock.RegisterResponderWithQuery("GET", "https://api.example.com/items",
		map[string]string{"limit": "10", "active": "True"},
		httpmock.NewStringResponder(200, `[]`))

	ds, err := readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType:   entity.SourceKindAPI,
		SourceURL:    "https://api.example.com/items",
		SourceParams: map[string]any{"limit": float64(10), "active": true},
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.NumRows())
}

func TestAPIReader_Failures(t *testing.T) {
	readers := newMockedClientReaders(t)
	cfg := &entity.DataSourceConfig{SourceType: entity.SourceKindAPI, SourceURL: "https://api.example.com/broken"}

	httpmock.RegisterResponder("GET", cfg.SourceURL, httpmock.NewStringResponder(503, `down`))
	ds, err := readers.Read(context.Background(), cfg)
	assert.Nil(t, ds)
	var fetchErr *entity.FetchError
	require.True(t, errors.As(err, &fetchErr))
	assert.Equal(t, entity.SourceKindAPI, fetchErr.Source)
	assert.ErrorContains(t, err, "503")

	httpmock.RegisterResponder("GET", cfg.SourceURL, httpmock.NewStringResponder(200, `<html>`))
	ds, err = readers.Read(context.Background(), cfg)
	assert.Nil(t, ds)
	assert.True(t, errors.As(err, &fetchErr))
}

func TestFileReader_Download(t *testing.T) {
	readers := newMockedClientReaders(t)
	httpmock.RegisterResponder("GET", "https://files.example.com/data.csv",
		httpmock.NewStringResponder(200, "id,name\n1,a\n2,b\n"))

	ds, err := readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType: entity.SourceKindFile,
		SourceURL:  "https://files.example.com/data.csv",
		FileFormat: entity.FileFormatCSV,
	})
	require.NoError(t, err)
	assert.Equal(t, dataset.FormTable, ds.Form())
	assert.Equal(t, []string{"id", "name"}, ds.Columns())
	assert.Equal(t, 2, ds.NumRows())
}

func TestFileReader_LocalAndErrors(t *testing.T) {
	readers := newMockedClientReaders(t)

	path := filepath.Join(t.TempDir(), "rows.json")
	require.NoError(t, os.WriteFile(path, []byte(`[{"x":1},{"x":2}]`), 0o600))

	ds, err := readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType: entity.SourceKindFile,
		SourceURL:  path,
		FileFormat: entity.FileFormatJSON,
	})
	require.NoError(t, err)
	assert.Equal(t, [][]any{{int64(1)}, {int64(2)}}, ds.Rows())

	_, err = readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType: entity.SourceKindFile,
		SourceURL:  path,
		FileFormat: "xml",
	})
	assert.True(t, errors.Is(err, entity.ErrUnsupportedFormat))
	var fetchErr *entity.FetchError
	assert.True(t, errors.As(err, &fetchErr))

	_, err = readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType: entity.SourceKindFile,
		SourceURL:  filepath.Join(t.TempDir(), "missing.csv"),
		FileFormat: entity.FileFormatCSV,
	})
	assert.True(t, errors.As(err, &fetchErr))

	httpmock.RegisterResponder("GET", "https://files.example.com/gone.csv", httpmock.NewStringResponder(404, ""))
	_, err = readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType: entity.SourceKindFile,
		SourceURL:  "https://files.example.com/gone.csv",
		FileFormat: entity.FileFormatCSV,
	})
	assert.ErrorContains(t, err, "404")
}

func TestDatabaseReader_SQLite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "source.db")
	db, err := OpenDatabase("sqlite:///" + path)
	require.NoError(t, err)
	require.NoError(t, db.Exec(`CREATE TABLE orders (id INTEGER, customer TEXT, total REAL)`).Error)
	require.NoError(t, db.Exec(`INSERT INTO orders VALUES (1, 'ann', 10.5), (2, 'bob', 3.25), (3, 'ann', 7)`).Error)
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	readers := NewReaders(nil, NewDatabaseReader(nil), nil)

	ds, err := readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType:   entity.SourceKindDatabase,
		SourceURL:    "sqlite+pysqlite:///" + path,
		SourceQuery:  "SELECT id, customer, total FROM orders WHERE customer = :customer ORDER BY id",
		SourceParams: map[string]any{"customer": "ann"},
	})
	require.NoError(t, err)
	assert.Equal(t, dataset.FormTable, ds.Form())
	assert.Equal(t, []string{"id", "customer", "total"}, ds.Columns())
	assert.Equal(t, [][]any{{int64(1), "ann", 10.5}, {int64(3), "ann", 7.0}}, ds.Rows())

	_, err = readers.Read(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindDatabase,
		SourceURL:   "sqlite:///" + path,
		SourceQuery: "SELECT * FROM missing_table",
	})
	var fetchErr *entity.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}

// closingPool is a gorm.ConnPool that is not a *sql.DB
type closingPool struct {
	closed bool
}

func (p *closingPool) PrepareContext(context.Context, string) (*sql.Stmt, error) {
	return nil, errors.New("unsupported")
}

func (p *closingPool) ExecContext(context.Context, string, ...interface{}) (sql.Result, error) {
	return nil, errors.New("unsupported")
}

func (p *closingPool) QueryContext(context.Context, string, ...interface{}) (*sql.Rows, error) {
	return nil, errors.New("unsupported")
}

func (p *closingPool) QueryRowContext(context.Context, string, ...interface{}) *sql.Row {
	return nil
}

func (p *closingPool) Close() error {
	p.closed = true
	return nil
}

func TestDatabaseReader_ClosesPoolWithoutSQLDB(t *testing.T) {
	pool := &closingPool{}
	reader := NewDatabaseReader(func(string) (*gorm.DB, error) {
		return &gorm.DB{Config: &gorm.Config{ConnPool: pool}}, nil
	})

	_, err := reader.Read(context.Background(), &entity.DataSourceConfig{
		SourceType:  entity.SourceKindDatabase,
		SourceURL:   "sqlite:///unused.db",
		SourceQuery: "SELECT 1",
	})
	assert.ErrorIs(t, err, gorm.ErrInvalidDB)
	assert.True(t, pool.closed)
}

func TestBindParams(t *testing.T) {
	q, args := bindParams("SELECT a::text FROM t WHERE x = :x AND y = @y", map[string]any{"x": 1, "y": 2})
	assert.Equal(t, "SELECT a::text FROM t WHERE x = @x AND y = @y", q)
	require.Len(t, args, 1)
	assert.Equal(t, map[string]any{"x": 1, "y": 2}, args[0])

	q, args = bindParams("SELECT 1", nil)
	assert.Equal(t, "SELECT 1", q)
	assert.Nil(t, args)
}

func TestOpenDatabase_Schemes(t *testing.T) {
	_, err := OpenDatabase("oracle://host/db")
	assert.ErrorContains(t, err, "unsupported database scheme")

	_, err = OpenDatabase("not a url")
	assert.Error(t, err)

	dsn, err := mysqlDSN("user:secret@db.local/shop?charset=utf8mb4")
	require.NoError(t, err)
	assert.Contains(t, dsn, "user:secret@tcp(db.local:3306)/shop?")
	assert.Contains(t, dsn, "parseTime=true")
	assert.Contains(t, dsn, "charset=utf8mb4")

	assert.Equal(t, ":memory:", sqlitePath(""))
	assert.Equal(t, "rel.db", sqlitePath("/rel.db"))
	assert.Equal(t, "/abs/x.db", sqlitePath("//abs/x.db"))
}

func TestReaders_UnknownSource(t *testing.T) {
	_, err := NewReaders(nil, nil, nil).Read(context.Background(), &entity.DataSourceConfig{SourceType: "ftp"})
	var fetchErr *entity.FetchError
	assert.True(t, errors.As(err, &fetchErr))
}
