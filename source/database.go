package source

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/url"
	"regexp"
	"strings"

	"github.com/go-sql-driver/mysql"
	gormmysql "gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tnqbao/gau-ingest-pipeline/dataset"
	"github.com/tnqbao/gau-ingest-pipeline/entity"
)

// Opener connects to the database a source_url points at
type Opener func(rawURL string) (*gorm.DB, error)

// DatabaseReader runs source_query against source_url. A connection is opened
// for every read and closed before returning.
type DatabaseReader struct {
	open Opener
}

func NewDatabaseReader(open Opener) *DatabaseReader {
	if open == nil {
		open = OpenDatabase
	}
	return &DatabaseReader{open: open}
}

func (r *DatabaseReader) Read(ctx context.Context, cfg *entity.DataSourceConfig) (*dataset.Dataset, error) {
	db, err := r.open(cfg.SourceURL)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		if closer, ok := db.ConnPool.(io.Closer); ok {
			_ = closer.Close()
		}
		return nil, err
	}
	defer sqlDB.Close()

	query, args := bindParams(cfg.SourceQuery, cfg.SourceParams)
	rows, err := db.WithContext(ctx).Raw(query, args...).Rows()
	if err != nil {
		return nil, fmt.Errorf("run query: %w", err)
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var out [][]any
	for rows.Next() {
		values := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		out = append(out, values)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return dataset.New(columns, out)
}

var colonParam = regexp.MustCompile(`(^|[^:\w]):([A-Za-z_]\w*)`)

// bindParams rewrites ":name" placeholders to gorm's "@name" form and passes
// the params as one named-argument map
func bindParams(query string, params map[string]any) (string, []any) {
	if len(params) == 0 {
		return query, nil
	}
	named := make(map[string]any, len(params))
	for k, v := range params {
		named[k] = v
	}
	return colonParam.ReplaceAllString(query, "${1}@${2}"), []any{named}
}

// OpenDatabase accepts postgres, mysql and sqlite URLs. A "+driver" suffix on
// the scheme, as in "postgresql+psycopg2://", is ignored.
func OpenDatabase(rawURL string) (*gorm.DB, error) {
	scheme, rest, ok := strings.Cut(rawURL, "://")
	if !ok {
		return nil, fmt.Errorf("database url %q has no scheme", rawURL)
	}
	scheme, _, _ = strings.Cut(strings.ToLower(scheme), "+")

	var dialector gorm.Dialector
	switch scheme {
	case "postgres", "postgresql":
		dialector = postgres.Open("postgres://" + rest)
	case "mysql", "mariadb":
		dsn, err := mysqlDSN(rest)
		if err != nil {
			return nil, err
		}
		dialector = gormmysql.Open(dsn)
	case "sqlite", "sqlite3":
		dialector = sqlite.Open(sqlitePath(rest))
	default:
		return nil, fmt.Errorf("unsupported database scheme %q", scheme)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return db, nil
}

func mysqlDSN(rest string) (string, error) {
	u, err := url.Parse("mysql://" + rest)
	if err != nil {
		return "", fmt.Errorf("parse mysql url: %w", err)
	}

	cfg := mysql.NewConfig()
	cfg.Net = "tcp"
	cfg.Addr = u.Host
	if u.Port() == "" {
		cfg.Addr = net.JoinHostPort(u.Hostname(), "3306")
	}
	cfg.DBName = strings.TrimPrefix(u.Path, "/")
	cfg.ParseTime = true
	if u.User != nil {
		cfg.User = u.User.Username()
		cfg.Passwd, _ = u.User.Password()
	}
	if cfg.User == "" {
		return "", errors.New("mysql url requires a user")
	}
	for key, values := range u.Query() {
		if len(values) == 0 {
			continue
		}
		if cfg.Params == nil {
			cfg.Params = make(map[string]string)
		}
		cfg.Params[key] = values[0]
	}
	return cfg.FormatDSN(), nil
}

// sqlitePath maps "sqlite:///rel.db" to "rel.db", "sqlite:////abs.db" to
// "/abs.db" and an empty path to an in-memory database
func sqlitePath(rest string) string {
	rest = strings.TrimPrefix(rest, "/")
	if rest == "" {
		return ":memory:"
	}
	return rest
}
