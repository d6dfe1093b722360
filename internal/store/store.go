package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/mattn/go-sqlite3"

	"shoppersense/internal/models"
)

//go:embed schema/*.sql
var schemaFS embed.FS

var (
	ErrNotFound  = errors.New("transaction not found")
	ErrDuplicate = errors.New("transaction already exists")
)

const mysqlDuplicateEntry = 1062

// isDuplicate reports whether err is a unique or primary key violation.
func isDuplicate(err error) bool {
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code == sqlite3.ErrConstraint
	}
	var myErr *mysql.MySQLError
	return errors.As(err, &myErr) && myErr.Number == mysqlDuplicateEntry
}

// Repository is the transaction query and write boundary the analytics
// service reads from. Soft-deleted rows never leave a repository.
type Repository interface {
	List(ctx context.Context, q models.Query) ([]models.Transaction, error)
	Create(ctx context.Context, tx *models.Transaction) error
	BulkCreate(ctx context.Context, txs []models.Transaction) (int, error)
	SoftDelete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

type dialect struct {
	driver       string
	insertIgnore string
}

var dialects = map[string]dialect{
	"sqlite3": {driver: "sqlite3", insertIgnore: "INSERT OR IGNORE INTO"},
	"mysql":   {driver: "mysql", insertIgnore: "INSERT IGNORE INTO"},
}

// SQLStore keeps transactions in SQLite or MySQL.
type SQLStore struct {
	db      *sql.DB
	dialect dialect
}

// Open connects to driver ("sqlite3" or "mysql") and applies the schema.
// MySQL accepts both driver DSNs and mysql:// or mariadb:// URLs.
func Open(ctx context.Context, driver, dsn string) (*SQLStore, error) {
	d, ok := dialects[driver]
	if !ok {
		return nil, fmt.Errorf("unsupported store driver %q", driver)
	}

	if driver == "mysql" {
		var err error
		if dsn, err = toMySQLDSN(dsn); err != nil {
			return nil, err
		}
	}

	db, err := sql.Open(d.driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	switch driver {
	case "sqlite3":
		// single writer avoids SQLITE_BUSY
		db.SetMaxOpenConns(1)
		db.SetMaxIdleConns(1)
		if err := applyPragmas(ctx, db); err != nil {
			db.Close()
			return nil, err
		}
	case "mysql":
		db.SetMaxOpenConns(10)
		db.SetMaxIdleConns(10)
		db.SetConnMaxLifetime(30 * time.Minute)
	}

	if err := applySchema(ctx, db, driver); err != nil {
		db.Close()
		return nil, err
	}

	return &SQLStore{db: db, dialect: d}, nil
}

func (s *SQLStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func applyPragmas(ctx context.Context, db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			return fmt.Errorf("execute %q: %w", pragma, err)
		}
	}
	return nil
}

// applySchema runs each statement of the dialect's schema file separately;
// the MySQL driver rejects multi-statement Exec calls by default.
func applySchema(ctx context.Context, db *sql.DB, driver string) error {
	schema, err := schemaFS.ReadFile("schema/" + driver + ".sql")
	if err != nil {
		return fmt.Errorf("read schema: %w", err)
	}

	for _, stmt := range strings.Split(string(schema), ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

// toMySQLDSN turns mysql:// and mariadb:// URLs into driver DSNs and forces
// UTC time parsing so DATETIME columns scan into time.Time.
func toMySQLDSN(dsn string) (string, error) {
	if strings.HasPrefix(dsn, "mariadb://") || strings.HasPrefix(dsn, "mysql://") {
		u, err := url.Parse(dsn)
		if err != nil {
			return "", fmt.Errorf("parse dsn: %w", err)
		}

		var user, pass string
		if u.User != nil {
			user = u.User.Username()
			pass, _ = u.User.Password()
		}
		host := u.Host
		name := strings.TrimPrefix(u.Path, "/")
		if user == "" || host == "" || name == "" {
			return "", fmt.Errorf("incomplete dsn: need user, host and database")
		}
		dsn = fmt.Sprintf("%s:%s@tcp(%s)/%s", user, pass, host, name)
	}

	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return "", fmt.Errorf("parse dsn: %w", err)
	}
	cfg.ParseTime = true
	cfg.Loc = time.UTC
	cfg.InterpolateParams = true
	return cfg.FormatDSN(), nil
}
