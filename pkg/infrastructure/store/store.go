package store

import (
	"context"
	"database/sql"
	"embed"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratemysql "github.com/golang-migrate/migrate/v4/database/mysql"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/mattn/go-sqlite3"
)

//go:embed migrations/mysql/*.sql migrations/sqlite3/*.sql
var migrationsFS embed.FS

const (
	// tokenSequenceSeed anchors numbering so the first issued token is 1000.
	// ClearAll re-arms the same seed.
	tokenSequenceSeed = 999
	tokenSequenceName = "token_number"
)

const (
	readSequenceSQL    = `SELECT last_value FROM token_sequence WHERE name = ?`
	insertSequenceSQL  = `INSERT INTO token_sequence (name, last_value) VALUES (?, ?)`
	advanceSequenceSQL = `UPDATE token_sequence SET last_value = last_value + 1 WHERE name = ?`
	resetSequenceSQL   = `UPDATE token_sequence SET last_value = ? WHERE name = ?`
)

type Store struct {
	db     *sqlx.DB
	driver string
}

func Connect(driver, dsn string) (*Store, error) {
	switch driver {
	case "mysql", "sqlite3":
	default:
		return nil, errors.Errorf("unsupported db driver %q", driver)
	}

	db, err := sqlx.Connect(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to connect to %s database", driver)
	}
	if driver == "mysql" {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
		db.SetConnMaxLifetime(5 * time.Minute)
	}
	return &Store{db: db, driver: driver}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Initialize applies schema migrations for the active dialect and seeds the
// token sequence row when it is missing. Safe to call on every startup.
func (s *Store) Initialize(ctx context.Context) error {
	if err := s.migrateUp(); err != nil {
		return err
	}
	return s.ensureTokenSequence(ctx)
}

func (s *Store) migrateUp() error {
	source, err := iofs.New(migrationsFS, "migrations/"+s.driver)
	if err != nil {
		return errors.Wrap(err, "failed to load embedded migrations")
	}

	var driver database.Driver
	switch s.driver {
	case "mysql":
		driver, err = migratemysql.WithInstance(s.db.DB, &migratemysql.Config{})
	case "sqlite3":
		driver, err = migratesqlite3.WithInstance(s.db.DB, &migratesqlite3.Config{})
	}
	if err != nil {
		return errors.Wrap(err, "failed to prepare migration driver")
	}

	m, err := migrate.NewWithInstance("iofs", source, s.driver, driver)
	if err != nil {
		return errors.Wrap(err, "failed to create migrator")
	}
	if err = m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to apply migrations")
	}
	return nil
}

func (s *Store) ensureTokenSequence(ctx context.Context) error {
	return s.inTx(ctx, func(tx *sqlx.Tx) error {
		var last int64
		err := tx.GetContext(ctx, &last, readSequenceSQL, tokenSequenceName)
		if err == nil {
			return nil
		}
		if !errors.Is(err, sql.ErrNoRows) {
			return errors.Wrap(err, "failed to read token sequence")
		}
		if _, err = tx.ExecContext(ctx, insertSequenceSQL, tokenSequenceName, tokenSequenceSeed); err != nil {
			return errors.Wrap(err, "failed to seed token sequence")
		}
		return nil
	})
}

func (s *Store) inTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.Wrap(err, "failed to begin transaction")
	}
	if err = fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return errors.Wrapf(err, "rollback failed: %v", rbErr)
		}
		return err
	}
	return errors.Wrap(tx.Commit(), "failed to commit transaction")
}
