package db

import (
	"database/sql"
	"embed"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	migratepostgres "github.com/golang-migrate/migrate/v4/database/postgres"
	migratesqlite3 "github.com/golang-migrate/migrate/v4/database/sqlite3"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/pkg/errors"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrUsernameTaken    = errors.New("username already exists")
	ErrPasswordRequired = errors.New("password is required")
)

//go:embed migrations
var migrations embed.FS

// DB is the user store. Queries use $N placeholders, which both the sqlite3
// and postgres drivers accept.
type DB struct {
	*sql.DB
	driver string
}

func Init(driver, dsn string) (*DB, error) {
	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", driver)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, errors.Wrapf(err, "ping %s", driver)
	}

	if err := migrateUp(db, driver); err != nil {
		db.Close()
		return nil, err
	}

	if driver == "sqlite3" {
		// sqlite serialises writers; a single connection avoids "database is locked".
		db.SetMaxOpenConns(1)
	}

	return &DB{DB: db, driver: driver}, nil
}

func (db *DB) Driver() string { return db.driver }

func migrateUp(db *sql.DB, driver string) error {
	src, err := iofs.New(migrations, "migrations/"+driver)
	if err != nil {
		return errors.Wrapf(err, "no migrations for driver %s", driver)
	}

	var target database.Driver
	switch driver {
	case "sqlite3":
		target, err = migratesqlite3.WithInstance(db, &migratesqlite3.Config{})
	case "postgres":
		target, err = migratepostgres.WithInstance(db, &migratepostgres.Config{})
	default:
		return errors.Errorf("unsupported driver %s", driver)
	}
	if err != nil {
		return errors.Wrap(err, "migration driver")
	}

	// m.Close is not called: it would close the shared *sql.DB.
	m, err := migrate.NewWithInstance("iofs", src, driver, target)
	if err != nil {
		return errors.Wrap(err, "migrate")
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return errors.Wrap(err, "failed to create tables")
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var sqliteErr sqlite3.Error
	if errors.As(err, &sqliteErr) {
		return sqliteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
