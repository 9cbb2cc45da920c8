package database

import (
	"database/sql"
	stderrors "errors"
	"fmt"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
)

// Migrator applies the SQL files under a migrations directory
type Migrator struct {
	db *sql.DB
	m  *migrate.Migrate
}

// NewMigrator opens databaseURL with lib/pq and reads migrations from dir
func NewMigrator(databaseURL, dir string) (*Migrator, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance("file://"+dir, "postgres", driver)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to load migrations from %s: %w", dir, err)
	}
	return &Migrator{db: db, m: m}, nil
}

// Up applies all pending migrations, or only steps of them when steps > 0
func (m *Migrator) Up(steps int) error {
	var err error
	if steps > 0 {
		err = m.m.Steps(steps)
	} else {
		err = m.m.Up()
	}
	return ignoreNoChange(err)
}

// Down reverts all migrations, or only steps of them when steps > 0
func (m *Migrator) Down(steps int) error {
	var err error
	if steps > 0 {
		err = m.m.Steps(-steps)
	} else {
		err = m.m.Down()
	}
	return ignoreNoChange(err)
}

// Version reports the applied version; zero when none has been applied
func (m *Migrator) Version() (uint, bool, error) {
	v, dirty, err := m.m.Version()
	if stderrors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return v, dirty, err
}

// Close releases the migration source and database handle
func (m *Migrator) Close() error {
	srcErr, driverErr := m.m.Close()
	return stderrors.Join(srcErr, driverErr, m.db.Close())
}

func ignoreNoChange(err error) error {
	if stderrors.Is(err, migrate.ErrNoChange) {
		return nil
	}
	return err
}
