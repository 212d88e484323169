package store

import (
	"context"
	"embed"
	"fmt"
	"log/slog"

	"github.com/pkg/errors"
)

//go:embed migration
var migrationFS embed.FS

//go:embed seed
var seedFS embed.FS

// LatestSchemaFileName is the full schema applied to fresh installations.
const LatestSchemaFileName = "LATEST.sql"

// Migrate initializes the database schema on a fresh installation and seeds
// demo data in demo mode. Schema changes ship as a new LATEST.sql; there is
// no incremental migration history yet at this stage of the project.
func (s *Store) Migrate(ctx context.Context) error {
	initialized, err := s.driver.IsInitialized(ctx)
	if err != nil {
		return errors.Wrap(err, "failed to check if database is initialized")
	}

	if !initialized {
		filePath := fmt.Sprintf("migration/%s/%s", s.profile.Driver, LatestSchemaFileName)
		bytes, err := migrationFS.ReadFile(filePath)
		if err != nil {
			return errors.Wrapf(err, "failed to read latest schema file %s", filePath)
		}

		tx, err := s.driver.GetDB().Begin()
		if err != nil {
			return errors.Wrap(err, "failed to start transaction")
		}
		defer tx.Rollback()

		slog.Info("initializing new database with latest schema", slog.String("file", filePath))
		if _, err := tx.ExecContext(ctx, string(bytes)); err != nil {
			return errors.Wrapf(err, "failed to execute schema file %s", filePath)
		}
		if err := tx.Commit(); err != nil {
			return errors.Wrap(err, "failed to commit transaction")
		}
	}

	if s.profile.Mode == "demo" {
		if err := s.seed(ctx); err != nil {
			return errors.Wrap(err, "failed to seed")
		}
	}
	return nil
}

// seed loads demo providers so a fresh demo instance can match requests.
func (s *Store) seed(ctx context.Context) error {
	filePath := fmt.Sprintf("seed/%s/demo.sql", s.profile.Driver)
	bytes, err := seedFS.ReadFile(filePath)
	if err != nil {
		return errors.Wrapf(err, "failed to read seed file %s", filePath)
	}

	// Seeding is idempotent: skip when providers already exist.
	providers, err := s.driver.ListProviders(ctx, &FindProvider{})
	if err != nil {
		return errors.Wrap(err, "failed to list providers")
	}
	if len(providers) > 0 {
		return nil
	}

	tx, err := s.driver.GetDB().Begin()
	if err != nil {
		return errors.Wrap(err, "failed to start transaction")
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, string(bytes)); err != nil {
		return errors.Wrapf(err, "seed error: %s", filePath)
	}
	return tx.Commit()
}
