package main

import (
	"context"
	"database/sql"
	_ "embed"
	"flag"
	"os"
	"time"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/rs/zerolog"

	"github.com/noah-isme/backend-freight/internal/obs"
)

//go:embed fixtures.yaml
var defaultFixture []byte

const upsertRecord = `INSERT INTO records (collection, id, data)
VALUES ($1, $2, $3::jsonb)
ON CONFLICT (collection, id) DO UPDATE SET data = EXCLUDED.data, updated_at = now()`

func main() {
	file := flag.String("file", "", "YAML fixture to load instead of the bundled demo data")
	dryRun := flag.Bool("dry-run", false, "validate the fixture without writing")
	flag.Parse()

	logger := obs.NewLogger("console", "info").With().Str("component", "seeder").Logger()
	if err := godotenv.Load(); err != nil {
		logger.Info().Msg("no .env file found, relying on environment variables")
	}

	data := defaultFixture
	if *file != "" {
		b, err := os.ReadFile(*file)
		if err != nil {
			logger.Fatal().Err(err).Str("file", *file).Msg("read fixture")
		}
		data = b
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	fx, err := parseFixture(data)
	if err != nil {
		logger.Fatal().Err(err).Msg("load fixture")
	}
	rows, err := plan(ctx, fx)
	if err != nil {
		logger.Fatal().Err(err).Msg("validate fixture")
	}
	if *dryRun {
		logger.Info().Int("records", len(rows)).Msg("fixture is valid")
		return
	}

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Fatal().Msg("DATABASE_URL is not set")
	}
	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("open database")
	}
	defer db.Close()

	if err := seed(ctx, db, rows, logger); err != nil {
		logger.Fatal().Err(err).Msg("seed records")
	}
	logger.Info().Int("records", len(rows)).Msg("seeding completed")
}

func seed(ctx context.Context, db *sql.DB, rows []row, logger zerolog.Logger) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, upsertRecord)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, r := range rows {
		if _, err := stmt.ExecContext(ctx, r.Collection, r.ID, string(r.Data)); err != nil {
			return err
		}
		logger.Debug().Str("collection", r.Collection).Str("id", r.ID).Msg("seeded")
	}
	return tx.Commit()
}
