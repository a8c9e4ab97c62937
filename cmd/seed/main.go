package main

import (
	"context"
	"database/sql"
	"fmt"
	"os"

	"github.com/andresuchdata/backoffice/backend-go/internal/config"
	"github.com/andresuchdata/backoffice/backend-go/internal/repository/postgres"
	"github.com/andresuchdata/backoffice/backend-go/pkg/logger"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/jmoiron/sqlx"
	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
)

type contextKey string

const dbKey contextKey = "db"

func newDBURLFlag() *cli.StringFlag {
	return &cli.StringFlag{
		Name:    "db-url",
		Usage:   "Database connection string (defaults to the DB_* settings)",
		EnvVars: []string{"DATABASE_URL"},
	}
}

func databaseURL(c *cli.Context) string {
	if url := c.String("db-url"); url != "" {
		return url
	}
	return config.Load().Database.URL()
}

func initDB(c *cli.Context) error {
	// Initialize database connection
	conn, err := sql.Open("pgx", databaseURL(c))
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	// Test the connection
	if err := conn.PingContext(c.Context); err != nil {
		conn.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}

	// Store the database connection in the context
	c.Context = context.WithValue(c.Context, dbKey, postgres.Wrap(sqlx.NewDb(conn, "pgx"), 1))
	return nil
}

func closeDB(c *cli.Context) error {
	// Close the database connection when done
	if db, ok := c.Context.Value(dbKey).(*postgres.DB); ok && db != nil {
		return db.Close()
	}
	return nil
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		logger.Log.Debug().Err(err).Msg("seed: no .env file loaded")
	}
	logger.Configure(os.Getenv("LOG_LEVEL"), os.Getenv("LOG_FORMAT"), os.Stdout)

	app := &cli.App{
		Name:  "seed",
		Usage: "Prepare the backoffice database",
		Commands: []*cli.Command{
			{
				Name:  "migrate",
				Usage: "Apply or roll back the schema migrations",
				Subcommands: []*cli.Command{
					{
						Name:   "up",
						Usage:  "Apply all pending migrations",
						Flags:  []cli.Flag{newDBURLFlag()},
						Action: runMigrate(true),
					},
					{
						Name:   "down",
						Usage:  "Roll back every migration",
						Flags:  []cli.Flag{newDBURLFlag()},
						Action: runMigrate(false),
					},
				},
			},
			{
				Name:  "demo",
				Usage: "Load branches, products, transactions and costs from CSV or XLSX files",
				Flags: []cli.Flag{
					newDBURLFlag(),
					&cli.StringFlag{
						Name:    "data-dir",
						Usage:   "Directory containing the seed files",
						Value:   "./data/seeds/demo",
						EnvVars: []string{"SEED_DATA_DIR"},
					},
				},
				Before: initDB,
				After:  closeDB,
				Action: runSeeder,
			},
		},
	}

	if err := app.Run(os.Args); err != nil {
		logger.Log.Fatal().Err(err).Msg("seed failed")
	}
}

func runMigrate(up bool) cli.ActionFunc {
	return func(c *cli.Context) error {
		m, err := postgres.NewMigrator(databaseURL(c))
		if err != nil {
			return err
		}
		defer func() {
			if err := m.Close(); err != nil {
				logger.Log.Warn().Err(err).Msg("seed: failed to close migrator")
			}
		}()

		if up {
			return m.Up()
		}
		return m.Down()
	}
}

func runSeeder(c *cli.Context) error {
	db, ok := c.Context.Value(dbKey).(*postgres.DB)
	if !ok {
		return fmt.Errorf("database connection not initialised")
	}
	dataDir := c.String("data-dir")

	logger.Log.Info().Str("dir", dataDir).Msg("Starting database seeding...")

	err := db.WithTx(c.Context, func(tx *sql.Tx) error {
		return seedDemoData(c.Context, tx, dataDir)
	})
	if err != nil {
		return fmt.Errorf("failed to seed demo data: %w", err)
	}

	logger.Log.Info().Msg("Database seeding completed successfully!")
	return nil
}
