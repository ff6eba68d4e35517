package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/funnellens/funnellens/internal/config"
	"github.com/funnellens/funnellens/internal/pkg/logger"
	"github.com/funnellens/funnellens/internal/repository/postgres"
)

const createMigrationsTable = `
	CREATE TABLE IF NOT EXISTS schema_migrations (
		name       TEXT PRIMARY KEY,
		applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
	)`

func fatal(msg string, err error) {
	logger.Error(msg, "error", err)
	os.Exit(1)
}

func main() {
	configPath := flag.String("config", os.Getenv("CONFIG_PATH"), "path to config.yaml")
	listOnly := flag.Bool("list", false, "list tables and applied migrations")
	flag.Parse()

	dir := "migrations"
	if flag.NArg() > 0 {
		dir = flag.Arg(0)
	}

	cfg, err := config.LoadFromEnv(*configPath)
	if err != nil {
		fatal("Failed to load config", err)
	}
	if cfg.Database.URL == "" {
		fatal("Invalid config", fmt.Errorf("DATABASE_URL is required"))
	}

	ctx := context.Background()
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		fatal("Failed to connect to database", err)
	}
	defer db.Close()

	if _, err := db.ExecContext(ctx, createMigrationsTable); err != nil {
		fatal("Failed to create schema_migrations", err)
	}

	if *listOnly {
		if err := list(ctx, db); err != nil {
			fatal("Failed to list tables", err)
		}
		return
	}

	applied, failed, err := apply(ctx, db, dir)
	if err != nil {
		fatal("Migration failed", err)
	}
	logger.Info("Migrations complete", "applied", applied, "failed", failed)
	if failed > 0 {
		os.Exit(1)
	}
}

func list(ctx context.Context, db *sql.DB) error {
	rows, err := db.QueryContext(ctx, `SELECT tablename FROM pg_tables WHERE schemaname = 'public' ORDER BY tablename`)
	if err != nil {
		return err
	}
	defer rows.Close()
	n := 0
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return err
		}
		fmt.Println(" ", name)
		n++
	}
	fmt.Printf("Total: %d tables\n", n)

	mrows, err := db.QueryContext(ctx, `SELECT name, applied_at FROM schema_migrations ORDER BY name`)
	if err != nil {
		return err
	}
	defer mrows.Close()
	fmt.Println("Applied migrations:")
	for mrows.Next() {
		var name string
		var at sql.NullTime
		if err := mrows.Scan(&name, &at); err != nil {
			return err
		}
		fmt.Printf("  %s  %s\n", name, at.Time.Format("2006-01-02 15:04:05"))
	}
	return mrows.Err()
}

// apply runs every *.sql file in dir that is not yet recorded in
// schema_migrations, each in its own transaction.
func apply(ctx context.Context, db *sql.DB, dir string) (int, int, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, 0, fmt.Errorf("read migrations dir %s: %w", dir, err)
	}
	var files []string
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(e.Name(), ".sql") {
			files = append(files, e.Name())
		}
	}
	sort.Strings(files)

	var okCount, errCount int
	for _, f := range files {
		var done bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS(SELECT 1 FROM schema_migrations WHERE name = $1)`, f).Scan(&done); err != nil {
			return okCount, errCount, fmt.Errorf("check %s: %w", f, err)
		}
		if done {
			logger.Debug("Skipping applied migration", "file", f)
			continue
		}

		data, err := os.ReadFile(filepath.Join(dir, f))
		if err != nil {
			return okCount, errCount, fmt.Errorf("read %s: %w", f, err)
		}
		if strings.TrimSpace(string(data)) == "" {
			continue
		}

		if err := applyFile(ctx, db, f, string(data)); err != nil {
			logger.Error("Migration failed", "file", f, "error", err)
			errCount++
			continue
		}
		logger.Info("Applied migration", "file", f)
		okCount++
	}
	return okCount, errCount, nil
}

func applyFile(ctx context.Context, db *sql.DB, name, content string) error {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, content); err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
		return err
	}
	return tx.Commit()
}
