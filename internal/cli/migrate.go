package cli

import (
	"context"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/openclaw/observatory/internal/adapters/turso"
	"github.com/openclaw/observatory/internal/config"
	"github.com/openclaw/observatory/internal/migrate"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate [version]",
	Short: "Run database migrations",
	Long: `Run database migrations.

Without arguments, runs all pending migrations (up).
With a version number, migrates to that specific version (up or down as needed).

Examples:
  observatory migrate      # Run all pending migrations
  observatory migrate 1    # Migrate to version 1
  observatory migrate 0    # Rollback all migrations`,
	Args: cobra.MaximumNArgs(1),
	RunE: runMigrate,
}

func init() {
	rootCmd.AddCommand(migrateCmd)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	cfg, err := config.LoadServer()
	if err != nil {
		return fmt.Errorf("loading configuration: %w", err)
	}

	db, err := turso.NewDB(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer db.Close()

	if len(args) == 0 {
		if err := migrate.Up(ctx, db); err != nil {
			return err
		}
		version, _, err := migrate.GetCurrentVersion(ctx, db)
		if err != nil {
			return err
		}
		fmt.Printf("Database is at version %d\n", version)
		return nil
	}

	target, err := strconv.Atoi(args[0])
	if err != nil || target < 0 {
		return fmt.Errorf("invalid target version %q", args[0])
	}

	if err := migrate.EnsureMigrationsTable(ctx, db); err != nil {
		return err
	}
	current, dirty, err := migrate.GetCurrentVersion(ctx, db)
	if err != nil {
		return err
	}
	if dirty {
		return fmt.Errorf("database is in a dirty migration state at version %d; resolve manually", current)
	}

	all, err := migrate.LoadMigrations()
	if err != nil {
		return err
	}

	switch {
	case target > current:
		for _, m := range all {
			if m.Version <= current || m.Version > target {
				continue
			}
			fmt.Printf("Applying migration %d (%s)...\n", m.Version, m.Name)
			if err := migrate.RunMigration(ctx, db, m, true); err != nil {
				return err
			}
		}
	case target < current:
		for i := len(all) - 1; i >= 0; i-- {
			m := all[i]
			if m.Version > current || m.Version <= target {
				continue
			}
			if m.DownSQL == "" {
				return fmt.Errorf("migration %d has no down script", m.Version)
			}
			fmt.Printf("Reverting migration %d (%s)...\n", m.Version, m.Name)
			if err := migrate.RunMigration(ctx, db, m, false); err != nil {
				return err
			}
		}
	}

	fmt.Printf("Database is at version %d\n", target)
	return nil
}
