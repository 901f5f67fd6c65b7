// Command migrate runs schema operations for the confession store.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strconv"

	"confessional/internal/config"
	"confessional/internal/database"

	"github.com/spf13/cobra"
	"gorm.io/gorm"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:          "migrate",
	Short:        "Apply, inspect or roll back the confession schema",
	SilenceUsage: true,
}

func init() {
	rootCmd.CompletionOptions.DisableDefaultCmd = true
	rootCmd.AddCommand(upCmd, autoCmd, statusCmd, downCmd)
}

// connect opens the database without the startup schema policy.
func connect() (*config.Config, *gorm.DB, error) {
	cfg, err := config.LoadConfig()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	db, err := database.ConnectWithOptions(cfg, database.ConnectOptions{ApplySchema: false})
	if err != nil {
		return nil, nil, fmt.Errorf("connect database: %w", err)
	}
	return cfg, db, nil
}

var upCmd = &cobra.Command{
	Use:   "up",
	Short: "Apply pending SQL migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		_, db, err := connect()
		if err != nil {
			return err
		}
		if err := database.RunMigrations(cmd.Context(), db); err != nil {
			return fmt.Errorf("sql migrations failed: %w", err)
		}
		log.Println("sql migrations applied")
		return nil
	},
}

var autoCmd = &cobra.Command{
	Use:   "auto",
	Short: "Run gorm automigrate for every persistent model",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, err := connect()
		if err != nil {
			return err
		}
		cfg.DBSchemaMode = database.SchemaModeAuto
		if err := database.ApplySchema(cmd.Context(), db, cfg); err != nil {
			return fmt.Errorf("auto schema apply failed: %w", err)
		}
		log.Println("automigrations applied")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show applied and pending migrations",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, db, err := connect()
		if err != nil {
			return err
		}
		return printStatus(cmd.Context(), db, cfg)
	},
}

var downCmd = &cobra.Command{
	Use:   "down <version>",
	Short: "Roll back one migration",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		version, err := strconv.Atoi(args[0])
		if err != nil {
			return fmt.Errorf("invalid version %q: %w", args[0], err)
		}
		_, db, err := connect()
		if err != nil {
			return err
		}
		if err := database.RollbackMigration(cmd.Context(), db, version); err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		log.Printf("rolled back migration %d", version)
		return nil
	},
}

func printStatus(ctx context.Context, db *gorm.DB, cfg *config.Config) error {
	status, err := database.GetSchemaStatus(ctx, db, cfg)
	if err != nil {
		return fmt.Errorf("schema status failed: %w", err)
	}
	fmt.Printf("mode:     %s (env %s)\n", status.Mode, status.Environment)
	fmt.Printf("startup:  sql=%t automigrate=%t\n", status.WillRunSQL, status.WillRunAutoMigrate)
	fmt.Printf("applied:  %d\n", len(status.AppliedVersions))
	fmt.Printf("pending:  %d\n", len(status.PendingMigrations))
	for _, m := range status.PendingMigrations {
		fmt.Printf("  %s\n", m.String())
	}
	return nil
}
