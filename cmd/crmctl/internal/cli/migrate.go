package cli

import (
	"fmt"

	"oxicrm_backend/platform/db"

	"github.com/spf13/cobra"
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Apply pending database migrations",
	Args:  cobra.NoArgs,
	RunE:  runMigrate,
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()

	if err := db.RunMigrations(ctx, cfg); err != nil {
		return err
	}
	version, err := db.MigrationVersion(ctx, cfg)
	if err != nil {
		return err
	}
	log.Info("database migrations complete", "version", version)
	fmt.Fprintf(cmd.OutOrStdout(), "database at migration version %d\n", version)
	return nil
}
