package cli

import (
	"context"
	"fmt"
	"strings"

	"oxicrm_backend/platform/config"
	"oxicrm_backend/platform/db"
	"oxicrm_backend/platform/logger"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
)

var workspaceFlag string

var rootCmd = &cobra.Command{
	Use:   "crmctl",
	Short: "Operate the CRM email automation backend",
	Long: `crmctl runs one-off maintenance tasks against the automation database
and job queue. Settings come from the same environment variables (or .env file)
as the api and scheduler processes.

EXAMPLES:
  # Apply database migrations
  crmctl migrate

  # Seed the default email templates into a workspace
  crmctl seed-templates --workspace 6f1c...

  # Ask the scheduler to sweep pending emails now
  crmctl enqueue pending

  # Run a workflow version once
  crmctl run-workflow 0b6e... --workspace 6f1c...`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command
func Execute(ctx context.Context) error {
	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&workspaceFlag, "workspace", "w", "", "workspace id (defaults to the nil workspace)")

	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedTemplatesCmd)
	rootCmd.AddCommand(enqueueCmd)
	rootCmd.AddCommand(runWorkflowCmd)
}

func loadConfig() (*config.Config, *logger.Logger, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}
	return cfg, logger.New(cfg.Env), nil
}

func openPool(ctx context.Context, cfg *config.Config) (*pgxpool.Pool, error) {
	pool, err := db.NewPool(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	return pool, nil
}

func workspaceID() (uuid.UUID, error) {
	raw := strings.TrimSpace(workspaceFlag)
	if raw == "" {
		return uuid.Nil, nil
	}
	id, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, fmt.Errorf("invalid --workspace %q", raw)
	}
	return id, nil
}

func parseUUIDs(args []string) ([]uuid.UUID, error) {
	ids := make([]uuid.UUID, 0, len(args))
	for _, arg := range args {
		id, err := uuid.Parse(strings.TrimSpace(arg))
		if err != nil {
			return nil, fmt.Errorf("invalid id %q", arg)
		}
		ids = append(ids, id)
	}
	return ids, nil
}
