package cli

import (
	"encoding/json"
	"fmt"

	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/mailing"
	"oxicrm_backend/internal/repository"
	"oxicrm_backend/internal/workflow"

	"github.com/spf13/cobra"
)

var runWorkflowCmd = &cobra.Command{
	Use:   "run-workflow <version-id>",
	Short: "Execute a workflow version once and print the run",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorkflow,
}

func runWorkflow(cmd *cobra.Command, args []string) error {
	ids, err := parseUUIDs(args)
	if err != nil {
		return err
	}
	workspace, err := workspaceID()
	if err != nil {
		return err
	}
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	provider, err := email.NewProvider(cfg, log)
	if err != nil {
		return err
	}
	svc := mailing.NewService(repository.NewEmailRepo(pool), repository.NewTemplateRepo(pool), repository.NewTimelineRepo(pool), provider, log)
	executor := workflow.NewExecutor(repository.NewWorkflowRunRepo(pool), repository.NewWorkflowStepRepo(pool), svc, log)

	run, err := executor.Execute(ctx, ids[0], workspace)
	if err != nil {
		return err
	}
	out, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("encode run: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}
