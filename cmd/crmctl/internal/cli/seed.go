package cli

import (
	"fmt"
	"os"
	"time"

	"oxicrm_backend/internal/email"
	"oxicrm_backend/internal/repository"

	"github.com/spf13/cobra"
)

var seedTemplatesCmd = &cobra.Command{
	Use:   "seed-templates [file]",
	Short: "Create email templates from a YAML seed file",
	Long: `Create the templates listed in a YAML seed file in the selected workspace.
Templates whose name already exists in the workspace are left untouched.
Without a file the built-in templates (welcome, follow_up, meeting_reminder)
are used.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSeedTemplates,
}

func runSeedTemplates(cmd *cobra.Command, args []string) error {
	seeds, err := loadSeeds(args)
	if err != nil {
		return err
	}
	workspace, err := workspaceID()
	if err != nil {
		return err
	}
	cfg, _, err := loadConfig()
	if err != nil {
		return err
	}
	ctx := cmd.Context()
	pool, err := openPool(ctx, cfg)
	if err != nil {
		return err
	}
	defer pool.Close()

	created, err := email.SeedTemplates(ctx, repository.NewTemplateRepo(pool), workspace, seeds, time.Now().UTC())
	for _, name := range created {
		fmt.Fprintf(cmd.OutOrStdout(), "created template %s\n", name)
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%d of %d templates created\n", len(created), len(seeds))
	return nil
}

func loadSeeds(args []string) ([]email.TemplateSeed, error) {
	if len(args) == 0 {
		return email.DefaultTemplateSeeds()
	}
	f, err := os.Open(args[0])
	if err != nil {
		return nil, fmt.Errorf("open seed file: %w", err)
	}
	defer func() { _ = f.Close() }()
	return email.LoadTemplateSeeds(f)
}
