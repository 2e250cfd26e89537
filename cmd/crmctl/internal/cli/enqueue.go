package cli

import (
	"fmt"

	"oxicrm_backend/internal/jobs"
	"oxicrm_backend/internal/scheduler"

	"github.com/spf13/cobra"
)

var enqueueCmd = &cobra.Command{
	Use:   "enqueue",
	Short: "Put an email job on the scheduler queue",
}

var enqueuePendingCmd = &cobra.Command{
	Use:   "pending",
	Short: "Enqueue a sweep of all pending emails",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return enqueue(cmd, jobs.NewSendPendingEmailsJob())
	},
}

var enqueueBulkCmd = &cobra.Command{
	Use:   "bulk <email-id>...",
	Short: "Enqueue delivery of specific emails",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ids, err := parseUUIDs(args)
		if err != nil {
			return err
		}
		job, err := jobs.NewSendBulkEmailJob(ids)
		if err != nil {
			return err
		}
		return enqueue(cmd, job)
	},
}

func init() {
	enqueueCmd.AddCommand(enqueuePendingCmd)
	enqueueCmd.AddCommand(enqueueBulkCmd)
}

func enqueue(cmd *cobra.Command, job jobs.Job) error {
	cfg, log, err := loadConfig()
	if err != nil {
		return err
	}
	client, err := scheduler.NewClient(cfg, cfg.GetPendingEmailInterval(), log)
	if err != nil {
		return err
	}
	defer func() { _ = client.Close() }()

	if err := client.Enqueue(cmd.Context(), job); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "enqueued %s on %s\n", job.Name, cfg.GetAsynqQueueName())
	return nil
}
