package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/amishk599/jobintake/internal/report"
	"github.com/amishk599/jobintake/internal/tui"
)

var auditJSON bool

var auditCmd = &cobra.Command{
	Use:   "audit",
	Short: "Preview which senders are known, new or pending",
	Long: "Reads the mailbox without changing anything and reports, per sender, the source it\n" +
		"resolves or classifies to and whether its items would be archived or left pending.",
	RunE: runAuditCmd,
}

func init() {
	auditCmd.Flags().BoolVar(&auditJSON, "json", false, "print the report as JSON")
	rootCmd.AddCommand(auditCmd)
}

func runAuditCmd(cmd *cobra.Command, args []string) error {
	logger := setupLogger(debug)

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Both outputs own stdout: the JSON must stay parseable and the spinner
	// redraws its line.
	a, err := buildApp(ctx, cfg, discardLogger(), appOptions{readOnly: true})
	if err != nil {
		logger.Error("failed to set up", "error", err)
		os.Exit(1)
	}
	defer a.Close()

	if auditJSON {
		rep, err := a.orch.RunAudit(ctx)
		if err != nil {
			return err
		}
		return report.AuditJSON(os.Stdout, rep)
	}

	rep, err := tui.RunLoader("Reading "+cfg.Mailbox.Folder, 2*time.Minute, a.orch.RunAudit)
	if err != nil {
		return err
	}
	return report.Audit(os.Stdout, rep)
}
