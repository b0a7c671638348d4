package main

import (
	"context"
	"fmt"
	"io"
	"os/signal"
	"syscall"
	"time"

	service "github.com/okian/painpoint/internal/app"
	"github.com/okian/painpoint/internal/domain/model"
	"github.com/okian/painpoint/internal/scan"
	"github.com/okian/painpoint/pkg/logger"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
)

const pollInterval = 500 * time.Millisecond

// cliCaller is the principal used by one-off commands.
var cliCaller = scan.Caller{ID: "cli", Role: scan.RoleAdmin}

var scanCmd = &cobra.Command{
	Use:   "scan",
	Short: "Run one scan and exit",
	Long: `Runs a single scan in this process. The scan queue lives in memory, so
the command always stays up until the scan reaches a terminal state; --wait
prints each progress change while polling.

Examples:
  # Scan every enabled source
  painpoint scan

  # Scan Reddit only and follow progress
  painpoint scan --sources reddit --wait`,
	RunE: runScan,
}

func init() {
	f := scanCmd.Flags()
	f.StringSlice("sources", nil, "comma-separated sources to scan (default: enabled set)")
	f.Bool("wait", false, "print progress while the scan runs")
	f.Duration("timeout", 30*time.Minute, "cancel the scan after this long")
}

func runScan(cmd *cobra.Command, _ []string) error {
	names, _ := cmd.Flags().GetStringSlice("sources")
	follow, _ := cmd.Flags().GetBool("wait")
	timeout, _ := cmd.Flags().GetDuration("timeout")

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	svc := service.New(
		service.WithConfig(cfg),
		service.WithLogger(logger.Get()),
		service.WithScheduler(false),
	)
	if err := svc.Start(ctx); err != nil {
		return err
	}
	defer svc.Stop()

	snap, err := svc.TriggerScan(ctx, cliCaller, names, scan.OriginCLI)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "scan %s %s\n", snap.ID, snap.Status)

	final, err := waitForScan(ctx, svc, snap.ID, timeout, follow, out)
	if err != nil {
		return err
	}
	printSnapshot(out, final)
	if final.Status == model.ScanFailed {
		return eris.Errorf("scan %s failed: %s", final.ID, final.Error)
	}
	return nil
}

// waitForScan polls until the scan is terminal. Interrupts and the timeout
// cancel the scan and keep polling so the terminal write is observed.
func waitForScan(ctx context.Context, svc *service.Service, id string, timeout time.Duration, follow bool, out io.Writer) (model.Snapshot, error) {
	deadline := time.After(timeout)
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()

	bg := context.WithoutCancel(ctx)
	cancelled := false
	last := -1
	for {
		snap, err := svc.ScanStatus(bg, id)
		if err != nil {
			return model.Snapshot{}, err
		}
		if follow && snap.Progress != last {
			fmt.Fprintf(out, "  %3d%% %s\n", snap.Progress, snap.Status)
			last = snap.Progress
		}
		if snap.Status.Terminal() {
			return snap, nil
		}

		select {
		case <-ticker.C:
		case <-deadline:
			deadline = nil
			cancelled = cancelScan(bg, svc, id, cancelled)
		case <-ctx.Done():
			ctx = bg
			cancelled = cancelScan(bg, svc, id, cancelled)
		}
	}
}

func cancelScan(ctx context.Context, svc *service.Service, id string, already bool) bool {
	if already {
		return true
	}
	if _, err := svc.CancelScan(ctx, cliCaller, id); err != nil {
		logger.Get().Warn(ctx, "cancel scan", logger.String("scan_id", id), logger.Error(err))
	}
	return true
}

func printSnapshot(out io.Writer, s model.Snapshot) {
	fmt.Fprintf(out, "scan %s %s: %d opportunities\n", s.ID, s.Status, s.Found)
	for _, src := range s.Sources {
		switch {
		case src.Skipped:
			fmt.Fprintf(out, "  %-12s skipped: %s\n", src.Source, src.Error)
		default:
			fmt.Fprintf(out, "  %-12s %d mentions\n", src.Source, src.Mentions)
		}
	}
	if s.Error != "" {
		fmt.Fprintf(out, "  error: %s\n", s.Error)
	}
}
