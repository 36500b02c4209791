package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/target/mmk-bol-sync/internal/bootstrap"
	"github.com/target/mmk-bol-sync/internal/domain/model"
	"github.com/target/mmk-bol-sync/internal/service"
)

var (
	syncForce     bool
	syncTenant    string
	syncSkipSweep bool
)

// syncTrigger is the subset of the coordinator the sync commands drive.
type syncTrigger interface {
	RunAll(ctx context.Context, opts service.RunOptions) (*model.RunReport, error)
	RunTenant(ctx context.Context, tenantID string) (*model.RunReport, error)
	Sweep(ctx context.Context) (*model.RunReport, error)
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Run sync passes outside the scheduler",
}

var syncRunCmd = &cobra.Command{
	Use:   "run",
	Short: "Sync every due tenant, or one tenant with --tenant",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTrigger(cmd, func(ctx context.Context, t syncTrigger) (*model.RunReport, error) {
			return runSync(ctx, t, syncRequest{Tenant: syncTenant, Force: syncForce, SkipSweep: syncSkipSweep})
		})
	},
}

var syncSweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Advance pending export jobs once",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		return withTrigger(cmd, func(ctx context.Context, t syncTrigger) (*model.RunReport, error) {
			return t.Sweep(ctx)
		})
	},
}

type syncRequest struct {
	Tenant    string
	Force     bool
	SkipSweep bool
}

func runSync(ctx context.Context, t syncTrigger, req syncRequest) (*model.RunReport, error) {
	if req.Tenant != "" {
		return t.RunTenant(ctx, req.Tenant)
	}
	return t.RunAll(ctx, service.RunOptions{Force: req.Force, SkipSweep: req.SkipSweep})
}

// withTrigger wires the service container for one command, runs fn and
// prints the resulting report. A report is printed even when fn fails.
func withTrigger(cmd *cobra.Command, fn func(context.Context, syncTrigger) (*model.RunReport, error)) error {
	cmdCtx, cancel, err := newCommandContext(cmd)
	if err != nil {
		return err
	}
	defer cancel()

	db, redisClient, err := connectInfra(cmdCtx, true)
	if err != nil {
		return err
	}
	defer func() {
		if closeErr := closeInfra(db, redisClient); closeErr != nil {
			cmdCtx.Logger.Warn("infrastructure close failed", "error", closeErr)
		}
	}()

	services, err := bootstrap.NewServices(&bootstrap.ServiceDeps{
		Config:      &cmdCtx.Config,
		DB:          db,
		RedisClient: redisClient,
		Logger:      cmdCtx.Logger,
	})
	if err != nil {
		return fmt.Errorf("build services: %w", err)
	}

	report, runErr := fn(cmdCtx.Ctx, services.Coordinator)
	return finishRun(cmd, report, runErr)
}

func finishRun(cmd *cobra.Command, report *model.RunReport, runErr error) error {
	if errors.Is(runErr, service.ErrRunInProgress) {
		return errors.New("another sync run holds the lock; try again later")
	}
	if report != nil {
		if err := printReport(cmd.OutOrStdout(), report, outputJSON); err != nil {
			return errors.Join(runErr, err)
		}
	}
	return runErr
}

func init() {
	syncRunCmd.Flags().BoolVar(&syncForce, "force", false, "ignore each tenant's sync interval")
	syncRunCmd.Flags().StringVar(&syncTenant, "tenant", "", "sync only this tenant ID")
	syncRunCmd.Flags().BoolVar(&syncSkipSweep, "skip-sweep", false, "leave pending export jobs for a later sweep")
	syncRunCmd.MarkFlagsMutuallyExclusive("tenant", "force")

	syncCmd.AddCommand(syncRunCmd, syncSweepCmd)
	rootCmd.AddCommand(syncCmd)
}
