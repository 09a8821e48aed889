package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"fieldjob-backend/internal/completion"
	"fieldjob-backend/internal/config"
	"fieldjob-backend/internal/database"
	"fieldjob-backend/internal/logging"
	"fieldjob-backend/internal/models"
	"fieldjob-backend/internal/status"
	"fieldjob-backend/internal/supabase"
	"github.com/spf13/cobra"
)

type store interface {
	completion.Store
	ListJobs(ctx context.Context) ([]models.JobView, error)
	ListOrderItems(ctx context.Context, orderID string) ([]models.OrderItem, error)
}

// openStore prefers a direct database connection and falls back to PostgREST.
// The returned close function is never nil.
var openStore = func(cfg *config.Config) (store, func() error, error) {
	if cfg.DatabaseURL != "" {
		db, err := supabase.NewDatabaseClient(cfg.DatabaseURL)
		if err != nil {
			return nil, nil, err
		}
		return db, db.Close, nil
	}
	client, err := supabase.NewClient(cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialize Supabase client: %w", err)
	}
	return supabase.NewRESTClient(client), func() error { return nil }, nil
}

var loadConfig = config.LoadTooling

func newRootCmd() *cobra.Command {
	var (
		logLevel string
		timeout  time.Duration
	)
	root := &cobra.Command{
		Use:           "fieldctl",
		Short:         "Operate the field job backend",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			logging.Init(logLevel)
		},
	}
	root.PersistentFlags().StringVar(&logLevel, "log-level", "warn", "log level")
	root.PersistentFlags().DurationVar(&timeout, "timeout", 30*time.Second, "overall command timeout")

	withTimeout := func(cmd *cobra.Command) (context.Context, context.CancelFunc) {
		return context.WithTimeout(cmd.Context(), timeout)
	}

	root.AddCommand(
		newMigrateCmd(withTimeout),
		newJobsCmd(withTimeout),
		newOrderStatusCmd(withTimeout),
		newRetryStatusCmd(withTimeout),
	)
	return root
}

type ctxFunc func(*cobra.Command) (context.Context, context.CancelFunc)

func newMigrateCmd(withTimeout ctxFunc) *cobra.Command {
	var list bool
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if list {
				names, err := database.Migrations()
				if err != nil {
					return err
				}
				for _, n := range names {
					fmt.Fprintln(cmd.OutOrStdout(), n)
				}
				return nil
			}

			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if cfg.DatabaseURL == "" {
				return fmt.Errorf("DATABASE_URL is required for migrations")
			}
			migrator, err := database.NewMigrator(cfg.DatabaseURL)
			if err != nil {
				return err
			}
			defer migrator.Close()

			ctx, cancel := withTimeout(cmd)
			defer cancel()
			applied, err := migrator.Run(ctx)
			for _, n := range applied {
				fmt.Fprintf(cmd.OutOrStdout(), "applied %s\n", n)
			}
			if err != nil {
				return err
			}
			if len(applied) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "schema is up to date")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&list, "list", false, "list embedded migrations without connecting")
	return cmd
}

func newJobsCmd(withTimeout ctxFunc) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "jobs",
		Short: "List open jobs, earliest appointment first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, withTimeout, func(ctx context.Context, s store) error {
				jobs, err := s.ListJobs(ctx)
				if err != nil {
					return err
				}
				if asJSON {
					return writeJSON(cmd.OutOrStdout(), jobs)
				}
				return writeJobs(cmd.OutOrStdout(), jobs)
			})
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func newOrderStatusCmd(withTimeout ctxFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "order-status ORDER_ID",
		Short: "Derive the aggregate status of an order",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, withTimeout, func(ctx context.Context, s store) error {
				items, err := s.ListOrderItems(ctx, args[0])
				if err != nil {
					return err
				}
				st := status.CalculateOrderStatus(status.FromOrderItems(items))
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%d items\n", args[0], st, len(items))
				return nil
			})
		},
	}
}

func newRetryStatusCmd(withTimeout ctxFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "retry-status JOB_ID",
		Short: "Mark a job done for its already saved completion",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withStore(cmd, withTimeout, func(ctx context.Context, s store) error {
				svc := completion.NewService(s, nil)
				job, err := svc.RetryJobUpdate(ctx, args[0])
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "job %s is %s\n", job.ID, job.Status)
				return nil
			})
		},
	}
}

func withStore(cmd *cobra.Command, withTimeout ctxFunc, fn func(context.Context, store) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	s, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	ctx, cancel := withTimeout(cmd)
	defer cancel()
	return fn(ctx, s)
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJobs(w io.Writer, jobs []models.JobView) error {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tAPPOINTMENT\tSTATUS\tCUSTOMER\tPRODUCT\tADDRESS")
	for _, j := range jobs {
		appt := "-"
		if j.AppointmentDate != nil {
			appt = j.AppointmentDate.Local().Format("2006-01-02 15:04")
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\n", j.ID, appt, j.Status, j.CustomerName, j.ProductName, j.Address)
	}
	return tw.Flush()
}
