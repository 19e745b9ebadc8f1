// Command vocalctl is the operator tool for accounts, stuck jobs and
// provider credentials.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"vocalizz/internal/adapter/repo"
	"vocalizz/internal/db"
	"vocalizz/internal/domain"
	"vocalizz/internal/infra"
	"vocalizz/internal/infra/credentials"
	"vocalizz/internal/jobs"
	"vocalizz/internal/providers/replicate"
	"vocalizz/internal/storage"
)

func main() {
	_ = godotenv.Load()
	if err := buildCLI().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

type env struct {
	pool   *pgxpool.Pool
	runner *infra.SQLRunner
	logger infra.Logger
}

func connect(ctx context.Context) (*env, error) {
	dbURL := strings.TrimSpace(os.Getenv("DATABASE_URL"))
	if dbURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}
	logger := infra.NewLogger("cli").With().Str("cmd", "vocalctl").Logger()
	return &env{pool: pool, runner: infra.NewSQLRunner(pool, logger), logger: logger}, nil
}

// withEnv runs fn with a database connection and a bounded context.
func withEnv(timeout time.Duration, fn func(ctx context.Context, e *env) error) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	e, err := connect(ctx)
	if err != nil {
		return err
	}
	defer e.pool.Close()
	return fn(ctx, e)
}

func buildCLI() *cobra.Command {
	root := &cobra.Command{
		Use:           "vocalctl",
		Short:         "Operate the vocalizz backend",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(buildMigrateCommand(), buildAccountCommand(), buildJobsCommand(), buildTokenCommand())
	return root
}

func buildMigrateCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Apply the database schema",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(30*time.Second, func(ctx context.Context, e *env) error {
				if err := db.Migrate(ctx, e.pool); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "schema applied")
				return nil
			})
		},
	}
}

func buildAccountCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "account", Short: "Manage accounts"}

	setTier := &cobra.Command{
		Use:   "set-tier <account-id|email> <basic|standard|premium>",
		Short: "Change an account's subscription tier",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			tier, ok := domain.ParseTier(args[1])
			if !ok {
				return fmt.Errorf("unsupported tier %q", args[1])
			}
			return applyGrant(cmd, domain.PaymentGrant{AccountID: args[0], Tier: tier, Kind: "grant"})
		},
	}

	var credits int
	grant := &cobra.Command{
		Use:   "grant <account-id|email>",
		Short: "Add credits to an account",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if credits <= 0 {
				return errors.New("--credits must be positive")
			}
			return applyGrant(cmd, domain.PaymentGrant{AccountID: args[0], Credits: credits, Kind: "grant"})
		},
	}
	grant.Flags().IntVar(&credits, "credits", 0, "number of credits to add")

	cmd.AddCommand(setTier, grant)
	return cmd
}

func applyGrant(cmd *cobra.Command, g domain.PaymentGrant) error {
	g.Reference = "vocalctl:" + uuid.NewString()
	return withEnv(10*time.Second, func(ctx context.Context, e *env) error {
		ledger := repo.NewLedgerRepository(e.runner)
		if strings.Contains(g.AccountID, "@") {
			acct, err := ledger.FindAccountByEmail(ctx, g.AccountID)
			if err != nil {
				return fmt.Errorf("find account %s: %w", g.AccountID, err)
			}
			g.AccountID = acct.ID
		}
		if _, err := ledger.ApplyGrant(ctx, g); err != nil {
			return fmt.Errorf("apply grant: %w", err)
		}
		acct, err := ledger.GetAccount(ctx, g.AccountID)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s tier=%s credits=%d\n", acct.ID, acct.Tier, acct.CreditBalance)
		return nil
	})
}

func buildJobsCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "jobs", Short: "Inspect and cancel training jobs"}

	var limit int
	stale := &cobra.Command{
		Use:   "stale",
		Short: "List active jobs past their maximum duration",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withEnv(10*time.Second, func(ctx context.Context, e *env) error {
				now := time.Now()
				// Nothing younger than the shortest limit can be stale.
				active, err := repo.NewJobRepository(e.runner).ListActiveCreatedBefore(ctx, now.Add(-domain.TimeoutFor(domain.QualityStandard)), limit)
				if err != nil {
					return err
				}
				tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
				fmt.Fprintln(tw, "JOB\tOWNER\tQUALITY\tSTATUS\tAGE")
				for _, j := range active {
					if !domain.IsStale(j, now) {
						continue
					}
					fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", j.ID, j.OwnerID, j.QualityTier, j.Status, now.Sub(j.CreatedAt).Round(time.Minute))
				}
				return tw.Flush()
			})
		},
	}
	stale.Flags().IntVar(&limit, "limit", 100, "maximum number of jobs to scan")

	var reason string
	cancel := &cobra.Command{
		Use:   "cancel <job-id>",
		Short: "Fail a stale job and refund its credits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(30*time.Second, func(ctx context.Context, e *env) error {
				canceller, closeStore, err := newCanceller(ctx, e)
				if err != nil {
					return err
				}
				defer closeStore()
				job, err := canceller.Cancel(ctx, jobs.CancelRequest{
					JobID:       args[0],
					RequestedBy: jobs.Principal{System: true},
					Reason:      jobs.CancelReason(reason),
				})
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s: %s\n", job.ID, job.Status, job.ErrorDetail)
				return nil
			})
		},
	}
	cancel.Flags().StringVar(&reason, "reason", string(jobs.CancelTimeout), "cancel reason")

	cmd.AddCommand(stale, cancel)
	return cmd
}

// newCanceller builds a canceller with the same storage driver as the API
// so cancelled jobs lose their source audio. The provider is asked to stop
// the remote job when it is configured.
func newCanceller(ctx context.Context, e *env) (*jobs.Canceller, func() error, error) {
	cfg, err := infra.LoadConfig()
	if err != nil {
		return nil, nil, err
	}
	store, _, closeStore, err := storage.Open(ctx, cfg.StorageOptions())
	if err != nil {
		return nil, nil, err
	}
	canceller, err := buildCanceller(ctx, e, cfg, store)
	if err != nil {
		_ = closeStore()
		return nil, nil, err
	}
	return canceller, closeStore, nil
}

func buildCanceller(ctx context.Context, e *env, cfg *infra.Config, store storage.Store) (*jobs.Canceller, error) {
	ledger := repo.NewLedgerRepository(e.runner)
	compensator := jobs.NewCompensator(ledger, store, nil, nil, e.logger)

	var provider jobs.TrainingProvider
	if cfg.ReplicateModelVersion != "" {
		key, err := credentials.NewStore(e.runner).Resolve(ctx, credentials.ProviderReplicate, cfg.ReplicateAPIKey)
		if err != nil {
			return nil, err
		}
		client, err := replicate.NewClient(replicate.Options{APIKey: key, ModelVersion: cfg.ReplicateModelVersion, Logger: &e.logger})
		if err != nil {
			return nil, err
		}
		provider = client
	}
	return jobs.NewCanceller(repo.NewJobRepository(e.runner), compensator, provider, nil, e.logger), nil
}

func buildTokenCommand() *cobra.Command {
	cmd := &cobra.Command{Use: "token", Short: "Manage provider API tokens"}

	var label string
	set := &cobra.Command{
		Use:   "set <" + strings.Join(credentials.Providers, "|") + "> <token>",
		Short: "Store a provider API token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEnv(10*time.Second, func(ctx context.Context, e *env) error {
				props := map[string]any{"updated_at": time.Now().UTC().Format(time.RFC3339)}
				if label != "" {
					props["label"] = label
				}
				if err := credentials.NewStore(e.runner).Set(ctx, args[0], args[1], props); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s token stored\n", strings.ToLower(args[0]))
				return nil
			})
		},
	}
	set.Flags().StringVar(&label, "label", "", "free-form note stored with the token")

	cmd.AddCommand(set)
	return cmd
}
