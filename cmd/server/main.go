/*
main.go - Application entry point

PURPOSE:
  Starts the club loyalty server (loyaltyd) and provides one-shot operator
  commands that resolve a member's tier or points availability without
  running the server. Handles configuration, dependency wiring, and
  graceful shutdown.

COMMANDS:
  serve                  HTTP API + periodic tier sweep
  tier <member-id>       Resolve the active tier (--as-of, --ledger)
  availability <member>  Points availability (--amount to validate, --ledger)

CONFIGURATION (viper):
  Defaults, then loyalty.yaml (or --config), then LOYALTY_* environment
  variables (LOYALTY_SERVER_PORT, LOYALTY_STORE_DB, ...), then flags.

  server.port              HTTP port (default: 8080)
  store.db                 SQLite path, ":memory:" for in-memory (default: loyalty.db)
  program.file             Program JSON/YAML (default: reference program)
  clock.simulated_date     Pin the clock (RFC3339 or YYYY-MM-DD)
  log.level / log.format   info / console
  log.file                 Rotating JSON log file (optional)
  scheduler.interval       Tier sweep interval, 0 disables (default: 1h)
  scheduler.expiry_window  Expiring-tier horizon (default: 720h)

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop the tier sweep
  2. Stop accepting new connections
  3. Wait for active requests to complete (30s timeout)
  4. Close database connection

EXAMPLES:
  loyaltyd serve --db ./data/loyalty.db --program ./program.yaml
  loyaltyd serve --db :memory: --simulated-date 2026-10-15
  loyaltyd tier avery --ledger ./export.json --as-of 2027-03-01
  loyaltyd availability emery --amount 800

SEE ALSO:
  - api/server.go: Router configuration
  - api/handlers.go: HTTP handlers
  - store/sqlite/sqlite.go: Database implementation
  - factory/ledger.go: --ledger snapshot format
*/
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/warp/club-loyalty/api"
	"github.com/warp/club-loyalty/factory"
	"github.com/warp/club-loyalty/generic"
	"github.com/warp/club-loyalty/rewards"
	"github.com/warp/club-loyalty/store/sqlite"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()

	if err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// app carries what PersistentPreRunE resolves for every subcommand.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     Config
	logger  *zap.Logger
	program *generic.Program
	clock   *generic.OverrideClock
}

func newRootCmd() *cobra.Command {
	a := &app{v: viper.New()}

	root := &cobra.Command{
		Use:           "loyaltyd",
		Short:         "Club loyalty tier and points engine",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.init()
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if a.logger != nil {
				_ = a.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "", "config file (default: ./loyalty.yaml)")
	pf.String("db", "loyalty.db", "SQLite database path (\":memory:\" for in-memory)")
	pf.String("program", "", "program definition file (.json, .yaml)")
	pf.String("simulated-date", "", "pin the clock (RFC3339 or YYYY-MM-DD)")
	pf.String("log-level", "info", "log level (debug, info, warn, error)")
	pf.String("log-format", "console", "log format (console, json)")
	pf.String("log-file", "", "also write JSON logs to this rotating file")

	_ = a.v.BindPFlag("store.db", pf.Lookup("db"))
	_ = a.v.BindPFlag("program.file", pf.Lookup("program"))
	_ = a.v.BindPFlag("clock.simulated_date", pf.Lookup("simulated-date"))
	_ = a.v.BindPFlag("log.level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("log.format", pf.Lookup("log-format"))
	_ = a.v.BindPFlag("log.file", pf.Lookup("log-file"))

	root.AddCommand(a.serveCmd(), a.tierCmd(), a.availabilityCmd())
	return root
}

func (a *app) init() error {
	cfg, err := loadConfig(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg

	if a.logger, err = newLogger(cfg.Log); err != nil {
		return err
	}

	if cfg.Program.File != "" {
		a.program, err = factory.LoadProgramFile(cfg.Program.File)
		if err != nil {
			return fmt.Errorf("program %s: %w", cfg.Program.File, err)
		}
	} else {
		a.program = rewards.ReferenceProgram()
	}

	a.clock = generic.NewOverrideClock(nil)
	if cfg.Clock.SimulatedDate != "" {
		t, _, err := parseDateTime(cfg.Clock.SimulatedDate, a.program.Anchor.Location)
		if err != nil {
			return fmt.Errorf("clock.simulated_date: %w", err)
		}
		a.clock.Set(t)
		a.logger.Info("simulated clock set", zap.Time("now", t))
	}
	return nil
}

// =============================================================================
// SERVE
// =============================================================================

func (a *app) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and the periodic tier sweep",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
	cmd.Flags().Int("port", 8080, "HTTP server port")
	_ = a.v.BindPFlag("server.port", cmd.Flags().Lookup("port"))
	return cmd
}

func (a *app) serve(ctx context.Context) error {
	store, err := sqlite.New(a.cfg.Store.DB)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer store.Close()

	handler := api.NewHandler(store, a.program, a.clock, a.logger)
	handler.Sweeper.CheckInterval = a.cfg.Scheduler.Interval
	handler.Sweeper.ExpiryWindow = a.cfg.Scheduler.ExpiryWindow
	handler.Sweeper.Start()
	defer handler.Sweeper.Stop()

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", a.cfg.Server.Port),
		Handler:      api.NewRouter(handler),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting",
			zap.Int("port", a.cfg.Server.Port),
			zap.String("program", a.program.ID),
			zap.String("db", a.cfg.Store.DB),
		)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced to shutdown: %w", err)
	}
	a.logger.Info("server stopped")
	return nil
}

// =============================================================================
// ONE-SHOT COMMANDS
// =============================================================================

func (a *app) tierCmd() *cobra.Command {
	var asOf, ledger string
	cmd := &cobra.Command{
		Use:   "tier <member-id>",
		Short: "Resolve a member's active tier",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), ledger)
			if err != nil {
				return err
			}
			defer closeStore()

			at := a.clock.Now()
			if asOf != "" {
				t, dateOnly, err := parseDateTime(asOf, a.program.Anchor.Location)
				if err != nil {
					return fmt.Errorf("--as-of: %w", err)
				}
				if dateOnly {
					t = generic.EndOfDay(t)
				}
				at = t
			}

			resolver := a.program.NewResolver(store, a.clock, a.logger)
			status, err := resolver.ResolveActiveTier(cmd.Context(), generic.MemberID(args[0]), at)
			if err != nil {
				return err
			}
			printTierStatus(cmd.OutOrStdout(), a.program, status)
			return nil
		},
	}
	cmd.Flags().StringVar(&asOf, "as-of", "", "resolve as of this instant (RFC3339, or YYYY-MM-DD for end of day)")
	cmd.Flags().StringVar(&ledger, "ledger", "", "read a ledger snapshot file instead of the database")
	return cmd
}

func (a *app) availabilityCmd() *cobra.Command {
	var ledger string
	var amount int64
	cmd := &cobra.Command{
		Use:   "availability <member-id>",
		Short: "Show spendable points, optionally validating an amount",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, closeStore, err := a.openStore(cmd.Context(), ledger)
			if err != nil {
				return err
			}
			defer closeStore()

			calc := generic.NewAvailabilityCalculator(store, store, a.logger)
			memberID := generic.MemberID(args[0])
			w := cmd.OutOrStdout()

			if !cmd.Flags().Changed("amount") {
				avail, err := calc.Availability(cmd.Context(), memberID)
				if err != nil {
					return err
				}
				printAvailability(w, avail)
				return nil
			}

			result, avail, err := calc.CheckAmount(cmd.Context(), memberID, generic.Points(amount))
			if err != nil {
				return err
			}
			printAvailability(w, avail)
			fmt.Fprintf(w, "amount %d: %s (%s)\n", amount, result, result.Message())
			return nil
		},
	}
	cmd.Flags().StringVar(&ledger, "ledger", "", "read a ledger snapshot file instead of the database")
	cmd.Flags().Int64Var(&amount, "amount", 0, "validate a proposed redemption or transfer amount")
	return cmd
}

// openStore returns the snapshot in ledger when set, else the configured database.
func (a *app) openStore(ctx context.Context, ledger string) (generic.Store, func(), error) {
	if ledger != "" {
		mem, err := factory.LoadLedgerFile(ctx, ledger, a.program.Anchor.Location)
		if err != nil {
			return nil, nil, err
		}
		return mem, func() {}, nil
	}
	store, err := sqlite.New(a.cfg.Store.DB)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to open database: %w", err)
	}
	return store, func() { store.Close() }, nil
}

// =============================================================================
// OUTPUT
// =============================================================================

func printTierStatus(w io.Writer, p *generic.Program, s generic.TierStatus) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "member:\t%s\n", s.MemberID)
	fmt.Fprintf(tw, "as of:\t%s\n", s.AsOf.Format(time.RFC3339))
	fmt.Fprintf(tw, "active tier:\t%s (%s cycle)\n", tierName(p, s.ActiveTier), s.TierSource)
	fmt.Fprintf(tw, "expires:\t%s\n", s.ExpiryDate.Format(time.RFC3339Nano))
	fmt.Fprintf(tw, "current cycle:\t%d\t%d pts\t%s%s\n",
		s.CurrentCycleYear, s.CurrentCycleEarnedPoints, tierName(p, s.CurrentTier), degradedMark(s.CurrentCycleDegraded))
	fmt.Fprintf(tw, "previous cycle:\t%d\t%d pts\t%s%s\n",
		s.PreviousCycleYear, s.PreviousCycleEarnedPoints, tierName(p, s.PreviousTier), degradedMark(s.PreviousCycleDegraded))
	if s.Progress.NextTier != "" {
		fmt.Fprintf(tw, "next tier:\t%s in %d pts (%s%%)\n",
			tierName(p, s.Progress.NextTier), s.Progress.Remaining, s.Progress.Percentage.StringFixed(1))
	} else {
		fmt.Fprintf(tw, "next tier:\ttop tier reached\n")
	}
}

func printAvailability(w io.Writer, a generic.PointsAvailability) {
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	defer tw.Flush()

	fmt.Fprintf(tw, "member:\t%s\n", a.MemberID)
	fmt.Fprintf(tw, "total:\t%d%s\n", a.TotalPoints, degradedMark(a.BalanceDegraded))
	fmt.Fprintf(tw, "pending:\t%d%s\n", a.PendingRedemptionsTotal, degradedMark(a.PendingDegraded))
	fmt.Fprintf(tw, "available:\t%d\n", a.Available())
	fmt.Fprintf(tw, "spendable:\t%d\n", a.Spendable())
}

func tierName(p *generic.Program, key generic.TierKey) string {
	if th, ok := p.Table.Lookup(key); ok && th.Name != "" {
		return th.Name
	}
	return string(key)
}

func degradedMark(degraded bool) string {
	if degraded {
		return " (degraded)"
	}
	return ""
}

// parseDateTime accepts RFC3339 or YYYY-MM-DD (midnight in loc).
func parseDateTime(s string, loc *time.Location) (time.Time, bool, error) {
	s = strings.TrimSpace(s)
	if t, err := time.Parse(time.RFC3339Nano, s); err == nil {
		return t, false, nil
	}
	t, err := generic.ParseDate(s, loc)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("invalid date %q (use RFC3339 or YYYY-MM-DD)", s)
	}
	return t, true, nil
}
