package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"meshdiag/internal/api"
	"meshdiag/internal/config"
	"meshdiag/internal/detail"
	"meshdiag/internal/logging"
	"meshdiag/internal/metrics"
	"meshdiag/internal/model"
	"meshdiag/internal/relay"
	"meshdiag/internal/server"
	"meshdiag/internal/store"
)

// options are the persistent flags shared by every subcommand.
type options struct {
	configPath   string
	snapshotPath string
	ownerID      string
	logLevel     string
}

func newRootCmd() *cobra.Command {
	opts := &options{}
	root := &cobra.Command{
		Use:           "meshdiag",
		Short:         "meshdiag - mesh node diagnostics and relay attribution",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "path to YAML config")
	root.PersistentFlags().StringVar(&opts.snapshotPath, "snapshot", "", "node snapshot path (overrides config)")
	root.PersistentFlags().StringVar(&opts.ownerID, "owner", "", "local node id, never attributed as a relay (overrides config)")
	root.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "debug|info|warn|error (overrides config)")

	root.AddCommand(
		newServeCmd(opts),
		newNodesCmd(opts),
		newNodeCmd(opts),
		newRelayCmd(opts),
		newReportCmd(opts),
		newStatsCmd(opts),
		newHealthCmd(),
		newConfigCmd(),
	)
	return root
}

func newServeCmd(opts *options) *cobra.Command {
	var listen string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve node detail and relay attribution over HTTP",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Listen = listen
			}

			logger, err := logging.New(cfg.Log)
			if err != nil {
				return fmt.Errorf("logger init: %w", err)
			}
			defer func() { _ = logger.Sync() }()

			holder, err := store.NewHolder(cfg.SnapshotPath, logger)
			if err != nil {
				return fmt.Errorf("snapshot load: %w", err)
			}
			srv, err := server.NewServer(cfg, holder, logger)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("starting meshdiag",
				zap.String("listen", cfg.Listen),
				zap.String("snapshot", cfg.SnapshotPath),
				zap.Bool("watch", cfg.WatchSnapshot))

			g, ctx := errgroup.WithContext(ctx)
			g.Go(func() error { return srv.Run(ctx) })
			if cfg.WatchSnapshot {
				g.Go(func() error { return holder.Watch(ctx) })
			}
			return g.Wait()
		},
	}
	cmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	return cmd
}

func newNodesCmd(opts *options) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "nodes",
		Short: "List nodes in the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			var rows []api.NodeSummary
			if remote != "" {
				var err error
				rows, err = api.NewClient(normalizeBaseURL(remote)).Nodes(cmd.Context())
				if err != nil {
					return err
				}
			} else {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				st, err := store.LoadState(cfg.SnapshotPath)
				if err != nil {
					return err
				}
				rows = detail.Summaries(st.Nodes)
			}
			out := cmd.OutOrStdout()
			if len(rows) == 0 {
				fmt.Fprintln(out, "no known nodes")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSHORT\tLONG\tHOPS\tLAST_HEARD")
			for _, n := range rows {
				lastHeard := "never"
				if n.LastHeard != 0 {
					lastHeard = time.Unix(n.LastHeard, 0).UTC().Format(time.RFC3339)
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%s\n", n.ID, n.ShortName, n.LongName, n.HopsAway, lastHeard)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&remote, "server", "", "query a running meshdiag service instead of the local snapshot")
	return cmd
}

func newNodeCmd(opts *options) *cobra.Command {
	node := &cobra.Command{
		Use:   "node",
		Short: "Inspect a single node",
	}

	var remote string
	show := &cobra.Command{
		Use:   "show <id>",
		Short: "Show node detail, including the last relay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var d api.NodeDetail
			if remote != "" {
				var err error
				d, err = api.NewClient(normalizeBaseURL(remote)).Node(cmd.Context(), args[0])
				if err != nil {
					return err
				}
			} else {
				id, err := model.ParseNodeID(args[0])
				if err != nil {
					return err
				}
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				st, err := store.LoadState(cfg.SnapshotPath)
				if err != nil {
					return err
				}
				owner, err := ownerFor(cfg, st)
				if err != nil {
					return err
				}
				d, err = detail.Build(st.Nodes, id, detail.Options{
					Owner:         owner,
					ShowRelayInfo: cfg.ShowRelayInfo,
					Now:           time.Now(),
				})
				if err != nil {
					return err
				}
			}
			printDetail(cmd.OutOrStdout(), d)
			return nil
		},
	}
	show.Flags().StringVar(&remote, "server", "", "query a running meshdiag service instead of the local snapshot")
	node.AddCommand(show)
	return node
}

func newRelayCmd(opts *options) *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "relay <suffix>",
		Short: "Attribute a relay suffix byte (e.g. 0x0A or 10) to known nodes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			suffix, err := strconv.ParseInt(strings.TrimSpace(args[0]), 0, 32)
			if err != nil {
				return fmt.Errorf("%w: %q", relay.ErrInvalidSuffix, args[0])
			}

			var attr api.RelayAttribution
			if remote != "" {
				attr, err = api.NewClient(normalizeBaseURL(remote)).Relay(cmd.Context(), int(suffix), opts.ownerID)
				if err != nil {
					return err
				}
			} else {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				st, err := store.LoadState(cfg.SnapshotPath)
				if err != nil {
					return err
				}
				owner, err := ownerFor(cfg, st)
				if err != nil {
					return err
				}
				res, err := relay.Resolve(st.Nodes, owner, int(suffix))
				if err != nil {
					return err
				}
				attr = detail.Attribution(res)
			}
			printAttribution(cmd.OutOrStdout(), attr)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "server", "", "query a running meshdiag service instead of the local snapshot")
	return cmd
}

func newReportCmd(opts *options) *cobra.Command {
	var out string
	var appendTo bool
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Write a relay attribution CSV for every relayed node",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.load()
			if err != nil {
				return err
			}
			st, err := store.LoadState(cfg.SnapshotPath)
			if err != nil {
				return err
			}
			owner, err := ownerFor(cfg, st)
			if err != nil {
				return err
			}
			rows := detail.Report(st.Nodes, owner, time.Now())

			switch {
			case out == "":
				return metrics.WriteCSV(cmd.OutOrStdout(), rows)
			case appendTo:
				if err := metrics.AppendCSV(out, rows); err != nil {
					return err
				}
			default:
				file, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := metrics.WriteCSV(file, rows); err != nil {
					file.Close()
					return err
				}
				if err := file.Close(); err != nil {
					return err
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %d rows to %s\n", len(rows), out)
			return nil
		},
	}
	cmd.Flags().StringVar(&out, "out", "", "output CSV path (default stdout)")
	cmd.Flags().BoolVar(&appendTo, "append", false, "append to --out instead of overwriting")
	return cmd
}

func newStatsCmd(opts *options) *cobra.Command {
	var window time.Duration
	var path string
	cmd := &cobra.Command{
		Use:   "stats",
		Short: "Summarize an attribution report",
		RunE: func(cmd *cobra.Command, args []string) error {
			if path == "" {
				cfg, err := opts.load()
				if err != nil {
					return err
				}
				path = cfg.ReportPath
			}
			if path == "" {
				return errors.New("report path required (--report or report_path)")
			}

			items, err := metrics.ReadCSV(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cutoff := time.Now().UTC().Add(-window)
			summary := metrics.Summarize(items, cutoff)
			if summary.Count == 0 {
				fmt.Fprintln(out, "no rows in window")
				return nil
			}

			fmt.Fprintf(out, "rows=%d from=%s to=%s\n", summary.Count, summary.From.Format(time.RFC3339), summary.To.Format(time.RFC3339))
			fmt.Fprintf(out, "none=%d unambiguous=%d ambiguous=%d (%.1f%%)\n", summary.None, summary.Unambiguous, summary.Ambiguous, summary.AmbiguousPct())
			fmt.Fprintf(out, "candidates avg=%.2f p95=%.0f max=%d best_score avg=%.2f\n", summary.AvgCandidates, summary.P95Candidates, summary.MaxCandidates, summary.AvgBestScore)
			return nil
		},
	}
	cmd.Flags().DurationVar(&window, "window", 24*time.Hour, "time window")
	cmd.Flags().StringVar(&path, "report", "", "report CSV path (overrides config)")
	return cmd
}

func newHealthCmd() *cobra.Command {
	var remote string
	cmd := &cobra.Command{
		Use:   "health",
		Short: "Check a running meshdiag service",
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := api.NewClient(normalizeBaseURL(remote)).Health(cmd.Context())
			if err != nil {
				return err
			}
			updated := "never"
			if !h.UpdatedAt.IsZero() {
				updated = h.UpdatedAt.UTC().Format(time.RFC3339)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "status=%s nodes=%d updated=%s\n", h.Status, h.Nodes, updated)
			return nil
		},
	}
	cmd.Flags().StringVar(&remote, "server", config.DefaultListen, "meshdiag service address")
	return cmd
}

func newConfigCmd() *cobra.Command {
	cfgCmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the config file",
	}
	var out string
	initCmd := &cobra.Command{
		Use:   "init",
		Short: "Write a default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := os.Stat(out); err == nil {
				return fmt.Errorf("%s already exists", out)
			}
			if err := config.Save(out, config.Default()); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", out)
			return nil
		},
	}
	initCmd.Flags().StringVar(&out, "out", "meshdiag.yaml", "config path to write")
	cfgCmd.AddCommand(initCmd)
	return cfgCmd
}

// load reads the config file and applies flag overrides.
func (o *options) load() (config.Config, error) {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return config.Config{}, fmt.Errorf("config load: %w", err)
	}
	if o.snapshotPath != "" {
		cfg.SnapshotPath = o.snapshotPath
	}
	if o.ownerID != "" {
		cfg.OwnerID = o.ownerID
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := config.Validate(cfg); err != nil {
		return config.Config{}, err
	}
	return cfg, nil
}

// ownerFor prefers the configured owner over the one recorded in the snapshot.
func ownerFor(cfg config.Config, st *store.State) (*model.NodeID, error) {
	owner, err := cfg.Owner()
	if err != nil {
		return nil, err
	}
	if owner != nil {
		return owner, nil
	}
	return st.Owner, nil
}

func printDetail(w io.Writer, d api.NodeDetail) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Short name\t%s\n", d.ShortName)
	if d.LongName != "" {
		fmt.Fprintf(tw, "Long name\t%s\n", d.LongName)
	}
	if d.Role != "" {
		fmt.Fprintf(tw, "Role\t%s\n", d.Role)
	}
	fmt.Fprintf(tw, "Node number\t%s\n", d.Number)
	fmt.Fprintf(tw, "User id\t%s\n", d.ID)
	fmt.Fprintf(tw, "Last heard\t%s\n", d.LastHeardText)
	if d.UptimeText != "" {
		fmt.Fprintf(tw, "Uptime\t%s\n", d.UptimeText)
	}
	fmt.Fprintf(tw, "Signal\tSNR %.2f dB, RSSI %d dBm\n", d.SNR, d.RSSI)
	if d.Relay != nil {
		fmt.Fprintf(tw, "Last relay\t%s\n", d.Relay.Text)
	}
	if d.HopText != "" {
		fmt.Fprintf(tw, "Hops\t%s\n", d.HopText)
	}
	_ = tw.Flush()
}

func printAttribution(w io.Writer, attr api.RelayAttribution) {
	fmt.Fprintf(w, "%s (%s)\n", attr.Text, attr.Kind)
	if len(attr.Candidates) == 0 {
		return
	}
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSHORT\tLONG\tSNR\tRSSI\tSCORE")
	for _, c := range attr.Candidates {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.2f\t%d\t%.2f\n", c.ID, c.ShortName, c.LongName, c.SNR, c.RSSI, c.Score)
	}
	_ = tw.Flush()
}

func normalizeBaseURL(addr string) string {
	if strings.HasPrefix(addr, "http://") || strings.HasPrefix(addr, "https://") {
		return addr
	}
	return "http://" + addr
}
