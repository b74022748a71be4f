package main

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/grixate/missioncontrol/internal/agentconfig"
	"github.com/grixate/missioncontrol/internal/app"
	"github.com/grixate/missioncontrol/internal/auth"
	"github.com/grixate/missioncontrol/internal/config"
	"github.com/grixate/missioncontrol/internal/logging"
	"github.com/grixate/missioncontrol/internal/openclaw"
	"github.com/grixate/missioncontrol/internal/pricing"
	"github.com/grixate/missioncontrol/internal/reports"
	"github.com/grixate/missioncontrol/internal/storage/sqlite"
	"github.com/grixate/missioncontrol/internal/usage"
	"github.com/grixate/missioncontrol/internal/workflows"
)

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	configPath := new(string)
	root := &cobra.Command{
		Use:           "missioncontrol",
		Short:         "missioncontrol - dashboard for an OpenClaw agent installation",
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          func(cmd *cobra.Command, args []string) error { return cmd.Help() },
	}
	root.PersistentFlags().StringVar(configPath, "config", "", "config file path")

	root.AddCommand(serveCmd(configPath))
	root.AddCommand(statusCmd(configPath))
	root.AddCommand(costsCmd(configPath))
	root.AddCommand(suggestionsCmd(configPath))
	root.AddCommand(reportCmd(configPath))
	root.AddCommand(workflowsCmd(configPath))
	root.AddCommand(configCmd(configPath))
	root.AddCommand(hashPasswordCmd())
	return root
}

func loadCfg(path string) (config.Config, error) {
	config.LoadDotEnv()
	return config.Load(path)
}

func newLogger(cfg config.Config) (*zap.Logger, error) {
	return logging.New(cfg.Logging)
}

// withRuntime builds every service for one command. It holds the activity log
// lock, so it fails while a server is running against the same data dir.
func withRuntime(cmd *cobra.Command, configPath string, fn func(ctx context.Context, rt *app.Runtime) error) error {
	cfg, err := loadCfg(configPath)
	if err != nil {
		return err
	}
	logger, err := newLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = logger.Sync() }()
	rt, err := app.BuildRuntime(cfg, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := rt.Shutdown(); err != nil {
			logger.Warn("runtime shutdown", zap.Error(err))
		}
	}()
	return fn(cmd.Context(), rt)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func serveCmd(configPath *string) *cobra.Command {
	var host string
	var port int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the dashboard HTTP server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(*configPath)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("host") {
				cfg.Server.Host = host
			}
			if cmd.Flags().Changed("port") {
				cfg.Server.Port = port
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			rt, err := app.BuildRuntime(cfg, logger)
			if err != nil {
				return err
			}
			defer rt.Shutdown()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			fmt.Fprintf(cmd.OutOrStdout(), "mission control started (%s)\n", app.BuildStatus(rt.Config, *configPath).Listen)
			return rt.Serve(ctx)
		},
	}
	cmd.Flags().StringVar(&host, "host", "", "listen host (overrides config)")
	cmd.Flags().IntVar(&port, "port", 0, "listen port (overrides config)")
	return cmd
}

func statusCmd(configPath *string) *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show configured paths and whether they exist",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(*configPath)
			if err != nil {
				return err
			}
			st := app.BuildStatus(cfg, *configPath)
			out := cmd.OutOrStdout()
			if asJSON {
				return printJSON(out, st)
			}
			fmt.Fprintf(out, "Config: %s\n", st.ConfigPath)
			fmt.Fprintf(out, "Listen: %s\n", st.Listen)
			fmt.Fprintf(out, "Data dir: %s [%v]\n", st.DataDir, st.DataDirOK)
			fmt.Fprintf(out, "Activity log: %s\n", st.ActivityDB)
			fmt.Fprintf(out, "Agent config: %s [%v]\n", st.AgentConfig, st.AgentConfigOK)
			fmt.Fprintf(out, "Workspace: %s [%v]\n", st.Workspace, st.WorkspaceOK)
			fmt.Fprintf(out, "Usage database: %s [%v]\n", st.UsageDB, st.UsageDBOK)
			fmt.Fprintf(out, "OpenClaw binary: %s\n", st.OpenClawBinary)
			fmt.Fprintf(out, "Auth enabled: %v\n", st.AuthEnabled)
			return nil
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func costsCmd(configPath *string) *cobra.Command {
	var timeframe string
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "costs",
		Short: "Summarize token spend by model and agent",
		RunE: func(cmd *cobra.Command, args []string) error {
			days, err := usage.ParseTimeframe(timeframe)
			if err != nil {
				return err
			}
			cfg, err := loadCfg(*configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(cfg)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			runner := openclaw.NewRunner(openclaw.RunnerOptions{
				Binary:  cfg.OpenClaw.Binary,
				Timeout: cfg.OpenClaw.CLITimeout.Duration,
				Logger:  logger,
			})
			client := openclaw.NewClient(runner, pricing.NewCalculator(logger), logger)
			store := sqlite.NewUsageStore(config.DataFile(cfg, config.UsageTrackingDB))
			defer store.Close()

			summary := usage.NewService(store, client, logger).Summary(cmd.Context(), days)
			if asJSON {
				return printJSON(cmd.OutOrStdout(), summary)
			}
			return printCosts(cmd.OutOrStdout(), summary)
		},
	}
	cmd.Flags().StringVar(&timeframe, "timeframe", "", "window as <N>d (default 30d)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	return cmd
}

func printCosts(w io.Writer, s usage.Summary) error {
	fmt.Fprintf(w, "Window: %s to %s (%s, source %s)\n", s.StartDate, s.EndDate, s.Timeframe, s.Source)
	fmt.Fprintf(w, "Total: $%.2f over %s tokens (today $%.2f)\n\n", s.TotalCost, humanize.Comma(s.TotalTokens), s.TodayCost)
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "MODEL\tCOST\tTOKENS\tSHARE")
	for _, g := range s.ByModel {
		fmt.Fprintf(tw, "%s\t$%.2f\t%s\t%.1f%%\n", g.Key, g.Cost, humanize.Comma(g.Tokens), g.PercentOfTotal)
	}
	if len(s.ByAgent) > 0 {
		fmt.Fprintln(tw, "\nAGENT\tCOST\tTOKENS\tSHARE")
		for _, g := range s.ByAgent {
			fmt.Fprintf(tw, "%s\t$%.2f\t%s\t%.1f%%\n", g.Key, g.Cost, humanize.Comma(g.Tokens), g.PercentOfTotal)
		}
	}
	return tw.Flush()
}

func suggestionsCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{Use: "suggestions", Short: "Review optimization suggestions"}

	var asJSON bool
	list := &cobra.Command{
		Use:   "list",
		Short: "List active suggestions",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *configPath, func(ctx context.Context, rt *app.Runtime) error {
				items := rt.Suggestions.List(ctx)
				out := cmd.OutOrStdout()
				if asJSON {
					return printJSON(out, items)
				}
				if len(items) == 0 {
					fmt.Fprintln(out, "No suggestions")
					return nil
				}
				for _, s := range items {
					fmt.Fprintf(out, "%s\t[%s] %s\n\t%s\n", s.ID, s.Category, s.Title, s.Description)
				}
				return nil
			})
		},
	}
	list.Flags().BoolVar(&asJSON, "json", false, "print as JSON")
	root.AddCommand(list)

	var applied bool
	dismiss := &cobra.Command{
		Use:   "dismiss <id>",
		Short: "Dismiss a suggestion so it no longer appears",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *configPath, func(ctx context.Context, rt *app.Runtime) error {
				if err := rt.Suggestions.Dismiss(ctx, args[0], applied); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "Dismissed %s\n", args[0])
				return nil
			})
		},
	}
	dismiss.Flags().BoolVar(&applied, "applied", false, "record that the suggestion was acted on")
	root.AddCommand(dismiss)
	return root
}

func reportCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{Use: "report", Short: "Generate and export usage reports"}

	var start, end string
	generate := &cobra.Command{
		Use:   "generate",
		Short: "Generate a shareable report for a date range",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *configPath, func(ctx context.Context, rt *app.Runtime) error {
				generated, err := rt.Reports.Generate(ctx, start, end)
				if err != nil {
					return err
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Report: %s\n", generated.ReportID)
				fmt.Fprintf(out, "Token: %s\n", generated.Token)
				fmt.Fprintf(out, "Expires: %s (%s)\n", generated.ExpiresAt.Format("2006-01-02"), humanize.Time(generated.ExpiresAt))
				fmt.Fprintf(out, "Share: %s\n", shareURL(rt.Config, generated.Token))
				return nil
			})
		},
	}
	generate.Flags().StringVar(&start, "start", "", "start date YYYY-MM-DD")
	generate.Flags().StringVar(&end, "end", "", "end date YYYY-MM-DD")
	_ = generate.MarkFlagRequired("start")
	_ = generate.MarkFlagRequired("end")
	root.AddCommand(generate)

	root.AddCommand(&cobra.Command{
		Use:   "show <token>",
		Short: "Print a stored report as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withRuntime(cmd, *configPath, func(ctx context.Context, rt *app.Runtime) error {
				payload, err := rt.Reports.Get(ctx, args[0])
				if err != nil {
					return err
				}
				return printJSON(cmd.OutOrStdout(), payload)
			})
		},
	})

	var format, outPath string
	export := &cobra.Command{
		Use:   "export <token>",
		Short: "Export a stored report as pdf, csv or xlsx",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := reports.ParseFormat(format)
			if err != nil {
				return err
			}
			return withRuntime(cmd, *configPath, func(ctx context.Context, rt *app.Runtime) error {
				payload, err := rt.Reports.Get(ctx, args[0])
				if err != nil {
					return err
				}
				data, err := rt.Exporter.Export(ctx, payload, f)
				if err != nil {
					return err
				}
				if outPath == "" {
					outPath = f.Filename(payload)
				}
				if outPath == "-" {
					_, err := cmd.OutOrStdout().Write(data)
					return err
				}
				if err := os.WriteFile(outPath, data, 0o644); err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Wrote %s (%s)\n", outPath, humanize.Bytes(uint64(len(data))))
				return nil
			})
		},
	}
	export.Flags().StringVar(&format, "format", "pdf", "pdf, csv or xlsx")
	export.Flags().StringVarP(&outPath, "out", "o", "", "output file, - for stdout")
	root.AddCommand(export)
	return root
}

func shareURL(cfg config.Config, token string) string {
	base := strings.TrimRight(strings.TrimSpace(cfg.Server.PublicBaseURL), "/")
	if base == "" {
		host := cfg.Server.Host
		if host == "" || host == "0.0.0.0" {
			host = "127.0.0.1"
		}
		base = fmt.Sprintf("http://%s:%d", host, cfg.Server.Port)
	}
	return base + "/reports/shared/" + token
}

func workflowsCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{Use: "workflows", Short: "Inspect stored workflow definitions"}
	root.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List workflows",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadCfg(*configPath)
			if err != nil {
				return err
			}
			store := workflows.NewStore(config.DataFile(cfg, config.WorkflowsFile), nil)
			items, err := store.List(cmd.Context())
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if len(items) == 0 {
				fmt.Fprintln(out, "No workflows")
				return nil
			}
			tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tSTEPS\tUPDATED")
			for _, wf := range items {
				fmt.Fprintf(tw, "%s\t%s\t%d\t%s\n", wf.ID, wf.Name, len(wf.Steps), humanize.Time(wf.UpdatedAt))
			}
			return tw.Flush()
		},
	})
	return root
}

func configCmd(configPath *string) *cobra.Command {
	root := &cobra.Command{Use: "config", Short: "Read and patch the agent runtime config"}

	agentConfig := func() (*agentconfig.Service, error) {
		cfg, err := loadCfg(*configPath)
		if err != nil {
			return nil, err
		}
		return agentconfig.NewService(agentconfig.Options{Path: config.AgentConfigPath(cfg)}), nil
	}

	root.AddCommand(&cobra.Command{
		Use:   "get [path]",
		Short: "Print the config with secrets masked, or one dotted path",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := agentConfig()
			if err != nil {
				return err
			}
			doc, err := svc.Read(cmd.Context())
			if err != nil {
				return err
			}
			if len(args) == 0 {
				return printJSON(cmd.OutOrStdout(), doc)
			}
			value, ok := agentconfig.GetAtPath(doc, args[0])
			if !ok {
				return fmt.Errorf("%s is not set", args[0])
			}
			return printJSON(cmd.OutOrStdout(), value)
		},
	})

	root.AddCommand(&cobra.Command{
		Use:   "set <path> <value>",
		Short: "Set an allowlisted config path; value is JSON or a bare string",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := agentConfig()
			if err != nil {
				return err
			}
			result, err := svc.Patch(cmd.Context(), map[string]any{args[0]: parseValue(args[1])})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Updated %s\n", strings.Join(result.Updated, ", "))
			if result.RestartRecommended {
				fmt.Fprintln(cmd.OutOrStdout(), "Restart the gateway for this change to take effect.")
			}
			return nil
		},
	})
	return root
}

// parseValue decodes JSON scalars and objects; anything else is a string.
func parseValue(raw string) any {
	dec := json.NewDecoder(strings.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil || dec.More() {
		return raw
	}
	return v
}

func hashPasswordCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Print an argon2id hash for auth.passwordHash",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var password string
			if len(args) == 1 {
				password = args[0]
			} else {
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				password = line
			}
			hash, err := auth.HashPassword(password)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), hash)
			return nil
		},
	}
}
