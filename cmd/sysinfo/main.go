package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"github.com/stone-age-io/sysinfo/internal/agent"
	"github.com/stone-age-io/sysinfo/internal/assistant"
	"github.com/stone-age-io/sysinfo/internal/cli"
	"github.com/stone-age-io/sysinfo/internal/config"
	"github.com/stone-age-io/sysinfo/internal/export"
	"github.com/stone-age-io/sysinfo/internal/inventory"
	"github.com/stone-age-io/sysinfo/internal/logging"
	"go.uber.org/zap"
)

var (
	version    = "dev"
	commitHash = "unknown"
	buildDate  = "unknown"
)

var (
	cfgFile  string
	logLevel string
)

var rootCmd = &cobra.Command{
	Use:   "sysinfo",
	Short: "Collect a read-only inventory of this system",
	Long: `sysinfo collects operating system, hardware, installed software, network
and process information into a single report.

Run without a subcommand to collect once and choose an action from the
interactive menu.`,
	SilenceUsage: true,
	RunE:         runMenu,
}

var collectCmd = &cobra.Command{
	Use:   "collect",
	Short: "Collect once and save the report as JSON",
	RunE:  runCollect,
}

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print a short summary of the system",
	RunE:  runSummary,
}

var transmitCmd = &cobra.Command{
	Use:   "transmit",
	Short: "Send the report to the assistant endpoint and print the reply",
	RunE:  runTransmit,
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Collect on a schedule until interrupted",
	RunE:  runWatch,
}

var serviceCmd = &cobra.Command{
	Use:       "service <install|uninstall|start|stop|restart|run>",
	Short:     "Manage or run the background collection service",
	Args:      cobra.ExactArgs(1),
	ValidArgs: append([]string{"run"}, agent.ServiceActions...),
	RunE:      runService,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sysinfo %s (commit: %s, built: %s)\n", version, commitHash, buildDate)
	},
}

var (
	outputPath   string
	textfilePath string
	inputPath    string
	showDetail   bool
	promptText   string
	apiKey       string
)

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default: "+config.GetDefaultConfigPath()+")")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override logging.level")

	collectCmd.Flags().StringVarP(&outputPath, "output", "o", "", "report file (default: output.report_path)")
	collectCmd.Flags().StringVar(&textfilePath, "textfile", "", "also write a Prometheus textfile (default: output.textfile_path)")

	summaryCmd.Flags().StringVarP(&inputPath, "input", "i", "", "summarize a saved report instead of collecting")
	summaryCmd.Flags().BoolVar(&showDetail, "detail", false, "also print disk, process and interface tables")

	transmitCmd.Flags().StringVarP(&inputPath, "input", "i", "", "send a saved report instead of collecting")
	transmitCmd.Flags().StringVarP(&promptText, "prompt", "p", "", "question to send (default: assistant.default_prompt)")
	transmitCmd.Flags().StringVar(&apiKey, "api-key", "", "API key (default: assistant.api_key or SYSINFO_ASSISTANT_API_KEY)")

	rootCmd.AddCommand(collectCmd)
	rootCmd.AddCommand(summaryCmd)
	rootCmd.AddCommand(transmitCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serviceCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// setup loads configuration and builds the logger. Interactive commands
// default to warnings only so log lines do not interleave with prompts.
func setup(interactive bool) (*config.Config, *zap.Logger, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return nil, nil, fmt.Errorf("load config: %w", err)
	}

	switch {
	case logLevel != "":
		cfg.Logging.Level = logLevel
	case interactive && cfg.Logging.File == "":
		cfg.Logging.Level = "warn"
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return nil, nil, fmt.Errorf("init logger: %w", err)
	}
	return cfg, logger, nil
}

// collectOnce runs a single collection, printing progress to stdout
func collectOnce(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*inventory.Report, inventory.Skipped, error) {
	collector := inventory.NewCollector(
		logger,
		inventory.NewHostSource(logger),
		inventory.NewSoftwareInventory(logger, cfg.Inventory.SubprocessTimeout),
		cfg.Inventory.ProcessLimit,
	)
	collector.OnStep(cli.StepPrinter(os.Stdout))

	report, err := collector.Collect(ctx)
	if err != nil {
		return nil, nil, err
	}
	return report, collector.Skipped(), nil
}

// reportFor loads the report at path, or collects one when path is empty
func reportFor(ctx context.Context, path string, cfg *config.Config, logger *zap.Logger) (*inventory.Report, error) {
	if path != "" {
		return inventory.Load(path)
	}
	report, _, err := collectOnce(ctx, cfg, logger)
	return report, err
}

func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

func runMenu(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(true)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	cli.WriteBanner(os.Stdout)
	report, _, err := collectOnce(ctx, cfg, logger)
	if err != nil {
		color.New(color.FgRed).Printf("ERROR during collection: %v\n", err)
		return err
	}
	if err := cli.WriteCollected(os.Stdout, report); err != nil {
		return err
	}

	menu := cli.NewMenu(os.Stdin, os.Stdout, report,
		assistant.NewClient(cfg.Assistant, logger),
		cli.MenuOptions{
			DefaultPrompt: cfg.Assistant.DefaultPrompt,
			APIKey:        cfg.Assistant.APIKey,
		},
		logger)
	return menu.Run(ctx)
}

func runCollect(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	report, skipped, err := collectOnce(ctx, cfg, logger)
	if err != nil {
		return err
	}

	path := outputPath
	if path == "" {
		path = cfg.Output.ReportPath
	}
	if err := inventory.Persist(report, path); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("OK Report saved to %s\n", path)

	textfile := textfilePath
	if textfile == "" {
		textfile = cfg.Output.TextfilePath
	}
	if textfile != "" {
		if err := export.WriteTextfile(textfile, report, skipped); err != nil {
			return err
		}
		color.New(color.FgGreen).Printf("OK Metrics written to %s\n", textfile)
	}
	return nil
}

func runSummary(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	ctx, stop := signalContext()
	defer stop()

	report, err := reportFor(ctx, inputPath, cfg, logger)
	if err != nil {
		return err
	}

	s, err := inventory.Summarize(report)
	if err != nil {
		return err
	}
	cli.WriteSummary(os.Stdout, s)
	if showDetail {
		cli.WriteDetail(os.Stdout, report)
	}
	return nil
}

func runTransmit(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	key := apiKey
	if key == "" {
		key = cfg.Assistant.APIKey
	}
	if key == "" {
		return assistant.ErrMissingAPIKey
	}
	prompt := promptText
	if prompt == "" {
		prompt = cfg.Assistant.DefaultPrompt
	}

	ctx, stop := signalContext()
	defer stop()

	report, err := reportFor(ctx, inputPath, cfg, logger)
	if err != nil {
		return err
	}

	text, err := assistant.NewClient(cfg.Assistant, logger).Transmit(ctx, key, prompt, report)
	if err != nil {
		return err
	}
	fmt.Println(text)
	return nil
}

func runWatch(cmd *cobra.Command, args []string) error {
	cfg, logger, err := setup(false)
	if err != nil {
		return err
	}
	defer logger.Sync()

	return agent.New(cfg, logger, version).Run()
}

func runService(cmd *cobra.Command, args []string) error {
	action := args[0]

	cfg, err := config.Load(cfgFile)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if action == "run" {
		config.ServiceOverrides(cfg)
	}
	if logLevel != "" {
		cfg.Logging.Level = logLevel
	}

	logger, err := logging.New(cfg.Logging)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	svc, err := agent.NewService(agent.New(cfg, logger, version), cfgFile)
	if err != nil {
		return err
	}

	if action == "run" {
		return svc.Run()
	}
	if err := agent.Control(svc, action); err != nil {
		return err
	}
	fmt.Printf("Service %s: %s succeeded\n", agent.ServiceName, action)
	return nil
}
