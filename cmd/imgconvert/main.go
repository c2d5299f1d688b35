package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/stone-age-io/sysinfo/internal/config"
	"github.com/stone-age-io/sysinfo/internal/imageconv"
	"github.com/stone-age-io/sysinfo/internal/logging"
)

var logLevel string

var rootCmd = &cobra.Command{
	Use:   "imgconvert <input-dir> <output-dir>",
	Short: "Convert every JPEG and PNG file in a directory to JPEG",
	Long: `imgconvert reads the files directly inside input-dir and writes a .jpg copy
of each .jpeg and .png file into output-dir, which is created if missing.
Transparency is discarded. Any unreadable image stops the run.`,
	Args:         cobra.ExactArgs(2),
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	rootCmd.Flags().StringVar(&logLevel, "log-level", "info", "log level (debug, info, warn, error)")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	logger, err := logging.New(config.LoggingConfig{Level: logLevel})
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	result, err := imageconv.NewConverter(logger).Convert(args[0], args[1])
	if err != nil {
		return err
	}

	fmt.Printf("Converted %d file(s) into %s\n", len(result.Converted), args[1])
	return nil
}
