package inventory

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"go.uber.org/zap"
)

// maxHomebrewPackages is the number of homebrew packages kept
const maxHomebrewPackages = 100

// appsInventory lists application bundles and homebrew packages
type appsInventory struct {
	logger  *zap.Logger
	runner  commandRunner
	timeout time.Duration
	appsDir string
}

func newAppsInventory(logger *zap.Logger, runner commandRunner, timeout time.Duration, appsDir string) *appsInventory {
	if timeout <= 0 {
		timeout = DefaultSubprocessTimeout
	}
	return &appsInventory{
		logger:  logger,
		runner:  runner,
		timeout: timeout,
		appsDir: appsDir,
	}
}

func (a *appsInventory) Name() string {
	return "applications + homebrew"
}

func (a *appsInventory) Programs(ctx context.Context) ([]Program, int, error) {
	programs := []Program{}
	skipped := 0

	bundles, err := filepath.Glob(filepath.Join(a.appsDir, "*.app"))
	if err != nil {
		return nil, 0, fmt.Errorf("invalid applications directory %s: %w", a.appsDir, err)
	}
	for _, bundle := range bundles {
		programs = append(programs, Program{
			Name: filepath.Base(bundle),
			Path: bundle,
		})
	}

	if _, err := a.runner.LookPath("brew"); err != nil {
		a.logger.Debug("Homebrew not installed")
		return programs, skipped, nil
	}

	runCtx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	output, err := a.runner.Run(runCtx, "brew", "list")
	if err != nil {
		a.logger.Warn("Homebrew listing failed", zap.Error(err))
		return programs, skipped + 1, nil
	}

	programs = append(programs, Program{
		Manager:  HomebrewManager,
		Packages: homebrewPackages(output),
	})

	return programs, skipped, nil
}

// homebrewPackages returns up to maxHomebrewPackages non-empty lines
func homebrewPackages(output string) []string {
	packages := []string{}
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		packages = append(packages, line)
		if len(packages) == maxHomebrewPackages {
			break
		}
	}
	return packages
}
