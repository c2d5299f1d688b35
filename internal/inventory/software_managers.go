package inventory

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// maxManagerOutput is the number of characters kept from each listing
const maxManagerOutput = 5000

type packageManager struct {
	name string
	cmd  []string
}

// linuxPackageManagers are tried in order; any subset may be installed
var linuxPackageManagers = []packageManager{
	{name: "dpkg", cmd: []string{"dpkg", "-l"}},
	{name: "rpm", cmd: []string{"rpm", "-qa"}},
	{name: "pacman", cmd: []string{"pacman", "-Q"}},
	{name: "snap", cmd: []string{"snap", "list"}},
	{name: "flatpak", cmd: []string{"flatpak", "list"}},
}

// packageManagerInventory captures the raw listing of every available
// package manager
type packageManagerInventory struct {
	logger   *zap.Logger
	runner   commandRunner
	timeout  time.Duration
	managers []packageManager
}

func newPackageManagerInventory(logger *zap.Logger, runner commandRunner, timeout time.Duration) *packageManagerInventory {
	if timeout <= 0 {
		timeout = DefaultSubprocessTimeout
	}
	return &packageManagerInventory{
		logger:   logger,
		runner:   runner,
		timeout:  timeout,
		managers: linuxPackageManagers,
	}
}

func (p *packageManagerInventory) Name() string {
	return "package managers"
}

// Programs runs each installed package manager.
// Managers that are not installed are ignored; managers that fail or time
// out are skipped and counted.
func (p *packageManagerInventory) Programs(ctx context.Context) ([]Program, int, error) {
	programs := []Program{}
	skipped := 0

	for _, m := range p.managers {
		if _, err := p.runner.LookPath(m.cmd[0]); err != nil {
			p.logger.Debug("Package manager not installed", zap.String("manager", m.name))
			continue
		}

		output, err := p.run(ctx, m)
		if err != nil {
			p.logger.Warn("Package manager listing failed",
				zap.String("manager", m.name),
				zap.Error(err))
			skipped++
			continue
		}

		programs = append(programs, Program{
			Manager: m.name,
			Output:  truncate(output, maxManagerOutput),
		})
	}

	return programs, skipped, nil
}

func (p *packageManagerInventory) run(ctx context.Context, m packageManager) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()
	return p.runner.Run(ctx, m.cmd[0], m.cmd[1:]...)
}
