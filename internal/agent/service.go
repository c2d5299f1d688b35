package agent

import (
	"fmt"

	"github.com/kardianos/service"
	"go.uber.org/zap"
)

// ServiceName is the name registered with the platform service manager
const ServiceName = "sysinfo"

// ServiceActions are the control verbs accepted by Control
var ServiceActions = service.ControlAction[:]

// program adapts an Agent to the service manager lifecycle
type program struct {
	agent  *Agent
	logger *zap.Logger
}

// Start must not block; the scheduler runs in the background
func (p *program) Start(s service.Service) error {
	p.logger.Info("Service starting")
	return p.agent.Start()
}

func (p *program) Stop(s service.Service) error {
	p.logger.Info("Service stopping")
	return p.agent.Shutdown()
}

// ServiceConfig describes the installed service. The service manager starts
// it as "<executable> service run --config <configPath>".
func ServiceConfig(configPath string) *service.Config {
	args := []string{"service", "run"}
	if configPath != "" {
		args = append(args, "--config", configPath)
	}
	return &service.Config{
		Name:        ServiceName,
		DisplayName: "System Inventory Collector",
		Description: "Periodically collects a read-only system inventory report.",
		Arguments:   args,
	}
}

// NewService wraps the agent for the platform service manager
func NewService(a *Agent, configPath string) (service.Service, error) {
	svc, err := service.New(&program{agent: a, logger: a.logger}, ServiceConfig(configPath))
	if err != nil {
		return nil, fmt.Errorf("failed to create service: %w", err)
	}
	return svc, nil
}

// Control runs install, uninstall, start, stop or restart
func Control(svc service.Service, action string) error {
	if !validAction(action) {
		return fmt.Errorf("unknown service action %q (valid: %v)", action, ServiceActions)
	}
	if err := service.Control(svc, action); err != nil {
		return fmt.Errorf("service %s failed: %w", action, err)
	}
	return nil
}

func validAction(action string) bool {
	for _, a := range ServiceActions {
		if a == action {
			return true
		}
	}
	return false
}
